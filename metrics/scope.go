package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Scope is a stats collector that prefixes the stats it counts. Trimmed
// from the teacher's broader Scope — which also carried gauges, timings,
// nested sub-scopes, and a raw MustRegister passthrough — down to the one
// operation wfe actually calls: counting challenge issuance and
// verification outcomes by label.
type Scope interface {
	Inc(stat string, value int64) error
}

// promScope is a Scope that sends data to Prometheus.
type promScope struct {
	*autoRegisterer
	prefix string
}

var _ Scope = &promScope{}

// NewPromScope returns a Scope that sends data to Prometheus, registering
// new counters against registerer as wfe's handlers name them.
func NewPromScope(registerer prometheus.Registerer) Scope {
	return &promScope{
		prefix:         "verifier.",
		autoRegisterer: newAutoRegisterer(registerer),
	}
}

// Inc increments the given stat, adding the Scope's prefix to the name.
func (s *promScope) Inc(stat string, value int64) error {
	s.autoCounter(s.prefix + stat).Add(float64(value))
	return nil
}

type noopScope struct{}

// NewNoopScope returns a Scope that won't collect anything, for use in
// tests that don't care about metrics output.
func NewNoopScope() Scope {
	return noopScope{}
}

func (noopScope) Inc(stat string, value int64) error {
	return nil
}
