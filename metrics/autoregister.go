package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// autoRegisterer lazily creates and registers a Counter the first time a
// given stat name is used, and returns the cached collector on every
// subsequent call, so wfe's handlers never have to pre-declare a metric
// before incrementing it. Trimmed to counters only — this verifier's two
// handlers only ever count challenge issuance and verification outcomes,
// never gauge or time anything through Scope.
type autoRegisterer struct {
	registerer prometheus.Registerer

	mu       sync.Mutex
	counters map[string]prometheus.Counter
}

func newAutoRegisterer(registerer prometheus.Registerer) *autoRegisterer {
	return &autoRegisterer{
		registerer: registerer,
		counters:   make(map[string]prometheus.Counter),
	}
}

func (a *autoRegisterer) autoCounter(name string) prometheus.Counter {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: sanitizeName(name), Help: name})
	a.registerer.MustRegister(c)
	a.counters[name] = c
	return c
}

// sanitizeName replaces the dot-joined scope separators promScope uses with
// underscores, since Prometheus metric names may not contain periods.
func sanitizeName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '.' || c == '-' {
			out[i] = '_'
		} else {
			out[i] = c
		}
	}
	return string(out)
}
