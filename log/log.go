// Package log provides the structured logger used across the verifier and
// holder commands. The interface shape mirrors the audit logger the teacher
// codebase threads through its command and WFE packages; the backing
// implementation is a logrus.Logger instead of syslog, since the teacher's
// own log package was not available to copy from.
package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface every package in this module depends on.
// AuditErr is distinct from Err: it marks events that must survive at
// whatever log level operators have configured for compliance review.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warning(msg string)
	Err(msg string)
	AuditErr(msg string)
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New constructs a Logger backed by logrus, writing JSON lines to stderr.
func New(component string) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &logrusLogger{entry: l.WithField("component", component)}
}

func (l *logrusLogger) Debug(msg string)    { l.entry.Debug(msg) }
func (l *logrusLogger) Info(msg string)     { l.entry.Info(msg) }
func (l *logrusLogger) Warning(msg string)  { l.entry.Warn(msg) }
func (l *logrusLogger) Err(msg string)      { l.entry.Error(msg) }
func (l *logrusLogger) AuditErr(msg string) { l.entry.WithField("audit", true).Error(msg) }

// NewMock returns a Logger that records formatted lines instead of emitting
// them, for use in tests that want to assert on log content. Mirrors
// blog.NewMock()'s role in the teacher's tests.
func NewMock() *Mock {
	return &Mock{}
}

// Mock is the concrete type returned by NewMock, exposing GetAll for
// inspection in tests.
type Mock struct {
	lines []string
}

func (m *Mock) record(level, msg string) {
	m.lines = append(m.lines, fmt.Sprintf("%s: %s", level, msg))
}

func (m *Mock) Debug(msg string)    { m.record("DEBUG", msg) }
func (m *Mock) Info(msg string)     { m.record("INFO", msg) }
func (m *Mock) Warning(msg string)  { m.record("WARNING", msg) }
func (m *Mock) Err(msg string)      { m.record("ERR", msg) }
func (m *Mock) AuditErr(msg string) { m.record("AUDIT", msg) }

// GetAll returns every recorded line in order, for test assertions.
func (m *Mock) GetAll() []string {
	return m.lines
}

var _ Logger = &Mock{}
var _ Logger = &logrusLogger{}
