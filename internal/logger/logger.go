// Package logger provides the logging implementations for a combine run.
//
// Two sinks exist: a console logger for the operator and an audit
// logger that writes the durable README record inside the output
// subject tree. Both implement the Logger interface consumed by the
// pipeline stages; loggers are injected, never package-level state, so
// each run's logging lifecycle is scoped to that run.
package logger

// Logger receives the events of one combine run. Implementations are
// safe for use from a single run goroutine; writes are mutex-guarded so
// a future fan-out inside the materializer only needs this interface.
type Logger interface {
	// Infof records a normal processing event.
	Infof(format string, args ...any)
	// Warnf records a non-fatal condition (missing optional data,
	// unrecognized field-map direction).
	Warnf(format string, args ...any)
	// Errorf records a fatal condition before the run aborts.
	Errorf(format string, args ...any)
}

// Multi fans every event out to all wrapped loggers in order.
type Multi struct {
	loggers []Logger
}

// NewMulti creates a Logger that forwards to each of the given loggers.
func NewMulti(loggers ...Logger) *Multi {
	return &Multi{loggers: loggers}
}

// Infof implements Logger.
func (m *Multi) Infof(format string, args ...any) {
	for _, l := range m.loggers {
		l.Infof(format, args...)
	}
}

// Warnf implements Logger.
func (m *Multi) Warnf(format string, args ...any) {
	for _, l := range m.loggers {
		l.Warnf(format, args...)
	}
}

// Errorf implements Logger.
func (m *Multi) Errorf(format string, args ...any) {
	for _, l := range m.loggers {
		l.Errorf(format, args...)
	}
}

// Discard is a Logger that drops everything. Useful in tests.
type Discard struct{}

func (Discard) Infof(string, ...any)  {}
func (Discard) Warnf(string, ...any)  {}
func (Discard) Errorf(string, ...any) {}
