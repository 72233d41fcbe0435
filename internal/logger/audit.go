package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Audit is the durable record of one combine run. It appends
// level-prefixed lines to a README file directly under the output
// subject directory, one entry per event, synced after every write.
//
// The file is append-only and owned by a single run at a time; the
// pipeline's invocation lock enforces that precondition.
type Audit struct {
	path  string
	file  *os.File
	runID string
	mu    sync.Mutex
}

// NewAudit opens (creating if needed) the audit log at path and writes
// the run header: a timestamp and a unique run ID.
func NewAudit(path string) (*Audit, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}

	a := &Audit{
		path:  path,
		file:  file,
		runID: uuid.NewString(),
	}
	a.Infof("%s", time.Now().Format(time.ANSIC))
	a.Infof("Run ID: %s", a.runID)
	return a, nil
}

// RunID returns the unique identifier of this run.
func (a *Audit) RunID() string { return a.runID }

// Path returns the audit log path.
func (a *Audit) Path() string { return a.path }

// Infof implements Logger.
// Format: "INFO: <message>"
func (a *Audit) Infof(format string, args ...any) {
	a.write("INFO", fmt.Sprintf(format, args...))
}

// Warnf implements Logger.
// Format: "WARNING: <message>"
func (a *Audit) Warnf(format string, args ...any) {
	a.write("WARNING", fmt.Sprintf(format, args...))
}

// Errorf implements Logger.
// Format: "ERROR: <message>"
func (a *Audit) Errorf(format string, args ...any) {
	a.write("ERROR", fmt.Sprintf(format, args...))
}

func (a *Audit) write(level, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return
	}
	fmt.Fprintf(a.file, "%s: %s\n", level, message)
	// Sync so the log survives a mid-run abort.
	a.file.Sync()
}

// Close flushes and closes the log file.
func (a *Audit) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	err := a.file.Close()
	a.file = nil
	if err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}
