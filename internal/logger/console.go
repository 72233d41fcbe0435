package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelDebug int = 0
	levelInfo  int = 1
	levelWarn  int = 2
	levelError int = 3
)

// Console logs run progress to a writer with timestamps and thread
// safety. All output is prefixed with [HH:MM:SS] timestamps. Warnings
// render yellow and errors red when the writer is a TTY; color is
// disabled automatically otherwise (and by NO_COLOR).
type Console struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsole creates a Console writing to the provided io.Writer.
// If writer is nil, messages are silently discarded. logLevel is one of
// debug, info, warn, error (case-insensitive); empty or invalid levels
// default to "info".
func NewConsole(writer io.Writer, logLevel string) *Console {
	return &Console{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	// The color library's NoColor also honors the NO_COLOR convention.
	return !color.NoColor
}

// normalizeLogLevel converts a log level string to lowercase and
// validates it, defaulting to "info".
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// shouldLog returns true if messageLevel >= the configured level.
func (c *Console) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(c.logLevel)
}

// Infof implements Logger.
// Format: "[HH:MM:SS] [INFO] <message>"
func (c *Console) Infof(format string, args ...any) {
	c.write("info", "INFO", fmt.Sprintf(format, args...), nil)
}

// Warnf implements Logger. Warnings are colored yellow on TTYs.
func (c *Console) Warnf(format string, args ...any) {
	c.write("warn", "WARN", fmt.Sprintf(format, args...), color.New(color.FgYellow))
}

// Errorf implements Logger. Errors are colored red on TTYs.
func (c *Console) Errorf(format string, args ...any) {
	c.write("error", "ERROR", fmt.Sprintf(format, args...), color.New(color.FgRed))
}

func (c *Console) write(level, tag, message string, col *color.Color) {
	if c.writer == nil || !c.shouldLog(level) {
		return
	}

	line := fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), tag, message)
	if c.colorOutput && col != nil {
		line = col.Sprint(line)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	fmt.Fprint(c.writer, line)
}
