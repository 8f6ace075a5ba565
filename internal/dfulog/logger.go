// Package dfulog provides the file-backed session logger used by the CLI:
// one log file per invocation, tagged with a correlation ID so concurrent
// runs against different devices don't interleave in a shared file.
package dfulog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// Logger writes leveled, correlation-tagged lines to a file and, unless
// Quiet is set, mirrors them to stderr.
type Logger struct {
	logger  *log.Logger
	file    io.Closer
	mu      sync.Mutex
	level   Level
	corrID  string
	quiet   bool
}

// New opens (creating dir if needed) logDir/<correlation-id>.log and
// returns a Logger at INFO level. An empty logDir logs to stderr only.
func New(logDir string, quiet bool) (*Logger, error) {
	corrID := uuid.NewString()

	var output io.Writer = os.Stderr
	var closer io.Closer
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		path := filepath.Join(logDir, corrID+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		if quiet {
			output = f
		} else {
			output = io.MultiWriter(f, os.Stderr)
		}
		closer = f
	}

	return &Logger{
		logger: log.New(output, "", 0),
		file:   closer,
		level:  INFO,
		corrID: corrID,
		quiet:  quiet,
	}, nil
}

// CorrelationID identifies this invocation's log lines.
func (l *Logger) CorrelationID() string { return l.corrID }

// SetLevel changes the minimum level that gets written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("%s [%s] %s %s", time.Now().Format(time.RFC3339), levelNames[level], l.corrID[:8], msg)
}

func (l *Logger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

// Close releases the underlying log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
