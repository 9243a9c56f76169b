// Package logx is the relay's ambient logger. It formats every line as
// "[relay:<severity>] <tokens...>", mirroring the teacher's own
// two-function log.Printf wrapper (websocket/websocket.go's logInfo /
// logError) instead of reaching for a structured logging library.
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
)

type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// Logger writes "[relay:<severity>] <tokens...>" lines to stderr and,
// if configured, also to a log file.
type Logger struct {
	out *log.Logger
}

// New builds a Logger that always writes to stderr and, when path is
// non-empty, also appends to the file at path.
func New(path string) (*Logger, func() error, error) {
	writer := io.Writer(os.Stderr)
	closer := func() error { return nil }

	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logx: open log file %q: %w", path, err)
		}
		writer = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}

	return &Logger{out: log.New(writer, "", 0)}, closer, nil
}

func (l *Logger) log(sev Severity, tokens ...any) {
	args := append([]any{fmt.Sprintf("[relay:%s]", sev)}, tokens...)
	l.out.Println(args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(Error, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(Warning, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(Info, fmt.Sprintf(format, args...))
}

// Nop returns a Logger that discards everything, handy for tests.
func Nop() *Logger {
	return &Logger{out: log.New(io.Discard, "", 0)}
}
