// Package logger provides a small leveled logger over the standard log package.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// Logger writes info/warning/error lines to stdout/stderr and, when a
// directory is configured, to per-level files inside it. Debug lines are
// emitted only when debug mode is on.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	debugLog   *log.Logger
	debug      bool
}

// New creates a Logger. An empty dir logs to the console only. If the
// directory or a file cannot be opened the logger degrades to console output.
func New(dir string, debug bool) *Logger {
	var infoW, warnW, errW io.Writer = os.Stdout, os.Stdout, os.Stderr
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("logger: cannot create log dir %s: %v", dir, err)
		} else {
			infoW = teeFile(infoW, filepath.Join(dir, "info.log"))
			warnW = teeFile(warnW, filepath.Join(dir, "warning.log"))
			errW = teeFile(errW, filepath.Join(dir, "error.log"))
		}
	}
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Logger{
		infoLog:    log.New(infoW, "INFO    ", flags),
		warningLog: log.New(warnW, "WARNING ", flags),
		errorLog:   log.New(errW, "ERROR   ", flags),
		debugLog:   log.New(infoW, "DEBUG   ", flags),
		debug:      debug,
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return &Logger{
		infoLog:    log.New(io.Discard, "", 0),
		warningLog: log.New(io.Discard, "", 0),
		errorLog:   log.New(io.Discard, "", 0),
		debugLog:   log.New(io.Discard, "", 0),
	}
}

func teeFile(w io.Writer, path string) io.Writer {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: cannot open %s: %v", path, err)
		return w
	}
	return io.MultiWriter(w, f)
}

// DebugEnabled reports whether Debug lines are written.
func (l *Logger) DebugEnabled() bool { return l.debug }

// Info writes a formatted info-level entry.
func (l *Logger) Info(format string, v ...any) {
	_ = l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level entry.
func (l *Logger) Warning(format string, v ...any) {
	_ = l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level entry.
func (l *Logger) Error(format string, v ...any) {
	_ = l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// Debug writes a formatted entry only in debug mode.
func (l *Logger) Debug(format string, v ...any) {
	if !l.debug {
		return
	}
	_ = l.debugLog.Output(2, fmt.Sprintf(format, v...))
}
