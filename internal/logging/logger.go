// Package logging provides a small leveled logger for the tracking pipeline.
//
// Per-frame detection failures are the normal case here, not errors, so the
// detection packages log them at debug level and the gate stays off unless
// explicitly enabled.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stdout
	debugOn atomic.Bool
)

// SetDebug toggles debug-level output.
func SetDebug(enabled bool) {
	debugOn.Store(enabled)
}

// DebugEnabled reports whether debug-level output is on.
func DebugEnabled() bool {
	return debugOn.Load()
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func line(level, text string) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	mu.Lock()
	defer mu.Unlock()
	_, _ = io.WriteString(out, ts+" ["+level+"] "+text+"\n")
}

// Infof logs at INFO level.
func Infof(format string, args ...interface{}) {
	line("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs at WARN level.
func Warnf(format string, args ...interface{}) {
	line("WARN", fmt.Sprintf(format, args...))
}

// Errorf logs at ERROR level.
func Errorf(format string, args ...interface{}) {
	line("ERROR", fmt.Sprintf(format, args...))
}

// Debugf logs at DEBUG level when the debug gate is on; no-op otherwise.
func Debugf(format string, args ...interface{}) {
	if !debugOn.Load() {
		return
	}
	line("DEBUG", fmt.Sprintf(format, args...))
}
