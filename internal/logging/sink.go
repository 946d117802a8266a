// Package logging provides the append-only line log used by the sync engine.
//
// The log is a write-only sink: every significant state transition is
// recorded as one timestamped line. Append failures are swallowed; logging
// is best-effort and never aborts a sync.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Sink appends timestamped lines to a writer.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
	f  *os.File
}

// New creates a sink writing to w. If w is nil, lines are discarded.
func New(w io.Writer) *Sink {
	if w == nil {
		w = io.Discard
	}
	return &Sink{w: w}
}

// OpenFile opens (or creates) path in append mode and returns a sink bound
// to it. Close releases the file.
func OpenFile(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	return &Sink{w: f, f: f}, nil
}

// Printf appends one timestamped line. Errors are ignored.
func (s *Sink) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s %s\n", time.Now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...))
}

// Close closes the underlying file, if any.
func (s *Sink) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
