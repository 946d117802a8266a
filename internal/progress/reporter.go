package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Reporter is a Sink that prints events as human-readable lines.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewReporter creates a reporter writing to out. If out is nil, os.Stderr
// is used.
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stderr
	}
	return &Reporter{out: out}
}

// Publish prints the event. Write errors are ignored; progress output is
// best-effort.
func (r *Reporter) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[fastdlx] %3d%% %s\n", e.Percentage, e.Message)
}
