package progress

// Event describes one user-visible state transition during a sync run.
// Percentage is in [0, 100]. It is monotonic within a single file transfer
// but may reset between files.
type Event struct {
	Message    string
	Percentage int
}

// Sink receives progress events in discovery order. Implementations must be
// cheap; the sync walk publishes synchronously.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) { f(e) }

// Discard is a Sink that drops all events.
var Discard Sink = SinkFunc(func(Event) {})
