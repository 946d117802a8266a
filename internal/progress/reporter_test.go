package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestReporterPublish(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	r.Publish(Event{Message: "Downloading de_dust2.bsp.bz2", Percentage: 42})
	r.Publish(Event{Message: "Sync complete", Percentage: 100})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "42%") || !strings.Contains(lines[0], "Downloading de_dust2.bsp.bz2") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "[fastdlx]") {
		t.Errorf("expected [fastdlx] prefix, got %q", lines[1])
	}
}

func TestSinkFunc(t *testing.T) {
	var got []Event
	sink := SinkFunc(func(e Event) { got = append(got, e) })

	sink.Publish(Event{Message: "a", Percentage: 1})
	sink.Publish(Event{Message: "b", Percentage: 2})

	if len(got) != 2 || got[0].Message != "a" || got[1].Percentage != 2 {
		t.Errorf("unexpected events: %+v", got)
	}

	// Discard must accept events without effect.
	Discard.Publish(Event{Message: "dropped"})
}
