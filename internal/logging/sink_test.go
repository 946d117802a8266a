package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrintfTimestampsLines(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	s.Printf("sync started: %s", "http://host/fastdl/")
	s.Printf("counted %d remote files", 42)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, line := range lines {
		// "2006-01-02 15:04:05 message"
		if len(line) < 20 || line[4] != '-' || line[10] != ' ' {
			t.Errorf("line is not timestamped: %q", line)
		}
	}
	if !strings.HasSuffix(lines[1], "counted 42 remote files") {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestNewNilWriterDiscards(t *testing.T) {
	s := New(nil)
	s.Printf("goes nowhere")
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")

	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	s.Printf("first run")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile again: %v", err)
	}
	s.Printf("second run")
	s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "first run") || !strings.Contains(string(data), "second run") {
		t.Errorf("log was not appended across opens: %q", data)
	}
}
