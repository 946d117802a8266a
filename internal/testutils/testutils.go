// Package testutils provides shared test infrastructure: an httptest server
// that mimics an autoindex mirror with range-request support, and fixture
// helpers for compressed artifacts.
package testutils

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// Tree describes the content of a fake mirror: slash-separated file paths
// mapped to their bytes. A key ending in "/" marks an (empty) directory.
type Tree map[string][]byte

// StartAutoindexServer serves tree as autoindex HTML pages plus files with
// HEAD and Range support, the way an nginx FastDL mirror behaves.
func StartAutoindexServer(t *testing.T, tree Tree) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(AutoindexHandler(tree))
	t.Cleanup(server.Close)
	return server
}

// AutoindexHandler returns the handler behind StartAutoindexServer.
func AutoindexHandler(tree Tree) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")

		if path == "" || strings.HasSuffix(path, "/") {
			serveListing(w, r, tree, path)
			return
		}

		data, ok := tree[path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		serveFile(w, r, data)
	})
}

func serveListing(w http.ResponseWriter, r *http.Request, tree Tree, dir string) {
	type child struct {
		name  string
		isDir bool
	}

	seen := map[string]bool{}
	var children []child
	exists := dir == ""

	for key := range tree {
		if !strings.HasPrefix(key, dir) {
			continue
		}
		rest := strings.TrimPrefix(key, dir)
		if rest == "" {
			exists = true // explicit empty-directory marker
			continue
		}
		exists = true
		if i := strings.Index(rest, "/"); i >= 0 {
			name := rest[:i]
			if !seen[name] {
				seen[name] = true
				children = append(children, child{name: name, isDir: true})
			}
			continue
		}
		if !seen[rest] {
			seen[rest] = true
			children = append(children, child{name: rest})
		}
	}

	if !exists {
		http.NotFound(w, r)
		return
	}

	sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })

	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>Index of /%s</title></head><body>", dir)
	fmt.Fprintf(&b, "<h1>Index of /%s</h1><hr><pre>", dir)
	b.WriteString(`<a href="../">../</a>` + "\n")
	for _, c := range children {
		name := c.name
		if c.isDir {
			name += "/"
		}
		fmt.Fprintf(&b, "<a href=%q>%s</a>\n", name, name)
	}
	b.WriteString("</pre><hr></body></html>")

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(b.String()))
}

func serveFile(w http.ResponseWriter, r *http.Request, data []byte) {
	size := int64(len(data))

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Header().Set("Accept-Ranges", "bytes")
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Write(data)
		return
	}

	// Parse range header: bytes=start- or bytes=start-end
	rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(rangeHeader, "-")
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end := size - 1
	if len(parts) > 1 && parts[1] != "" {
		end, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	if end >= size {
		end = size - 1
	}
	if start > end {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}

// RequestLog records every request path a wrapped handler receives.
type RequestLog struct {
	mu    sync.Mutex
	paths []string
}

// Wrap records requests before delegating to next.
func (l *RequestLog) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		l.paths = append(l.paths, r.Method+" "+r.URL.Path)
		l.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Paths returns a copy of the recorded "METHOD /path" entries.
func (l *RequestLog) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

// CountMatching counts recorded requests whose entry contains substr.
func (l *RequestLog) CountMatching(substr string) int {
	n := 0
	for _, p := range l.Paths() {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

// Bzip2 compresses data with bzip2 for compressed-pair fixtures.
func Bzip2(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		t.Fatalf("bzip2 writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("bzip2 write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("bzip2 close: %v", err)
	}
	return buf.Bytes()
}

// Gzip compresses data with gzip for compressed-pair fixtures.
func Gzip(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}
