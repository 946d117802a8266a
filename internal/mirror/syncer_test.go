package mirror

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kritzerenkrieg/FastDLX/internal/progress"
	"github.com/kritzerenkrieg/FastDLX/internal/testutils"
)

func newSyncer(baseURL, targetDir string, skipMaps bool, sink progress.Sink) *Syncer {
	return New(Options{
		BaseURL:    baseURL,
		TargetDir:  targetDir,
		SkipMaps:   skipMaps,
		RetryCount: 2,
		RetryDelay: time.Millisecond,
	}, sink, nil)
}

func TestRunRejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host/dir/", "/relative/path/", "host/no/scheme/"} {
		target := filepath.Join(t.TempDir(), "out")
		s := newSyncer(raw, target, false, nil)
		_, err := s.Run(context.Background())
		require.ErrorIs(t, err, ErrInvalidBaseURL, "url %q", raw)

		// Rejected before any I/O: not even the target directory appears.
		assert.NoDirExists(t, target, "url %q", raw)
	}
}

func TestRunMirrorsTree(t *testing.T) {
	payload := []byte("decompressed model data")
	tree := testutils.Tree{
		"readme.txt":                  []byte("hello"),
		"materials/wall.vtf":          []byte("texture bytes"),
		"materials/models/crate.vmt":  []byte("vmt bytes"),
		"models/props/barrel.mdl.bz2": testutils.Bzip2(t, payload),
	}
	server := testutils.StartAutoindexServer(t, tree)

	target := t.TempDir()
	res, err := newSyncer(server.URL, target, false, nil).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Complete)
	assert.Equal(t, 4, res.TotalFiles)
	assert.Equal(t, 4, res.CompletedFiles)
	assert.Zero(t, res.FailedFiles)

	for path, want := range map[string][]byte{
		"readme.txt":                 []byte("hello"),
		"materials/wall.vtf":         []byte("texture bytes"),
		"materials/models/crate.vmt": []byte("vmt bytes"),
		"models/props/barrel.mdl":    payload,
	} {
		got, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(path)))
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	// The compressed pair resolves to only its decompressed artifact.
	assert.NoFileExists(t, filepath.Join(target, "models", "props", "barrel.mdl.bz2"))
}

func TestRunIsIdempotent(t *testing.T) {
	tree := testutils.Tree{
		"readme.txt":            []byte("hello"),
		"maps/de_dust2.bsp.bz2": testutils.Bzip2(t, []byte("map bytes")),
	}
	var log testutils.RequestLog
	server := httptest.NewServer(log.Wrap(testutils.AutoindexHandler(tree)))
	defer server.Close()

	target := t.TempDir()

	res, err := newSyncer(server.URL, target, false, nil).Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Complete)

	before := len(log.Paths())

	res, err = newSyncer(server.URL, target, false, nil).Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Complete)
	assert.Equal(t, 2, res.CompletedFiles)

	// The second run may re-list directories but must transfer nothing.
	for _, p := range log.Paths()[before:] {
		if !strings.HasSuffix(p, "/") {
			t.Errorf("unexpected file request on second run: %s", p)
		}
	}
}

func TestRunSkipMaps(t *testing.T) {
	// Base lists materials/, maps/, de_dust2.bsp.bz2. With skipMaps on:
	// materials/ is created and recursed into, maps/ is never touched,
	// the root map file is never fetched but still counts as completed.
	tree := testutils.Tree{
		"materials/wall.vtf":  []byte("texture"),
		"maps/de_inferno.bsp": []byte("never fetched"),
		"de_dust2.bsp.bz2":    []byte("never fetched either"),
	}
	var log testutils.RequestLog
	server := httptest.NewServer(log.Wrap(testutils.AutoindexHandler(tree)))
	defer server.Close()

	target := t.TempDir()
	res, err := newSyncer(server.URL, target, true, nil).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Complete)
	assert.Equal(t, 2, res.TotalFiles, "count pass must respect skipMaps")
	assert.Equal(t, 2, res.CompletedFiles, "skipped map file still increments completed")

	assert.DirExists(t, filepath.Join(target, "materials"))
	assert.NoDirExists(t, filepath.Join(target, "maps"))
	assert.NoFileExists(t, filepath.Join(target, "de_dust2.bsp"))
	assert.NoFileExists(t, filepath.Join(target, "de_dust2.bsp.bz2"))

	assert.Zero(t, log.CountMatching("/maps/"), "no request may target the maps subtree")
	assert.Zero(t, log.CountMatching("de_dust2"), "map-format files are never fetched")
}

func TestRunContainsHostileListingInTarget(t *testing.T) {
	// A malicious mirror serves an encoded parent link. Nothing it lists
	// may ever be written outside the target directory.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/":
			w.Write([]byte(`<a href="%2e%2e/">%2e%2e/</a> <a href="%2e%2e">%2e%2e</a> <a href="good.txt">good.txt</a>`))
		case "/%2e%2e/":
			w.Write([]byte(`<a href="evil.txt">evil.txt</a>`))
		default:
			w.Write([]byte("owned"))
		}
	}))
	defer server.Close()

	root := t.TempDir()
	target := filepath.Join(root, "mirror")

	res, err := newSyncer(server.URL, target, false, nil).Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Complete)

	assert.FileExists(t, filepath.Join(target, "good.txt"))
	assert.NoFileExists(t, filepath.Join(root, "evil.txt"))

	// The traversal entries vanish entirely: the only thing in the parent
	// of the target is the target itself.
	siblings, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.Equal(t, "mirror", siblings[0].Name())
}

func TestRunDirectoryFailureFlipsComplete(t *testing.T) {
	tree := testutils.Tree{
		"good/file.txt": []byte("ok"),
	}
	inner := testutils.AutoindexHandler(tree)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`<a href="bad/">bad/</a> <a href="good/">good/</a>`))
			return
		}
		if strings.HasPrefix(r.URL.Path, "/bad/") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		inner.ServeHTTP(w, r)
	}))
	defer server.Close()

	target := t.TempDir()
	res, err := newSyncer(server.URL, target, false, nil).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Complete, "a failed directory read marks the run incomplete")

	// The sibling branch still synced.
	got, err := os.ReadFile(filepath.Join(target, "good", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
}

func TestRunEmptyDirectoryIsSuccess(t *testing.T) {
	tree := testutils.Tree{
		"empty/":   nil,
		"file.txt": []byte("x"),
	}
	server := testutils.StartAutoindexServer(t, tree)

	res, err := newSyncer(server.URL, t.TempDir(), false, nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Complete)
}

func TestRunFileFailureDoesNotFlipComplete(t *testing.T) {
	inner := testutils.AutoindexHandler(testutils.Tree{
		"good.txt": []byte("ok"),
		"bad.txt":  []byte("never delivered"),
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "bad.txt") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		inner.ServeHTTP(w, r)
	}))
	defer server.Close()

	target := t.TempDir()
	res, err := newSyncer(server.URL, target, false, nil).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Complete, "exhausted file retries are an acceptable partial outcome")
	assert.Equal(t, 1, res.FailedFiles)
	assert.Equal(t, 1, res.CompletedFiles)
	assert.FileExists(t, filepath.Join(target, "good.txt"))
}

func TestRunProgressOrderAndCompletion(t *testing.T) {
	tree := testutils.Tree{
		"a.txt": []byte("a"),
		"b.txt": []byte("b"),
	}
	server := testutils.StartAutoindexServer(t, tree)

	var events []progress.Event
	sink := progress.SinkFunc(func(e progress.Event) { events = append(events, e) })

	res, err := newSyncer(server.URL, t.TempDir(), false, sink).Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Complete)

	require.NotEmpty(t, events)
	assert.Equal(t, "Scanning remote tree", events[0].Message)
	last := events[len(events)-1]
	assert.Equal(t, "Sync complete", last.Message)
	assert.Equal(t, 100, last.Percentage)
}

func TestPercentage(t *testing.T) {
	s := &Syncer{}

	// Liveness ramp while the total is unknown.
	s.counters = counters{total: 0, completed: 0}
	assert.Equal(t, 0, s.pct())
	s.counters.completed = 3
	assert.Equal(t, 15, s.pct())
	s.counters.completed = 40
	assert.Equal(t, 95, s.pct())

	s.counters = counters{total: 8, completed: 2}
	assert.Equal(t, 25, s.pct())
	s.counters.completed = 9
	assert.Equal(t, 100, s.pct())
}

func TestNormalizeBaseURL(t *testing.T) {
	got, err := normalizeBaseURL("https://host/fastdl")
	require.NoError(t, err)
	assert.Equal(t, "https://host/fastdl/", got)

	got, err = normalizeBaseURL("http://host")
	require.NoError(t, err)
	assert.Equal(t, "http://host/", got)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "de_dust2.bsp", sanitizeName("de_dust2.bsp"))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i", sanitizeName(`a/b\c:d*e?f"g<h>i`))
	assert.Equal(t, "tab_name", sanitizeName("tab\tname"))
}
