package decompress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kritzerenkrieg/FastDLX/internal/downloader"
	fdhttp "github.com/kritzerenkrieg/FastDLX/internal/http"
	"github.com/kritzerenkrieg/FastDLX/internal/testutils"
)

func newPipeline() *Pipeline {
	dl := downloader.New(fdhttp.NewClient(fdhttp.DefaultOptions()), downloader.Options{
		RetryCount: 2,
		RetryDelay: time.Millisecond,
	})
	return NewPipeline(dl, nil, nil)
}

func TestTrim(t *testing.T) {
	tests := []struct {
		name       string
		want       string
		compressed bool
	}{
		{"de_dust2.bsp.bz2", "de_dust2.bsp", true},
		{"wall.vtf.gz", "wall.vtf", true},
		{"model.mdl.zst", "model.mdl", true},
		{"DE_NUKE.BSP.BZ2", "DE_NUKE.BSP", true},
		{"readme.txt", "readme.txt", false},
		{".bz2", ".bz2", false},
		{"archive.bz2.txt", "archive.bz2.txt", false},
	}

	for _, tt := range tests {
		got, compressed := Trim(tt.name)
		assert.Equal(t, tt.want, got, tt.name)
		assert.Equal(t, tt.compressed, compressed, tt.name)
	}
}

func TestFetchDownloadsAndDecompresses(t *testing.T) {
	payload := []byte("this is the decompressed map payload")
	compressed := testutils.Bzip2(t, payload)
	server := testutils.StartAutoindexServer(t, testutils.Tree{"de_dust2.bsp.bz2": compressed})

	dir := t.TempDir()
	compressedPath := filepath.Join(dir, "de_dust2.bsp.bz2")

	err := newPipeline().Fetch(context.Background(), server.URL+"/de_dust2.bsp.bz2", compressedPath)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "de_dust2.bsp"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// The compressed artifact is disposable scratch once the pair is done.
	assert.NoFileExists(t, compressedPath)
	assert.NoFileExists(t, filepath.Join(dir, "de_dust2.bsp")+Suffix)
}

func TestFetchGzipPair(t *testing.T) {
	payload := []byte("gzip mirrors work the same way")
	server := testutils.StartAutoindexServer(t, testutils.Tree{"wall.vtf.gz": testutils.Gzip(t, payload)})

	dir := t.TempDir()
	err := newPipeline().Fetch(context.Background(), server.URL+"/wall.vtf.gz", filepath.Join(dir, "wall.vtf.gz"))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "wall.vtf"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFetchSkipsWhenDecompressedExists(t *testing.T) {
	var log testutils.RequestLog
	server := httptest.NewServer(log.Wrap(http.NotFoundHandler()))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de_dust2.bsp"), []byte("done"), 0o644))

	err := newPipeline().Fetch(context.Background(), server.URL+"/de_dust2.bsp.bz2", filepath.Join(dir, "de_dust2.bsp.bz2"))
	require.NoError(t, err)
	assert.Empty(t, log.Paths(), "a done pair must not touch the network")
}

func TestFetchRecoversFromCompressedFinal(t *testing.T) {
	payload := []byte("crash happened after download, before decompression")

	var log testutils.RequestLog
	server := httptest.NewServer(log.Wrap(http.NotFoundHandler()))
	defer server.Close()

	dir := t.TempDir()
	compressedPath := filepath.Join(dir, "de_dust2.bsp.bz2")
	require.NoError(t, os.WriteFile(compressedPath, testutils.Bzip2(t, payload), 0o644))

	err := newPipeline().Fetch(context.Background(), server.URL+"/de_dust2.bsp.bz2", compressedPath)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "de_dust2.bsp"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Empty(t, log.Paths(), "recovery must not re-download")
	assert.NoFileExists(t, compressedPath)
}

func TestFetchDiscardsInterruptedDecompression(t *testing.T) {
	payload := []byte("the dec temp cannot be trusted")
	server := testutils.StartAutoindexServer(t, testutils.Tree{"de_dust2.bsp.bz2": testutils.Bzip2(t, payload)})

	dir := t.TempDir()
	decTemp := filepath.Join(dir, "de_dust2.bsp") + Suffix
	require.NoError(t, os.WriteFile(decTemp, []byte("truncated output"), 0o644))

	err := newPipeline().Fetch(context.Background(), server.URL+"/de_dust2.bsp.bz2", filepath.Join(dir, "de_dust2.bsp.bz2"))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "de_dust2.bsp"))
	require.NoError(t, err)
	assert.Equal(t, payload, got, "output must come from a clean decompression, never the stale temp")
	assert.NoFileExists(t, decTemp)
}

func TestFetchCorruptCompressedForcesRedownload(t *testing.T) {
	payload := []byte("fresh bytes from the mirror")
	server := testutils.StartAutoindexServer(t, testutils.Tree{"de_dust2.bsp.bz2": testutils.Bzip2(t, payload)})

	dir := t.TempDir()
	compressedPath := filepath.Join(dir, "de_dust2.bsp.bz2")
	require.NoError(t, os.WriteFile(compressedPath, []byte("not bzip2 at all"), 0o644))

	err := newPipeline().Fetch(context.Background(), server.URL+"/de_dust2.bsp.bz2", compressedPath)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "de_dust2.bsp"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFetchUnknownExtension(t *testing.T) {
	err := newPipeline().Fetch(context.Background(), "http://unused/", filepath.Join(t.TempDir(), "file.rar"))
	require.Error(t, err)
}
