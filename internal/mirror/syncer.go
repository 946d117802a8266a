package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kritzerenkrieg/FastDLX/internal/decompress"
	"github.com/kritzerenkrieg/FastDLX/internal/downloader"
	fdhttp "github.com/kritzerenkrieg/FastDLX/internal/http"
	"github.com/kritzerenkrieg/FastDLX/internal/listing"
	"github.com/kritzerenkrieg/FastDLX/internal/logging"
	"github.com/kritzerenkrieg/FastDLX/internal/progress"
)

// ErrInvalidBaseURL is returned when the base URL is not an absolute
// HTTP or HTTPS URL. Validation happens before any I/O.
var ErrInvalidBaseURL = errors.New("mirror: base URL must be an absolute http or https URL")

const mapsDir = "maps"

// mapExts identifies map-format files regardless of which directory they
// sit in.
var mapExts = map[string]bool{
	".bsp": true,
}

// Options configures one sync run. Immutable for the run's duration.
type Options struct {
	// BaseURL is the root of the remote autoindex tree.
	BaseURL string

	// TargetDir is the local mirror root; created if missing.
	TargetDir string

	// RetryCount is the number of attempts per file transfer.
	// Default: 3
	RetryCount int

	// SkipMaps excludes map directories and map-format files.
	SkipMaps bool

	// RetryDelay is the base delay of the linear retry schedule.
	// Default: 2s
	RetryDelay time.Duration

	// Timeout bounds each HTTP request.
	// Default: 30s
	Timeout time.Duration

	// ChunkSize is the streamed write size for downloads.
	// Default: 64KB
	ChunkSize int64
}

// Result summarizes one sync run. Complete is false when any directory
// listing could not be read; files whose retries were exhausted are counted
// in FailedFiles but do not flip Complete, since their partial artifacts
// are kept and a later run resumes them.
type Result struct {
	Complete       bool
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int
}

// counters is the only mutable state of a run, owned exclusively by one
// Syncer. Concurrent independent runs do not interfere.
type counters struct {
	total     int
	completed int
}

// Syncer drives one mirroring run: it walks the remote tree sequentially
// and depth-first, dispatching each file to the downloader or the
// decompression pipeline.
type Syncer struct {
	opts    Options
	crawler *listing.Crawler
	dl      *downloader.Downloader
	pipe    *decompress.Pipeline
	sink    progress.Sink
	log     *logging.Sink

	counters    counters
	failedFiles int
}

// New creates a Syncer. sink and log may be nil.
func New(opts Options, sink progress.Sink, log *logging.Sink) *Syncer {
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 64 * 1024
	}
	if sink == nil {
		sink = progress.Discard
	}
	if log == nil {
		log = logging.New(nil)
	}

	client := fdhttp.NewClient(fdhttp.Options{
		Timeout:   opts.Timeout,
		UserAgent: "fastdlx",
	})
	dl := downloader.New(client, downloader.Options{
		RetryCount: opts.RetryCount,
		RetryDelay: opts.RetryDelay,
		ChunkSize:  opts.ChunkSize,
		Progress:   sink,
		Log:        log,
	})

	return &Syncer{
		opts:    opts,
		crawler: listing.New(client, log),
		dl:      dl,
		pipe:    decompress.NewPipeline(dl, sink, log),
		sink:    sink,
		log:     log,
	}
}

// Run performs the sync. Validation failures surface as an error before any
// I/O; everything past validation is narrated through the progress sink and
// summarized in the Result.
func (s *Syncer) Run(ctx context.Context) (Result, error) {
	base, err := normalizeBaseURL(s.opts.BaseURL)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(s.opts.TargetDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("mirror: create target directory: %w", err)
	}

	s.log.Printf("sync started: %s -> %s", base, s.opts.TargetDir)
	s.publish("Scanning remote tree", 0)

	// Best-effort count to seed the percentage baseline. Errors here only
	// degrade percentage fidelity.
	s.counters.total = s.crawler.Count(ctx, base, s.skipDir)
	s.log.Printf("counted %d remote files", s.counters.total)

	ok := s.syncDir(ctx, base, s.opts.TargetDir)
	if err := ctx.Err(); err != nil {
		s.log.Printf("sync canceled: %v", err)
		return s.result(false), err
	}

	res := s.result(ok)
	if res.Complete {
		s.publish("Sync complete", 100)
		s.log.Printf("sync complete: %d of %d files", res.CompletedFiles, res.TotalFiles)
	} else {
		s.publish("Sync finished with errors", s.pct())
		s.log.Printf("sync finished with errors: %d of %d files, %d failed", res.CompletedFiles, res.TotalFiles, res.FailedFiles)
	}
	return res, nil
}

// syncDir mirrors one remote directory. A failed listing skips only this
// subtree; siblings already enumerated by the caller keep going.
func (s *Syncer) syncDir(ctx context.Context, dirURL, localDir string) bool {
	if ctx.Err() != nil {
		return false
	}

	entries, err := s.crawler.List(ctx, dirURL)
	if err != nil {
		s.log.Printf("read directory %s: %v", dirURL, err)
		s.publish(fmt.Sprintf("Failed to read directory %s", dirURL), s.pct())
		return false
	}
	if len(entries) == 0 {
		// Could be a legitimately empty directory.
		s.log.Printf("warning: no entries in %s", dirURL)
		return true
	}

	ok := true
	for _, e := range entries {
		if ctx.Err() != nil {
			return false
		}
		if e.IsDir {
			if s.opts.SkipMaps && strings.EqualFold(e.Name, mapsDir) {
				s.publish(fmt.Sprintf("Skipping maps directory %s", e.Name), s.pct())
				s.log.Printf("skipping maps directory %s", e.URL)
				continue
			}
			sub := filepath.Join(localDir, sanitizeName(e.Name))
			if err := os.MkdirAll(sub, 0o755); err != nil {
				// Best effort: the subtree is unreachable locally, but the
				// sync keeps going.
				s.log.Printf("create directory %s: %v", sub, err)
				continue
			}
			if !s.syncDir(ctx, e.URL, sub) {
				ok = false
			}
			continue
		}
		s.syncFile(ctx, e, localDir)
	}
	return ok
}

func (s *Syncer) syncFile(ctx context.Context, e listing.Entry, localDir string) {
	name := sanitizeName(e.Name)
	decName, compressed := decompress.Trim(name)

	if s.opts.SkipMaps && s.isMapFile(localDir, decName) {
		// Untouched, but it still counts toward progress.
		s.counters.completed++
		s.publish(fmt.Sprintf("Skipping map %s", e.Name), s.pct())
		s.log.Printf("skipping map file %s", e.URL)
		return
	}

	// For a compressed pair the decompressed artifact is the done signal.
	final := filepath.Join(localDir, decName)
	if _, err := os.Stat(final); err == nil {
		s.counters.completed++
		s.publish(fmt.Sprintf("Already synced %s", decName), s.pct())
		return
	}

	s.publish(fmt.Sprintf("Syncing %s", e.Name), s.pct())

	var err error
	if compressed {
		err = s.pipe.Fetch(ctx, e.URL, filepath.Join(localDir, name))
	} else {
		err = s.dl.Fetch(ctx, e.URL, final)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Acceptable partial outcome: the resumable artifact is preserved
		// and a later run picks it up.
		s.failedFiles++
		s.publish(fmt.Sprintf("Failed %s", e.Name), s.pct())
		s.log.Printf("sync %s: %v", e.URL, err)
		return
	}

	s.counters.completed++
	s.publish(fmt.Sprintf("Completed %s", decName), s.pct())
}

// isMapFile classifies a file as a map when its immediate containing
// directory is the maps directory or its extension (after trimming a
// compressed extension) is a map format.
func (s *Syncer) isMapFile(localDir, decName string) bool {
	if strings.EqualFold(filepath.Base(localDir), mapsDir) {
		return true
	}
	return mapExts[strings.ToLower(filepath.Ext(decName))]
}

func (s *Syncer) skipDir(name string) bool {
	return s.opts.SkipMaps && strings.EqualFold(name, mapsDir)
}

// pct derives the overall percentage. With no count available the ramp
// min(95, completed*5) keeps the progress channel live without ever
// claiming completion.
func (s *Syncer) pct() int {
	if s.counters.total == 0 {
		return min(95, s.counters.completed*5)
	}
	return min(100, s.counters.completed*100/s.counters.total)
}

func (s *Syncer) publish(msg string, percentage int) {
	s.sink.Publish(progress.Event{Message: msg, Percentage: percentage})
}

func (s *Syncer) result(ok bool) Result {
	return Result{
		Complete:       ok,
		TotalFiles:     s.counters.total,
		CompletedFiles: s.counters.completed,
		FailedFiles:    s.failedFiles,
	}
}

// normalizeBaseURL validates the base URL and guarantees a trailing slash.
func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

// sanitizeName replaces characters that are illegal in local filenames
// with underscores.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
