package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	fdhttp "github.com/kritzerenkrieg/FastDLX/internal/http"
	"github.com/kritzerenkrieg/FastDLX/internal/logging"
	"github.com/kritzerenkrieg/FastDLX/internal/progress"
)

// PartSuffix marks an in-progress, possibly incomplete transfer. A path
// carrying it is never treated as a finished file.
const PartSuffix = ".part"

const mib = 1 << 20

// Options configures the downloader.
type Options struct {
	// RetryCount is the total number of attempts per file.
	// Default: 3
	RetryCount int

	// RetryDelay is the base delay between attempts. The wait before
	// attempt k+1 is k * RetryDelay; the schedule is linear, not
	// exponential, so a struggling mirror is never hammered with long
	// silences followed by bursts.
	// Default: 2s
	RetryDelay time.Duration

	// ChunkSize is the size of each streamed write.
	// Default: 64KB
	ChunkSize int64

	// Progress is an optional progress sink.
	Progress progress.Sink

	// Log is an optional log sink.
	Log *logging.Sink
}

// Downloader transfers single remote resources to local paths, tolerating
// partial prior attempts. It is stateless with respect to any sync run.
type Downloader struct {
	client *fdhttp.Client
	opts   Options
}

// New creates a downloader using the given client.
func New(client *fdhttp.Client, opts Options) *Downloader {
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 64 * 1024
	}
	if opts.Progress == nil {
		opts.Progress = progress.Discard
	}
	if opts.Log == nil {
		opts.Log = logging.New(nil)
	}
	return &Downloader{client: client, opts: opts}
}

// Fetch transfers url to dest, resuming from any partial artifact a prior
// attempt left behind. On exhaustion the partial artifact is deliberately
// kept so a future run can pick up where this one stopped.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	remaining := d.opts.RetryCount
	var lastErr error

	for attempt := 1; remaining > 0; attempt++ {
		if attempt > 1 {
			// Linear schedule: k * delay before attempt k+1.
			delay := time.Duration(attempt-1) * d.opts.RetryDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			d.opts.Log.Printf("retrying %s (attempt %d of %d)", url, attempt, d.opts.RetryCount)
		}

		err := d.fetchOnce(ctx, url, dest)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		remaining--
		lastErr = err
		d.opts.Log.Printf("download %s failed: %v", url, err)
	}

	return fmt.Errorf("download %s: %w", url, lastErr)
}

// fetchOnce performs a single attempt. The resume offset is recomputed from
// whatever bytes previous attempts wrote, so partial progress survives
// failures and crashes.
func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) error {
	tmp := dest + PartSuffix
	name := filepath.Base(dest)

	var start int64
	if fi, err := os.Stat(tmp); err == nil {
		start = fi.Size()
	}

	info, err := d.client.Head(ctx, url)
	if err != nil {
		return err
	}
	total := info.Size

	if start > 0 && total > 0 && start >= total {
		// Temp already at or beyond the expected size. Promote it as-is;
		// the content is not re-validated.
		d.opts.Log.Printf("promoting oversized temp %s (%d >= %d bytes) without validation", tmp, start, total)
		d.publish(fmt.Sprintf("Recovered %s from previous run", name), 100)
		return promote(tmp, dest)
	}

	if start > 0 && total > 0 {
		resp, err := d.client.GetRange(ctx, url, start)
		switch {
		case err == nil:
			defer resp.Body.Close()
			f, err := os.OpenFile(tmp, os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open temp: %w", err)
			}
			d.opts.Log.Printf("resuming %s at byte %d of %d", url, start, total)
			d.publish(fmt.Sprintf("Resuming %s at %s", name, progress.FormatBytes(start)), pct(start, total))
			if err := d.stream(ctx, f, resp.Body, name, start, total); err != nil {
				return err
			}
			return promote(tmp, dest)
		case errors.Is(err, fdhttp.ErrRangeNotSupported):
			// Never append mismatched data: drop the resume assumption.
			d.opts.Log.Printf("server rejected range request for %s, restarting full download", url)
			if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove temp: %w", err)
			}
		default:
			return err
		}
	}

	body, err := d.client.Get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	d.publish(fmt.Sprintf("Downloading %s", name), 0)
	if err := d.stream(ctx, f, body, name, 0, total); err != nil {
		return err
	}
	return promote(tmp, dest)
}

// stream copies src to dst in fixed-size chunks, reporting progress about
// once per mebibyte. dst is closed before returning.
func (d *Downloader) stream(ctx context.Context, dst *os.File, src io.Reader, name string, written, total int64) error {
	buf := make([]byte, d.opts.ChunkSize)
	lastReport := written / mib

	for {
		if err := ctx.Err(); err != nil {
			dst.Close()
			return err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				dst.Close()
				return fmt.Errorf("write temp: %w", err)
			}
			written += int64(n)
			if written/mib > lastReport {
				lastReport = written / mib
				d.publish(transferMessage(name, written, total), pct(written, total))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			dst.Close()
			return readErr
		}
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	d.publish(fmt.Sprintf("Downloaded %s (%s)", name, progress.FormatBytes(written)), 100)
	return nil
}

func (d *Downloader) publish(msg string, percentage int) {
	d.opts.Progress.Publish(progress.Event{Message: msg, Percentage: percentage})
}

func transferMessage(name string, written, total int64) string {
	if total > 0 {
		return fmt.Sprintf("Downloading %s: %s / %s", name, progress.FormatBytes(written), progress.FormatBytes(total))
	}
	return fmt.Sprintf("Downloading %s: %s", name, progress.FormatBytes(written))
}

func pct(written, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(written * 100 / total)
	if p > 100 {
		p = 100
	}
	return p
}

// promote atomically replaces dest with the completed temp artifact.
func promote(tmp, dest string) error {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old destination: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("promote temp: %w", err)
	}
	return nil
}
