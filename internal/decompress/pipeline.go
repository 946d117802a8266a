package decompress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kritzerenkrieg/FastDLX/internal/downloader"
	"github.com/kritzerenkrieg/FastDLX/internal/logging"
	"github.com/kritzerenkrieg/FastDLX/internal/progress"
)

// Suffix marks an in-progress decompression output. Like the downloader's
// part suffix, a path carrying it is never a finished file.
const Suffix = ".dec"

func errNoCodec(ext string) error {
	return fmt.Errorf("decompress: no codec for extension %q", ext)
}

// Pipeline wraps a downloader for compressed/decompressed artifact pairs
// with crash-safe staging. The existence of the decompressed file is the
// sole signal that a pair is done; the compressed file is disposable
// scratch kept only until decompression and the final rename succeed.
type Pipeline struct {
	dl   *downloader.Downloader
	sink progress.Sink
	log  *logging.Sink
}

// NewPipeline creates a pipeline over dl. sink and log may be nil.
func NewPipeline(dl *downloader.Downloader, sink progress.Sink, log *logging.Sink) *Pipeline {
	if sink == nil {
		sink = progress.Discard
	}
	if log == nil {
		log = logging.New(nil)
	}
	return &Pipeline{dl: dl, sink: sink, log: log}
}

// Fetch materializes the decompressed counterpart of the compressed
// resource at url. compressedPath is the local path the compressed artifact
// would occupy; the decompressed path is derived by trimming its extension.
//
// Recovery from prior interrupted runs happens before any network activity:
// a stale decompression temp is discarded, and a surviving compressed
// artifact is decompressed directly without re-downloading.
func (p *Pipeline) Fetch(ctx context.Context, url, compressedPath string) error {
	dest, ok := Trim(compressedPath)
	if !ok {
		return errNoCodec(filepath.Ext(compressedPath))
	}
	tmp := dest + Suffix

	// Partial decompressed output cannot be trusted.
	if _, err := os.Stat(tmp); err == nil {
		p.log.Printf("discarding interrupted decompression output %s", tmp)
		if err := os.Remove(tmp); err != nil {
			return fmt.Errorf("decompress: remove stale temp: %w", err)
		}
	}

	if _, err := os.Stat(dest); err == nil {
		// Pair already done; not even a HEAD request goes out.
		return nil
	}

	name := filepath.Base(compressedPath)

	if _, err := os.Stat(compressedPath); err == nil {
		// A previous run died between download and decompression.
		p.log.Printf("found compressed artifact %s, decompressing without re-download", compressedPath)
		err := p.decompress(ctx, compressedPath, tmp, dest)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// Corrupt artifact: force a clean re-download.
		p.log.Printf("decompressing %s failed: %v; discarding it", compressedPath, err)
		os.Remove(compressedPath)
		os.Remove(tmp)
	}

	if err := p.dl.Fetch(ctx, url, compressedPath); err != nil {
		return err
	}

	p.sink.Publish(progress.Event{Message: fmt.Sprintf("Decompressing %s", name), Percentage: 100})
	if err := p.decompress(ctx, compressedPath, tmp, dest); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		os.Remove(compressedPath)
		os.Remove(tmp)
		return err
	}
	return nil
}

// decompress streams src through its codec into tmp, then renames tmp to
// dest and deletes src. The order matters: dest must not appear until its
// bytes are fully persisted, and src must outlive everything so a crash at
// any point leaves a recoverable artifact.
func (p *Pipeline) decompress(ctx context.Context, src, tmp, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("decompress: open %s: %w", src, err)
	}
	defer in.Close()

	r, err := newReader(src, in)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	defer r.Close()

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("decompress: create %s: %w", tmp, err)
	}

	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				return fmt.Errorf("decompress: write %s: %w", tmp, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return fmt.Errorf("decompress %s: %w", src, readErr)
		}
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("decompress: sync %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("decompress: close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("decompress: promote %s: %w", tmp, err)
	}

	in.Close()
	if err := os.Remove(src); err != nil {
		// The pair is done; the leftover scratch is only worth a log line.
		p.log.Printf("could not remove compressed artifact %s: %v", src, err)
	}
	p.log.Printf("decompressed %s -> %s", src, dest)
	return nil
}
