package decompress

import (
	"compress/bzip2"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// codecs maps a compressed-artifact extension to a streaming decoder
// constructor. FastDL mirrors ship bzip2; gzip and zstd ride along for
// mirrors that serve them.
var codecs = map[string]func(io.Reader) (io.ReadCloser, error){
	".bz2": func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(bzip2.NewReader(r)), nil
	},
	".gz": func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
	".zst": func(r io.Reader) (io.ReadCloser, error) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	},
}

// Trim returns the decompressed counterpart of name and true when name
// carries a known compressed extension. A bare extension with no base name
// (".bz2") is not a compressed pair.
func Trim(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := codecs[ext]; !ok {
		return name, false
	}
	base := name[:len(name)-len(ext)]
	if base == "" {
		return name, false
	}
	return base, true
}

func newReader(path string, r io.Reader) (io.ReadCloser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	open, ok := codecs[ext]
	if !ok {
		return nil, errNoCodec(ext)
	}
	return open(r)
}
