package trr

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

//NewCompressed opens a compressed TRR trajectory. Random access needs a
//seekable source, so the file is decompressed into memory first and
//indexed from there; this trades memory for the ability to keep the lazy,
//per-block reads of the plain reader. The compression format is taken
//from the filename: .zst for zstd, .gz for gzip, .flate for raw deflate,
//zstd for anything else.
func NewCompressed(filename string, sel ...Selection) (*TRRObj, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, newIOError(UnableToOpen+": "+err.Error(), filename, -1, "NewCompressed")
	}
	defer f.Close()
	var AnyNewReader func(io.Reader) (io.ReadCloser, error)
	zstdreader := func(a io.Reader) (io.ReadCloser, error) {
		r, err := zstd.NewReader(a)
		if err != nil {
			return nil, err
		}
		return r.IOReadCloser(), nil
	}
	switch {
	case strings.HasSuffix(filename, ".gz"):
		AnyNewReader = func(a io.Reader) (io.ReadCloser, error) { return gzip.NewReader(a) }
	case strings.HasSuffix(filename, ".flate"):
		AnyNewReader = func(a io.Reader) (io.ReadCloser, error) { return flate.NewReader(a), nil }
	case strings.HasSuffix(filename, ".zst"):
		AnyNewReader = zstdreader
	default:
		AnyNewReader = zstdreader
	}
	z, err := AnyNewReader(f)
	if err != nil {
		return nil, newIOError("Can't decompress: "+err.Error(), filename, -1, "NewCompressed")
	}
	defer z.Close()
	data, err := io.ReadAll(z)
	if err != nil {
		return nil, newIOError("Can't decompress: "+err.Error(), filename, -1, "NewCompressed")
	}
	T, err := NewReader(bytes.NewReader(data), filename, sel...)
	if err != nil {
		return nil, errDecorate(err, "NewCompressed")
	}
	return T, nil
}
