// Package compression wraps an archive stream in a whole-stream
// compression filter. Gzip and zstd use github.com/klauspost/compress,
// xz uses github.com/ulikunitz/xz, and bzip2 is read-only via the
// standard library.
package compression

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ErrUnsupportedFilter is returned when a format cannot serve the
// requested direction, such as writing bzip2.
var ErrUnsupportedFilter = errors.New("compression: unsupported filter")

// Format identifies a whole-stream compression filter.
type Format int

const (
	// None passes the stream through unchanged.
	None Format = iota
	// Gzip is RFC 1952 gzip.
	Gzip
	// Bzip2 is the bzip2 format. Decompression only.
	Bzip2
	// XZ is the xz container format.
	XZ
	// Zstd is the Zstandard frame format.
	Zstd
)

var formatNames = map[Format]string{
	None:  "none",
	Gzip:  "gzip",
	Bzip2: "bzip2",
	XZ:    "xz",
	Zstd:  "zstd",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Magic byte prefixes for each detectable format.
var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte{'B', 'Z', 'h'}
	magicXZ    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Detect peeks at the start of r and reports the compression format.
// The returned reader replays the peeked bytes and must be used in
// place of r. Unrecognized data reports None.
func Detect(r io.Reader) (Format, io.Reader, error) {
	br := bufio.NewReader(r)
	hdr, err := br.Peek(len(magicXZ))
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return None, br, err
	}
	switch {
	case bytes.HasPrefix(hdr, magicGzip):
		return Gzip, br, nil
	case bytes.HasPrefix(hdr, magicBzip2):
		return Bzip2, br, nil
	case bytes.HasPrefix(hdr, magicXZ):
		return XZ, br, nil
	case bytes.HasPrefix(hdr, magicZstd):
		return Zstd, br, nil
	}
	return None, br, nil
}

// NewReader returns a decompressing reader for the given format.
// Closing the returned reader releases decoder state but does not
// close the underlying reader.
func NewReader(r io.Reader, f Format) (io.ReadCloser, error) {
	switch f {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return io.NopCloser(xr), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return zr.IOReadCloser(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, f)
}

// NewWriter returns a compressing writer for the given format.
// Closing the returned writer flushes the filter but does not close
// the underlying writer. Bzip2 writing is not supported.
func NewWriter(w io.Writer, f Format) (io.WriteCloser, error) {
	switch f {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case XZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return xw, nil
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return zw, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, f)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
