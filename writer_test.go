package tarball

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaladron/tarball/internal/block"
)

func writeArchive(t *testing.T, entries []*Entry, payloads map[string]string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	tw := NewWriter(&buf)
	for _, e := range entries {
		require.NoError(t, tw.WriteEntry(e))
		if data, ok := payloads[e.Name]; ok {
			_, err := io.WriteString(tw, data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return &buf
}

func headerBlockAt(t *testing.T, buf *bytes.Buffer, offset int) *block.Block {
	t.Helper()

	raw := buf.Bytes()
	require.GreaterOrEqual(t, len(raw), offset+block.Size)
	var blk block.Block
	copy(blk[:], raw[offset:offset+block.Size])
	return &blk
}

func TestWriterShortNamePlainHeader(t *testing.T) {
	t.Parallel()

	name := strings.Repeat("n", 90)
	buf := writeArchive(t, []*Entry{
		{Name: name, Type: TypeRegular, Mode: 0o644, ModTime: time.Unix(1700000000, 0)},
	}, nil)

	// One header block plus the terminator; no extension entries.
	assert.Equal(t, 3*block.Size, buf.Len())

	blk := headerBlockAt(t, buf, 0)
	assert.Equal(t, byte(flagRegular), blk.TypeFlag()[0])
	assert.Equal(t, name, block.CString(blk.Name()))
	assert.Empty(t, block.CString(blk.Prefix()))
}

func TestWriterSplitNameNoExtension(t *testing.T) {
	t.Parallel()

	name := strings.Repeat("d", 130) + "/" + strings.Repeat("f", 60)
	buf := writeArchive(t, []*Entry{
		{Name: name, Type: TypeRegular, Mode: 0o644, ModTime: time.Unix(1700000000, 0)},
	}, nil)

	assert.Equal(t, 3*block.Size, buf.Len())

	blk := headerBlockAt(t, buf, 0)
	assert.Equal(t, byte(flagRegular), blk.TypeFlag()[0])
	assert.Equal(t, strings.Repeat("d", 130), block.CString(blk.Prefix()))
}

func TestWriterLongNameEmitsPAX(t *testing.T) {
	t.Parallel()

	// A single 250-byte component cannot use the prefix field.
	name := strings.Repeat("n", 250)
	buf := writeArchive(t, []*Entry{
		{Name: name, Type: TypeRegular, Mode: 0o644, ModTime: time.Unix(1700000000, 0)},
	}, nil)

	blk := headerBlockAt(t, buf, 0)
	assert.Equal(t, byte(flagPAXHeader), blk.TypeFlag()[0])

	tr := NewReader(buf)
	e, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, name, e.Name)
	assert.Equal(t, TypeRegular, e.Type)

	_, err = tr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestWriterLongLinkEmitsPAX(t *testing.T) {
	t.Parallel()

	target := strings.Repeat("t", 150)
	buf := writeArchive(t, []*Entry{
		{Name: "link", Type: TypeSymlink, Linkname: target, Mode: 0o777, ModTime: time.Unix(1700000000, 0)},
	}, nil)

	tr := NewReader(buf)
	e, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, target, e.Linkname)
}

func TestWriterEmptyArchiveRefused(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := NewWriter(&buf)
	err := tw.Close()
	require.ErrorIs(t, err, ErrEmptyArchive)
	assert.Zero(t, buf.Len())

	// The failure sticks.
	require.ErrorIs(t, tw.Close(), ErrEmptyArchive)
}

func TestWriterArchiveByteLength(t *testing.T) {
	t.Parallel()

	buf := writeArchive(t, []*Entry{
		{Name: "a", Type: TypeRegular, Size: 600, Mode: 0o644, ModTime: time.Unix(0, 0)},
		{Name: "b", Type: TypeRegular, Size: 5, Mode: 0o644, ModTime: time.Unix(0, 0)},
	}, map[string]string{
		"a": strings.Repeat("A", 600),
		"b": "BBBBB",
	})

	// a: header + 600 bytes padded to 1024. b: header + 5 bytes padded
	// to 512. Then the two-block terminator.
	want := block.Size + 1024 + block.Size + 512 + 2*block.Size
	assert.Equal(t, want, buf.Len())
}

func TestWriterPayloadTooLong(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := NewWriter(&buf)
	require.NoError(t, tw.WriteEntry(&Entry{
		Name: "f", Type: TypeRegular, Size: 4, Mode: 0o644, ModTime: time.Unix(0, 0),
	}))

	n, err := tw.Write([]byte("0123456789"))
	assert.Equal(t, 4, n)
	require.ErrorIs(t, err, ErrWriteTooLong)
}

func TestWriterPayloadTooShort(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := NewWriter(&buf)
	require.NoError(t, tw.WriteEntry(&Entry{
		Name: "f", Type: TypeRegular, Size: 10, Mode: 0o644, ModTime: time.Unix(0, 0),
	}))
	_, err := tw.Write([]byte("abc"))
	require.NoError(t, err)

	err = tw.WriteEntry(&Entry{Name: "g", Type: TypeRegular, Mode: 0o644, ModTime: time.Unix(0, 0)})
	require.ErrorIs(t, err, ErrWriteTooShort)
}

func TestWriterRejectsPayloadOnHeaderOnlyEntry(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := NewWriter(&buf)
	err := tw.WriteEntry(&Entry{
		Name: "d/", Type: TypeDirectory, Size: 7, Mode: 0o755, ModTime: time.Unix(0, 0),
	})
	require.Error(t, err)
}

func TestWriterClosedRejectsWrites(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := NewWriter(&buf)
	require.NoError(t, tw.WriteEntry(&Entry{
		Name: "f", Type: TypeRegular, Mode: 0o644, ModTime: time.Unix(0, 0),
	}))
	require.NoError(t, tw.Close())

	require.ErrorIs(t, tw.WriteEntry(&Entry{Name: "g"}), ErrClosed)
	_, err := tw.Write([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestWriterOpaquePAXRecords(t *testing.T) {
	t.Parallel()

	buf := writeArchive(t, []*Entry{
		{
			Name:       "f",
			Type:       TypeRegular,
			Mode:       0o644,
			ModTime:    time.Unix(1700000000, 0),
			PAXRecords: map[string]string{"VENDOR.checksum": "abc123"},
		},
	}, nil)

	tr := NewReader(buf)
	e, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "abc123", e.PAXRecords["VENDOR.checksum"])
}

func TestWriterSubSecondMtime(t *testing.T) {
	t.Parallel()

	mtime := time.Unix(1700000000, 123456789)
	buf := writeArchive(t, []*Entry{
		{Name: "f", Type: TypeRegular, Mode: 0o644, ModTime: mtime},
	}, nil)

	tr := NewReader(buf)
	e, err := tr.Next()
	require.NoError(t, err)
	assert.True(t, mtime.Equal(e.ModTime), "want %v, got %v", mtime, e.ModTime)
}

func TestWriterLongUserName(t *testing.T) {
	t.Parallel()

	uname := strings.Repeat("u", 40)
	buf := writeArchive(t, []*Entry{
		{Name: "f", Type: TypeRegular, Mode: 0o644, Uname: uname, ModTime: time.Unix(0, 0)},
	}, nil)

	tr := NewReader(buf)
	e, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, uname, e.Uname)
}
