package tarball

import (
	"io"
	"io/fs"
	"time"
)

// EntryType classifies an archive member. The set is closed: every wire
// typeflag maps onto one of these values, with TypeUnsupported as the
// explicit fallback for exotic flags, so consumers can switch exhaustively.
type EntryType uint8

const (
	// TypeRegular is an ordinary file with a data payload.
	TypeRegular EntryType = iota

	// TypeDirectory is a directory; its payload is always empty.
	TypeDirectory

	// TypeSymlink is a symbolic link whose target is Entry.Linkname.
	TypeSymlink

	// TypeHardLink is a hard link to an earlier entry named by
	// Entry.Linkname.
	TypeHardLink

	// TypeChar and TypeBlock are device nodes. They are decoded
	// faithfully but extraction rejects them unless configured to skip.
	TypeChar
	TypeBlock

	// TypeFIFO is a named pipe.
	TypeFIFO

	// TypeUnsupported covers any other wire typeflag. The raw flag is
	// preserved in Entry.RawFlag.
	TypeUnsupported
)

var entryTypeNames = map[EntryType]string{
	TypeRegular:     "regular file",
	TypeDirectory:   "directory",
	TypeSymlink:     "symlink",
	TypeHardLink:    "hard link",
	TypeChar:        "character device",
	TypeBlock:       "block device",
	TypeFIFO:        "fifo",
	TypeUnsupported: "unsupported",
}

func (t EntryType) String() string {
	if s, ok := entryTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// Entry is one archive member: the metadata stored in its header plus,
// for entries produced by a walk, a lazy handle to its file data.
//
// Name is archive-relative, forward-slash separated, and has no leading
// slash unless absolute names were explicitly requested.
type Entry struct {
	Name     string
	Type     EntryType
	Linkname string // target for TypeSymlink and TypeHardLink
	Size     int64  // payload length in bytes; 0 for non-regular entries
	Mode     fs.FileMode
	UID      int
	GID      int
	Uname    string
	Gname    string
	ModTime  time.Time
	Devmajor int64
	Devminor int64

	// RawFlag is the wire typeflag for TypeUnsupported entries.
	RawFlag byte

	// PAXRecords holds extended header records that accompanied the
	// entry, including keys this package does not interpret. Nil when
	// the entry had none.
	PAXRecords map[string]string

	open func() (io.ReadCloser, error)
}

// Open returns the entry's data stream. Only entries produced by a walk
// carry a data handle; for entries decoded from an archive, read the
// payload from the Reader instead.
func (e *Entry) Open() (io.ReadCloser, error) {
	if e.open == nil {
		return io.NopCloser(emptyReader{}), nil
	}
	return e.open()
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool { return e.Type == TypeDirectory }

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
