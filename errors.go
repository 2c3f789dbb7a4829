package tarball

import "errors"

// Errors reported by archive creation, reading, and extraction. Most are
// returned wrapped with the offending path or archive offset; match with
// errors.Is.
var (
	// ErrFieldTooLong is returned when an entry cannot be encoded within
	// the ustar field limits. Long names and link targets are moved into
	// extension records automatically, so this indicates a value with no
	// extension mechanism, such as an oversized user name.
	ErrFieldTooLong = errors.New("header field too long")

	// ErrCorrupt is returned when a header block fails checksum
	// validation or is structurally malformed. It is terminal for the
	// stream being read.
	ErrCorrupt = errors.New("corrupt archive")

	// ErrTruncated is returned when the stream ends before the bytes a
	// header promised. It is terminal for the stream being read.
	ErrTruncated = errors.New("truncated archive")

	// ErrEmptyArchive is returned when creation is requested with no
	// entries. The check runs before any output is written.
	ErrEmptyArchive = errors.New("cowardly refusing to create an empty archive")

	// ErrInsecurePath is returned during extraction for an entry whose
	// destination would resolve outside the target directory.
	ErrInsecurePath = errors.New("entry path escapes destination")

	// ErrDanglingLink is returned when a hard link entry references a
	// name that did not appear earlier in the archive.
	ErrDanglingLink = errors.New("hard link target not found in archive")

	// ErrUnsupportedType is returned for entry types that cannot be
	// materialized, such as device nodes, unless extraction is configured
	// to skip them.
	ErrUnsupportedType = errors.New("unsupported entry type")

	// ErrLinkCycle is returned when dereferencing symlinks during a walk
	// revisits a directory already on the traversal path.
	ErrLinkCycle = errors.New("symbolic link cycle")

	// ErrWriteTooLong is returned when more payload bytes are written
	// than the entry's declared size.
	ErrWriteTooLong = errors.New("write exceeds entry size")

	// ErrWriteTooShort is returned when a new entry or Close arrives
	// before the previous entry's declared payload was fully written.
	ErrWriteTooShort = errors.New("entry payload incomplete")

	// ErrClosed is returned for operations on a closed Writer.
	ErrClosed = errors.New("archive writer is closed")
)
