package tarball

import (
	"fmt"
	"io"
	"path"

	"github.com/kaladron/tarball/internal/block"
	"github.com/kaladron/tarball/internal/paxutil"
)

// Writer serializes entries into a tar byte stream.
//
// WriteEntry begins a new entry; for regular files the payload is then
// streamed through Write, which accepts exactly Entry.Size bytes. Close
// finishes the final entry and writes the end-of-archive terminator.
//
// Entries whose name or link target exceeds the ustar header fields are
// preceded automatically by a PAX extended header carrying the full value.
type Writer struct {
	w         io.Writer
	blk       block.Block
	remaining int64 // payload bytes still owed for the current entry
	pad       int64 // zero bytes owed after the current payload
	entries   int
	closed    bool
	err       error
}

// NewWriter returns a Writer emitting the archive to w. Nothing is written
// until the first entry arrives.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEntry writes the header for e, preceded by any extension records it
// needs. The previous entry's payload must be fully written first.
func (tw *Writer) WriteEntry(e *Entry) error {
	if tw.closed {
		return ErrClosed
	}
	if tw.err != nil {
		return tw.err
	}
	if err := tw.finishPayload(); err != nil {
		return err
	}

	if e.Type != TypeRegular && e.Type != TypeUnsupported && e.Size != 0 {
		return fmt.Errorf("entry %q: %s entries carry no payload", e.Name, e.Type)
	}

	records := tw.extensionRecords(e)
	if len(records) > 0 {
		if err := tw.writePAXHeader(e, records); err != nil {
			return err
		}
	}

	hdr := *e
	hdr.Name = truncateField(e.Name, block.PrefixSize+1+block.NameSize)
	if _, _, ok := splitName(hdr.Name); !ok {
		hdr.Name = truncateField(e.Name, block.NameSize)
	}
	hdr.Linkname = truncateField(e.Linkname, block.NameSize)
	hdr.Uname = truncateField(e.Uname, 31)
	hdr.Gname = truncateField(e.Gname, 31)

	if err := encodeHeader(&tw.blk, &hdr); err != nil {
		return err
	}
	tw.writeBlock()
	if tw.err != nil {
		return tw.err
	}

	tw.remaining = e.Size
	tw.pad = block.Padding(e.Size)
	tw.entries++
	return nil
}

// Write streams payload bytes for the current entry. Writing more than the
// entry's declared size fails with ErrWriteTooLong.
func (tw *Writer) Write(p []byte) (int, error) {
	if tw.closed {
		return 0, ErrClosed
	}
	if tw.err != nil {
		return 0, tw.err
	}

	overflow := false
	if int64(len(p)) > tw.remaining {
		p, overflow = p[:tw.remaining], true
	}
	n, err := tw.w.Write(p)
	tw.remaining -= int64(n)
	if err != nil {
		tw.err = err
		return n, err
	}
	if overflow {
		return n, ErrWriteTooLong
	}
	return n, nil
}

// Close finishes the current entry and writes the two zero-block
// terminator. Closing a writer that never received an entry fails with
// ErrEmptyArchive before any bytes are written.
func (tw *Writer) Close() error {
	if tw.closed {
		return tw.err
	}
	if tw.err != nil {
		return tw.err
	}
	if tw.entries == 0 {
		tw.closed = true
		tw.err = ErrEmptyArchive
		return tw.err
	}
	if err := tw.finishPayload(); err != nil {
		tw.closed = true
		return err
	}

	for i := 0; i < 2; i++ {
		tw.blk.Reset()
		tw.writeBlock()
	}
	tw.closed = true
	return tw.err
}

// finishPayload verifies the previous entry's payload was complete and
// writes its block padding.
func (tw *Writer) finishPayload() error {
	if tw.remaining > 0 {
		tw.err = fmt.Errorf("%w: missing %d bytes", ErrWriteTooShort, tw.remaining)
		return tw.err
	}
	if tw.pad > 0 {
		if _, err := tw.w.Write(block.Zero()[:tw.pad]); err != nil {
			tw.err = err
			return err
		}
		tw.pad = 0
	}
	return nil
}

func (tw *Writer) writeBlock() {
	if tw.err != nil {
		return
	}
	if _, err := tw.w.Write(tw.blk[:]); err != nil {
		tw.err = err
	}
}

// extensionRecords collects the PAX records entry e needs: values that do
// not fit their header fields, sub-second timestamps, and any opaque
// records carried on the entry.
func (tw *Writer) extensionRecords(e *Entry) map[string]string {
	var records map[string]string
	set := func(k, v string) {
		if records == nil {
			records = make(map[string]string)
		}
		records[k] = v
	}

	// Opaque keys first so interpreted keys below take precedence.
	for k, v := range e.PAXRecords {
		switch k {
		case paxutil.KeyPath, paxutil.KeyLinkpath, paxutil.KeySize,
			paxutil.KeyUID, paxutil.KeyGID, paxutil.KeyMtime,
			paxutil.KeyUname, paxutil.KeyGname:
			// Re-derived from the entry fields.
		default:
			set(k, v)
		}
	}

	if _, _, ok := splitName(e.Name); !ok {
		set(paxutil.KeyPath, e.Name)
	}
	if len(e.Linkname) > block.NameSize {
		set(paxutil.KeyLinkpath, e.Linkname)
	}
	if len(e.Uname) > 31 {
		set(paxutil.KeyUname, e.Uname)
	}
	if len(e.Gname) > 31 {
		set(paxutil.KeyGname, e.Gname)
	}
	if !e.ModTime.IsZero() && e.ModTime.Nanosecond() != 0 {
		set(paxutil.KeyMtime, paxutil.FormatTime(e.ModTime.Unix(), e.ModTime.Nanosecond()))
	}
	return records
}

// writePAXHeader emits one extended header entry carrying records.
func (tw *Writer) writePAXHeader(e *Entry, records map[string]string) error {
	data, err := paxutil.EncodeRecords(records)
	if err != nil {
		return err
	}

	hdr := &Entry{
		Name:    paxHeaderName(e.Name),
		Type:    TypeUnsupported,
		RawFlag: flagPAXHeader,
		Mode:    0o600,
		Size:    int64(len(data)),
		ModTime: e.ModTime,
	}
	if err := encodeHeader(&tw.blk, hdr); err != nil {
		return err
	}
	tw.writeBlock()
	if tw.err == nil {
		if _, werr := tw.w.Write(data); werr != nil {
			tw.err = werr
		}
	}
	if tw.err == nil {
		if padding := block.Padding(int64(len(data))); padding > 0 {
			if _, werr := tw.w.Write(block.Zero()[:padding]); werr != nil {
				tw.err = werr
			}
		}
	}
	return tw.err
}

// paxHeaderName derives the placeholder name for an extended header entry
// from the real entry's name, in the customary PaxHeaders.0 form, bounded
// to the plain name field.
func paxHeaderName(name string) string {
	dir, file := path.Split(name)
	n := path.Join(dir, "PaxHeaders.0", file)
	return truncateField(n, block.NameSize)
}

// truncateField bounds s to n bytes for use as a best-effort compatibility
// value in a fixed header field; the authoritative value travels in the
// extension record.
func truncateField(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
