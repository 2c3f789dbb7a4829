package tarball

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kaladron/tarball/internal/block"
	"github.com/kaladron/tarball/internal/paxutil"
)

// Reader decodes a tar byte stream into a sequence of entries.
//
// Next advances to the next member; the Reader then serves that member's
// payload through Read. Unread payload is skipped automatically on the
// following Next call. Extension entries (GNU long name/link, PAX extended
// headers) are absorbed transparently and never surface as entries.
type Reader struct {
	r         io.Reader
	blk       block.Block
	remaining int64 // payload bytes left in the current entry
	pad       int64 // block padding after the current payload
	err       error // sticky; io.EOF marks clean end of archive
	global    map[string]string
}

// NewReader returns a Reader decoding the archive from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next advances to the next entry. It returns io.EOF at the end-of-archive
// terminator, ErrCorrupt for a header that fails validation, and
// ErrTruncated when the stream ends early.
func (tr *Reader) Next() (*Entry, error) {
	if tr.err != nil {
		return nil, tr.err
	}

	var pending paxutil.Pending
	for {
		if err := tr.skipUnread(); err != nil {
			return nil, err
		}

		e, err := tr.readHeader()
		if err != nil {
			return nil, err
		}

		tr.setupPayload(e)

		switch e.RawFlag {
		case flagPAXHeader:
			data, err := tr.readPayload(e)
			if err != nil {
				return nil, err
			}
			if err := pending.MergeRecords(data); err != nil {
				return nil, tr.fail(fmt.Errorf("%w: %v", ErrCorrupt, err))
			}
		case flagPAXGlobal:
			data, err := tr.readPayload(e)
			if err != nil {
				return nil, err
			}
			tr.global, err = paxutil.ParseRecords(data, tr.global)
			if err != nil {
				return nil, tr.fail(fmt.Errorf("%w: %v", ErrCorrupt, err))
			}
		case flagGNULongName:
			data, err := tr.readPayload(e)
			if err != nil {
				return nil, err
			}
			pending.SetGNUName(block.CString(data))
		case flagGNULongLink:
			data, err := tr.readPayload(e)
			if err != nil {
				return nil, err
			}
			pending.SetGNULink(block.CString(data))
		default:
			if err := tr.applyExtensions(e, &pending); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
}

// Read reads from the current entry's payload. It returns io.EOF at the
// end of the payload; the archive itself ending early yields an error
// wrapping ErrTruncated.
func (tr *Reader) Read(p []byte) (int, error) {
	if tr.err != nil && tr.err != io.EOF {
		return 0, tr.err
	}
	if tr.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > tr.remaining {
		p = p[:tr.remaining]
	}
	n, err := tr.r.Read(p)
	tr.remaining -= int64(n)
	if err == io.EOF && tr.remaining > 0 {
		err = tr.fail(fmt.Errorf("%w: archive ended %d bytes into an entry payload", ErrTruncated, tr.remaining))
	} else if err != nil && err != io.EOF {
		tr.err = err
	}
	return n, err
}

// readHeader reads one header block, handling the terminator and checksum
// validation.
func (tr *Reader) readHeader() (*Entry, error) {
	if _, err := io.ReadFull(tr.r, tr.blk[:]); err != nil {
		if err == io.EOF {
			tr.err = io.EOF
			return nil, io.EOF
		}
		return nil, tr.fail(fmt.Errorf("%w: archive ended mid-header", ErrTruncated))
	}

	if tr.blk.IsZero() {
		// A second zero block is the terminator. Tolerate a lone zero
		// block at EOF, which some writers emit.
		if _, err := io.ReadFull(tr.r, tr.blk[:]); err != nil {
			if err == io.EOF {
				tr.err = io.EOF
				return nil, io.EOF
			}
			return nil, tr.fail(fmt.Errorf("%w: archive ended mid-terminator", ErrTruncated))
		}
		if tr.blk.IsZero() {
			tr.err = io.EOF
			return nil, io.EOF
		}
		return nil, tr.fail(fmt.Errorf("%w: data after a zero block", ErrCorrupt))
	}

	if !tr.blk.VerifyChecksum() {
		return nil, tr.fail(fmt.Errorf("%w: header checksum mismatch", ErrCorrupt))
	}

	e, err := decodeHeader(&tr.blk)
	if err != nil {
		return nil, tr.fail(err)
	}
	return e, nil
}

// setupPayload computes the payload extent for e. Only regular entries and
// unrecognized typeflags carry data; for the header-only types any size
// value describes the filesystem object, not archive bytes.
func (tr *Reader) setupPayload(e *Entry) {
	n := e.Size
	if headerOnlyType(e.Type) {
		n = 0
	}
	tr.remaining = n
	tr.pad = block.Padding(n)
}

func headerOnlyType(t EntryType) bool {
	switch t {
	case TypeDirectory, TypeSymlink, TypeHardLink, TypeChar, TypeBlock, TypeFIFO:
		return true
	}
	return false
}

// readPayload consumes an extension entry's whole payload. Extension
// values are bounded in practice; a cap guards against hostile sizes.
func (tr *Reader) readPayload(e *Entry) ([]byte, error) {
	const maxExtensionSize = 1 << 20
	if e.Size > maxExtensionSize {
		return nil, tr.fail(fmt.Errorf("%w: oversized extension record (%d bytes)", ErrCorrupt, e.Size))
	}
	data := make([]byte, tr.remaining)
	if _, err := io.ReadFull(tr.r, data); err != nil {
		return nil, tr.fail(fmt.Errorf("%w: archive ended inside an extension record", ErrTruncated))
	}
	tr.remaining = 0
	return data, nil
}

// applyExtensions merges pending long name/link state and PAX records into
// the entry that follows them.
func (tr *Reader) applyExtensions(e *Entry, pending *paxutil.Pending) error {
	if name, ok := pending.Name(); ok {
		e.Name = name
	}
	if link, ok := pending.Link(); ok {
		e.Linkname = link
	}

	records := pending.Records()
	merged := make(map[string]string, len(tr.global)+len(records))
	for k, v := range tr.global {
		merged[k] = v
	}
	for k, v := range records {
		merged[k] = v
	}
	if len(merged) > 0 {
		e.PAXRecords = merged
	}

	for k, v := range merged {
		switch k {
		case paxutil.KeySize:
			size, err := strconv.ParseInt(v, 10, 64)
			if err != nil || size < 0 {
				return tr.fail(fmt.Errorf("%w: bad pax size record %q", ErrCorrupt, v))
			}
			e.Size = size
			tr.setupPayload(e)
		case paxutil.KeyUID:
			uid, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return tr.fail(fmt.Errorf("%w: bad pax uid record %q", ErrCorrupt, v))
			}
			e.UID = int(uid)
		case paxutil.KeyGID:
			gid, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return tr.fail(fmt.Errorf("%w: bad pax gid record %q", ErrCorrupt, v))
			}
			e.GID = int(gid)
		case paxutil.KeyMtime:
			sec, nsec, err := paxutil.ParseTime(v)
			if err != nil {
				return tr.fail(fmt.Errorf("%w: bad pax mtime record %q", ErrCorrupt, v))
			}
			e.ModTime = time.Unix(sec, nsec)
		case paxutil.KeyUname:
			e.Uname = v
		case paxutil.KeyGname:
			e.Gname = v
		}
	}
	return nil
}

// skipUnread discards whatever remains of the current payload plus its
// block padding. Hitting EOF inside the payload is a truncation error;
// inside the padding it is tolerated.
func (tr *Reader) skipUnread() error {
	if tr.remaining > 0 {
		n, err := io.CopyN(io.Discard, tr.r, tr.remaining)
		tr.remaining -= n
		if err != nil {
			if err == io.EOF {
				err = fmt.Errorf("%w: archive ended %d bytes into an entry payload", ErrTruncated, tr.remaining)
			}
			return tr.fail(err)
		}
	}
	if tr.pad > 0 {
		n, err := io.CopyN(io.Discard, tr.r, tr.pad)
		tr.pad -= n
		if err != nil && err != io.EOF {
			return tr.fail(err)
		}
	}
	return nil
}

func (tr *Reader) fail(err error) error {
	tr.err = err
	return err
}
