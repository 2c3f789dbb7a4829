package tarball

import (
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/kaladron/tarball/internal/block"
)

// Wire typeflags. The public EntryType is deliberately decoupled from
// these: extension flags never surface as entries.
const (
	flagRegular    = '0'
	flagRegularOld = '\x00' // pre-ustar archives use NUL for regular files
	flagHardLink   = '1'
	flagSymlink    = '2'
	flagChar       = '3'
	flagBlock      = '4'
	flagDirectory  = '5'
	flagFIFO       = '6'

	flagPAXHeader   = 'x'
	flagPAXGlobal   = 'g'
	flagGNULongName = 'L'
	flagGNULongLink = 'K'
)

// Permission bits as encoded in the mode field, POSIX values.
const (
	modeSetuid = 0o4000
	modeSetgid = 0o2000
	modeSticky = 0o1000
	modePerm   = 0o0777
)

func typeFromFlag(flag byte) EntryType {
	switch flag {
	case flagRegular, flagRegularOld:
		return TypeRegular
	case flagHardLink:
		return TypeHardLink
	case flagSymlink:
		return TypeSymlink
	case flagChar:
		return TypeChar
	case flagBlock:
		return TypeBlock
	case flagDirectory:
		return TypeDirectory
	case flagFIFO:
		return TypeFIFO
	default:
		return TypeUnsupported
	}
}

func flagFromType(t EntryType, raw byte) byte {
	switch t {
	case TypeRegular:
		return flagRegular
	case TypeHardLink:
		return flagHardLink
	case TypeSymlink:
		return flagSymlink
	case TypeChar:
		return flagChar
	case TypeBlock:
		return flagBlock
	case TypeDirectory:
		return flagDirectory
	case TypeFIFO:
		return flagFIFO
	default:
		return raw
	}
}

// tarMode converts fs.FileMode permission and special bits to the 12-bit
// mode field value.
func tarMode(m fs.FileMode) int64 {
	mode := int64(m.Perm())
	if m&fs.ModeSetuid != 0 {
		mode |= modeSetuid
	}
	if m&fs.ModeSetgid != 0 {
		mode |= modeSetgid
	}
	if m&fs.ModeSticky != 0 {
		mode |= modeSticky
	}
	return mode
}

// fileMode converts a decoded mode field back to fs.FileMode bits. Type
// bits within the mode field, written by some historic tars, are ignored;
// the typeflag is authoritative.
func fileMode(mode int64) fs.FileMode {
	m := fs.FileMode(mode) & modePerm
	if mode&modeSetuid != 0 {
		m |= fs.ModeSetuid
	}
	if mode&modeSetgid != 0 {
		m |= fs.ModeSetgid
	}
	if mode&modeSticky != 0 {
		m |= fs.ModeSticky
	}
	return m
}

// splitName splits a slash path into ustar prefix and name fields so that
// prefix + "/" + name reproduces it. ok is false when no split fits.
func splitName(name string) (prefix, rest string, ok bool) {
	if len(name) <= block.NameSize {
		return "", name, true
	}
	if len(name) > block.PrefixSize+1+block.NameSize {
		return "", "", false
	}
	// The rightmost separator within prefix capacity leaves the shortest
	// possible tail, so it is the only candidate worth checking.
	i := strings.LastIndexByte(name[:min(len(name), block.PrefixSize+1)], '/')
	if i <= 0 || len(name)-i-1 > block.NameSize {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// encodeHeader fills blk from e. Names and link targets must already fit
// the header fields; the writer moves longer values into extension records
// before calling this, so an overflow here is an invariant violation.
func encodeHeader(blk *block.Block, e *Entry) error {
	blk.Reset()

	var f block.Formatter
	prefix, name, ok := splitName(e.Name)
	if !ok {
		return fmt.Errorf("%w: name %q", ErrFieldTooLong, e.Name)
	}
	if len(e.Linkname) > block.NameSize {
		return fmt.Errorf("%w: link target %q", ErrFieldTooLong, e.Linkname)
	}

	f.String(blk.Name(), name)
	f.String(blk.Prefix(), prefix)
	f.Octal(blk.Mode(), tarMode(e.Mode))
	f.Numeric(blk.UID(), int64(e.UID))
	f.Numeric(blk.GID(), int64(e.GID))
	f.Numeric(blk.Size(), e.Size)
	f.Numeric(blk.ModTime(), e.ModTime.Unix())
	blk.TypeFlag()[0] = flagFromType(e.Type, e.RawFlag)
	f.String(blk.LinkName(), e.Linkname)
	blk.SetUSTAR()
	f.String(blk.UserName(), e.Uname)
	f.String(blk.GroupName(), e.Gname)
	if e.Type == TypeChar || e.Type == TypeBlock {
		f.Numeric(blk.DevMajor(), e.Devmajor)
		f.Numeric(blk.DevMinor(), e.Devminor)
	}
	if err := f.Err(); err != nil {
		return fmt.Errorf("%w: entry %q", ErrFieldTooLong, e.Name)
	}

	blk.SetChecksum()
	return nil
}

// decodeHeader parses a checksum-verified header block into an Entry.
func decodeHeader(blk *block.Block) (*Entry, error) {
	var p block.Parser

	flag := blk.TypeFlag()[0]
	e := &Entry{
		Name:     block.CString(blk.Name()),
		Type:     typeFromFlag(flag),
		Linkname: block.CString(blk.LinkName()),
		Mode:     fileMode(p.Octal(blk.Mode())),
		UID:      int(p.Numeric(blk.UID())),
		GID:      int(p.Numeric(blk.GID())),
		Size:     p.Numeric(blk.Size()),
		ModTime:  time.Unix(p.Numeric(blk.ModTime()), 0),
		RawFlag:  flag,
	}

	if blk.IsUSTAR() || blk.IsGNU() {
		e.Uname = block.CString(blk.UserName())
		e.Gname = block.CString(blk.GroupName())
		if e.Type == TypeChar || e.Type == TypeBlock {
			e.Devmajor = p.Numeric(blk.DevMajor())
			e.Devminor = p.Numeric(blk.DevMinor())
		}
		// GNU headers reuse the prefix area for other fields.
		if blk.IsUSTAR() {
			if prefix := block.CString(blk.Prefix()); prefix != "" {
				e.Name = prefix + "/" + e.Name
			}
		}
	}

	if err := p.Err(); err != nil {
		return nil, fmt.Errorf("%w: malformed header field", ErrCorrupt)
	}
	if e.Size < 0 {
		return nil, fmt.Errorf("%w: negative entry size", ErrCorrupt)
	}
	return e, nil
}
