// Package block implements the 512-byte ustar header block: fixed-offset
// field access, checksum computation, and the octal / base-256 numeric
// encodings used by header fields.
package block

import "bytes"

// Size is the length of every block in a tar stream, both headers and
// payload blocks.
const Size = 512

// Field widths and offsets from the ustar specification.
const (
	NameSize   = 100
	PrefixSize = 155

	chksumOffset = 148
	chksumSize   = 8
)

// Magic values identifying header variants.
const (
	MagicUSTAR   = "ustar\x00"
	VersionUSTAR = "00"
	MagicGNU     = "ustar "
	VersionGNU   = " \x00"
)

var zero Block

// Block is one 512-byte unit of a tar stream.
type Block [Size]byte

// Zero returns a block of all zero bytes.
func Zero() *Block { return &zero }

// IsZero reports whether every byte of the block is zero.
func (b *Block) IsZero() bool {
	return bytes.Equal(b[:], zero[:])
}

// Reset clears the block.
func (b *Block) Reset() {
	*b = Block{}
}

// V7 fields, common to every tar variant.

func (b *Block) Name() []byte     { return b[0:][:NameSize] }
func (b *Block) Mode() []byte     { return b[100:][:8] }
func (b *Block) UID() []byte      { return b[108:][:8] }
func (b *Block) GID() []byte      { return b[116:][:8] }
func (b *Block) Size() []byte     { return b[124:][:12] }
func (b *Block) ModTime() []byte  { return b[136:][:12] }
func (b *Block) Chksum() []byte   { return b[chksumOffset:][:chksumSize] }
func (b *Block) TypeFlag() []byte { return b[156:][:1] }
func (b *Block) LinkName() []byte { return b[157:][:NameSize] }

// USTAR extension fields.

func (b *Block) Magic() []byte    { return b[257:][:6] }
func (b *Block) Version() []byte  { return b[263:][:2] }
func (b *Block) UserName() []byte { return b[265:][:32] }
func (b *Block) GroupName() []byte { return b[297:][:32] }
func (b *Block) DevMajor() []byte { return b[329:][:8] }
func (b *Block) DevMinor() []byte { return b[337:][:8] }
func (b *Block) Prefix() []byte   { return b[345:][:PrefixSize] }

// ComputeChecksum sums all 512 bytes with the checksum field itself treated
// as eight ASCII spaces. POSIX specifies unsigned byte values; old Sun tar
// summed signed bytes, so both are returned and either is accepted on read.
func (b *Block) ComputeChecksum() (unsigned, signed int64) {
	for i, c := range b {
		if chksumOffset <= i && i < chksumOffset+chksumSize {
			c = ' '
		}
		unsigned += int64(c)
		signed += int64(int8(c))
	}
	return unsigned, signed
}

// SetChecksum computes the unsigned checksum and stores it in the checksum
// field as six octal digits followed by NUL and space.
func (b *Block) SetChecksum() {
	var f Formatter
	unsigned, _ := b.ComputeChecksum()
	field := b.Chksum()
	f.Octal(field[:7], unsigned) // max possible sum is 130560, fits in 6 digits
	field[7] = ' '
}

// VerifyChecksum reports whether the stored checksum matches either the
// unsigned or the signed sum of the block.
func (b *Block) VerifyChecksum() bool {
	var p Parser
	stored := p.Octal(b.Chksum())
	if p.Err() != nil {
		return false
	}
	unsigned, signed := b.ComputeChecksum()
	return stored == unsigned || stored == signed
}

// SetUSTAR writes the ustar magic and version fields.
func (b *Block) SetUSTAR() {
	copy(b.Magic(), MagicUSTAR)
	copy(b.Version(), VersionUSTAR)
}

// IsGNU reports whether the block carries the old GNU magic. GNU headers
// share the V7 layout plus the ustar owner fields but have no prefix field.
func (b *Block) IsGNU() bool {
	return string(b.Magic()) == MagicGNU && string(b.Version()) == VersionGNU
}

// IsUSTAR reports whether the block carries the POSIX ustar magic.
func (b *Block) IsUSTAR() bool {
	return string(b.Magic()) == MagicUSTAR
}

// Padding returns the number of zero bytes needed to pad n up to the next
// block boundary, in [0, Size).
func Padding(n int64) int64 {
	return -n & (Size - 1)
}

// CString interprets b as a NUL-terminated string. Without a NUL byte the
// whole slice is the string.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
