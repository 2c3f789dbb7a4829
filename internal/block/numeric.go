package block

import (
	"bytes"
	"errors"
	"strconv"
)

// ErrNumeric is reported when a numeric field cannot be parsed or a value
// does not fit its field.
var ErrNumeric = errors.New("invalid numeric field")

// Parser decodes numeric header fields, collecting the first error so a
// whole header can be parsed before checking.
type Parser struct {
	err error
}

// Err returns the first error encountered, if any.
func (p *Parser) Err() error { return p.err }

// Octal parses an octal field. Fields may be padded with leading or
// trailing NULs and spaces.
func (p *Parser) Octal(b []byte) int64 {
	b = bytes.Trim(b, " \x00")
	if len(b) == 0 {
		return 0
	}
	x, err := strconv.ParseInt(CString(b), 8, 64)
	if err != nil && p.err == nil {
		p.err = ErrNumeric
	}
	return x
}

// Numeric parses a field that is either octal or GNU base-256. A set high
// bit in the first byte signals base-256: the remaining bits form a
// big-endian two's complement number.
func (p *Parser) Numeric(b []byte) int64 {
	if len(b) == 0 || b[0]&0x80 == 0 {
		return p.Octal(b)
	}

	// Negative values use the identity -a-1 == ^a: invert the data bytes
	// and fix up sign afterwards.
	var inv byte
	var sign, incr int64 = 1, 0
	if b[0]&0x40 != 0 {
		inv, sign, incr = 0xff, -1, 1
	}

	var x uint64
	for i, c := range b {
		c ^= inv
		if i == 0 {
			c &= 0x7f // mask the base-256 marker bit
		}
		if x>>56 > 0 {
			p.setErr()
			return 0
		}
		x = x<<8 | uint64(c)
	}
	if x>>63 > 0 {
		p.setErr()
		return 0
	}
	return sign*int64(x) - incr
}

func (p *Parser) setErr() {
	if p.err == nil {
		p.err = ErrNumeric
	}
}

// Formatter encodes numeric and string header fields, collecting the first
// overflow error.
type Formatter struct {
	err error
}

// Err returns the first error encountered, if any.
func (f *Formatter) Err() error { return f.err }

// String copies s into b, NUL-terminating when there is room. Values longer
// than the field set the error.
func (f *Formatter) String(b []byte, s string) {
	if len(s) > len(b) {
		if f.err == nil {
			f.err = ErrNumeric
		}
		s = s[:len(b)]
	}
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

// Octal writes x as zero-padded octal digits terminated by a NUL. Values
// that do not fit set the error.
func (f *Formatter) Octal(b []byte, x int64) {
	s := strconv.FormatInt(x, 8)
	// Leading zeros, then the value, then a terminating NUL.
	if len(s) >= len(b) {
		if f.err == nil {
			f.err = ErrNumeric
		}
		return
	}
	pad := len(b) - len(s) - 1
	for i := 0; i < pad; i++ {
		b[i] = '0'
	}
	copy(b[pad:], s)
	b[len(b)-1] = 0
}

// fitsOctal reports whether x can be encoded in an octal field of n bytes
// (n-1 digits plus the terminating NUL).
func fitsOctal(x int64, n int) bool {
	if x < 0 {
		return false
	}
	return x < 1<<(3*uint(n-1))
}

// Numeric writes x in octal when it fits, falling back to GNU base-256
// otherwise. Values outside the base-256 range set the error.
func (f *Formatter) Numeric(b []byte, x int64) {
	if fitsOctal(x, len(b)) {
		f.Octal(b, x)
		return
	}

	// base-256 holds len(b)*8-1 bits of two's complement.
	if n := uint(len(b)); n < 9 {
		lo := int64(-1) << (8*n - 1)
		hi := int64(1)<<(8*n-1) - 1
		if x < lo || x > hi {
			if f.err == nil {
				f.err = ErrNumeric
			}
			return
		}
	}
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(x)
		x >>= 8
	}
	b[0] |= 0x80
}
