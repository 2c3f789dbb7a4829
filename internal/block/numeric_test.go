package block

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserOctal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0000644\x00", 0o644, false},
		{"0000644 ", 0o644, false},
		{" 644\x00\x00\x00\x00", 0o644, false},
		{"\x00\x00\x00\x00\x00\x00\x00\x00", 0, false},
		{"        ", 0, false},
		{"00000000000\x00", 0, false},
		{"777777777\x00\x00\x00", 0o777777777, false},
		{"abcdefg\x00", 0, true},
		{"00008\x00\x00\x00", 0, true},
	}
	for _, tt := range tests {
		var p Parser
		got := p.Octal([]byte(tt.in))
		if tt.wantErr {
			assert.Error(t, p.Err(), "input %q", tt.in)
			continue
		}
		require.NoError(t, p.Err(), "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParserNumericBase256(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      []byte
		want    int64
		wantErr bool
	}{
		{[]byte{0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0, false},
		{[]byte{0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, 1, false},
		{[]byte{0x80, 0, 0, 0, 0x02, 0, 0, 0, 0, 0, 0, 0}, 1 << 57, false},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, -1, false},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe}, -2, false},
		// Overflows int64.
		{[]byte{0x80, 0xff, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0, true},
	}
	for _, tt := range tests {
		var p Parser
		got := p.Numeric(tt.in)
		if tt.wantErr {
			assert.Error(t, p.Err(), "input %v", tt.in)
			continue
		}
		require.NoError(t, p.Err(), "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}
}

func TestFormatterOctal(t *testing.T) {
	t.Parallel()

	var f Formatter
	b := make([]byte, 8)
	f.Octal(b, 0o644)
	require.NoError(t, f.Err())
	assert.Equal(t, []byte("0000644\x00"), b)

	f.Octal(b, 0)
	require.NoError(t, f.Err())
	assert.Equal(t, []byte("0000000\x00"), b)

	// Seven octal digits is the limit for an 8-byte field.
	f.Octal(b, 0o7777777)
	require.NoError(t, f.Err())
	assert.Equal(t, []byte("7777777\x00"), b)

	f.Octal(b, 0o7777777+1)
	assert.Error(t, f.Err())
}

func TestFormatterNumericFallsBackToBase256(t *testing.T) {
	t.Parallel()

	// 8 GiB does not fit in 11 octal digits.
	const big = int64(1) << 33

	var f Formatter
	b := make([]byte, 12)
	f.Numeric(b, big)
	require.NoError(t, f.Err())
	assert.EqualValues(t, 0x80, b[0]&0x80)

	var p Parser
	assert.Equal(t, big, p.Numeric(b))
	require.NoError(t, p.Err())
}

func TestNumericRoundTrip(t *testing.T) {
	t.Parallel()

	values := []int64{0, 1, 0o777, 1<<33 - 1, 1 << 33, 1 << 40, math.MaxInt64}
	for _, v := range values {
		var f Formatter
		b := make([]byte, 12)
		f.Numeric(b, v)
		require.NoError(t, f.Err(), "value %d", v)

		var p Parser
		assert.Equal(t, v, p.Numeric(b), "value %d", v)
		require.NoError(t, p.Err(), "value %d", v)
	}
}

func TestFormatterString(t *testing.T) {
	t.Parallel()

	var f Formatter
	b := make([]byte, 6)
	f.String(b, "abc")
	require.NoError(t, f.Err())
	assert.Equal(t, []byte("abc\x00\x00\x00"), b)

	f.String(b, "toolongvalue")
	assert.Error(t, f.Err())
}
