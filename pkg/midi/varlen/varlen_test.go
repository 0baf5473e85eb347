package varlen

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/owencochell/go-yapmidi/pkg/midi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_ZeroIsSingleByte(t *testing.T) {
	assert.Equal(t, []byte{0x00}, Encode(0))
}

func TestEncode_KnownValues(t *testing.T) {
	// Canonical SMF varlen examples (spec.md §4.B).
	cases := []struct {
		v    uint32
		want []byte
	}{
		{0x40, []byte{0x40}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{0x2000, []byte{0xC0, 0x00}},
		{0x3FFF, []byte{0xFF, 0x7F}},
		{0x4000, []byte{0x81, 0x80, 0x00}},
		{0x1FFFFF, []byte{0xFF, 0xFF, 0x7F}},
		{0x200000, []byte{0x81, 0x80, 0x80, 0x00}},
		{MaxValue, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Encode(c.v))
	}
}

func TestDecode_KnownValues(t *testing.T) {
	cases := []struct {
		in       []byte
		want     uint32
		consumed int
	}{
		{[]byte{0x00}, 0, 1},
		{[]byte{0x40}, 0x40, 1},
		{[]byte{0x81, 0x00}, 0x80, 2},
		{[]byte{0xFF, 0xFF, 0xFF, 0x7F}, MaxValue, 4},
	}
	for _, c := range cases {
		v, n, err := Decode(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, v)
		assert.Equal(t, c.consumed, n)
	}
}

func TestDecode_TruncatedReturnsUnexpectedEOF(t *testing.T) {
	_, _, err := Decode([]byte{0x81, 0x80})
	require.Error(t, err)
	assert.ErrorIs(t, err, midi.ErrKind(midi.ErrUnexpectedEOF))
}

func TestFeed_OverlongVarlenErrors(t *testing.T) {
	var d Decoder
	for i := 0; i < 4; i++ {
		_, _, done, err := d.Feed(0x80)
		require.NoError(t, err)
		require.False(t, done)
	}
	_, _, _, err := d.Feed(0x80)
	require.Error(t, err)
}

func TestFeed_ResetAfterCompletion(t *testing.T) {
	var d Decoder
	v, n, done, err := d.Feed(0x40)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, uint32(0x40), v)
	assert.Equal(t, 1, n)

	// the Decoder must be immediately reusable for the next value.
	v2, _, done2, err2 := d.Feed(0x7F)
	require.NoError(t, err2)
	require.True(t, done2)
	assert.Equal(t, uint32(0x7F), v2)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	props := gopter.NewProperties(nil)
	props.Property("encode/decode round-trips for any value up to MaxValue", prop.ForAll(
		func(v uint32) bool {
			v = v & MaxValue
			encoded := Encode(v)
			if len(encoded) > 4 {
				return false
			}
			decoded, consumed, err := Decode(encoded)
			return err == nil && decoded == v && consumed == len(encoded)
		},
		gen.UInt32Range(0, MaxValue),
	))
	props.TestingRun(t)
}
