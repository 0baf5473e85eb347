// Package varlen implements the MIDI variable-length quantity codec
// (spec.md §4.B): base-128, most significant group first, continuation
// bit set on every group but the last. Values up to 0x0FFFFFFF (four
// encoded bytes) are supported, the maximum the SMF format ever emits.
package varlen

import "github.com/owencochell/go-yapmidi/pkg/midi"

// MaxValue is the largest value representable in four varlen bytes.
const MaxValue = 0x0FFFFFFF

// maxBytes bounds the incremental decoder: a fifth continuation byte
// means malformed input, never a real SMF varlen.
const maxBytes = 4

// Encode returns the varlen encoding of v. Per spec.md §4.B, v == 0
// encodes as a single zero byte.
func Encode(v uint32) []byte {
	if v == 0 {
		return []byte{0x00}
	}

	var groups []byte
	for v > 0 {
		groups = append(groups, byte(v&0x7F))
		v >>= 7
	}

	// groups were collected least-significant-first; emit most-
	// significant-first with the continuation bit set on every byte but
	// the last.
	out := make([]byte, len(groups))
	for i, g := range groups {
		b := g
		if i != 0 {
			b |= 0x80
		}
		out[len(groups)-1-i] = b
	}
	return out
}

// Decoder holds the incremental state for decoding one varlen value a
// byte at a time (spec.md §4.B). The zero value is ready to use.
// Decoders are not safe for concurrent use and are not shared across
// streams, same as every other piece of per-stream state in this
// toolkit (spec.md §5).
type Decoder struct {
	accum     uint32
	bytesRead int
}

// Feed consumes one byte of a varlen encoding. done is true once the
// value is complete, at which point value and bytesRead are valid and
// the Decoder resets itself automatically so it is ready for the next
// value. An error is returned, and the Decoder is reset, if a fifth byte
// arrives after four continuation bytes (spec.md §7 OverlongVarlen).
func (d *Decoder) Feed(b byte) (value uint32, bytesRead int, done bool, err error) {
	if d.bytesRead >= maxBytes {
		d.Reset()
		return 0, 0, false, midi.NewError(midi.ErrOverlongVarlen, nil,
			"varlen exceeds %d bytes", maxBytes)
	}

	d.accum = (d.accum << 7) | uint32(b&0x7F)
	d.bytesRead++

	if b&0x80 == 0 {
		value, bytesRead = d.accum, d.bytesRead
		d.Reset()
		return value, bytesRead, true, nil
	}

	return 0, 0, false, nil
}

// Reset discards any in-progress decode, as if no bytes had been fed.
func (d *Decoder) Reset() {
	d.accum = 0
	d.bytesRead = 0
}

// Decode decodes a varlen value from the start of buf in one shot,
// returning the value and the number of bytes consumed. It is a
// convenience wrapper around Decoder for callers holding a full buffer
// rather than reading incrementally.
func Decode(buf []byte) (value uint32, consumed int, err error) {
	var d Decoder
	for _, b := range buf {
		v, n, done, err := d.Feed(b)
		if err != nil {
			return 0, 0, err
		}
		if done {
			return v, n, nil
		}
	}
	return 0, 0, midi.NewError(midi.ErrUnexpectedEOF, nil, "varlen truncated after %d bytes", len(buf))
}
