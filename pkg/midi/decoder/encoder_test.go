package decoder

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/owencochell/go-yapmidi/pkg/midi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_NoteOn(t *testing.T) {
	e := NewEncoder()
	out, err := e.Encode(&midi.Event{Kind: midi.KindNoteOn, StatusMsg: midi.StatusNoteOn, Channel: 3, Pitch: 60, Velocity: 64})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x93, 60, 64}, out)
}

func TestEncode_SysEx(t *testing.T) {
	e := NewEncoder()
	out, err := e.Encode(&midi.Event{Kind: midi.KindSystemExclusive, Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xF0, 1, 2, 3, 0xF7}, out)
}

func TestEncode_RunningStatusElision(t *testing.T) {
	e := NewEncoder(WithRunningStatus(true))
	ev1 := &midi.Event{Kind: midi.KindNoteOn, StatusMsg: midi.StatusNoteOn, Channel: 0, Pitch: 60, Velocity: 64}
	ev2 := &midi.Event{Kind: midi.KindNoteOn, StatusMsg: midi.StatusNoteOn, Channel: 0, Pitch: 61, Velocity: 65}

	out1, err := e.Encode(ev1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 60, 64}, out1)

	out2, err := e.Encode(ev2)
	require.NoError(t, err)
	assert.Equal(t, []byte{61, 65}, out2, "second NoteOn on the same channel should omit its status byte")
}

func TestEncode_RunningStatusBrokenByDifferentChannel(t *testing.T) {
	e := NewEncoder(WithRunningStatus(true))
	_, err := e.Encode(&midi.Event{Kind: midi.KindNoteOn, StatusMsg: midi.StatusNoteOn, Channel: 0, Pitch: 60, Velocity: 64})
	require.NoError(t, err)
	out, err := e.Encode(&midi.Event{Kind: midi.KindNoteOn, StatusMsg: midi.StatusNoteOn, Channel: 1, Pitch: 61, Velocity: 65})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x91, 61, 65}, out)
}

func TestEncode_RealTimeDoesNotDisturbRunningStatus(t *testing.T) {
	e := NewEncoder(WithRunningStatus(true))
	_, err := e.Encode(&midi.Event{Kind: midi.KindNoteOn, StatusMsg: midi.StatusNoteOn, Channel: 0, Pitch: 60, Velocity: 64})
	require.NoError(t, err)
	_, err = e.Encode(&midi.Event{Kind: midi.KindTimingClock, StatusMsg: midi.StatusTimingClock})
	require.NoError(t, err)
	out, err := e.Encode(&midi.Event{Kind: midi.KindNoteOn, StatusMsg: midi.StatusNoteOn, Channel: 0, Pitch: 61, Velocity: 65})
	require.NoError(t, err)
	assert.Equal(t, []byte{61, 65}, out)
}

func TestEncode_RejectsBuiltinAndMeta(t *testing.T) {
	e := NewEncoder()
	_, err := e.Encode(&midi.Event{Kind: midi.KindStartTrack})
	assert.Error(t, err)
	_, err = e.Encode(&midi.Event{Kind: midi.KindSetTempo})
	assert.Error(t, err)
}

// TestDecodeEncodeRoundTrip checks spec's decode/encode identity for
// fixed-form channel and system-common events with running status
// disabled: encoding a decoded event reproduces the original bytes.
func TestDecodeEncodeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	props := gopter.NewProperties(parameters)

	statusGen := gen.OneConstOf(
		byte(0x80), byte(0x90), byte(0xA0), byte(0xB0), byte(0xE0),
	)

	props.Property("channel 2-byte events round trip through decode/encode", prop.ForAll(
		func(status, channel, d1, d2 byte) bool {
			wire := []byte{status | (channel & 0x0F), d1 & 0x7F, d2 & 0x7F}
			d := New()
			events, err := d.Decode(wire)
			if err != nil || len(events) != 1 {
				return false
			}
			e := NewEncoder()
			out, err := e.Encode(events[0])
			if err != nil {
				return false
			}
			return bytesEqual(out, wire)
		},
		statusGen, gen.UInt8Range(0, 15), gen.UInt8Range(0, 127), gen.UInt8Range(0, 127),
	))

	props.Property("SysEx round trips through decode/encode", prop.ForAll(
		func(body []byte) bool {
			clipped := make([]byte, len(body))
			for i, b := range body {
				clipped[i] = b & 0x7F
			}
			wire := append([]byte{0xF0}, clipped...)
			wire = append(wire, 0xF7)

			d := New()
			events, err := d.Decode(wire)
			if err != nil || len(events) != 1 {
				return false
			}
			e := NewEncoder()
			out, err := e.Encode(events[0])
			if err != nil {
				return false
			}
			return bytesEqual(out, wire)
		},
		gen.SliceOf(gen.UInt8Range(0, 127)),
	))

	props.TestingRun(t)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
