package smf

import (
	"testing"

	"github.com/owencochell/go-yapmidi/pkg/midi"
	"github.com/owencochell/go-yapmidi/pkg/midi/varlen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, d *Decoder, buf []byte) []*midi.Event {
	t.Helper()
	var events []*midi.Event
	for _, b := range buf {
		ev, err := d.SeqDecode(b)
		require.NoError(t, err)
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

func TestDecode_SetTempoMeta(t *testing.T) {
	d := New()
	// 0xFF 0x51 0x03 0x07 0xA1 0x20  (500000 us/beat)
	events := decodeAll(t, d, []byte{0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20})
	require.Len(t, events, 1)
	assert.Equal(t, midi.KindSetTempo, events[0].Kind)
	assert.Equal(t, uint32(500000), events[0].MicrosecondsPerBeat)
}

func TestDecode_TrackNameMeta(t *testing.T) {
	d := New()
	name := "Lead"
	buf := append([]byte{0xFF, 0x03, byte(len(name))}, []byte(name)...)
	events := decodeAll(t, d, buf)
	require.Len(t, events, 1)
	assert.Equal(t, midi.KindTrackName, events[0].Kind)
	assert.Equal(t, name, events[0].Text)
}

func TestDecode_EndOfTrackMeta(t *testing.T) {
	d := New()
	events := decodeAll(t, d, []byte{0x00, 0xFF, 0x2F, 0x00})
	// The leading 0x00 is a data byte with no running status: discarded
	// with a diagnostic, not an event.
	require.Len(t, events, 1)
	assert.Equal(t, midi.KindEndOfTrack, events[0].Kind)
}

func TestDecode_UnknownMeta(t *testing.T) {
	d := New()
	events := decodeAll(t, d, []byte{0xFF, 0x5A, 0x02, 0xAB, 0xCD})
	require.Len(t, events, 1)
	assert.Equal(t, midi.KindUnknownMeta, events[0].Kind)
	assert.Equal(t, byte(0x5A), events[0].MetaType)
	assert.Equal(t, []byte{0xAB, 0xCD}, events[0].Data)
}

func TestDecode_LengthPrefixedSysEx(t *testing.T) {
	d := New() // default: length-prefixed
	// body [1,2,3], length prefix counts the trailing 0xF7 -> 4
	events := decodeAll(t, d, []byte{0xF0, 0x04, 1, 2, 3, 0xF7})
	require.Len(t, events, 1)
	assert.Equal(t, midi.KindSystemExclusive, events[0].Kind)
	assert.Equal(t, []byte{1, 2, 3}, events[0].Data)
}

func TestDecode_LiveBracketedSysEx(t *testing.T) {
	d := New(WithLiveSysEx())
	events := decodeAll(t, d, []byte{0xF0, 1, 2, 3, 0xF7})
	require.Len(t, events, 1)
	assert.Equal(t, midi.KindSystemExclusive, events[0].Kind)
	assert.Equal(t, []byte{1, 2, 3}, events[0].Data)
}

func TestDecode_ChannelEventsStillWork(t *testing.T) {
	d := New()
	events := decodeAll(t, d, []byte{0x90, 60, 64})
	require.Len(t, events, 1)
	assert.Equal(t, midi.KindNoteOn, events[0].Kind)
}

func TestEncodeDecodeMetaRoundTrip(t *testing.T) {
	ev := &midi.Event{Kind: midi.KindSetTempo, MicrosecondsPerBeat: 500000, Delta: 480}
	enc := NewEncoder()
	rec, err := enc.EncodeEvent(ev)
	require.NoError(t, err)

	// rec is varlen(delta) + meta bytes; strip the delta prefix before
	// feeding the SMF decoder, which only understands the event grammar.
	_, consumed, err := varlen.Decode(rec)
	require.NoError(t, err)

	d := New()
	events := decodeAll(t, d, rec[consumed:])
	require.Len(t, events, 1)
	assert.Equal(t, midi.KindSetTempo, events[0].Kind)
	assert.Equal(t, uint32(500000), events[0].MicrosecondsPerBeat)
}

func TestEncodeDecodeSysExRoundTrip(t *testing.T) {
	ev := &midi.Event{Kind: midi.KindSystemExclusive, Data: []byte{9, 8, 7}}
	enc := NewEncoder()
	rec, err := enc.EncodeEvent(ev)
	require.NoError(t, err)

	_, consumed, err := varlen.Decode(rec)
	require.NoError(t, err)

	d := New()
	events := decodeAll(t, d, rec[consumed:])
	require.Len(t, events, 1)
	assert.Equal(t, []byte{9, 8, 7}, events[0].Data)
}
