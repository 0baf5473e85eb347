package smf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/owencochell/go-yapmidi/pkg/midi"
	"github.com/owencochell/go-yapmidi/pkg/midi/iobyte"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestFile(t *testing.T) []byte {
	t.Helper()
	track := []*midi.Event{
		{Kind: midi.KindSetTempo, Delta: 0, MicrosecondsPerBeat: 500000},
		{Kind: midi.KindNoteOn, Delta: 480, StatusMsg: midi.StatusNoteOn, Channel: 0, Pitch: 60, Velocity: 100},
		{Kind: midi.KindNoteOff, Delta: 96, StatusMsg: midi.StatusNoteOff, Channel: 0, Pitch: 60, Velocity: 0},
		{Kind: midi.KindEndOfTrack, Delta: 0},
	}
	data, err := EncodeFile(0, 96, [][]*midi.Event{track})
	require.NoError(t, err)
	return data
}

func TestReader_FullFileLazy(t *testing.T) {
	ctx := context.Background()
	data := buildTestFile(t)
	src := iobyte.NewSyncSource(bytes.NewReader(data))
	r := NewReader(src, 1)

	var kinds []midi.Kind
	for {
		ev, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
	}

	assert.Equal(t, []midi.Kind{
		midi.KindStartPattern,
		midi.KindStartTrack,
		midi.KindSetTempo,
		midi.KindNoteOn,
		midi.KindNoteOff,
		midi.KindEndOfTrack,
		midi.KindStopPattern,
	}, kinds)
}

func TestReader_EagerBuffer(t *testing.T) {
	ctx := context.Background()
	data := buildTestFile(t)
	src := iobyte.NewSyncSource(bytes.NewReader(data))
	r := NewReader(src, 0)

	first, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, midi.KindStartPattern, first.Kind)
	assert.Equal(t, uint8(0), first.Format)
	assert.Equal(t, uint16(1), first.NumTracks)
	assert.Equal(t, uint16(96), first.Divisions)
}

func TestReader_HeaderScenario(t *testing.T) {
	// spec.md §8 scenario (c): MThd\x00\x00\x00\x06\x00\x01\x00\x03\x00\x60
	// yields StartPattern{length=6, format=1, num_tracks=3, divisions=96}.
	header := []byte{
		'M', 'T', 'h', 'd', 0x00, 0x00, 0x00, 0x06,
		0x00, 0x01, 0x00, 0x03, 0x00, 0x60,
	}
	// No track chunks follow; Next should still surface StartPattern
	// before it tries (and fails) to read the first track header.
	src := iobyte.NewSyncSource(bytes.NewReader(header))
	r := NewReader(src, 1)
	ev, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, midi.KindStartPattern, ev.Kind)
	assert.Equal(t, 6, ev.Length)
	assert.Equal(t, uint8(1), ev.Format)
	assert.Equal(t, uint16(3), ev.NumTracks)
	assert.Equal(t, uint16(96), ev.Divisions)
}

func TestReader_TrackWithSysExFollowedByMoreEvents(t *testing.T) {
	// A SysEx event that is not the last byte in its track chunk: proves
	// the reader consumes exactly the length-prefixed SysEx body (which
	// includes the trailing 0xF7) before resuming delta/event parsing,
	// rather than leaving the terminator to corrupt what follows.
	ctx := context.Background()
	track := []*midi.Event{
		{Kind: midi.KindSystemExclusive, Delta: 0, Data: []byte{0x7E, 0x7F, 0x09, 0x01}},
		{Kind: midi.KindNoteOn, Delta: 10, StatusMsg: midi.StatusNoteOn, Channel: 0, Pitch: 72, Velocity: 90},
		{Kind: midi.KindNoteOff, Delta: 20, StatusMsg: midi.StatusNoteOff, Channel: 0, Pitch: 72, Velocity: 0},
		{Kind: midi.KindEndOfTrack, Delta: 0},
	}
	data, err := EncodeFile(0, 96, [][]*midi.Event{track})
	require.NoError(t, err)

	src := iobyte.NewSyncSource(bytes.NewReader(data))
	r := NewReader(src, 1)

	var got []*midi.Event
	for {
		ev, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, ev)
	}

	require.Len(t, got, 6)
	assert.Equal(t, midi.KindStartPattern, got[0].Kind)
	assert.Equal(t, midi.KindStartTrack, got[1].Kind)
	require.Equal(t, midi.KindSystemExclusive, got[2].Kind)
	assert.Equal(t, []byte{0x7E, 0x7F, 0x09, 0x01}, got[2].Data)
	require.Equal(t, midi.KindNoteOn, got[3].Kind)
	assert.Equal(t, byte(72), got[3].Pitch)
	require.Equal(t, midi.KindNoteOff, got[4].Kind)
	assert.Equal(t, midi.KindEndOfTrack, got[5].Kind)
}

func TestReader_RejectsBadTag(t *testing.T) {
	src := iobyte.NewSyncSource(bytes.NewReader([]byte("XXXX\x00\x00\x00\x06")))
	r := NewReader(src, 1)
	_, err := r.Next(context.Background())
	assert.Error(t, err)
}
