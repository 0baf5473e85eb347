package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_WireStatusChannelEvent(t *testing.T) {
	ev := &Event{Kind: KindNoteOn, StatusMsg: StatusNoteOn, Channel: 5}
	assert.Equal(t, byte(0x95), ev.WireStatus())
}

func TestEvent_WireStatusNonChannelEvent(t *testing.T) {
	ev := &Event{Kind: KindTimingClock, StatusMsg: StatusTimingClock}
	assert.Equal(t, StatusTimingClock, ev.WireStatus())
}

func TestEvent_WireStatusPanicsOnBuiltin(t *testing.T) {
	ev := &Event{Kind: KindStartPattern}
	assert.Panics(t, func() { ev.WireStatus() })
}

func TestEvent_CloneDeepCopiesData(t *testing.T) {
	ev := &Event{Kind: KindSystemExclusive, Data: []byte{1, 2, 3}}
	clone := ev.Clone()
	require.Equal(t, ev.Data, clone.Data)

	clone.Data[0] = 99
	assert.Equal(t, byte(1), ev.Data[0], "mutating the clone must not alias the original")
}

func TestEvent_CloneNilData(t *testing.T) {
	ev := &Event{Kind: KindNoteOn}
	clone := ev.Clone()
	assert.Nil(t, clone.Data)
}
