package decoder

import "github.com/owencochell/go-yapmidi/pkg/midi"

// Encoder is the inverse of Decoder (spec.md §4.F): it turns Events
// back into wire bytes. Meta events have no live-wire representation
// (they only exist inside an SMF track) and are rejected here; the smf
// package provides the Meta-aware encoder.
type Encoder struct {
	runningStatus bool
	lastStatus    byte
}

// EncOption configures an Encoder.
type EncOption func(*Encoder)

// WithRunningStatus enables the running-status elision optimization
// (spec.md §4.F): a status byte is omitted when it matches the
// immediately preceding emitted status. Off by default, matching
// spec.md §9's Open Question ("the spec requires it be implementable
// but opt-in").
func WithRunningStatus(enabled bool) EncOption {
	return func(e *Encoder) { e.runningStatus = enabled }
}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder(opts ...EncOption) *Encoder {
	e := &Encoder{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reset clears any remembered running status.
func (e *Encoder) Reset() { e.lastStatus = 0 }

// Encode serializes one live wire-format event. Builtin and Meta events
// are rejected: they have no live-wire form.
func (e *Encoder) Encode(ev *midi.Event) ([]byte, error) {
	if ev.Kind.IsBuiltin() {
		return nil, midi.NewError(midi.ErrDispatchError, nil, "builtin event %s has no wire encoding", ev.Kind)
	}
	if ev.Kind.IsMeta() {
		return nil, midi.NewError(midi.ErrDispatchError, nil, "meta event %s has no live-wire encoding, use smf.Encoder", ev.Kind)
	}

	if ev.Kind == midi.KindSystemExclusive {
		out := make([]byte, 0, len(ev.Data)+2)
		out = append(out, midi.StatusSystemExclusive)
		out = append(out, ev.Data...)
		out = append(out, midi.StatusEndOfSysEx)
		// SysEx does not disturb running status in either direction
		// (spec.md §4.F: "Real-Time and SysEx do not reset running
		// status in the output").
		return out, nil
	}

	status := ev.WireStatus()
	realTime := midi.IsRealTime(status)

	omit := e.runningStatus && !realTime && status == e.lastStatus
	var out []byte
	if !omit {
		out = append(out, status)
	}
	out = append(out, payloadBytes(ev)...)

	if !realTime {
		e.lastStatus = status
	}
	return out, nil
}

func payloadBytes(ev *midi.Event) []byte {
	switch ev.Kind {
	case midi.KindNoteOff, midi.KindNoteOn:
		return []byte{ev.Pitch, ev.Velocity}
	case midi.KindPolyAftertouch:
		return []byte{ev.Pitch, ev.Pressure}
	case midi.KindControlChange:
		return []byte{ev.Controller, ev.Value}
	case midi.KindProgramChange:
		return []byte{ev.Program}
	case midi.KindChannelAftertouch:
		return []byte{ev.Pressure}
	case midi.KindPitchBend:
		raw := uint16(ev.Bend + 8192)
		return []byte{byte(raw & 0x7F), byte((raw >> 7) & 0x7F)}
	case midi.KindSongPositionPointer:
		return []byte{byte(ev.Position & 0x7F), byte((ev.Position >> 7) & 0x7F)}
	case midi.KindSongSelect:
		return []byte{ev.Song}
	case midi.KindUnknownEvent:
		return ev.Data
	default:
		return nil
	}
}
