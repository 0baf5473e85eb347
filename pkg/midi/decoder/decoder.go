// Package decoder implements the live MIDI wire-format stream decoder
// and encoder (spec.md §4.D, §4.F): an incremental byte-level state
// machine handling running status, System Real-Time interruption and
// System Exclusive, plus the inverse encoder.
package decoder

import (
	"github.com/owencochell/go-yapmidi/internal/logging"
	"github.com/owencochell/go-yapmidi/pkg/midi"
)

// frame is one in-progress decoding on the Decoder's stack (spec.md
// §4.D: "a stack of in-progress decodings"). length is the total number
// of data bytes that complete the frame, or -1 for a
// variable-length (SysEx) frame that instead completes when a byte
// equal to end arrives as a status byte.
type frame struct {
	status    byte
	kind      midi.Kind
	isChannel bool
	channel   uint8
	length    int
	end       byte
	unknown   bool
	data      []byte
}

// Decoder is the stream decoder state machine from spec.md §4.D. It
// owns its stack and running-status state exclusively; nothing about it
// is process-wide (spec.md §5, §9), so every live connection gets its
// own Decoder.
type Decoder struct {
	reg           *midi.Registry
	stack         []frame
	runningStatus byte
	diagnostic    func(error)
	log           logging.Logger
}

// Option configures a Decoder at construction time.
type Option func(*Decoder)

// WithRegistry overrides the default status/meta table with a custom
// Registry, enabling application-specific status or meta bytes without
// subclassing (spec.md §9).
func WithRegistry(reg *midi.Registry) Option {
	return func(d *Decoder) { d.reg = reg }
}

// WithDiagnostic installs the out-of-band channel spec.md §7 requires
// for recoverable stream errors (unknown status with no running status,
// and similar conditions encountered mid-stream).
func WithDiagnostic(fn func(error)) Option {
	return func(d *Decoder) { d.diagnostic = fn }
}

// New returns a ready-to-use Decoder seeded with the default MIDI
// tables, or the ones supplied via WithRegistry.
func New(opts ...Option) *Decoder {
	d := &Decoder{reg: midi.NewRegistry(), log: logging.For("decoder")}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the Decoder's table of status/meta specs, so callers
// (and the SMF decoder, which embeds a Decoder) can extend it in place.
func (d *Decoder) Registry() *midi.Registry { return d.reg }

// Reset drops all stack frames and running-status state, as if the
// Decoder had just been constructed (spec.md §4.D).
func (d *Decoder) Reset() {
	d.stack = d.stack[:0]
	d.runningStatus = 0
}

func (d *Decoder) emitDiagnostic(err error) {
	if d.diagnostic != nil {
		d.diagnostic(err)
	}
	if d.log != nil {
		d.log.Debug("recoverable decode error", "error", err)
	}
}

// Decode decodes every event in a complete, well-framed buffer in one
// call. It is built on top of SeqDecode and is exactly as correct, but
// is documented for use only when the input is known to be well-framed
// (spec.md §4.D "Decoder identity"): a truncated trailing message is
// simply left on the stack, unreported.
func (d *Decoder) Decode(buf []byte) ([]*midi.Event, error) {
	var events []*midi.Event
	for _, b := range buf {
		ev, err := d.SeqDecode(b)
		if err != nil {
			return events, err
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events, nil
}

// SeqDecode feeds one byte into the state machine (spec.md §4.D). It
// returns a completed Event once one is available, or nil if more bytes
// are needed. A non-nil error means the byte stream is fatally
// malformed at the protocol level (practically: only overlong varlen,
// which this package never triggers directly but subclasses like the
// SMF decoder can).
func (d *Decoder) SeqDecode(b byte) (*midi.Event, error) {
	if midi.IsRealTime(b) {
		return d.decodeRealTime(b), nil
	}
	if midi.IsStatusByte(b) {
		return d.decodeStatus(b)
	}
	return d.decodeData(b)
}

func (d *Decoder) decodeRealTime(b byte) *midi.Event {
	spec, ok := d.reg.System(b)
	if !ok {
		d.emitDiagnostic(midi.NewError(midi.ErrUnknownStatus, nil, "unregistered real-time status 0x%02X", b))
		return nil
	}
	return &midi.Event{Kind: spec.Kind, StatusMsg: b, RawStatus: b, Track: -1}
}

func (d *Decoder) decodeStatus(b byte) (*midi.Event, error) {
	if top := d.top(); top != nil {
		if top.length == -1 && !top.unknown && top.end == b {
			// A variable-length frame's terminator arrived: complete it
			// without consuming b into its data (spec.md §4.D rule 2,
			// §9 Open Question: the in-memory SysEx body excludes 0xF7).
			return d.popAndBuild()
		}
		if top.unknown {
			// b terminates the UnknownEvent without being consumed by
			// it (spec.md §4.D rule 2, §9 Open Question resolution:
			// the terminating byte is NOT appended to the unknown
			// event's data).
			ev, err := d.popAndBuild()
			if err != nil {
				return nil, err
			}
			// b also starts a fresh frame; the rare case where b's own
			// frame is itself zero-length (completing on the same byte)
			// can't be reported alongside ev through this single-event
			// return, so only the UnknownEvent completion surfaces here.
			if _, pushErr := d.pushStatus(b); pushErr != nil {
				return nil, pushErr
			}
			return ev, nil
		}
	}
	return d.pushStatus(b)
}

func (d *Decoder) decodeData(b byte) (*midi.Event, error) {
	if d.top() == nil {
		if d.runningStatus == 0 {
			d.emitDiagnostic(midi.NewError(midi.ErrUnknownStatus, nil,
				"data byte 0x%02X with no running status, discarded", b))
			return nil, nil
		}
		ev, err := d.pushFrame(d.runningStatus, false)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			// No channel spec has length 0, so a running-status push
			// never completes immediately; surface it anyway rather
			// than silently dropping b if that ever changes.
			return ev, nil
		}
	}
	top := d.top()
	top.data = append(top.data, b)
	return d.checkCompletion()
}

// pushStatus pushes a new frame for an explicit status byte b, updating
// running status by this rule:
// channel statuses become the new running status, SysEx leaves running
// status untouched (it is not itself repeatable via running status and
// does not cancel whatever preceded it), and other system-common
// statuses clear running status. It returns the built event if b's
// frame is zero-length and therefore completes the instant it is
// pushed (spec.md §4.A: length 0 still emits an event).
func (d *Decoder) pushStatus(b byte) (*midi.Event, error) {
	return d.pushFrame(b, true)
}

func (d *Decoder) pushFrame(b byte, explicit bool) (*midi.Event, error) {
	if chSpec, channel, ok := d.reg.Channel(b); ok {
		d.stack = append(d.stack, frame{status: b, kind: chSpec.Kind, isChannel: true, channel: channel, length: chSpec.Length})
		if explicit {
			d.runningStatus = b
		}
	} else if sysSpec, ok := d.reg.System(b); ok {
		d.stack = append(d.stack, frame{status: b, kind: sysSpec.Kind, length: sysSpec.Length, end: sysSpec.End})
		if explicit && b != midi.StatusSystemExclusive {
			d.runningStatus = 0
		}
	} else {
		d.emitDiagnostic(midi.NewError(midi.ErrUnknownStatus, nil, "unregistered status 0x%02X, reporting as UnknownEvent", b))
		d.stack = append(d.stack, frame{status: b, kind: midi.KindUnknownEvent, length: -1, unknown: true})
		if explicit {
			d.runningStatus = 0
		}
	}

	// Zero-length messages (TuneRequest, EndOfSysEx-as-status, ...)
	// complete the instant they are pushed.
	if top := d.top(); top.length == 0 {
		return d.popAndBuild()
	}
	return nil, nil
}

func (d *Decoder) checkCompletion() (*midi.Event, error) {
	top := d.top()
	if top.length >= 0 && len(top.data) == top.length {
		return d.popAndBuild()
	}
	return nil, nil
}

func (d *Decoder) top() *frame {
	if len(d.stack) == 0 {
		return nil
	}
	return &d.stack[len(d.stack)-1]
}

func (d *Decoder) popAndBuild() (*midi.Event, error) {
	n := len(d.stack)
	f := d.stack[n-1]
	d.stack = d.stack[:n-1]

	ev := &midi.Event{
		Kind:      f.kind,
		Track:     -1,
		RawStatus: f.status,
	}
	if f.isChannel {
		ev.Channel = f.channel
		ev.StatusMsg = f.status & 0xF0
	} else {
		ev.StatusMsg = f.status
	}
	hydrate(ev, f.kind, f.data)
	return ev, nil
}

// hydrate fills the kind-specific payload fields of ev from the raw
// data bytes collected for it.
func hydrate(ev *midi.Event, kind midi.Kind, data []byte) {
	switch kind {
	case midi.KindNoteOff, midi.KindNoteOn:
		if len(data) >= 2 {
			ev.Pitch, ev.Velocity = data[0], data[1]
		}
	case midi.KindPolyAftertouch:
		if len(data) >= 2 {
			ev.Pitch, ev.Pressure = data[0], data[1]
		}
	case midi.KindControlChange:
		if len(data) >= 2 {
			ev.Controller, ev.Value = data[0], data[1]
		}
	case midi.KindProgramChange:
		if len(data) >= 1 {
			ev.Program = data[0]
		}
	case midi.KindChannelAftertouch:
		if len(data) >= 1 {
			ev.Pressure = data[0]
		}
	case midi.KindPitchBend:
		if len(data) >= 2 {
			raw := uint16(data[0]) | uint16(data[1])<<7
			ev.Bend = int16(raw) - 8192
		}
	case midi.KindSongPositionPointer:
		if len(data) >= 2 {
			ev.Position = uint16(data[0]) | uint16(data[1])<<7
		}
	case midi.KindSongSelect:
		if len(data) >= 1 {
			ev.Song = data[0]
		}
	default:
		if len(data) > 0 {
			ev.Data = data
		}
	}
}
