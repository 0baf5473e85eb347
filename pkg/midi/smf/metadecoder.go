// Package smf wraps the live stream decoder with the additional grammar
// that only appears inside a Standard MIDI File: Meta events (spec.md
// §4.E) and length-prefixed System Exclusive, plus the inverse encoder
// and the file-level reader/writer that bootstrap a Pattern from a byte
// source (spec.md §4.K).
package smf

import (
	"github.com/owencochell/go-yapmidi/internal/logging"
	"github.com/owencochell/go-yapmidi/pkg/midi"
	"github.com/owencochell/go-yapmidi/pkg/midi/decoder"
	"github.com/owencochell/go-yapmidi/pkg/midi/varlen"
)

// metaState tracks progress through the `0xFF meta_type varlen(length)
// body...` grammar (spec.md §4.E).
type metaState struct {
	active   bool
	haveType bool
	typ      byte
	haveLen  bool
	length   uint32
	vl       varlen.Decoder
	body     []byte
}

func (m *metaState) reset() { *m = metaState{} }

// sysexForm controls how SysEx bytes inside a decoded stream are framed.
type sysexForm int

const (
	// SysExLengthPrefixed is the real SMF form: 0xF0 varlen(n) body[n-1]
	// 0xF7, where the length prefix includes the trailing EOX (spec.md
	// §6). This is the default: a Decoder reading an actual SMF track
	// chunk sees this form, never the live-wire bracketed form, and
	// byte-level content gives no way to tell the two apart without
	// knowing which one is in play (spec.md §4.E: "An implementation
	// must accept both forms"). Track bodies always use this one.
	SysExLengthPrefixed sysexForm = iota
	// SysExLiveBracketed is the live-wire form handled already by
	// decoder.Decoder: 0xF0 body... 0xF7, with no length prefix. Select
	// it via WithLiveSysEx when feeding this Decoder bytes captured off
	// a wire rather than read from an SMF track chunk.
	SysExLiveBracketed
)

// Decoder layers the Meta grammar and SMF-style SysEx framing on top of
// decoder.Decoder. It is used both directly (by callers who already have
// complete track bytes) and internally by Reader, which drives it one
// event at a time per spec.md §4.K.
type Decoder struct {
	base       *decoder.Decoder
	sysexForm  sysexForm
	diagnostic func(error)
	log        logging.Logger

	meta metaState

	sysexArmed    bool
	sysexLenKnown bool
	sysexLen      uint32
	sysexVL       varlen.Decoder
	sysexBody     []byte
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithRegistry installs a custom Registry on the embedded stream decoder.
func WithRegistry(reg *midi.Registry) Option {
	return func(d *Decoder) { d.base = decoder.New(decoder.WithRegistry(reg)) }
}

// WithDiagnostic installs the out-of-band channel spec.md §7 requires for
// recoverable errors, shared by the Meta/SysEx state machine here and the
// embedded stream decoder.
func WithDiagnostic(fn func(error)) Option {
	return func(d *Decoder) {
		d.diagnostic = fn
		d.base = decoder.New(decoder.WithRegistry(d.base.Registry()), decoder.WithDiagnostic(fn))
	}
}

// WithLiveSysEx switches SysEx framing to the live-wire bracketed form,
// for Decoders fed bytes captured off a wire rather than read from an
// actual SMF track chunk (spec.md §4.E).
func WithLiveSysEx() Option {
	return func(d *Decoder) { d.sysexForm = SysExLiveBracketed }
}

// New returns a ready-to-use Decoder defaulting to SMF-style
// length-prefixed SysEx.
func New(opts ...Option) *Decoder {
	d := &Decoder{base: decoder.New(), sysexForm: SysExLengthPrefixed, log: logging.For("smf")}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry exposes the embedded stream decoder's table for extension.
func (d *Decoder) Registry() *midi.Registry { return d.base.Registry() }

// Reset clears both the embedded stream decoder and the Meta/SysEx
// sub-states.
func (d *Decoder) Reset() {
	d.base.Reset()
	d.meta.reset()
	d.sysexArmed = false
	d.sysexLenKnown = false
	d.sysexLen = 0
	d.sysexBody = nil
	d.sysexVL.Reset()
}

func (d *Decoder) emitDiagnostic(err error) {
	if d.diagnostic != nil {
		d.diagnostic(err)
	}
	if d.log != nil {
		d.log.Debug("recoverable decode error", "error", err)
	}
}

// SeqDecode feeds one byte, returning a completed event once available.
// Meta grammar and (in SysExLengthPrefixed mode) SysEx framing are
// intercepted here; everything else falls through to the embedded
// stream decoder.
func (d *Decoder) SeqDecode(b byte) (*midi.Event, error) {
	if d.meta.active {
		return d.feedMeta(b)
	}

	if d.sysexForm == SysExLengthPrefixed {
		if d.sysexArmed {
			return d.continueSysEx(b)
		}
		if b == midi.StatusSystemExclusive {
			d.sysexArmed = true
			return nil, nil
		}
	}

	if b == midi.StatusSystemReset {
		// Inside an SMF track 0xFF is always the Meta introducer, never
		// a live SystemReset (spec.md §4.E).
		d.meta.active = true
		return nil, nil
	}

	return d.base.SeqDecode(b)
}

func (d *Decoder) feedMeta(b byte) (*midi.Event, error) {
	if !d.meta.haveType {
		d.meta.typ = b
		d.meta.haveType = true
		return nil, nil
	}
	if !d.meta.haveLen {
		length, _, done, err := d.meta.vl.Feed(b)
		if err != nil {
			d.meta.reset()
			return nil, err
		}
		if !done {
			return nil, nil
		}
		d.meta.length = length
		d.meta.haveLen = true
		if length == 0 {
			return d.finishMeta(), nil
		}
		return nil, nil
	}

	d.meta.body = append(d.meta.body, b)
	if uint32(len(d.meta.body)) == d.meta.length {
		return d.finishMeta(), nil
	}
	return nil, nil
}

func (d *Decoder) finishMeta() *midi.Event {
	typ, body := d.meta.typ, d.meta.body
	d.meta.reset()

	spec, ok := d.base.Registry().Meta(typ)
	kind := midi.KindUnknownMeta
	if ok {
		kind = spec.Kind
	} else {
		d.emitDiagnostic(midi.NewError(midi.ErrUnknownStatus, nil, "unregistered meta type 0x%02X, reporting as UnknownMeta", typ))
	}

	ev := &midi.Event{Kind: kind, Track: -1, StatusMsg: midi.StatusSystemReset, MetaType: typ}
	hydrateMeta(ev, kind, body)
	return ev
}

// continueSysEx accumulates a length-prefixed SysEx frame: first its
// varlen length (which, per spec.md §6, includes the trailing 0xF7),
// then its body.
func (d *Decoder) continueSysEx(b byte) (*midi.Event, error) {
	if !d.sysexLenKnown {
		length, _, done, err := d.sysexVL.Feed(b)
		if err != nil {
			d.sysexArmed = false
			return nil, err
		}
		if !done {
			return nil, nil
		}
		d.sysexLen = length
		d.sysexLenKnown = true
		if length == 0 {
			return d.finishSysEx(), nil
		}
		return nil, nil
	}

	d.sysexBody = append(d.sysexBody, b)
	if uint32(len(d.sysexBody)) == d.sysexLen {
		return d.finishSysEx(), nil
	}
	return nil, nil
}

func (d *Decoder) finishSysEx() *midi.Event {
	// sysexLen counts the trailing 0xF7 (spec.md §6); the in-memory body
	// excludes it, matching the live-wire decoder's SysEx representation.
	body := d.sysexBody
	if len(body) > 0 {
		body = body[:len(body)-1]
	}
	d.sysexArmed = false
	d.sysexLenKnown = false
	d.sysexLen = 0
	d.sysexBody = nil
	d.sysexVL.Reset()
	return &midi.Event{
		Kind: midi.KindSystemExclusive, Track: -1,
		StatusMsg: midi.StatusSystemExclusive, RawStatus: midi.StatusSystemExclusive,
		Data: body,
	}
}

func hydrateMeta(ev *midi.Event, kind midi.Kind, body []byte) {
	switch kind {
	case midi.KindSequenceNumber:
		if len(body) >= 2 {
			ev.SequenceNumber = uint16(body[0])<<8 | uint16(body[1])
		}
	case midi.KindText, midi.KindCopyright, midi.KindTrackName, midi.KindInstrumentName,
		midi.KindLyric, midi.KindMarker, midi.KindCuePoint, midi.KindDevicePort:
		ev.Text = string(body)
	case midi.KindMIDIChannelPrefix:
		if len(body) >= 1 {
			ev.ChannelPrefix = body[0]
		}
	case midi.KindMIDIPort:
		if len(body) >= 1 {
			ev.Port = body[0]
		}
	case midi.KindSetTempo:
		if len(body) >= 3 {
			ev.MicrosecondsPerBeat = uint32(body[0])<<16 | uint32(body[1])<<8 | uint32(body[2])
		}
	case midi.KindSMPTEOffset:
		if len(body) >= 5 {
			ev.SMPTEHour, ev.SMPTEMinute, ev.SMPTESecond, ev.SMPTEFrame, ev.SMPTEFractFrame =
				body[0], body[1], body[2], body[3], body[4]
		}
	case midi.KindTimeSignature:
		if len(body) >= 4 {
			// The wire byte is a power-of-two exponent (2 means a
			// denominator of 4); Event.TimeSigDen is documented as the
			// decimal value, matching how most of the ecosystem surfaces
			// it.
			ev.TimeSigNum, ev.TimeSigDen, ev.TimeSigClocks, ev.TimeSig32nds =
				body[0], 1<<body[1], body[2], body[3]
		}
	case midi.KindKeySignature:
		if len(body) >= 2 {
			ev.KeySharpsFlats = int8(body[0])
			ev.KeyIsMinor = body[1] != 0
		}
	default:
		if len(body) > 0 {
			ev.Data = body
		}
	}
}
