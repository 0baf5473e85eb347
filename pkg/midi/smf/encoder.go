package smf

import (
	"bytes"
	"encoding/binary"
	"math/bits"

	"github.com/owencochell/go-yapmidi/pkg/midi"
	"github.com/owencochell/go-yapmidi/pkg/midi/decoder"
	"github.com/owencochell/go-yapmidi/pkg/midi/varlen"
)

// Encoder serializes Events into SMF track bytes: live-wire events via
// the embedded decoder.Encoder, plus Meta events and length-prefixed
// SysEx, each preceded by a varlen delta (spec.md §4.F).
type Encoder struct {
	live *decoder.Encoder
}

// NewEncoder returns a ready-to-use Encoder. Running-status elision on
// the embedded live-wire encoder is opt-in, matching decoder.Encoder's
// own default.
func NewEncoder(opts ...decoder.EncOption) *Encoder {
	return &Encoder{live: decoder.NewEncoder(opts...)}
}

// EncodeEvent writes one event's SMF track-body record: varlen(delta)
// followed by the event bytes. Meta and SysEx events get their
// SMF-specific framing; everything else goes through the live-wire
// encoder unchanged.
func (e *Encoder) EncodeEvent(ev *midi.Event) ([]byte, error) {
	var body []byte
	var err error

	switch {
	case ev.Kind.IsMeta():
		body = encodeMeta(ev)
	case ev.Kind == midi.KindSystemExclusive:
		body = encodeSysEx(ev)
	default:
		body, err = e.live.Encode(ev)
		if err != nil {
			return nil, err
		}
	}

	out := varlen.Encode(ev.Delta)
	out = append(out, body...)
	return out, nil
}

func encodeMeta(ev *midi.Event) []byte {
	body := metaBody(ev)
	out := []byte{midi.StatusSystemReset, metaTypeByte(ev)}
	out = append(out, varlen.Encode(uint32(len(body)))...)
	out = append(out, body...)
	return out
}

// metaTypeByte derives the wire meta-type byte from an event's Kind, the
// same mapping defaultMetaTable uses, so callers that build Meta events
// by Kind (the common case for Track output) don't also have to set
// MetaType by hand. Only KindUnknownMeta relies on MetaType having been
// preserved from decode, since its type byte carries no fixed Kind.
func metaTypeByte(ev *midi.Event) byte {
	switch ev.Kind {
	case midi.KindSequenceNumber:
		return 0x00
	case midi.KindText:
		return 0x01
	case midi.KindCopyright:
		return 0x02
	case midi.KindTrackName:
		return 0x03
	case midi.KindInstrumentName:
		return 0x04
	case midi.KindLyric:
		return 0x05
	case midi.KindMarker:
		return 0x06
	case midi.KindCuePoint:
		return 0x07
	case midi.KindDevicePort:
		return 0x09
	case midi.KindMIDIChannelPrefix:
		return 0x20
	case midi.KindMIDIPort:
		return 0x21
	case midi.KindEndOfTrack:
		return 0x2F
	case midi.KindSetTempo:
		return 0x51
	case midi.KindSMPTEOffset:
		return 0x54
	case midi.KindTimeSignature:
		return 0x58
	case midi.KindKeySignature:
		return 0x59
	case midi.KindSequencerSpecific:
		return 0x7F
	default:
		return ev.MetaType
	}
}

func metaBody(ev *midi.Event) []byte {
	switch ev.Kind {
	case midi.KindSequenceNumber:
		return []byte{byte(ev.SequenceNumber >> 8), byte(ev.SequenceNumber)}
	case midi.KindText, midi.KindCopyright, midi.KindTrackName, midi.KindInstrumentName,
		midi.KindLyric, midi.KindMarker, midi.KindCuePoint, midi.KindDevicePort:
		return []byte(ev.Text)
	case midi.KindMIDIChannelPrefix:
		return []byte{ev.ChannelPrefix}
	case midi.KindMIDIPort:
		return []byte{ev.Port}
	case midi.KindEndOfTrack:
		return nil
	case midi.KindSetTempo:
		return []byte{byte(ev.MicrosecondsPerBeat >> 16), byte(ev.MicrosecondsPerBeat >> 8), byte(ev.MicrosecondsPerBeat)}
	case midi.KindSMPTEOffset:
		return []byte{ev.SMPTEHour, ev.SMPTEMinute, ev.SMPTESecond, ev.SMPTEFrame, ev.SMPTEFractFrame}
	case midi.KindTimeSignature:
		den := ev.TimeSigDen
		if den == 0 {
			den = 4
		}
		return []byte{ev.TimeSigNum, byte(bits.TrailingZeros8(den)), ev.TimeSigClocks, ev.TimeSig32nds}
	case midi.KindKeySignature:
		minor := byte(0)
		if ev.KeyIsMinor {
			minor = 1
		}
		return []byte{byte(ev.KeySharpsFlats), minor}
	default:
		return ev.Data
	}
}

// encodeSysEx frames a SysEx body the SMF way: 0xF0 varlen(len(body)+1)
// body 0xF7, the length prefix counting the trailing EOX (spec.md §6).
func encodeSysEx(ev *midi.Event) []byte {
	out := []byte{midi.StatusSystemExclusive}
	out = append(out, varlen.Encode(uint32(len(ev.Data)+1))...)
	out = append(out, ev.Data...)
	out = append(out, midi.StatusEndOfSysEx)
	return out
}

// EncodeTrack serializes a full MTrk chunk (header, computed length,
// body) from an already-ordered slice of events. Callers are expected to
// have set Delta on every event (the Track container does this during
// ingestion); EncodeTrack does not append a trailing EndOfTrack if one
// is not already present, since only the caller knows whether the track
// is actually complete.
func EncodeTrack(events []*midi.Event, opts ...decoder.EncOption) ([]byte, error) {
	enc := NewEncoder(opts...)
	var body bytes.Buffer
	for _, ev := range events {
		rec, err := enc.EncodeEvent(ev)
		if err != nil {
			return nil, err
		}
		body.Write(rec)
	}

	out := make([]byte, 0, 8+body.Len())
	out = append(out, 'M', 'T', 'r', 'k')
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(body.Len()))
	out = append(out, lenBuf[:]...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// EncodeFile serializes a complete SMF file: the MThd header followed
// by one MTrk chunk per element of tracks, in order (spec.md §4.F).
func EncodeFile(format uint16, divisions uint16, tracks [][]*midi.Event, opts ...decoder.EncOption) ([]byte, error) {
	var out bytes.Buffer
	out.WriteString("MThd")
	var header [10]byte
	binary.BigEndian.PutUint32(header[0:4], 6)
	binary.BigEndian.PutUint16(header[4:6], format)
	binary.BigEndian.PutUint16(header[6:8], uint16(len(tracks)))
	binary.BigEndian.PutUint16(header[8:10], divisions)
	out.Write(header[:])

	for _, events := range tracks {
		chunk, err := EncodeTrack(events, opts...)
		if err != nil {
			return nil, err
		}
		out.Write(chunk)
	}
	return out.Bytes(), nil
}
