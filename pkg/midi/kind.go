// Package midi defines the typed MIDI event model shared by the stream
// decoder, the SMF decoder, the track/pattern containers and the
// playback scheduler: the Event type, the status-byte and meta-type
// lookup tables, and the integer time conversions the rest of the
// toolkit relies on.
package midi

// Kind identifies which variant of the MIDI event taxonomy an Event
// carries. It plays the role of a tagged union discriminant: the wire
// format has no single byte that maps 1:1 to Kind (channel events share
// a status nibble across sixteen channels, Meta events share 0xFF across
// 128 types), so Kind is assigned by the decoder after classification.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Voice (channel) events.
	KindNoteOff
	KindNoteOn
	KindPolyAftertouch
	KindControlChange
	KindProgramChange
	KindChannelAftertouch
	KindPitchBend

	// System common.
	KindSongPositionPointer
	KindSongSelect
	KindTuneRequest
	KindEndOfSysEx

	// System real-time.
	KindTimingClock
	KindStartSequence
	KindContinueSequence
	KindStopSequence
	KindActiveSensing
	KindSystemReset

	// Open-ended.
	KindSystemExclusive
	KindMeta

	// Meta sub-kinds recognized by the SMF layer. MetaType still carries
	// the raw byte; these give the common ones a typed payload instead of
	// forcing every caller to re-parse Data.
	KindSequenceNumber
	KindText
	KindCopyright
	KindTrackName
	KindInstrumentName
	KindLyric
	KindMarker
	KindCuePoint
	KindDevicePort
	KindMIDIChannelPrefix
	KindMIDIPort
	KindEndOfTrack
	KindSetTempo
	KindSMPTEOffset
	KindTimeSignature
	KindKeySignature
	KindSequencerSpecific

	// Builtin, non-wire sentinels emitted by the SMF layer to bracket
	// pattern/track boundaries.
	KindStartPattern
	KindStartTrack
	KindStopPattern

	// Fallbacks for anything not in the tables. The raw bytes are
	// preserved on Event rather than discarded.
	KindUnknownEvent
	KindUnknownMeta
)

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(?)"
}

var kindNames = map[Kind]string{
	KindInvalid:             "Invalid",
	KindNoteOff:             "NoteOff",
	KindNoteOn:              "NoteOn",
	KindPolyAftertouch:      "PolyAftertouch",
	KindControlChange:       "ControlChange",
	KindProgramChange:       "ProgramChange",
	KindChannelAftertouch:   "ChannelAftertouch",
	KindPitchBend:           "PitchBend",
	KindSongPositionPointer: "SongPositionPointer",
	KindSongSelect:          "SongSelect",
	KindTuneRequest:         "TuneRequest",
	KindEndOfSysEx:          "EndOfSysEx",
	KindTimingClock:         "TimingClock",
	KindStartSequence:       "StartSequence",
	KindContinueSequence:    "ContinueSequence",
	KindStopSequence:        "StopSequence",
	KindActiveSensing:       "ActiveSensing",
	KindSystemReset:         "SystemReset",
	KindSystemExclusive:     "SystemExclusive",
	KindMeta:                "Meta",
	KindSequenceNumber:      "SequenceNumber",
	KindText:                "Text",
	KindCopyright:           "Copyright",
	KindTrackName:           "TrackName",
	KindInstrumentName:      "InstrumentName",
	KindLyric:               "Lyric",
	KindMarker:              "Marker",
	KindCuePoint:            "CuePoint",
	KindDevicePort:          "DevicePort",
	KindMIDIChannelPrefix:   "MIDIChannelPrefix",
	KindMIDIPort:            "MIDIPort",
	KindEndOfTrack:          "EndOfTrack",
	KindSetTempo:            "SetTempo",
	KindSMPTEOffset:         "SMPTEOffset",
	KindTimeSignature:       "TimeSignature",
	KindKeySignature:        "KeySignature",
	KindSequencerSpecific:   "SequencerSpecific",
	KindStartPattern:        "StartPattern",
	KindStartTrack:          "StartTrack",
	KindStopPattern:         "StopPattern",
	KindUnknownEvent:        "UnknownEvent",
	KindUnknownMeta:         "UnknownMeta",
}

// IsChannel reports whether events of this kind carry a Channel field and
// are transmitted with the channel encoded in the low nibble of the
// status byte.
func (k Kind) IsChannel() bool {
	switch k {
	case KindNoteOff, KindNoteOn, KindPolyAftertouch, KindControlChange,
		KindProgramChange, KindChannelAftertouch, KindPitchBend:
		return true
	default:
		return false
	}
}

// IsMeta reports whether events of this kind are SMF Meta events (0xFF
// type length data), including recognized sub-kinds and UnknownMeta.
func (k Kind) IsMeta() bool {
	switch k {
	case KindSequenceNumber, KindText, KindCopyright, KindTrackName,
		KindInstrumentName, KindLyric, KindMarker, KindCuePoint,
		KindDevicePort, KindMIDIChannelPrefix, KindMIDIPort, KindEndOfTrack,
		KindSetTempo, KindSMPTEOffset, KindTimeSignature, KindKeySignature,
		KindSequencerSpecific, KindUnknownMeta:
		return true
	default:
		return false
	}
}

// IsBuiltin reports whether events of this kind are internal sentinels
// emitted by the SMF layer rather than wire-format events.
func (k Kind) IsBuiltin() bool {
	switch k {
	case KindStartPattern, KindStartTrack, KindStopPattern:
		return true
	default:
		return false
	}
}
