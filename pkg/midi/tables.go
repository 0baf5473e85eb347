package midi

// The status-byte and meta-type lookup tables from spec.md §4.A. A
// constructor is not a closure here, the way the source's dict-of-
// classes is; Go already has the Event struct carry payload, so the
// "constructor" a table entry provides is really just (Kind, expected
// length). Decoders hydrate payload fields from raw bytes themselves
// once they know the Kind and how many data bytes to expect.
//
// Length is 0, a positive byte count, or -1 for a variable-length
// message (spec.md §4.A).

// ChannelSpec describes a channel-message family, keyed by the high
// nibble of the status byte (0x8-0xE).
type ChannelSpec struct {
	Kind   Kind
	Length int
}

// SystemSpec describes a system-common, real-time or SysEx message,
// keyed by the full status byte (0xF0-0xFF).
type SystemSpec struct {
	Kind     Kind
	Length   int  // -1 for SysEx (variable, bracketed by End)
	RealTime bool // true for 0xF8-0xFF real-time messages (spec.md §4.D rule 1)
	End      byte // terminator status byte for variable-length messages (SysEx: 0xF7)
}

// MetaSpec describes an SMF Meta event family, keyed by the meta type
// byte. Length is advisory (used for validation); the actual frame
// length always comes from the varlen length prefix on the wire
// (spec.md §4.E), since Meta bodies are always explicitly length-
// prefixed. -1 means "no fixed expectation, accept any length".
type MetaSpec struct {
	Kind   Kind
	Length int
}

func defaultChannelTable() map[byte]ChannelSpec {
	return map[byte]ChannelSpec{
		0x8: {KindNoteOff, 2},
		0x9: {KindNoteOn, 2},
		0xA: {KindPolyAftertouch, 2},
		0xB: {KindControlChange, 2},
		0xC: {KindProgramChange, 1},
		0xD: {KindChannelAftertouch, 1},
		0xE: {KindPitchBend, 2},
	}
}

func defaultSystemTable() map[byte]SystemSpec {
	return map[byte]SystemSpec{
		StatusSystemExclusive:  {KindSystemExclusive, -1, false, StatusEndOfSysEx},
		StatusSongPositionPtr:  {KindSongPositionPointer, 2, false, 0},
		StatusSongSelect:       {KindSongSelect, 1, false, 0},
		StatusTuneRequest:      {KindTuneRequest, 0, false, 0},
		StatusEndOfSysEx:       {KindEndOfSysEx, 0, false, 0},
		StatusTimingClock:      {KindTimingClock, 0, true, 0},
		StatusStartSequence:    {KindStartSequence, 0, true, 0},
		StatusContinueSequence: {KindContinueSequence, 0, true, 0},
		StatusStopSequence:     {KindStopSequence, 0, true, 0},
		StatusActiveSensing:    {KindActiveSensing, 0, true, 0},
		StatusSystemReset:      {KindSystemReset, 0, true, 0},
	}
}

func defaultMetaTable() map[byte]MetaSpec {
	return map[byte]MetaSpec{
		0x00: {KindSequenceNumber, -1}, // 0 or 2 bytes, validated by the parser
		0x01: {KindText, -1},
		0x02: {KindCopyright, -1},
		0x03: {KindTrackName, -1},
		0x04: {KindInstrumentName, -1},
		0x05: {KindLyric, -1},
		0x06: {KindMarker, -1},
		0x07: {KindCuePoint, -1},
		0x09: {KindDevicePort, -1},
		0x20: {KindMIDIChannelPrefix, 1},
		0x21: {KindMIDIPort, 1},
		0x2F: {KindEndOfTrack, 0},
		0x51: {KindSetTempo, 3},
		0x54: {KindSMPTEOffset, 5},
		0x58: {KindTimeSignature, 4},
		0x59: {KindKeySignature, 2},
		0x7F: {KindSequencerSpecific, -1},
	}
}

// Registry holds the channel/system/meta lookup tables used to classify
// status and meta-type bytes. It is seeded with the spec.md §4.A
// defaults and may be extended with application-specific status or meta
// bytes without subclassing anything (spec.md §9: "registry API rather
// than subclassing"). A Registry is an ordinary value owned by exactly
// one Decoder/Encoder; there is no shared process-wide registry
// (spec.md §9, §5 "Shared-resource policy").
type Registry struct {
	channel map[byte]ChannelSpec
	system  map[byte]SystemSpec
	meta    map[byte]MetaSpec
}

// NewRegistry returns a Registry seeded with the default MIDI 1.0 and
// SMF Meta tables.
func NewRegistry() *Registry {
	return &Registry{
		channel: defaultChannelTable(),
		system:  defaultSystemTable(),
		meta:    defaultMetaTable(),
	}
}

// RegisterChannel installs or overrides the spec for a channel-message
// high nibble (0x8-0xE).
func (r *Registry) RegisterChannel(nibble byte, spec ChannelSpec) {
	r.channel[nibble&0xF] = spec
}

// RegisterSystem installs or overrides the spec for a system-common,
// real-time or SysEx status byte (0xF0-0xFF).
func (r *Registry) RegisterSystem(status byte, spec SystemSpec) {
	r.system[status] = spec
}

// RegisterMeta installs or overrides the spec for a Meta type byte.
func (r *Registry) RegisterMeta(typ byte, spec MetaSpec) {
	r.meta[typ] = spec
}

// Channel looks up a channel-message spec by status byte, deriving the
// channel and nibble automatically.
func (r *Registry) Channel(status byte) (spec ChannelSpec, channel uint8, ok bool) {
	if status < 0x80 || status >= 0xF0 {
		return ChannelSpec{}, 0, false
	}
	spec, ok = r.channel[status>>4]
	return spec, status & 0x0F, ok
}

// System looks up a system-common/real-time/SysEx spec by status byte.
func (r *Registry) System(status byte) (SystemSpec, bool) {
	spec, ok := r.system[status]
	return spec, ok
}

// Meta looks up a Meta spec by meta type byte.
func (r *Registry) Meta(typ byte) (MetaSpec, bool) {
	spec, ok := r.meta[typ]
	return spec, ok
}

// IsRealTime reports whether b is a System Real-Time status byte
// (spec.md §4.D rule 1, §6: 0xF8-0xFF except 0xFD which is unassigned).
func IsRealTime(b byte) bool {
	return b >= 0xF8 && b != 0xFD
}

// IsStatusByte reports whether b is any status byte (0x80-0xFF) as
// opposed to a data byte (0x00-0x7F).
func IsStatusByte(b byte) bool {
	return b&0x80 != 0
}
