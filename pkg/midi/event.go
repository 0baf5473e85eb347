package midi

// Status bytes for the fixed-length channel, system-common and
// real-time message families (spec.md §4.A / §6). Channel statuses are
// listed with channel bits zeroed; the wire byte is StatusMsg|Channel.
const (
	StatusNoteOff           byte = 0x80
	StatusNoteOn            byte = 0x90
	StatusPolyAftertouch    byte = 0xA0
	StatusControlChange     byte = 0xB0
	StatusProgramChange     byte = 0xC0
	StatusChannelAftertouch byte = 0xD0
	StatusPitchBend         byte = 0xE0

	StatusSystemExclusive    byte = 0xF0
	StatusSongPositionPtr    byte = 0xF2
	StatusSongSelect         byte = 0xF3
	StatusTuneRequest        byte = 0xF6
	StatusEndOfSysEx         byte = 0xF7
	StatusTimingClock        byte = 0xF8
	StatusStartSequence      byte = 0xFA
	StatusContinueSequence   byte = 0xFB
	StatusStopSequence       byte = 0xFC
	StatusActiveSensing      byte = 0xFE
	StatusSystemReset        byte = 0xFF // also the Meta introducer (0xFF) inside an SMF track
)

// Event is the uniform representation for every MIDI occurrence this
// toolkit produces or consumes: voice messages, system common/real-time
// messages, System Exclusive, SMF Meta events and the builtin
// StartPattern/StartTrack/StopPattern sentinels. Only the fields
// relevant to Kind are meaningful; the rest are left at their zero
// value. Time fields (Tick, Delta, DeltaTime, Time) are set by a
// Track's ingestion dispatch chain (spec.md §4.G), never by the decoder
// itself.
type Event struct {
	Kind Kind

	// Timing, stamped during ingestion (spec.md §3 invariants).
	Tick      uint64 // absolute tick within the owning track
	Delta     uint32 // ticks since the previous event in the same track
	DeltaTime uint64 // microseconds equivalent of Delta at ingestion tempo
	Time      uint64 // absolute microseconds since the start of the track

	// Track assigns its own index to events it owns; -1 means unsorted
	// (not yet assigned to a track), matching spec.md §3.
	Track int

	// StatusMsg is the canonical status byte with channel bits zeroed for
	// channel events, or the full status byte otherwise. RawStatus
	// preserves whatever status byte was actually seen on the wire for
	// UnknownEvent.
	StatusMsg byte
	RawStatus byte
	Channel   uint8 // 0..15, valid when Kind.IsChannel()
	MetaType  byte  // valid when Kind.IsMeta()

	// Voice payload.
	Pitch      byte  // NoteOn/NoteOff/PolyAftertouch
	Velocity   byte  // NoteOn/NoteOff
	Pressure   byte  // PolyAftertouch/ChannelAftertouch
	Controller byte  // ControlChange
	Value      byte  // ControlChange
	Program    byte  // ProgramChange
	Bend       int16 // PitchBend, centered: -8192..8191

	// System common payload.
	Position uint16 // SongPositionPointer, in MIDI beats
	Song     byte   // SongSelect

	// Open-ended payload: SysEx body (without the trailing 0xF7), Meta
	// body, or the raw data of an Unknown* event.
	Data []byte

	// Typed Meta payloads.
	MicrosecondsPerBeat uint32 // SetTempo
	TimeSigNum          byte   // TimeSignature
	TimeSigDen          byte   // TimeSignature, decimal (4, 8, 16, ...)
	TimeSigClocks       byte   // TimeSignature, MIDI clocks per metronome click
	TimeSig32nds        byte   // TimeSignature, 32nd notes per quarter note
	KeySharpsFlats      int8   // KeySignature, + sharps / - flats
	KeyIsMinor          bool   // KeySignature
	SequenceNumber      uint16 // SequenceNumber
	ChannelPrefix       byte   // MIDIChannelPrefix
	Port                byte   // MIDIPort
	Text                string // Text/Copyright/TrackName/InstrumentName/Lyric/Marker/CuePoint/DevicePort
	SMPTEHour           byte
	SMPTEMinute         byte
	SMPTESecond         byte
	SMPTEFrame          byte
	SMPTEFractFrame     byte

	// Builtin StartPattern payload.
	Length    int
	Format    uint8
	NumTracks uint16
	Divisions uint16

	// Builtin StartTrack payload.
	ChunkType string
}

// WireStatus returns the byte that should be written to the wire for
// this event: StatusMsg|Channel for channel events, StatusMsg otherwise.
// It panics if called on a builtin event, which has no wire
// representation.
func (e *Event) WireStatus() byte {
	if e.Kind.IsBuiltin() {
		panic("midi: builtin events have no wire status byte")
	}
	if e.Kind.IsChannel() {
		return e.StatusMsg | (e.Channel & 0x0F)
	}
	return e.StatusMsg
}

// Clone returns a deep-enough copy of e: the Data slice is copied so
// mutating the clone's payload never aliases the original's.
func (e *Event) Clone() *Event {
	c := *e
	if e.Data != nil {
		c.Data = append([]byte(nil), e.Data...)
	}
	return &c
}
