// Package track implements the Track container from spec.md §4.G: an
// ordered sequence of events with ingestion (`in_hands`) and emission
// (`out_hands`) dispatch chains that stamp timing fields and maintain
// tempo/time-signature state as events flow through.
package track

import (
	"context"
	"io"
	"time"

	"github.com/owencochell/go-yapmidi/pkg/midi"
	"github.com/owencochell/go-yapmidi/pkg/midi/clock"
)

// ControlFlow is a handler's verdict on whether the dispatch chain
// should keep running for the event being processed (spec.md §9:
// "returns ControlFlow::Stop or Continue").
type ControlFlow int

const (
	Continue ControlFlow = iota
	Stop
)

// Key identifies a slot in a Track's dispatch maps: either a Meta type
// byte, a canonical (channel-bits-zeroed) status byte, or GlobalKey
// (spec.md §4.G: "either an event's status byte, a Meta type byte, or
// the sentinel GLOBAL").
type Key int32

// GlobalKey's handlers run for every event, in addition to whatever
// key-specific handlers are registered (spec.md §4.G).
const GlobalKey Key = -1

// KeyOf computes the dispatch key for ev: its Meta type if it is a Meta
// event, otherwise its canonical status byte. A Meta event built by Kind
// alone (MetaType left at zero) is keyed by the type byte its Kind
// stands for.
func KeyOf(ev *midi.Event) Key {
	if ev.Kind.IsMeta() {
		if ev.MetaType == 0 && ev.Kind >= midi.KindSequenceNumber && ev.Kind <= midi.KindSequencerSpecific {
			// Type bytes in the order the Meta Kind constants are declared.
			types := [...]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x09, 0x20, 0x21, 0x2F, 0x51, 0x54, 0x58, 0x59, 0x7F}
			return Key(types[ev.Kind-midi.KindSequenceNumber])
		}
		return Key(ev.MetaType)
	}
	return Key(ev.StatusMsg)
}

// Handler mutates or observes ev as it is ingested into or emitted from
// a Track. index is the event's position in the track at the time of
// the call. A non-nil error aborts the chain (as if it had returned
// Stop) and is surfaced to the caller as an ErrDispatchError (spec.md
// §7: "an input handler raised; the event is dropped from the track and
// the error surfaced").
type Handler func(t *Track, ev *midi.Event, index int) (ControlFlow, error)

// ScheduleConfig configures Track.TimeGet (spec.md §4.I). Lookahead must
// be >= Interval so that no event is released later than Interval after
// its deadline.
type ScheduleConfig struct {
	Lookahead time.Duration
	Interval  time.Duration
}

// DefaultSchedule matches spec.md §4.I's defaults.
var DefaultSchedule = ScheduleConfig{Lookahead: 75 * time.Millisecond, Interval: 50 * time.Millisecond}

// Track is the ordered event sequence from spec.md §3/§4.G.
type Track struct {
	Index int

	Name       string
	Instrument string

	Tempo uint32 // BPM, derived from MPB
	MPB   uint32 // microseconds per beat

	TimeSigNum byte
	TimeSigDen byte

	Divisions uint16

	InIndex  int
	OutIndex int

	StartTime uint64
	LastTime  uint64

	events []*midi.Event

	inHands  map[Key][]Handler
	outHands map[Key][]Handler

	clock    clock.Clock
	schedule ScheduleConfig
}

// Option configures a Track at construction.
type Option func(*Track)

// WithDivisions overrides the default ticks-per-quarter-note.
func WithDivisions(d uint16) Option { return func(t *Track) { t.Divisions = d } }

// WithClock overrides the monotonic clock backing TimeGet, letting tests
// substitute a fake one.
func WithClock(c clock.Clock) Option { return func(t *Track) { t.clock = c } }

// WithSchedule overrides the lookahead/interval scheduling parameters.
func WithSchedule(s ScheduleConfig) Option { return func(t *Track) { t.schedule = s } }

// New returns a Track seeded with the default ingestion/emission
// handlers (spec.md §4.G) and 120 BPM / 4:4 / 96 PPQN defaults.
func New(opts ...Option) *Track {
	t := &Track{
		Tempo:      120,
		MPB:        midi.BPMToMPB(120, 4),
		TimeSigNum: 4,
		TimeSigDen: 4,
		Divisions:  96,
		clock:      clock.Default,
		schedule:   DefaultSchedule,
		inHands:    map[Key][]Handler{},
		outHands:   map[Key][]Handler{},
	}
	installDefaultHandlers(t)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RegisterInHandler appends h to key's ingestion dispatch chain without
// disturbing handlers already registered for it (spec.md §9: "registry
// API rather than subclassing").
func (t *Track) RegisterInHandler(key Key, h Handler) {
	t.inHands[key] = append(t.inHands[key], h)
}

// RegisterOutHandler appends h to key's emission dispatch chain.
func (t *Track) RegisterOutHandler(key Key, h Handler) {
	t.outHands[key] = append(t.outHands[key], h)
}

// Len returns the number of events currently stored.
func (t *Track) Len() int { return len(t.events) }

// At returns the event stored at index without running any dispatch
// chain.
func (t *Track) At(index int) *midi.Event { return t.events[index] }

// Append inserts ev at the end of the track, running the full ingestion
// chain.
func (t *Track) Append(ev *midi.Event) error {
	return t.Insert(len(t.events), ev)
}

// Insert runs the ingestion dispatch chain for ev as though it arrived
// at position index. A mid-track insertion (index != len(events)) for an
// event not already present triggers the `rehandle` default handler,
// which recomputes every event's timing fields from scratch (spec.md
// §4.G rule 1, §9 "insertion-triggered rehandle is O(N^2)").
func (t *Track) Insert(index int, ev *midi.Event) error {
	return t.runInHands(ev, index)
}

// Set replaces the event at index in place, then recomputes every
// event's timing fields (spec.md lists `set(i, e)` without further
// detail; recomputing here is the conservative choice since the
// replaced event may change delta/tempo-dependent fields for everything
// after it).
func (t *Track) Set(index int, ev *midi.Event) error {
	t.events[index] = ev
	return t.RehandleAll()
}

// SubmitEvent is the generic ingestion entry point a Pattern's
// sort_events handler forwards to (spec.md §4.H): append if no index is
// given, otherwise insert at that position.
func (t *Track) SubmitEvent(ev *midi.Event, index ...int) error {
	if len(index) > 0 {
		return t.Insert(index[0], ev)
	}
	return t.Append(ev)
}

// Current returns the next event Get would emit, or nil if playback has
// reached the end of the track.
func (t *Track) Current() *midi.Event {
	if t.OutIndex < 0 || t.OutIndex >= len(t.events) {
		return nil
	}
	return t.events[t.OutIndex]
}

// Get runs the emission dispatch chain over the current output event and
// advances OutIndex. It returns io.EOF once the track is exhausted.
func (t *Track) Get() (*midi.Event, error) {
	ev := t.Current()
	if ev == nil {
		return nil, io.EOF
	}
	if err := t.runOutHands(ev, t.OutIndex); err != nil {
		return nil, err
	}
	t.OutIndex++
	return ev, nil
}

// StartPlayback resets the output cursor to index and the scheduling
// clock references to startTime (or the current time if nil), per
// spec.md §4.I.
func (t *Track) StartPlayback(index int, startTime *uint64) {
	t.OutIndex = index
	now := startTime
	if now == nil {
		n := t.clock.NowMicros()
		now = &n
	}
	t.StartTime = *now
	t.LastTime = *now
}

// TimeGet implements the cooperative scheduler from spec.md §4.I: it
// blocks (honoring ctx cancellation) until the current output event's
// deadline is within Lookahead of now, then emits it. A cancelled call
// returns ctx.Err() without advancing OutIndex or LastTime (spec.md §5
// Cancellation).
func (t *Track) TimeGet(ctx context.Context) (*midi.Event, error) {
	ev := t.Current()
	if ev == nil {
		return nil, io.EOF
	}

	deadline := t.LastTime + midi.DeltaToMicros(ev.Delta, t.Divisions, t.MPB)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := t.clock.NowMicros()
		if deadline <= now+uint64(t.schedule.Lookahead.Microseconds()) {
			break
		}
		if err := t.clock.Sleep(ctx, t.schedule.Interval); err != nil {
			return nil, err
		}
	}

	t.LastTime = t.clock.NowMicros()
	return t.Get()
}

// RehandleAll recomputes tick/delta_time/time for every stored event by
// emptying the track and replaying every event, in order, through the
// full ingestion chain: append_event re-appends each one, and the
// rehandle step passes through because each replayed event lands at the
// end. It is also what the default `rehandle` handler invokes for a
// mid-track insertion.
func (t *Track) RehandleAll() error {
	events := t.events
	t.events = make([]*midi.Event, 0, len(events))
	t.InIndex = 0
	for _, ev := range events {
		if err := t.runInHands(ev, len(t.events)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Track) runInHands(ev *midi.Event, index int) error {
	for _, h := range t.handlersFor(t.inHands, ev) {
		flow, err := h(t, ev, index)
		if err != nil {
			return midi.NewError(midi.ErrDispatchError, err, "input handler rejected event %s", ev.Kind)
		}
		if flow == Stop {
			break
		}
	}
	return nil
}

func (t *Track) runOutHands(ev *midi.Event, index int) error {
	for _, h := range t.handlersFor(t.outHands, ev) {
		flow, err := h(t, ev, index)
		if err != nil {
			return midi.NewError(midi.ErrDispatchError, err, "output handler rejected event %s", ev.Kind)
		}
		if flow == Stop {
			break
		}
	}
	return nil
}

// handlersFor concatenates the key-specific chain with the GLOBAL chain,
// key-specific handlers first, each in registration order. The result is
// not deduplicated: a handler registered under both an event's key and
// GlobalKey runs twice.
func (t *Track) handlersFor(hands map[Key][]Handler, ev *midi.Event) []Handler {
	key := KeyOf(ev)
	specific := hands[key]
	global := hands[GlobalKey]
	if key == GlobalKey || len(global) == 0 {
		return specific
	}
	out := make([]Handler, 0, len(specific)+len(global))
	out = append(out, specific...)
	out = append(out, global...)
	return out
}

func installDefaultHandlers(t *Track) {
	t.RegisterInHandler(GlobalKey, rehandleHandler)
	t.RegisterInHandler(GlobalKey, eventTickHandler)
	t.RegisterInHandler(GlobalKey, eventDeltaTimeHandler)
	t.RegisterInHandler(GlobalKey, eventTimeHandler)
	t.RegisterInHandler(GlobalKey, appendEventHandler)

	t.RegisterInHandler(Key(0x03), trackNameHandler)       // TrackName meta
	t.RegisterInHandler(Key(0x04), instrumentNameHandler)  // InstrumentName meta
	t.RegisterInHandler(Key(0x58), timeSignatureHandler)   // TimeSignature meta

	t.RegisterOutHandler(Key(0x51), setTempoHandler) // SetTempo meta
}

// rehandleHandler is step 1 of the default ingestion chain (spec.md
// §4.G). It only fires for a genuine mid-track insertion; a normal
// append (index == len(events)) or a re-submission of an event already
// present (the RehandleAll replay path) falls through to the rest of
// the chain unchanged.
func rehandleHandler(t *Track, ev *midi.Event, index int) (ControlFlow, error) {
	if index == len(t.events) || t.contains(ev) {
		return Continue, nil
	}
	if err := t.insertAt(index, ev); err != nil {
		return Stop, err
	}
	return Stop, nil
}

func (t *Track) contains(ev *midi.Event) bool {
	for _, e := range t.events {
		if e == ev {
			return true
		}
	}
	return false
}

// insertAt splices ev into the stored slice at index, then recomputes
// every event's timing fields (spec.md §9: "insertion-triggered rehandle
// is O(N^2) in the worst case").
func (t *Track) insertAt(index int, ev *midi.Event) error {
	events := make([]*midi.Event, 0, len(t.events)+1)
	events = append(events, t.events[:index]...)
	events = append(events, ev)
	events = append(events, t.events[index:]...)
	t.events = events
	return t.RehandleAll()
}

func prevEvent(t *Track, index int) *midi.Event {
	if index <= 0 || index > len(t.events) {
		return nil
	}
	return t.events[index-1]
}

func eventTickHandler(t *Track, ev *midi.Event, index int) (ControlFlow, error) {
	if prev := prevEvent(t, index); prev != nil {
		ev.Tick = prev.Tick + uint64(ev.Delta)
	} else {
		ev.Tick = uint64(ev.Delta)
	}
	return Continue, nil
}

func eventDeltaTimeHandler(t *Track, ev *midi.Event, index int) (ControlFlow, error) {
	ev.DeltaTime = midi.DeltaToMicros(ev.Delta, t.Divisions, t.MPB)
	return Continue, nil
}

func eventTimeHandler(t *Track, ev *midi.Event, index int) (ControlFlow, error) {
	if prev := prevEvent(t, index); prev != nil {
		ev.Time = prev.Time + ev.DeltaTime
	} else {
		ev.Time = ev.DeltaTime
	}
	return Continue, nil
}

// appendEventHandler always runs with index == len(t.events): a direct
// Append, or one step of RehandleAll's sequential replay after
// insertAt has spliced a mid-track insertion into place. Mid-insertion
// never reaches here mid-splice; rehandleHandler stops the chain for
// the original call and lets the replay re-append everything in order.
func appendEventHandler(t *Track, ev *midi.Event, index int) (ControlFlow, error) {
	t.events = append(t.events, ev)
	ev.Track = t.Index
	return Continue, nil
}

func trackNameHandler(t *Track, ev *midi.Event, index int) (ControlFlow, error) {
	t.Name = ev.Text
	return Continue, nil
}

func instrumentNameHandler(t *Track, ev *midi.Event, index int) (ControlFlow, error) {
	t.Instrument = ev.Text
	return Continue, nil
}

func timeSignatureHandler(t *Track, ev *midi.Event, index int) (ControlFlow, error) {
	t.TimeSigNum = ev.TimeSigNum
	t.TimeSigDen = ev.TimeSigDen
	return Continue, nil
}

// setTempoHandler is the only default output handler (spec.md §4.G): a
// tempo change observed during playback updates the clock used for
// events emitted afterward, but does not retroactively alter the
// already-stamped time fields of events that preceded it.
func setTempoHandler(t *Track, ev *midi.Event, index int) (ControlFlow, error) {
	t.MPB = ev.MicrosecondsPerBeat
	denom := uint32(t.TimeSigDen)
	t.Tempo = midi.MPBToBPM(t.MPB, denom)
	return Continue, nil
}
