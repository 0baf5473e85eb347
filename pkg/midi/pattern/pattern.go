// Package pattern implements the Pattern container from spec.md §4.H: a
// collection of Tracks plus pattern-level ingestion dispatch and the
// multi-track merge that drives real-time playback.
package pattern

import (
	"context"

	"github.com/owencochell/go-yapmidi/pkg/midi"
	"github.com/owencochell/go-yapmidi/pkg/midi/track"
)

// ControlFlow mirrors track.ControlFlow for pattern-level handlers.
type ControlFlow = track.ControlFlow

const (
	Continue = track.Continue
	Stop     = track.Stop
)

// Handler mutates or observes a Pattern as an event is ingested.
type Handler func(p *Pattern, ev *midi.Event, index int) ControlFlow

// Pattern is the ordered collection of Tracks from spec.md §3/§4.H.
type Pattern struct {
	Format    uint8
	Divisions uint16
	NumTracks uint16

	Tracks []*track.Track

	// trackIndex is the cursor new, untagged incoming events are
	// assigned to (advanced by sortEventsHandler once it has routed an
	// EndOfTrack).
	trackIndex int

	// playingTracks is the subset of track indices still producing
	// during playback, in Tracks order.
	playingTracks []int
	started       bool
	ended         bool

	inHands map[track.Key][]Handler

	opts []track.Option
}

// New returns an empty, ready-to-use Pattern. Any track.Option passed
// here is applied to every Track the Pattern creates for itself
// (StartPattern ingestion), so callers can uniformly configure a shared
// clock or scheduling parameters. A track's divisions always come from
// the StartPattern event: WithDivisions(ev.Divisions) is applied after
// these options and overrides any WithDivisions passed here.
func New(opts ...track.Option) *Pattern {
	p := &Pattern{inHands: map[track.Key][]Handler{}, opts: opts}
	installDefaultHandlers(p)
	return p
}

// RegisterInHandler appends h to key's pattern-level ingestion chain.
func (p *Pattern) RegisterInHandler(key track.Key, h Handler) {
	p.inHands[key] = append(p.inHands[key], h)
}

// SubmitEvent routes ev through the pattern-level ingestion chain
// (spec.md §4.H). index, if given, is forwarded to the eventual
// Track.SubmitEvent call for a mid-track insertion.
func (p *Pattern) SubmitEvent(ev *midi.Event, index ...int) error {
	return p.runInHands(ev, index)
}

func (p *Pattern) runInHands(ev *midi.Event, index []int) error {
	key := patternKey(ev)
	for _, h := range p.handlersFor(key) {
		if h(p, ev, firstOr(index, -1)) == Stop {
			break
		}
	}
	return nil
}

func firstOr(index []int, def int) int {
	if len(index) > 0 {
		return index[0]
	}
	return def
}

// patternKey mirrors track.KeyOf but also recognizes the builtin
// StartPattern/StartTrack/StopPattern sentinels, which have no status or
// meta byte of their own.
func patternKey(ev *midi.Event) track.Key {
	switch ev.Kind {
	case midi.KindStartPattern:
		return keyStartPattern
	case midi.KindStartTrack:
		return keyStartTrack
	case midi.KindStopPattern:
		return keyStopPattern
	default:
		return track.KeyOf(ev)
	}
}

// Builtin sentinels live outside the 0-255 status/meta byte space so
// they can't collide with a real dispatch key (spec.md §6: "must use a
// negative/out-of-band tag distinct from 0x00-0xFF").
const (
	keyStartPattern track.Key = -100
	keyStartTrack   track.Key = -101
	keyStopPattern  track.Key = -102
)

func (p *Pattern) handlersFor(key track.Key) []Handler {
	specific := p.inHands[key]
	global := p.inHands[track.GlobalKey]
	if key == track.GlobalKey || len(global) == 0 {
		return specific
	}
	out := make([]Handler, 0, len(specific)+len(global))
	out = append(out, specific...)
	out = append(out, global...)
	return out
}

func installDefaultHandlers(p *Pattern) {
	p.RegisterInHandler(keyStartPattern, createTracksHandler)
	p.RegisterInHandler(keyStartPattern, attachGlobalTempoHandler)
	p.RegisterInHandler(track.GlobalKey, sortEventsHandler)
}

// Key re-exports track.Key for callers registering pattern handlers
// against a Meta type or status byte without importing the track
// package's type directly.
type Key = track.Key

func createTracksHandler(p *Pattern, ev *midi.Event, index int) ControlFlow {
	p.Format = ev.Format
	p.Divisions = ev.Divisions
	p.NumTracks = ev.NumTracks
	p.Tracks = make([]*track.Track, 0, ev.NumTracks)
	for i := uint16(0); i < ev.NumTracks; i++ {
		opts := append(append([]track.Option{}, p.opts...), track.WithDivisions(ev.Divisions))
		tr := track.New(opts...)
		tr.Index = int(i)
		p.Tracks = append(p.Tracks, tr)
	}
	p.trackIndex = 0
	return Continue
}

// attachGlobalTempoHandler installs the format-1 global tempo rule
// (spec.md §4.H): a SetTempo received by the pattern is propagated to
// every track's mpb, since a format-1 file shares one tempo map across
// synchronous tracks.
func attachGlobalTempoHandler(p *Pattern, ev *midi.Event, index int) ControlFlow {
	if ev.Format != 1 {
		return Continue
	}
	p.RegisterInHandler(Key(0x51), globalTempoHandler) // SetTempo meta
	return Continue
}

// globalTempoHandler consumes a pattern-level SetTempo outright (Stop):
// in a format-1 file the tempo map lives once at the pattern level, so
// the event itself never also gets appended to a track's own sequence.
func globalTempoHandler(p *Pattern, ev *midi.Event, index int) ControlFlow {
	for _, tr := range p.Tracks {
		tr.MPB = ev.MicrosecondsPerBeat
		tr.Tempo = midi.MPBToBPM(tr.MPB, uint32(tr.TimeSigDen))
	}
	return Stop
}

// sortEventsHandler is the pattern's key routing handler (spec.md
// §4.H): an event tagged with a track forwards to that track, otherwise
// it goes to the current ingestion cursor track; StartTrack is dropped
// after passing through (its payload is only used to validate chunk
// framing at the Reader level); StartPattern/StopPattern are handled
// entirely by their own dedicated handlers and never reach a Track. An
// EndOfTrack advances the cursor to the next track only after being
// routed to the one it actually terminates (spec.md §4.H: "stop_track
// advances the ingestion cursor once its track's EndOfTrack has been
// forwarded").
func sortEventsHandler(p *Pattern, ev *midi.Event, index int) ControlFlow {
	switch ev.Kind {
	case midi.KindStartPattern, midi.KindStopPattern, midi.KindStartTrack:
		return Continue
	}

	target := ev.Track
	if target < 0 {
		target = p.trackIndex
	}
	if target < 0 || target >= len(p.Tracks) {
		return Stop
	}

	if index >= 0 {
		p.Tracks[target].SubmitEvent(ev, index)
	} else {
		p.Tracks[target].SubmitEvent(ev)
	}

	if ev.Kind == midi.KindEndOfTrack && p.trackIndex < len(p.Tracks)-1 {
		p.trackIndex++
	}
	return Stop
}

// StartPlayback arms every track for playback and seeds the
// tick-ordered merge time_get uses (spec.md §4.H/§4.I).
func (p *Pattern) StartPlayback() {
	p.playingTracks = make([]int, len(p.Tracks))
	for i, tr := range p.Tracks {
		tr.StartPlayback(0, nil)
		p.playingTracks[i] = i
	}
	p.started = false
	p.ended = false
}

// TimeGet drives the multi-track merge (spec.md §4.H): it finds the
// still-playing track whose next event has the smallest tick (ties
// broken by lower track index), waits for and releases that event via
// the track's own TimeGet, and retires a track from the playing set once
// its EndOfTrack has been emitted. The first call emits a synthetic
// StartPattern; once every track has ended, TimeGet emits a single
// StopPattern and every subsequent call fails with ErrPlaybackEnded.
func (p *Pattern) TimeGet(ctx context.Context) (*midi.Event, error) {
	if p.ended {
		return nil, midi.ErrKind(midi.ErrPlaybackEnded)
	}
	if !p.started {
		p.started = true
		return &midi.Event{
			Kind: midi.KindStartPattern, Track: -1,
			Length: 6, Format: p.Format, NumTracks: p.NumTracks, Divisions: p.Divisions,
		}, nil
	}

	if len(p.playingTracks) == 0 {
		p.ended = true
		return &midi.Event{Kind: midi.KindStopPattern, Track: -1}, nil
	}

	best := -1
	var bestTick uint64
	for _, idx := range p.playingTracks {
		ev := p.Tracks[idx].Current()
		if ev == nil {
			continue
		}
		if best == -1 || ev.Tick < bestTick {
			best, bestTick = idx, ev.Tick
		}
	}
	if best == -1 {
		// every remaining playing track is exhausted without an
		// EndOfTrack having been observed; treat as drained.
		p.playingTracks = nil
		p.ended = true
		return &midi.Event{Kind: midi.KindStopPattern, Track: -1}, nil
	}

	ev, err := p.Tracks[best].TimeGet(ctx)
	if err != nil {
		return nil, err
	}
	if ev.Kind == midi.KindEndOfTrack {
		p.removePlaying(best)
	}
	return ev, nil
}

func (p *Pattern) removePlaying(idx int) {
	out := p.playingTracks[:0]
	for _, v := range p.playingTracks {
		if v != idx {
			out = append(out, v)
		}
	}
	p.playingTracks = out
}
