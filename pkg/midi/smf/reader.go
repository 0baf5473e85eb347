package smf

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/owencochell/go-yapmidi/pkg/midi"
	"github.com/owencochell/go-yapmidi/pkg/midi/iobyte"
	"github.com/owencochell/go-yapmidi/pkg/midi/varlen"
)

type readerState int

const (
	stateFresh readerState = iota
	stateTrackHeader
	stateTrackBody
	stateDone
)

// Reader bootstraps a lazy event queue from a byte source holding a
// complete SMF file (spec.md §4.K): `Fresh -> HeaderRead -> TrackHeader
// -> TrackBody -> TrackHeader -> ... -> Done`.
type Reader struct {
	src    iobyte.Source
	opts   []Option
	buffer int

	started  bool
	finished bool
	queue    []*midi.Event

	state          readerState
	format         uint16
	numTracks      uint16
	divisions      uint16
	trackIndex     uint16
	trackRemaining uint32
	dec            *Decoder
}

// NewReader returns a Reader over src. buffer controls look-ahead:
// 0 reads the whole file eagerly before the first event is returned, 1
// is strictly lazy (one event fetched per Next call), anything larger
// keeps up to that many events queued.
func NewReader(src iobyte.Source, buffer int, opts ...Option) *Reader {
	return &Reader{src: src, opts: opts, buffer: buffer}
}

// Next returns the next event in file order: one StartPattern, then for
// each track a StartTrack followed by its events (ending in
// EndOfTrack), then a closing StopPattern. It returns io.EOF once the
// file has been fully consumed.
func (r *Reader) Next(ctx context.Context) (*midi.Event, error) {
	if !r.started {
		if err := r.src.Start(ctx); err != nil {
			return nil, err
		}
		r.started = true
	}

	if r.buffer == 0 {
		for !r.finished {
			if err := r.fillOne(ctx); err != nil {
				return nil, err
			}
		}
	}

	for len(r.queue) == 0 {
		if r.finished {
			return nil, io.EOF
		}
		if err := r.fillOne(ctx); err != nil {
			return nil, err
		}
	}

	ev := r.queue[0]
	r.queue = r.queue[1:]

	for r.buffer > 1 && len(r.queue) < r.buffer && !r.finished {
		if err := r.fillOne(ctx); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// Close releases the underlying byte source. Callers that abandon a
// Reader before reaching io.EOF must call Close (spec.md §5
// Cancellation: "a byte source's stop must be called when the reader is
// abandoned").
func (r *Reader) Close(ctx context.Context) error {
	if !r.started {
		return nil
	}
	return r.src.Stop(ctx)
}

func (r *Reader) fillOne(ctx context.Context) error {
	switch r.state {
	case stateFresh:
		return r.readHeader(ctx)
	case stateTrackHeader:
		return r.readTrackHeader(ctx)
	case stateTrackBody:
		return r.readTrackEvent(ctx)
	default:
		return nil
	}
}

func (r *Reader) readHeader(ctx context.Context) error {
	tag, err := r.readN(ctx, 4)
	if err != nil {
		return err
	}
	if string(tag) != "MThd" {
		return midi.NewError(midi.ErrInvalidHeader, nil, "expected MThd, got %q", tag)
	}

	lenBuf, err := r.readN(ctx, 4)
	if err != nil {
		return err
	}
	headerLen := binary.BigEndian.Uint32(lenBuf)
	if headerLen < 6 {
		return midi.NewError(midi.ErrInvalidHeader, nil, "header length %d < 6", headerLen)
	}

	fields, err := r.readN(ctx, 6)
	if err != nil {
		return err
	}
	r.format = binary.BigEndian.Uint16(fields[0:2])
	r.numTracks = binary.BigEndian.Uint16(fields[2:4])
	r.divisions = binary.BigEndian.Uint16(fields[4:6])
	if r.format > 2 {
		return midi.NewError(midi.ErrInvalidHeader, nil, "unsupported format %d", r.format)
	}

	if extra := headerLen - 6; extra > 0 {
		if _, err := r.readN(ctx, int(extra)); err != nil {
			return err
		}
	}

	r.queue = append(r.queue, &midi.Event{
		Kind: midi.KindStartPattern, Track: -1,
		Length: 6, Format: uint8(r.format), NumTracks: r.numTracks, Divisions: r.divisions,
	})
	r.state = stateTrackHeader
	return nil
}

func (r *Reader) readTrackHeader(ctx context.Context) error {
	if r.trackIndex >= r.numTracks {
		r.queue = append(r.queue, &midi.Event{Kind: midi.KindStopPattern, Track: -1})
		r.state = stateDone
		r.finished = true
		return nil
	}

	tag, err := r.readN(ctx, 4)
	if err != nil {
		return err
	}
	if string(tag) != "MTrk" {
		return midi.NewError(midi.ErrInvalidHeader, nil, "expected MTrk, got %q", tag)
	}
	lenBuf, err := r.readN(ctx, 4)
	if err != nil {
		return err
	}
	r.trackRemaining = binary.BigEndian.Uint32(lenBuf)
	r.dec = New(r.opts...)

	r.queue = append(r.queue, &midi.Event{
		Kind: midi.KindStartTrack, Track: int(r.trackIndex),
		ChunkType: "MTrk", Length: int(r.trackRemaining),
	})
	r.state = stateTrackBody
	return nil
}

func (r *Reader) readTrackEvent(ctx context.Context) error {
	if r.trackRemaining == 0 {
		return midi.NewError(midi.ErrLengthMismatch, nil,
			"track %d chunk ended without EndOfTrack", r.trackIndex)
	}

	var vl varlen.Decoder
	var delta uint32
	for {
		b, err := r.readByte(ctx)
		if err != nil {
			return err
		}
		r.trackRemaining--
		v, _, done, err := vl.Feed(b)
		if err != nil {
			return err
		}
		if done {
			delta = v
			break
		}
		if r.trackRemaining == 0 {
			return midi.NewError(midi.ErrUnexpectedEOF, nil, "track %d truncated mid-delta", r.trackIndex)
		}
	}

	var ev *midi.Event
	for ev == nil {
		if r.trackRemaining == 0 {
			return midi.NewError(midi.ErrUnexpectedEOF, nil, "track %d truncated mid-event", r.trackIndex)
		}
		b, err := r.readByte(ctx)
		if err != nil {
			return err
		}
		r.trackRemaining--
		ev, err = r.dec.SeqDecode(b)
		if err != nil {
			return err
		}
	}

	ev.Delta = delta
	ev.Track = int(r.trackIndex)
	r.queue = append(r.queue, ev)

	if ev.Kind == midi.KindEndOfTrack {
		if r.trackRemaining != 0 {
			return midi.NewError(midi.ErrLengthMismatch, nil,
				"track %d declared length exceeds consumed bytes by %d", r.trackIndex, r.trackRemaining)
		}
		r.trackIndex++
		r.state = stateTrackHeader
	}
	return nil
}

func (r *Reader) readN(ctx context.Context, n int) ([]byte, error) {
	buf, err := r.src.Read(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(buf) != n {
		return nil, midi.NewError(midi.ErrUnexpectedEOF, nil, "wanted %d bytes, got %d", n, len(buf))
	}
	return buf, nil
}

func (r *Reader) readByte(ctx context.Context) (byte, error) {
	buf, err := r.readN(ctx, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}
