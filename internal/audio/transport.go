package audio

import (
	"math"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// State is a deck's transport state.
type State int32

const (
	Empty State = iota
	Stopped
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// atomicFloat is a float64 readable from the audio path without locking.
type atomicFloat struct {
	bits atomic.Uint64
}

func newAtomicFloat(v float64) *atomicFloat {
	f := &atomicFloat{}
	f.Store(v)
	return f
}

func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

// transport is the play/pause/stop/seek layer over a decoded source and the
// first stage of a deck's pipeline. It applies the deck gain and always fills
// the whole buffer, emitting silence when not playing or past the end.
//
// Source swaps and seeks happen under the owning deck's lock. State,
// position and length are atomics so the position poller never locks.
// pos is the playhead as heard; the deck advances it from the resampler's
// output, since the resampler reads ahead of what it has emitted.
type transport struct {
	src    beep.StreamSeekCloser
	format beep.Format
	ended  bool // source exhausted; guarded by the deck's mu

	state  atomic.Int32
	pos    atomic.Int64 // frames
	length atomic.Int64 // frames
	gain   *atomicFloat
}

func newTransport() *transport {
	t := &transport{gain: newAtomicFloat(1)}
	t.state.Store(int32(Empty))
	return t
}

func (t *transport) State() State { return State(t.state.Load()) }

// setSource installs src stopped at zero and returns the previous source
// for the caller to close outside the lock.
func (t *transport) setSource(src beep.StreamSeekCloser, format beep.Format) beep.StreamSeekCloser {
	old := t.src
	t.src = src
	t.format = format
	t.pos.Store(0)
	t.length.Store(int64(src.Len()))
	t.ended = false
	t.state.Store(int32(Stopped))
	return old
}

func (t *transport) seek(frame int) error {
	if err := t.src.Seek(frame); err != nil {
		return err
	}
	t.pos.Store(int64(frame))
	t.ended = false
	return nil
}

func (t *transport) Stream(samples [][2]float64) (int, bool) {
	if t.src == nil || t.State() != Playing {
		silence(samples)
		return len(samples), true
	}

	n, ok := t.src.Stream(samples)
	g := t.gain.Load()
	for i := range samples[:n] {
		samples[i][0] *= g
		samples[i][1] *= g
	}
	silence(samples[n:])

	if !ok || t.src.Position() >= t.src.Len() {
		t.ended = true
	}
	return len(samples), true
}

func (t *transport) Err() error {
	return nil
}
