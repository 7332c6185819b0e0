package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/ac-schroeder/DJApp/internal/logger"
)

// resampleQuality is beep's interpolation window; 4 is its documented default.
const resampleQuality = 4

// DefaultSpeedMax is the upper bound for SetSpeed when none is configured.
const DefaultSpeedMax = 2.0

// Deck is one playback chain:
//
//	decoded source -> transport (gain) -> low shelf -> high shelf -> resampler
//
// Filters run before the resampler so their coefficients are always computed
// at the source sample rate, whatever the speed.
//
// Control methods may be called from any goroutine; they are serialised with
// each other. NextBlock is the audio path.
type Deck struct {
	name     string
	decoder  Decoder
	speedMax float64

	ctl sync.Mutex // serialises control operations, at most one load in flight

	// guarded by ctl
	locator   string
	lowShelf  ShelfParams
	highShelf ShelfParams

	mu        sync.Mutex // shared with the audio path: source swap, seek, resampler
	transport *transport
	low       *ShelfFilter
	high      *ShelfFilter
	resampler *beep.Resampler
	outRate   beep.SampleRate
	origin    int     // source frame the resampler started at
	consumed  float64 // source frames emitted by the resampler since origin

	speed *atomicFloat
}

// NewDeck returns an empty deck. speedMax <= 0 selects DefaultSpeedMax.
func NewDeck(name string, dec Decoder, speedMax float64) *Deck {
	if speedMax <= 0 {
		speedMax = DefaultSpeedMax
	}
	t := newTransport()
	low := NewShelfFilter(t)
	high := NewShelfFilter(low)
	return &Deck{
		name:      name,
		decoder:   dec,
		speedMax:  speedMax,
		lowShelf:  DefaultLowShelf,
		highShelf: DefaultHighShelf,
		transport: t,
		low:       low,
		high:      high,
		outRate:   SampleRate,
		speed:     newAtomicFloat(1),
	}
}

// Name identifies the deck in logs and the control API.
func (d *Deck) Name() string { return d.name }

// Load opens locator and replaces the current source, stopped at zero.
// On failure the previous source stays loaded and playable. Gain, speed and
// shelf settings carry over to the new source.
func (d *Deck) Load(locator string) error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	path, err := ResolveLocator(locator)
	if err != nil {
		logger.Warn("deck load rejected", logger.String("deck", d.name), logger.String("locator", locator), logger.ErrorField(err))
		return err
	}
	src, format, err := d.decoder.Decode(path)
	if err != nil {
		if !errors.Is(err, ErrUnreadableSource) {
			err = fmt.Errorf("%w: %v", ErrUnreadableSource, err)
		}
		logger.Warn("deck load failed", logger.String("deck", d.name), logger.String("path", path), logger.ErrorField(err))
		return err
	}

	lowC := LowShelfCoefficients(format.SampleRate, d.lowShelf)
	highC := HighShelfCoefficients(format.SampleRate, d.highShelf)

	d.mu.Lock()
	old := d.transport.setSource(src, format)
	d.low.SetCoefficients(lowC)
	d.high.SetCoefficients(highC)
	d.flushLocked()
	d.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			logger.Debug("closing previous source", logger.String("deck", d.name), logger.ErrorField(err))
		}
	}
	d.locator = path

	logger.Info("deck loaded",
		logger.String("deck", d.name),
		logger.String("path", path),
		logger.Int("sample_rate", int(format.SampleRate)),
		logger.Duration("length", format.SampleRate.D(src.Len())),
	)
	return nil
}

// flushLocked drops filter history and the resampler's look-ahead so a jump
// in the source never replays stale samples. Callers hold mu.
func (d *Deck) flushLocked() {
	d.low.reset()
	d.high.reset()
	d.resampler = beep.ResampleRatio(resampleQuality, d.baseRatio(d.transport.format.SampleRate), d.high)
	d.origin = int(d.transport.pos.Load())
	d.consumed = 0
	d.transport.ended = false
}

// baseRatio is the resampler ratio at unity speed. Callers hold mu.
func (d *Deck) baseRatio(srcRate beep.SampleRate) float64 {
	return float64(srcRate) / float64(d.outRate)
}

// Start plays from the current playhead. No-op when empty or playing.
func (d *Deck) Start() {
	d.transport.state.CompareAndSwap(int32(Stopped), int32(Playing))
	d.transport.state.CompareAndSwap(int32(Paused), int32(Playing))
}

// Pause halts playback and keeps the playhead. No-op unless playing.
func (d *Deck) Pause() {
	d.transport.state.CompareAndSwap(int32(Playing), int32(Paused))
}

// Stop halts playback and rewinds to zero. An empty deck stays empty.
func (d *Deck) Stop() {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transport.src == nil {
		return
	}
	d.transport.state.Store(int32(Stopped))
	if err := d.transport.seek(0); err != nil {
		logger.Warn("rewind failed", logger.String("deck", d.name), logger.ErrorField(err))
	}
	d.flushLocked()
}

// SetGain sets the linear output gain. Values outside [0, 1] are rejected.
func (d *Deck) SetGain(g float64) error {
	if err := checkRange("gain", g, 0, 1); err != nil {
		logger.Warn("gain rejected", logger.String("deck", d.name), logger.Float64("value", g), logger.ErrorField(err))
		return err
	}
	d.transport.gain.Store(g)
	return nil
}

// Gain returns the linear output gain.
func (d *Deck) Gain() float64 { return d.transport.gain.Load() }

// SetSpeed sets the playback speed ratio within [0, speedMax]. At zero the
// deck is held silent; the resampler is never given a zero ratio.
func (d *Deck) SetSpeed(ratio float64) error {
	if err := checkRange("speed", ratio, 0, d.speedMax); err != nil {
		logger.Warn("speed rejected", logger.String("deck", d.name), logger.Float64("value", ratio), logger.ErrorField(err))
		return err
	}
	d.speed.Store(ratio)
	return nil
}

// Speed returns the playback speed ratio.
func (d *Deck) Speed() float64 { return d.speed.Load() }

// SetPosition seeks to seconds, which must lie within the loaded track.
func (d *Deck) SetPosition(seconds float64) error {
	d.ctl.Lock()
	defer d.ctl.Unlock()
	return d.seekSeconds(seconds)
}

// SetPositionRelative seeks to fraction of the track length, fraction in [0, 1].
func (d *Deck) SetPositionRelative(fraction float64) error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	if err := checkRange("relative position", fraction, 0, 1); err != nil {
		logger.Warn("position rejected", logger.String("deck", d.name), logger.Float64("value", fraction), logger.ErrorField(err))
		return err
	}
	return d.seekSeconds(fraction * d.Length().Seconds())
}

func (d *Deck) seekSeconds(seconds float64) error {
	if d.State() == Empty {
		logger.Warn("seek on empty deck", logger.String("deck", d.name))
		return ErrNotLoaded
	}
	length := d.Length().Seconds()
	if err := checkRange("position", seconds, 0, length); err != nil {
		logger.Warn("position rejected", logger.String("deck", d.name), logger.Float64("seconds", seconds), logger.ErrorField(err))
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	frame := d.transport.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if end := int(d.transport.length.Load()); frame > end {
		frame = end
	}
	if err := d.transport.seek(frame); err != nil {
		logger.Warn("seek failed", logger.String("deck", d.name), logger.ErrorField(err))
		return err
	}
	d.flushLocked()
	return nil
}

// SetLowShelf validates and applies low shelf parameters without
// interrupting playback. On an empty deck the parameters are kept for the
// next load.
func (d *Deck) SetLowShelf(p ShelfParams) error {
	return d.setShelf(p, &d.lowShelf, d.low, LowShelfCoefficients, "low shelf")
}

// SetHighShelf is SetLowShelf for the high shelf.
func (d *Deck) SetHighShelf(p ShelfParams) error {
	return d.setShelf(p, &d.highShelf, d.high, HighShelfCoefficients, "high shelf")
}

func (d *Deck) setShelf(p ShelfParams, dst *ShelfParams, f *ShelfFilter,
	coeffs func(beep.SampleRate, ShelfParams) Coefficients, label string) error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	rate := d.SourceRate()
	if err := p.validate(rate); err != nil {
		logger.Warn(label+" rejected",
			logger.String("deck", d.name),
			logger.Float64("frequency", p.Frequency),
			logger.Float64("gain", p.Gain),
			logger.Float64("q", p.Q),
			logger.ErrorField(err),
		)
		return err
	}
	*dst = p
	if rate > 0 {
		f.SetCoefficients(coeffs(rate, p))
	}
	return nil
}

// LowShelf returns the low shelf parameters and active coefficients.
func (d *Deck) LowShelf() (ShelfParams, Coefficients, bool) {
	d.ctl.Lock()
	defer d.ctl.Unlock()
	c, ok := d.low.Coefficients()
	return d.lowShelf, c, ok
}

// HighShelf returns the high shelf parameters and active coefficients.
func (d *Deck) HighShelf() (ShelfParams, Coefficients, bool) {
	d.ctl.Lock()
	defer d.ctl.Unlock()
	c, ok := d.high.Coefficients()
	return d.highShelf, c, ok
}

// State reports the transport state.
func (d *Deck) State() State { return d.transport.State() }

// SourceRate is the loaded source's sample rate, 0 when empty.
func (d *Deck) SourceRate() beep.SampleRate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transport.format.SampleRate
}

// Locator returns the absolute path of the loaded file.
func (d *Deck) Locator() string {
	d.ctl.Lock()
	defer d.ctl.Unlock()
	return d.locator
}

// Length is the loaded track's duration, 0 when empty.
func (d *Deck) Length() time.Duration {
	return d.framesToDuration(d.transport.length.Load())
}

// Position is the playhead as a duration into the track.
func (d *Deck) Position() time.Duration {
	return d.framesToDuration(d.transport.pos.Load())
}

func (d *Deck) framesToDuration(frames int64) time.Duration {
	rate := d.SourceRate()
	if rate <= 0 {
		return 0
	}
	return rate.D(int(frames))
}

// PositionRelative is position/length in [0, 1], or 0 when nothing is
// loaded. Safe to poll from any goroutine.
func (d *Deck) PositionRelative() float64 {
	length := d.transport.length.Load()
	if length == 0 {
		return 0
	}
	return float64(d.transport.pos.Load()) / float64(length)
}

// TrackLength formats Length as "Mm Ss".
func (d *Deck) TrackLength() string {
	return FormatLength(d.Length())
}

// PrepareToPlay records the output sample rate. blockSize is advisory; the
// resampler sizes its own buffers.
func (d *Deck) PrepareToPlay(blockSize int, sampleRate beep.SampleRate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sampleRate > 0 {
		d.outRate = sampleRate
	}
	logger.Debug("deck prepared", logger.String("deck", d.name), logger.Int("block_size", blockSize), logger.Int("sample_rate", int(d.outRate)))
}

// NextBlock renders len(buf) output frames. Once the source is exhausted the
// deck keeps draining the resampler's look-ahead and pauses at the end only
// after the last source frame has been emitted.
func (d *Deck) NextBlock(buf [][2]float64) {
	speed := d.speed.Load()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.resampler == nil || speed <= 0 || d.transport.State() != Playing {
		silence(buf)
		return
	}
	ratio := d.baseRatio(d.transport.format.SampleRate) * speed
	if ratio != d.resampler.Ratio() {
		d.resampler.SetRatio(ratio)
	}
	n, _ := d.resampler.Stream(buf)
	silence(buf[n:])

	d.consumed += float64(n) * ratio
	played := int64(d.origin) + int64(d.consumed)
	length := d.transport.length.Load()
	if played >= length && d.transport.ended {
		d.transport.pos.Store(length)
		d.transport.state.CompareAndSwap(int32(Playing), int32(Paused))
		return
	}
	d.transport.pos.Store(min(played, length))
}

// ReleaseResources is called by the backend on shutdown. The loaded source
// stays open so the deck can be prepared again; Close releases it.
func (d *Deck) ReleaseResources() {
	logger.Debug("deck released", logger.String("deck", d.name))
}

// Close unloads the current source.
func (d *Deck) Close() error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	d.mu.Lock()
	src := d.transport.src
	d.transport.src = nil
	d.transport.format = beep.Format{}
	d.transport.pos.Store(0)
	d.transport.length.Store(0)
	d.transport.state.Store(int32(Empty))
	d.resampler = nil
	d.mu.Unlock()

	d.locator = ""
	if src != nil {
		return src.Close()
	}
	return nil
}
