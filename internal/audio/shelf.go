package audio

import (
	"math"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// ShelfParams configures a shelf filter. Gain is a linear factor in (0, 1]:
// the shelves only ever attenuate.
type ShelfParams struct {
	Frequency float64 `json:"frequency"`
	Gain      float64 `json:"gain"`
	Q         float64 `json:"q"`
}

// Transparent shelves matching the deck's initial filter panel.
var (
	DefaultLowShelf  = ShelfParams{Frequency: 20, Gain: 1, Q: 1}
	DefaultHighShelf = ShelfParams{Frequency: 15000, Gain: 1, Q: 1}
)

// validate checks p against a source running at rate. The frequency must lie
// below Nyquist; with no source loaded (rate 0) only its sign is checked.
func (p ShelfParams) validate(rate beep.SampleRate) error {
	maxFreq := math.MaxFloat64
	if rate > 0 {
		maxFreq = math.Nextafter(float64(rate)/2, 0)
	}
	if err := checkRange("shelf frequency", p.Frequency, math.SmallestNonzeroFloat64, maxFreq); err != nil {
		return err
	}
	if err := checkRange("shelf gain", p.Gain, math.SmallestNonzeroFloat64, 1); err != nil {
		return err
	}
	return checkRange("shelf q", p.Q, math.SmallestNonzeroFloat64, math.MaxFloat64)
}

// Coefficients are normalised biquad coefficients (a0 == 1).
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// shelfTerms returns the intermediate RBJ cookbook terms shared by both shelves.
// The cutoff is kept within [2 Hz, just below Nyquist] for parameters stored
// before a lower-rate source was loaded.
func shelfTerms(sampleRate beep.SampleRate, p ShelfParams) (a, coso, beta float64) {
	nyquist := float64(sampleRate) / 2
	freq := math.Min(math.Max(p.Frequency, 2), nyquist*0.999)
	a = math.Sqrt(math.Max(0, p.Gain))
	omega := 2 * math.Pi * freq / float64(sampleRate)
	coso = math.Cos(omega)
	beta = math.Sin(omega) * math.Sqrt(a) / p.Q
	return a, coso, beta
}

// LowShelfCoefficients computes a low shelf whose gain below the cutoff
// approaches p.Gain.
func LowShelfCoefficients(sampleRate beep.SampleRate, p ShelfParams) Coefficients {
	a, coso, beta := shelfTerms(sampleRate, p)
	am1, ap1 := a-1, a+1
	am1c := am1 * coso
	return normalise(
		a*(ap1-am1c+beta),
		a*2*(am1-ap1*coso),
		a*(ap1-am1c-beta),
		ap1+am1c+beta,
		-2*(am1+ap1*coso),
		ap1+am1c-beta,
	)
}

// HighShelfCoefficients computes a high shelf whose gain above the cutoff
// approaches p.Gain.
func HighShelfCoefficients(sampleRate beep.SampleRate, p ShelfParams) Coefficients {
	a, coso, beta := shelfTerms(sampleRate, p)
	am1, ap1 := a-1, a+1
	am1c := am1 * coso
	return normalise(
		a*(ap1+am1c+beta),
		a*-2*(am1+ap1*coso),
		a*(ap1+am1c-beta),
		ap1-am1c+beta,
		2*(am1-ap1*coso),
		ap1-am1c-beta,
	)
}

func normalise(b0, b1, b2, a0, a1, a2 float64) Coefficients {
	return Coefficients{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}
}

// biquad holds transposed direct form II state for one channel.
type biquad struct {
	v1, v2 float64
}

func (b *biquad) process(c *Coefficients, in float64) float64 {
	out := c.B0*in + b.v1
	b.v1 = c.B1*in - c.A1*out + b.v2
	b.v2 = c.B2*in - c.A2*out
	return out
}

// ShelfFilter is a stereo IIR stage. Coefficients are published through an
// atomic pointer so the audio path never sees a half-written set; with no
// coefficients the stage passes samples through unchanged.
type ShelfFilter struct {
	s      beep.Streamer
	coeffs atomic.Pointer[Coefficients]
	state  [2]biquad
}

// NewShelfFilter wraps s.
func NewShelfFilter(s beep.Streamer) *ShelfFilter {
	return &ShelfFilter{s: s}
}

// SetCoefficients swaps in c without resetting filter state.
func (f *ShelfFilter) SetCoefficients(c Coefficients) {
	f.coeffs.Store(&c)
}

// Coefficients returns the active set, or false if none is set.
func (f *ShelfFilter) Coefficients() (Coefficients, bool) {
	c := f.coeffs.Load()
	if c == nil {
		return Coefficients{}, false
	}
	return *c, true
}

// reset clears the delay lines; callers hold the owning deck's lock.
func (f *ShelfFilter) reset() {
	f.state = [2]biquad{}
}

func (f *ShelfFilter) Stream(samples [][2]float64) (int, bool) {
	n, ok := f.s.Stream(samples)
	c := f.coeffs.Load()
	if c == nil {
		return n, ok
	}
	for i := range samples[:n] {
		samples[i][0] = f.state[0].process(c, samples[i][0])
		samples[i][1] = f.state[1].process(c, samples[i][1])
	}
	return n, ok
}

func (f *ShelfFilter) Err() error {
	return f.s.Err()
}
