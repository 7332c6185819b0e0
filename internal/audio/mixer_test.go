package audio

import (
	"math"
	"testing"

	"github.com/gopxl/beep/v2"
)

// constSource emits a fixed value and records lifecycle calls.
type constSource struct {
	v        float64
	prepared int
	released bool
	calls    []int
}

func (c *constSource) PrepareToPlay(blockSize int, _ beep.SampleRate) { c.prepared = blockSize }
func (c *constSource) ReleaseResources()                              { c.released = true }

func (c *constSource) NextBlock(buf [][2]float64) {
	c.calls = append(c.calls, len(buf))
	for i := range buf {
		buf[i] = [2]float64{c.v, -c.v}
	}
}

func TestMixerEmptyIsSilent(t *testing.T) {
	m := NewMixer()
	buf := constFrames(16, 1)
	m.NextBlock(buf)
	if !isSilent(buf) {
		t.Error("mixer with no sources produced sound")
	}
}

func TestMixerUnpreparedIsSilent(t *testing.T) {
	a := &constSource{v: 0.5}
	m := NewMixer(a)
	buf := constFrames(16, 1)
	m.NextBlock(buf)
	if !isSilent(buf) {
		t.Error("unprepared mixer produced sound")
	}
	if len(a.calls) != 0 {
		t.Errorf("unprepared mixer pulled from its source: %v", a.calls)
	}
	if allocs := testing.AllocsPerRun(10, func() { m.NextBlock(buf) }); allocs != 0 {
		t.Errorf("unprepared NextBlock allocated %v times", allocs)
	}
}

func TestMixerSumsWithoutNormalising(t *testing.T) {
	a, b := &constSource{v: 0.8}, &constSource{v: 0.8}
	m := NewMixer(a, b)
	m.PrepareToPlay(32, SampleRate)

	buf := make([][2]float64, 32)
	m.NextBlock(buf)
	for i, f := range buf {
		if math.Abs(f[0]-1.6) > 1e-12 || math.Abs(f[1]+1.6) > 1e-12 {
			t.Fatalf("frame[%d] = %v, want [1.6 -1.6]", i, f)
		}
	}

	pcm := make([]int16, len(buf)*2)
	FramesToPCM(pcm, buf)
	if pcm[0] != 32767 || pcm[1] != -32768 {
		t.Errorf("summed overload = %d/%d, want clipped 32767/-32768", pcm[0], pcm[1])
	}
}

func TestMixerLifecycle(t *testing.T) {
	a := &constSource{v: 0.1}
	m := NewMixer(a)
	b := &constSource{v: 0.2}
	m.Add(b)
	if len(m.Sources()) != 2 {
		t.Fatalf("Sources = %d, want 2", len(m.Sources()))
	}

	m.PrepareToPlay(FrameSize, SampleRate)
	if a.prepared != FrameSize || b.prepared != FrameSize {
		t.Errorf("prepared block sizes = %d/%d, want %d", a.prepared, b.prepared, FrameSize)
	}
	m.ReleaseResources()
	if !a.released || !b.released {
		t.Error("ReleaseResources not forwarded to every source")
	}
}

func TestMixerChunksLongBlocks(t *testing.T) {
	a := &constSource{v: 0.25}
	m := NewMixer(a)
	m.PrepareToPlay(100, SampleRate)

	buf := make([][2]float64, 250)
	m.NextBlock(buf)

	want := []int{100, 100, 50}
	if len(a.calls) != len(want) {
		t.Fatalf("source calls = %v, want %v", a.calls, want)
	}
	for i := range want {
		if a.calls[i] != want[i] {
			t.Errorf("call[%d] = %d, want %d", i, a.calls[i], want[i])
		}
	}
	if buf[249][0] != 0.25 {
		t.Errorf("last frame = %v, want 0.25", buf[249])
	}
}

func TestMixerOfDecksMatchesSum(t *testing.T) {
	tracks := map[string]stubTrack{
		"a.wav": {frames: constFrames(SampleRate, 0.3), rate: SampleRate},
		"b.wav": {frames: constFrames(SampleRate, -0.1), rate: SampleRate},
	}
	solo := func(name string, gain float64) [][2]float64 {
		d := newTestDeck(t, tracks)
		mustLoad(t, d, name)
		if err := d.SetGain(gain); err != nil {
			t.Fatal(err)
		}
		d.Start()
		return render(d, 3)
	}
	wantA, wantB := solo("a.wav", 0.9), solo("b.wav", 0.5)

	left, right := newTestDeck(t, tracks), newTestDeck(t, tracks)
	mustLoad(t, left, "a.wav")
	mustLoad(t, right, "b.wav")
	left.SetGain(0.9)
	right.SetGain(0.5)
	left.Start()
	right.Start()

	m := NewMixer(left, right)
	m.PrepareToPlay(FrameSize, SampleRate)
	buf := make([][2]float64, FrameSize)
	for i := 0; i < 3; i++ {
		m.NextBlock(buf)
	}
	for i := range buf {
		for c := 0; c < 2; c++ {
			if want := wantA[i][c] + wantB[i][c]; math.Abs(buf[i][c]-want) > 1e-12 {
				t.Fatalf("frame[%d][%d] = %f, want %f", i, c, buf[i][c], want)
			}
		}
	}
}
