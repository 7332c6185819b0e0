package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
)

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// AudioSource is driven by an audio backend: PrepareToPlay once before
// playback, NextBlock at the backend's cadence, ReleaseResources at shutdown.
//
// NextBlock runs on the audio production path. Implementations fill every
// frame of buf (silence when idle) and must not allocate or perform file I/O.
type AudioSource interface {
	PrepareToPlay(blockSize int, sampleRate beep.SampleRate)
	NextBlock(buf [][2]float64)
	ReleaseResources()
}

var (
	// ErrUnreadableSource means a file could not be opened or decoded.
	ErrUnreadableSource = errors.New("unreadable audio source")
	// ErrOutOfRange is wrapped by every *RangeError.
	ErrOutOfRange = errors.New("parameter out of range")
	// ErrNotLoaded is returned by operations that need a loaded source.
	ErrNotLoaded = errors.New("no source loaded")
)

// RangeError reports a rejected parameter. The previous value stays in effect.
type RangeError struct {
	Param    string
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %g outside [%g, %g]", e.Param, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

func checkRange(param string, v, lo, hi float64) error {
	// NaN fails both comparisons, so test for inclusion.
	if v >= lo && v <= hi {
		return nil
	}
	return &RangeError{Param: param, Value: v, Min: lo, Max: hi}
}

func silence(buf [][2]float64) {
	for i := range buf {
		buf[i] = [2]float64{}
	}
}

// FormatLength renders d as "Mm Ss", rounded to the nearest second.
func FormatLength(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
