package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ac-schroeder/DJApp/internal/audio"
	"github.com/ac-schroeder/DJApp/internal/logger"
)

// Engine is the audio backend: it prepares a source once, then pulls one
// 20ms block per tick and publishes it as interleaved int16 PCM.
type Engine struct {
	src      audio.AudioSource
	frameCh  chan []int16
	interval time.Duration
	rendered atomic.Int64
}

// NewEngine creates an engine pulling from src, usually an *audio.Mixer.
func NewEngine(src audio.AudioSource) *Engine {
	return &Engine{
		src:      src,
		frameCh:  make(chan []int16, 100),
		interval: audio.FrameDuration,
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each). It is
// closed when Run returns.
func (e *Engine) Frames() <-chan []int16 {
	return e.frameCh
}

// Rendered is the number of frames produced so far.
func (e *Engine) Rendered() int64 {
	return e.rendered.Load()
}

// Run drives the source at real-time rate. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.frameCh)

	e.src.PrepareToPlay(audio.FrameSize, audio.SampleRate)
	defer e.src.ReleaseResources()
	logger.Info("audio engine started",
		logger.Int("sample_rate", audio.SampleRate),
		logger.Int("block_size", audio.FrameSize),
	)
	defer func() {
		logger.Info("audio engine stopped", logger.Int64("frames", e.Rendered()))
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	block := make([][2]float64, audio.FrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.src.NextBlock(block)
		frame := make([]int16, audio.FrameSamples)
		audio.FramesToPCM(frame, block)
		e.rendered.Add(1)

		select {
		case e.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}
