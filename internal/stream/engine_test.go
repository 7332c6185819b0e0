package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/ac-schroeder/DJApp/internal/audio"
)

// toneSource fills every block with one value.
type toneSource struct {
	v        float64
	prepared atomic.Int64
	released atomic.Bool
	rendered atomic.Int64
}

func (s *toneSource) PrepareToPlay(blockSize int, _ beep.SampleRate) { s.prepared.Store(int64(blockSize)) }
func (s *toneSource) ReleaseResources()                              { s.released.Store(true) }
func (s *toneSource) NextBlock(buf [][2]float64) {
	s.rendered.Add(1)
	for i := range buf {
		buf[i] = [2]float64{s.v, -s.v}
	}
}

func startEngine(t *testing.T, src audio.AudioSource) (*Engine, context.CancelFunc) {
	t.Helper()
	e := NewEngine(src)
	e.interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(cancel)
	return e, cancel
}

func TestEngineProducesPCMFrames(t *testing.T) {
	src := &toneSource{v: 0.5}
	e, _ := startEngine(t, src)

	select {
	case frame := <-e.Frames():
		if len(frame) != audio.FrameSamples {
			t.Fatalf("frame length = %d, want %d", len(frame), audio.FrameSamples)
		}
		if frame[0] != 16384 || frame[1] != -16384 {
			t.Errorf("frame[0:2] = %v, want [16384 -16384]", frame[:2])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
	}
	if got := src.prepared.Load(); got != audio.FrameSize {
		t.Errorf("PrepareToPlay block size = %d, want %d", got, audio.FrameSize)
	}
}

func TestEngineClipsOverload(t *testing.T) {
	e, _ := startEngine(t, &toneSource{v: 1.6})

	select {
	case frame := <-e.Frames():
		if frame[0] != 32767 || frame[1] != -32768 {
			t.Errorf("overloaded frame = %v, want clipped [32767 -32768]", frame[:2])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
	}
}

func TestEngineStopsAndReleases(t *testing.T) {
	src := &toneSource{v: 0.1}
	e, cancel := startEngine(t, src)

	<-e.Frames()
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-e.Frames():
			if !ok {
				if !src.released.Load() {
					t.Error("ReleaseResources not called on shutdown")
				}
				if e.Rendered() < 1 {
					t.Errorf("Rendered = %d, want >= 1", e.Rendered())
				}
				return
			}
		case <-deadline:
			t.Fatal("frames channel not closed after cancel")
		}
	}
}

func TestEngineFeedsBroadcaster(t *testing.T) {
	e, _ := startEngine(t, &toneSource{v: 0.25})
	b := NewBroadcaster()
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, e.Frames())

	select {
	case frame := <-l.C:
		if frame[0] != 8192 {
			t.Errorf("broadcast frame[0] = %d, want 8192", frame[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for broadcast frame")
	}
}

// --- Monitor ---

func TestMonitorHandlerWithoutEncoder(t *testing.T) {
	b := NewBroadcaster()
	h := NewMonitorHandler(b, "/nonexistent/ffmpeg")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d, want 0 after failed start", b.ListenerCount())
	}
}

func TestWebRTCRejectsNonPost(t *testing.T) {
	h := NewWebRTCHandler(NewBroadcaster())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webrtc", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/webrtc", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Methods") != "POST" {
		t.Errorf("OPTIONS = %d %q, want 200 POST", rec.Code, rec.Header().Get("Access-Control-Allow-Methods"))
	}
}
