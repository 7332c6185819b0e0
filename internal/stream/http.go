package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/ac-schroeder/DJApp/internal/audio"
	"github.com/ac-schroeder/DJApp/internal/logger"
)

// MonitorHandler serves the master output as a chunked MP3 stream, one
// FFmpeg encoder per connection.
type MonitorHandler struct {
	broadcaster *Broadcaster
	ffmpegPath  string
	bitrate     string
}

// NewMonitorHandler creates a monitor stream handler. An empty ffmpegPath
// uses "ffmpeg" from PATH.
func NewMonitorHandler(b *Broadcaster, ffmpegPath string) *MonitorHandler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &MonitorHandler{broadcaster: b, ffmpegPath: ffmpegPath, bitrate: "192k"}
}

func (h *MonitorHandler) encoder(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.ffmpegPath,
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", h.bitrate,
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)
}

func (h *MonitorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := h.encoder(ctx)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		logger.Error("monitor: stdin pipe", logger.ErrorField(err))
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		logger.Error("monitor: stdout pipe", logger.ErrorField(err))
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := cmd.Start(); err != nil {
		logger.Error("monitor: ffmpeg start", logger.String("ffmpeg", h.ffmpegPath), logger.ErrorField(err))
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	defer cmd.Wait()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "djdeck master")

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	remote := r.RemoteAddr
	logger.Info("monitor listener connected", logger.String("remote", remote), logger.Int("listeners", h.broadcaster.ListenerCount()))
	defer logger.Info("monitor listener disconnected", logger.String("remote", remote))

	// PCM in
	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case frame := <-listener.C:
				if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
					return
				}
			}
		}
	}()

	// MP3 out
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				logger.Warn("monitor: ffmpeg read", logger.ErrorField(err))
			}
			return
		}
	}
}
