package audio

import (
	"encoding/binary"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Decoder opens audio files as seekable stereo streams. One Decoder is shared
// by every deck and by the track library.
type Decoder interface {
	Decode(path string) (beep.StreamSeekCloser, beep.Format, error)
}

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

// Registry maps file extensions to decoders. Extensions without a native
// decoder fall back to FFmpeg when an FFmpeg path is configured.
type Registry struct {
	decoders   map[string]decodeFunc
	ffmpegPath string
}

// NewRegistry returns a registry for mp3, wav, flac and ogg. ffmpegPath may
// be empty to disable the fallback.
func NewRegistry(ffmpegPath string) *Registry {
	return &Registry{
		decoders: map[string]decodeFunc{
			".mp3": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) },
			".wav": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) },
			".flac": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
				return flac.Decode(f)
			},
			".ogg": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) },
		},
		ffmpegPath: ffmpegPath,
	}
}

// Supports reports whether path has an extension the registry can open.
func (r *Registry) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := r.decoders[ext]; ok {
		return true
	}
	return r.ffmpegPath != "" && ffmpegExtensions[ext]
}

var ffmpegExtensions = map[string]bool{
	".m4a":  true,
	".aac":  true,
	".opus": true,
	".aiff": true,
	".aif":  true,
	".wma":  true,
}

// Decode opens path. Every failure wraps ErrUnreadableSource.
func (r *Registry) Decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := r.decoders[ext]
	if !ok {
		if r.ffmpegPath == "" || !ffmpegExtensions[ext] {
			return nil, beep.Format{}, fmt.Errorf("%w: %s: unsupported format %q", ErrUnreadableSource, path, ext)
		}
		return r.decodeFFmpeg(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	s, format, err := dec(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: decode %s: %v", ErrUnreadableSource, path, err)
	}
	if format.SampleRate <= 0 {
		s.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: %s: invalid sample rate %d", ErrUnreadableSource, path, format.SampleRate)
	}
	return s, format, nil
}

// Probe decodes just enough of path to report its duration.
func (r *Registry) Probe(path string) (time.Duration, error) {
	s, format, err := r.Decode(path)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return format.SampleRate.D(s.Len()), nil
}

// decodeFFmpeg runs FFmpeg to decode the whole file to 48kHz stereo PCM and
// serves it from memory.
func (r *Registry) decodeFFmpeg(path string) (beep.StreamSeekCloser, beep.Format, error) {
	cmd := exec.Command(r.ffmpegPath,
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: ffmpeg decode %s: %v", ErrUnreadableSource, path, err)
	}

	frames := make([][2]float64, len(out)/(2*Channels))
	for i := range frames {
		l := int16(binary.LittleEndian.Uint16(out[i*4:]))
		rr := int16(binary.LittleEndian.Uint16(out[i*4+2:]))
		frames[i] = [2]float64{float64(l) / 32768, float64(rr) / 32768}
	}

	format := beep.Format{SampleRate: SampleRate, NumChannels: Channels, Precision: 2}
	return NewMemStreamer(frames), format, nil
}

// MemStreamer serves decoded frames from memory.
type MemStreamer struct {
	frames [][2]float64
	pos    int
}

// NewMemStreamer wraps frames without copying them.
func NewMemStreamer(frames [][2]float64) *MemStreamer {
	return &MemStreamer{frames: frames}
}

func (m *MemStreamer) Stream(samples [][2]float64) (int, bool) {
	if m.pos >= len(m.frames) {
		return 0, false
	}
	n := copy(samples, m.frames[m.pos:])
	m.pos += n
	return n, true
}

func (m *MemStreamer) Err() error    { return nil }
func (m *MemStreamer) Len() int      { return len(m.frames) }
func (m *MemStreamer) Position() int { return m.pos }
func (m *MemStreamer) Close() error  { return nil }

func (m *MemStreamer) Seek(p int) error {
	if p < 0 || p > len(m.frames) {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, len(m.frames))
	}
	m.pos = p
	return nil
}

// ResolveLocator turns a plain path or file:// URL into an absolute path.
func ResolveLocator(locator string) (string, error) {
	if locator == "" {
		return "", fmt.Errorf("%w: empty locator", ErrUnreadableSource)
	}
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnreadableSource, err)
		}
		locator = u.Path
	}
	return filepath.Abs(locator)
}
