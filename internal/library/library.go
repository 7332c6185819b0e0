package library

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ac-schroeder/DJApp/internal/audio"
	"github.com/ac-schroeder/DJApp/internal/logger"
)

// Prober reports the duration of an audio file. *audio.Registry satisfies it.
type Prober interface {
	Probe(path string) (time.Duration, error)
}

// Config controls where the library persists and how eagerly.
type Config struct {
	Path           string
	SaveOnMutation bool
}

// Library is an ordered, persisted collection of tracks. IDs come from a
// counter that only ever grows, so an ID is never handed out twice.
//
// All methods are safe for concurrent use.
type Library struct {
	cfg    Config
	prober Prober

	mu      sync.RWMutex
	tracks  []Track
	counter int
}

// New returns an empty library. Call Load to read persisted tracks.
func New(cfg Config, prober Prober) *Library {
	return &Library{cfg: cfg, prober: prober}
}

// Path is the library file location.
func (l *Library) Path() string { return l.cfg.Path }

// Add probes locator and appends it with the next ID. Unreadable files are
// never added.
func (l *Library) Add(locator string) (Track, error) {
	t, err := l.probe(locator)
	if err != nil {
		return Track{}, err
	}
	added := l.insert(t)
	l.saveIfConfigured()
	return added[0], nil
}

// probe builds an unnumbered track for locator.
func (l *Library) probe(locator string) (Track, error) {
	path, err := audio.ResolveLocator(locator)
	if err != nil {
		logger.Warn("track add rejected", logger.String("locator", locator), logger.ErrorField(err))
		return Track{}, err
	}
	d, err := l.prober.Probe(path)
	if err != nil {
		if !errors.Is(err, audio.ErrUnreadableSource) {
			err = fmt.Errorf("%w: %v", audio.ErrUnreadableSource, err)
		}
		logger.Warn("track add failed", logger.String("path", path), logger.ErrorField(err))
		return Track{}, err
	}
	return Track{
		FileName: filepath.Base(path),
		Path:     path,
		Length:   audio.FormatLength(d),
	}, nil
}

// insert numbers and appends tracks in order.
func (l *Library) insert(tracks ...Track) []Track {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range tracks {
		l.counter++
		tracks[i].ID = l.counter
		l.tracks = append(l.tracks, tracks[i])
		logger.Info("track added",
			logger.Int("id", tracks[i].ID),
			logger.String("file", tracks[i].FileName),
			logger.String("length", tracks[i].Length),
		)
	}
	return tracks
}

// Remove deletes the track with id. Removing an unknown id is a no-op and
// reports false. The counter is untouched.
func (l *Library) Remove(id int) bool {
	l.mu.Lock()
	removed := false
	for i, t := range l.tracks {
		if t.ID == id {
			l.tracks = append(l.tracks[:i], l.tracks[i+1:]...)
			removed = true
			break
		}
	}
	l.mu.Unlock()

	if removed {
		logger.Info("track removed", logger.Int("id", id))
		l.saveIfConfigured()
	}
	return removed
}

// Get returns the track with id. Should duplicates ever exist the last
// inserted one wins.
func (l *Library) Get(id int) (Track, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.tracks) - 1; i >= 0; i-- {
		if l.tracks[i].ID == id {
			return l.tracks[i], nil
		}
	}
	return Track{}, fmt.Errorf("%w: id %d", ErrTrackNotFound, id)
}

// Search returns tracks whose file name contains keyword, ignoring case, in
// library order. An empty keyword matches nothing.
func (l *Library) Search(keyword string) []Track {
	out := []Track{}
	if keyword == "" {
		return out
	}
	kw := strings.ToLower(keyword)

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.tracks {
		if strings.Contains(strings.ToLower(t.FileName), kw) {
			out = append(out, t)
		}
	}
	return out
}

// Clear removes every track. The counter is not reset.
func (l *Library) Clear() {
	l.mu.Lock()
	n := len(l.tracks)
	l.tracks = nil
	l.mu.Unlock()

	logger.Info("library cleared", logger.Int("removed", n))
	l.saveIfConfigured()
}

// Tracks returns a snapshot in library order.
func (l *Library) Tracks() []Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Track, len(l.tracks))
	copy(out, l.tracks)
	return out
}

// Len is the number of tracks.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// Counter is the last ID handed out.
func (l *Library) Counter() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counter
}

// HasPath reports whether a track with the absolute path is present.
func (l *Library) HasPath(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.tracks {
		if t.Path == path {
			return true
		}
	}
	return false
}

func (l *Library) saveIfConfigured() {
	if !l.cfg.SaveOnMutation {
		return
	}
	// Save logs its own failures.
	_ = l.Save()
}
