package library

import (
	"errors"
	"fmt"
	"time"
)

// Track is one library entry. Tracks are values; the library never mutates
// one after it has been added.
type Track struct {
	ID       int    `json:"id"`
	FileName string `json:"fileName"`
	Path     string `json:"path"`
	Length   string `json:"length"`
}

var (
	ErrTrackNotFound = errors.New("track not found")
	ErrMissingFile   = errors.New("library entry file missing")
	ErrPersistence   = errors.New("library persistence failed")
)

// Duration parses Length back into a duration.
func (t Track) Duration() (time.Duration, error) {
	return ParseLength(t.Length)
}

// ParseLength reverses audio.FormatLength: "2m 30s" -> 150s.
func ParseLength(s string) (time.Duration, error) {
	var m, sec int
	if _, err := fmt.Sscanf(s, "%dm %ds", &m, &sec); err != nil {
		return 0, fmt.Errorf("parse length %q: %w", s, err)
	}
	if m < 0 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("parse length %q: out of range", s)
	}
	return time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}
