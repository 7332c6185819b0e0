package deck

import (
	"encoding/json"
	"fmt"

	"github.com/ac-schroeder/DJApp/internal/audio"
)

// Event is a control action for one deck. The set is closed: only the types
// in this file implement it.
type Event interface {
	eventType() string
}

type (
	// Load opens a file (path or file:// URL) on the deck.
	Load struct{ Locator string }
	// Play rewinds to the start and plays.
	Play struct{}
	// Pause holds the playhead.
	Pause struct{}
	// Stop halts and rewinds.
	Stop struct{}
	// SetGain sets the linear gain in [0, 1].
	SetGain struct{ Value float64 }
	// SetSpeed sets the playback ratio. Zero is ignored.
	SetSpeed struct{ Value float64 }
	// Seek moves the playhead to a fraction of the track.
	Seek struct{ Fraction float64 }
	SetLowShelf  struct{ audio.ShelfParams }
	SetHighShelf struct{ audio.ShelfParams }
)

func (Load) eventType() string         { return "load" }
func (Play) eventType() string         { return "play" }
func (Pause) eventType() string        { return "pause" }
func (Stop) eventType() string         { return "stop" }
func (SetGain) eventType() string      { return "setGain" }
func (SetSpeed) eventType() string     { return "setSpeed" }
func (Seek) eventType() string         { return "seek" }
func (SetLowShelf) eventType() string  { return "setLowShelf" }
func (SetHighShelf) eventType() string { return "setHighShelf" }

// wireEvent is the JSON form accepted by DecodeEvent:
//
//	{"type": "setGain", "value": 0.5}
//	{"type": "seek", "fraction": 0.25}
//	{"type": "setLowShelf", "frequency": 120, "gain": 0.5, "q": 1}
type wireEvent struct {
	Type      string  `json:"type"`
	Locator   string  `json:"locator"`
	Value     float64 `json:"value"`
	Fraction  float64 `json:"fraction"`
	Frequency float64 `json:"frequency"`
	Gain      float64 `json:"gain"`
	Q         float64 `json:"q"`
}

// DecodeEvent parses one JSON event.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	shelf := audio.ShelfParams{Frequency: w.Frequency, Gain: w.Gain, Q: w.Q}
	switch w.Type {
	case "load":
		return Load{Locator: w.Locator}, nil
	case "play":
		return Play{}, nil
	case "pause":
		return Pause{}, nil
	case "stop":
		return Stop{}, nil
	case "setGain":
		return SetGain{Value: w.Value}, nil
	case "setSpeed":
		return SetSpeed{Value: w.Value}, nil
	case "seek":
		return Seek{Fraction: w.Fraction}, nil
	case "setLowShelf":
		return SetLowShelf{shelf}, nil
	case "setHighShelf":
		return SetHighShelf{shelf}, nil
	default:
		return nil, fmt.Errorf("decode event: unknown type %q", w.Type)
	}
}
