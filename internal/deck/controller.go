package deck

import (
	"errors"
	"fmt"

	"github.com/ac-schroeder/DJApp/internal/audio"
	"github.com/ac-schroeder/DJApp/internal/library"
	"github.com/ac-schroeder/DJApp/internal/logger"
)

// TrackSource resolves library IDs. *library.Library satisfies it.
type TrackSource interface {
	Get(id int) (library.Track, error)
}

// Controller turns UI events into calls on one deck.
type Controller struct {
	deck *audio.Deck
}

// NewController wraps d.
func NewController(d *audio.Deck) *Controller {
	return &Controller{deck: d}
}

// Deck returns the controlled deck.
func (c *Controller) Deck() *audio.Deck { return c.deck }

// Name is the deck name.
func (c *Controller) Name() string { return c.deck.Name() }

// Handle applies ev. Rejected parameters leave the deck unchanged and return
// an error wrapping audio.ErrOutOfRange.
func (c *Controller) Handle(ev Event) error {
	d := c.deck
	logger.Debug("deck event", logger.String("deck", d.Name()), logger.String("type", ev.eventType()))

	switch e := ev.(type) {
	case Load:
		return d.Load(e.Locator)
	case Play:
		if err := d.SetPosition(0); err != nil && !errors.Is(err, audio.ErrNotLoaded) {
			return err
		}
		d.Start()
	case Pause:
		d.Pause()
	case Stop:
		d.Stop()
	case SetGain:
		return d.SetGain(e.Value)
	case SetSpeed:
		if e.Value == 0 {
			// A zero ratio would stall the resampler; the control is ignored.
			return nil
		}
		return d.SetSpeed(e.Value)
	case Seek:
		return d.SetPositionRelative(e.Fraction)
	case SetLowShelf:
		return d.SetLowShelf(e.ShelfParams)
	case SetHighShelf:
		return d.SetHighShelf(e.ShelfParams)
	default:
		return fmt.Errorf("unhandled event %T", ev)
	}
	return nil
}

// LoadTrack loads the library track with id.
func (c *Controller) LoadTrack(src TrackSource, id int) (library.Track, error) {
	t, err := src.Get(id)
	if err != nil {
		return library.Track{}, err
	}
	if err := c.deck.Load(t.Path); err != nil {
		return library.Track{}, err
	}
	return t, nil
}

// Status is a point-in-time view of a deck for display.
type Status struct {
	Name             string            `json:"name"`
	State            string            `json:"state"`
	Locator          string            `json:"locator,omitempty"`
	TrackLength      string            `json:"trackLength"`
	Length           float64           `json:"length"`
	Position         float64           `json:"position"`
	PositionRelative float64           `json:"positionRelative"`
	Gain             float64           `json:"gain"`
	Speed            float64           `json:"speed"`
	LowShelf         audio.ShelfParams `json:"lowShelf"`
	HighShelf        audio.ShelfParams `json:"highShelf"`
}

// Status snapshots the deck.
func (c *Controller) Status() Status {
	d := c.deck
	low, _, _ := d.LowShelf()
	high, _, _ := d.HighShelf()
	return Status{
		Name:             d.Name(),
		State:            d.State().String(),
		Locator:          d.Locator(),
		TrackLength:      d.TrackLength(),
		Length:           d.Length().Seconds(),
		Position:         d.Position().Seconds(),
		PositionRelative: d.PositionRelative(),
		Gain:             d.Gain(),
		Speed:            d.Speed(),
		LowShelf:         low,
		HighShelf:        high,
	}
}
