package audio

import (
	"fmt"
	"math"
)

// Overview decodes the loaded file again and returns the peak absolute
// amplitude of each of bins equal slices, for drawing a waveform. It runs on
// the caller's goroutine and never touches the playing source.
func (d *Deck) Overview(bins int) ([]float64, error) {
	if bins < 1 {
		return nil, &RangeError{Param: "bins", Value: float64(bins), Min: 1, Max: math.MaxInt32}
	}
	path := d.Locator()
	if path == "" {
		return nil, ErrNotLoaded
	}
	return Overview(d.decoder, path, bins)
}

// Overview computes peak amplitudes for path; see Deck.Overview.
func Overview(dec Decoder, path string, bins int) ([]float64, error) {
	s, _, err := dec.Decode(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	total := s.Len()
	peaks := make([]float64, bins)
	if total == 0 {
		return peaks, nil
	}

	buf := make([][2]float64, 4096)
	pos := 0
	for pos < total {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			bin := (pos + i) * bins / total
			if bin >= bins {
				bin = bins - 1
			}
			peak := math.Max(math.Abs(buf[i][0]), math.Abs(buf[i][1]))
			if peak > peaks[bin] {
				peaks[bin] = peak
			}
		}
		pos += n
		if !ok || n == 0 {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("overview %s: %w", path, err)
	}
	return peaks, nil
}
