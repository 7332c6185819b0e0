package audio

import "github.com/gopxl/beep/v2"

// Mixer sums any number of sources at unity gain. There is no normalisation:
// two full-scale decks clip at the PCM conversion.
//
// Sources are registered before playback starts; Add is not safe to call
// while NextBlock is running.
type Mixer struct {
	sources []AudioSource
	scratch [][2]float64
}

// NewMixer returns a mixer over sources.
func NewMixer(sources ...AudioSource) *Mixer {
	return &Mixer{sources: sources}
}

// Add registers another source.
func (m *Mixer) Add(s AudioSource) {
	m.sources = append(m.sources, s)
}

// Sources returns the registered sources in order.
func (m *Mixer) Sources() []AudioSource {
	return m.sources
}

// PrepareToPlay allocates the scratch block and prepares every source.
func (m *Mixer) PrepareToPlay(blockSize int, sampleRate beep.SampleRate) {
	if blockSize < 1 {
		blockSize = FrameSize
	}
	m.scratch = make([][2]float64, blockSize)
	for _, s := range m.sources {
		s.PrepareToPlay(blockSize, sampleRate)
	}
}

// NextBlock fills buf with the sample-wise sum of every source. Blocks
// longer than the prepared size are rendered in prepared-size chunks. An
// unprepared mixer renders silence.
func (m *Mixer) NextBlock(buf [][2]float64) {
	silence(buf)
	if len(m.sources) == 0 || len(m.scratch) == 0 {
		return
	}
	for _, s := range m.sources {
		for off := 0; off < len(buf); off += len(m.scratch) {
			chunk := buf[off:min(off+len(m.scratch), len(buf))]
			tmp := m.scratch[:len(chunk)]
			s.NextBlock(tmp)
			for i := range chunk {
				chunk[i][0] += tmp[i][0]
				chunk[i][1] += tmp[i][1]
			}
		}
	}
}

// ReleaseResources forwards to every source.
func (m *Mixer) ReleaseResources() {
	for _, s := range m.sources {
		s.ReleaseResources()
	}
}
