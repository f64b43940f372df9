package audio

import "sort"

// Mixer sums click voices into consecutive sample frames. A voice is
// nothing but its absolute start sample; the waveform comes from the
// shared, immutable template.
type Mixer struct {
	template []float64
	voices   []int64 // start samples, ascending
}

// NewMixer returns a mixer that plays template for every voice.
func NewMixer(template []float64) *Mixer {
	return &Mixer{template: template}
}

// Add queues a voice starting at sample start.
func (m *Mixer) Add(start int64) {
	i := sort.Search(len(m.voices), func(i int) bool { return m.voices[i] > start })
	m.voices = append(m.voices, 0)
	copy(m.voices[i+1:], m.voices[i:])
	m.voices[i] = start
}

// Pending returns the number of voices not yet fully rendered.
func (m *Mixer) Pending() int {
	return len(m.voices)
}

// Mix adds every voice overlapping [from, from+len(buf)) into buf and
// forgets voices that finish inside the frame.
func (m *Mixer) Mix(from int64, buf []float64) {
	end := from + int64(len(buf))
	n := int64(len(m.template))
	keep := m.voices[:0]
	for _, start := range m.voices {
		if start >= end {
			keep = append(keep, start)
			continue
		}
		if start+n <= from {
			continue
		}
		lo := max(start, from)
		hi := min(start+n, end)
		for s := lo; s < hi; s++ {
			buf[s-from] += m.template[s-start]
		}
		if start+n > end {
			keep = append(keep, start)
		}
	}
	m.voices = keep
}
