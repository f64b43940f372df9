package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// ClickParams shapes the percussive click: a square wave with an
// exponential attack to PeakGain and exponential decay back to FloorGain.
type ClickParams struct {
	SampleRate  int
	FrequencyHz float64
	PeakGain    float64
	FloorGain   float64
	Attack      time.Duration // time to reach PeakGain
	Decay       time.Duration // time (from onset) to fall back to FloorGain
	Stop        time.Duration // voice length
}

// DefaultClick is a 1 kHz square click peaking at 0.5 after 1ms and
// fading by 50ms, with the voice cut at 60ms.
func DefaultClick() ClickParams {
	return ClickParams{
		SampleRate:  48000,
		FrequencyHz: 1000,
		PeakGain:    0.5,
		FloorGain:   0.001,
		Attack:      time.Millisecond,
		Decay:       50 * time.Millisecond,
		Stop:        60 * time.Millisecond,
	}
}

// Samples returns the number of samples in one click voice.
func (p ClickParams) Samples() int {
	return int(math.Round(p.Stop.Seconds() * float64(p.SampleRate)))
}

// Gain returns the envelope value t seconds after onset.
func (p ClickParams) Gain(t float64) float64 {
	floor, peak := p.FloorGain, p.PeakGain
	attack, decay := p.Attack.Seconds(), p.Decay.Seconds()
	switch {
	case t <= 0:
		return floor
	case t < attack:
		return floor * math.Pow(peak/floor, t/attack)
	case t < decay:
		return peak * math.Pow(floor/peak, (t-attack)/(decay-attack))
	default:
		return floor
	}
}

// RenderClick renders one click voice. The returned slice is treated as
// read-only by every voice that plays it.
func RenderClick(p ClickParams) []float64 {
	n := p.Samples()
	out := make([]float64, n)
	rate := float64(p.SampleRate)
	for i := range out {
		t := float64(i) / rate
		phase := math.Mod(float64(i)*p.FrequencyHz/rate, 1)
		s := 1.0
		if phase >= 0.5 {
			s = -1
		}
		out[i] = s * p.Gain(t)
	}
	return out
}

// PCM16 converts float samples in [-1,1] to signed 16-bit little-endian
// bytes, clipping anything outside the range.
func PCM16(samples []float64, dst []byte) []byte {
	need := len(samples) * 2
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	for i, s := range samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(v)))
	}
	return dst
}
