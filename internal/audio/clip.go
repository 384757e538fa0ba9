package audio

import (
	"math"
	"time"
)

// Clip is a mono audio signal with samples in the range [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// NewClip creates a clip from samples.
func NewClip(samples []float64, sampleRate int) *Clip {
	return &Clip{Samples: samples, SampleRate: sampleRate}
}

// Silence returns a silent clip of duration d.
func Silence(d time.Duration, sampleRate int) *Clip {
	n := int(d.Seconds() * float64(sampleRate))
	if n < 0 {
		n = 0
	}
	return &Clip{Samples: make([]float64, n), SampleRate: sampleRate}
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Milliseconds returns the clip length rounded to whole milliseconds.
func (c *Clip) Milliseconds() int {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return int(math.Round(1000 * float64(len(c.Samples)) / float64(c.SampleRate)))
}

// Peak returns the maximum absolute sample value.
func (c *Clip) Peak() float64 {
	var peak float64
	for _, s := range c.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root mean square of the clip.
func (c *Clip) RMS() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range c.Samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(c.Samples)))
}

// Slice returns the part of the clip between start and end milliseconds.
// Bounds are clamped to the clip.
func (c *Clip) Slice(startMS, endMS int) *Clip {
	start := c.frameAt(startMS)
	end := c.frameAt(endMS)
	if end < start {
		end = start
	}
	out := make([]float64, end-start)
	copy(out, c.Samples[start:end])
	return &Clip{Samples: out, SampleRate: c.SampleRate}
}

func (c *Clip) frameAt(ms int) int {
	i := int(float64(ms) * float64(c.SampleRate) / 1000)
	if i < 0 {
		return 0
	}
	if i > len(c.Samples) {
		return len(c.Samples)
	}
	return i
}

// Resample converts the clip to rate using linear interpolation.
func (c *Clip) Resample(rate int) *Clip {
	if rate <= 0 || rate == c.SampleRate || len(c.Samples) == 0 {
		out := make([]float64, len(c.Samples))
		copy(out, c.Samples)
		r := c.SampleRate
		if rate > 0 {
			r = rate
		}
		return &Clip{Samples: out, SampleRate: r}
	}

	ratio := float64(c.SampleRate) / float64(rate)
	n := int(float64(len(c.Samples)) / ratio)
	out := make([]float64, n)
	last := len(c.Samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		if idx >= last {
			out[i] = c.Samples[last]
			continue
		}
		out[i] = c.Samples[idx]*(1-frac) + c.Samples[idx+1]*frac
	}
	return &Clip{Samples: out, SampleRate: rate}
}

// Normalize scales the clip so its peak sits headroomDB below full scale.
// Silent clips are returned unchanged.
func (c *Clip) Normalize(headroomDB float64) *Clip {
	out := make([]float64, len(c.Samples))
	copy(out, c.Samples)

	peak := c.Peak()
	if peak == 0 {
		return &Clip{Samples: out, SampleRate: c.SampleRate}
	}

	gain := DBToAmplitude(-headroomDB) / peak
	for i := range out {
		out[i] = clamp(out[i] * gain)
	}
	return &Clip{Samples: out, SampleRate: c.SampleRate}
}

// Concat joins clips with gap of silence between consecutive clips. Clips
// are resampled to rate first. No silence follows the last clip.
func Concat(rate int, gap time.Duration, clips ...*Clip) *Clip {
	pause := Silence(gap, rate).Samples

	var total int
	resampled := make([]*Clip, 0, len(clips))
	for _, c := range clips {
		if c == nil {
			continue
		}
		r := c.Resample(rate)
		resampled = append(resampled, r)
		total += len(r.Samples) + len(pause)
	}

	out := make([]float64, 0, total)
	for i, c := range resampled {
		if i > 0 {
			out = append(out, pause...)
		}
		out = append(out, c.Samples...)
	}
	return &Clip{Samples: out, SampleRate: rate}
}

// DBToAmplitude converts a dBFS value to a linear amplitude.
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

// AmplitudeToDB converts a linear amplitude to dBFS.
func AmplitudeToDB(a float64) float64 {
	if a <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(a)
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
