package audio

import (
	"math"
	"testing"
	"time"
)

func constantClip(value float64, n, rate int) *Clip {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = value
	}
	return NewClip(samples, rate)
}

func TestClipDuration(t *testing.T) {
	tests := []struct {
		name   string
		clip   *Clip
		want   time.Duration
		wantMS int
	}{
		{"one second", constantClip(0, 1000, 1000), time.Second, 1000},
		{"half second at 22050", constantClip(0, 11025, 22050), 500 * time.Millisecond, 500},
		{"empty", NewClip(nil, 22050), 0, 0},
		{"no rate", NewClip(make([]float64, 10), 0), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.clip.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
			if got := tt.clip.Milliseconds(); got != tt.wantMS {
				t.Errorf("Milliseconds() = %d, want %d", got, tt.wantMS)
			}
		})
	}
}

func TestClipPeakAndRMS(t *testing.T) {
	c := NewClip([]float64{0.25, -0.75, 0.5, 0}, 1000)
	if got := c.Peak(); got != 0.75 {
		t.Errorf("Peak() = %v, want 0.75", got)
	}

	square := NewClip([]float64{0.5, -0.5, 0.5, -0.5}, 1000)
	if got := square.RMS(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS() = %v, want 0.5", got)
	}
	if got := NewClip(nil, 1000).RMS(); got != 0 {
		t.Errorf("RMS() of empty clip = %v, want 0", got)
	}
}

func TestClipSlice(t *testing.T) {
	c := NewClip(make([]float64, 1000), 1000)
	for i := range c.Samples {
		c.Samples[i] = float64(i) / 1000
	}

	tests := []struct {
		name      string
		start     int
		end       int
		wantLen   int
		wantFirst float64
	}{
		{"middle", 100, 200, 100, 0.1},
		{"clamped end", 900, 5000, 100, 0.9},
		{"negative start", -10, 10, 10, 0},
		{"inverted", 500, 400, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := c.Slice(tt.start, tt.end)
			if len(s.Samples) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(s.Samples), tt.wantLen)
			}
			if tt.wantLen > 0 && math.Abs(s.Samples[0]-tt.wantFirst) > 1e-9 {
				t.Errorf("first sample = %v, want %v", s.Samples[0], tt.wantFirst)
			}
		})
	}
}

func TestClipResample(t *testing.T) {
	c := NewClip([]float64{0, 1, 0, -1}, 1000)

	up := c.Resample(2000)
	if up.SampleRate != 2000 {
		t.Errorf("SampleRate = %d, want 2000", up.SampleRate)
	}
	if len(up.Samples) != 8 {
		t.Fatalf("len = %d, want 8", len(up.Samples))
	}
	if math.Abs(up.Samples[1]-0.5) > 1e-9 {
		t.Errorf("interpolated sample = %v, want 0.5", up.Samples[1])
	}

	down := constantClip(0.3, 44100, 44100).Resample(22050)
	if len(down.Samples) != 22050 {
		t.Errorf("len = %d, want 22050", len(down.Samples))
	}

	same := c.Resample(1000)
	same.Samples[0] = 9
	if c.Samples[0] != 0 {
		t.Error("Resample to the same rate must copy samples")
	}
}

func TestClipNormalize(t *testing.T) {
	c := NewClip([]float64{0.25, -0.5, 0.1}, 1000)
	n := c.Normalize(0.1)

	want := DBToAmplitude(-0.1)
	if got := n.Peak(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Peak() after Normalize = %v, want %v", got, want)
	}
	if math.Abs(n.Samples[0]-want/2) > 1e-9 {
		t.Errorf("relative level not preserved: %v", n.Samples[0])
	}

	silent := NewClip(make([]float64, 10), 1000).Normalize(0.1)
	if silent.Peak() != 0 {
		t.Error("Normalize must leave silence untouched")
	}
}

func TestConcat(t *testing.T) {
	a := constantClip(0.5, 100, 1000)
	b := constantClip(-0.5, 200, 2000)

	out := Concat(1000, 500*time.Millisecond, a, b)
	if out.SampleRate != 1000 {
		t.Errorf("SampleRate = %d, want 1000", out.SampleRate)
	}
	// 100 + 500 pause + 100 (b resampled) and no trailing pause
	if len(out.Samples) != 700 {
		t.Fatalf("len = %d, want 700", len(out.Samples))
	}
	if out.Samples[99] != 0.5 || out.Samples[100] != 0 || out.Samples[599] != 0 || out.Samples[600] != -0.5 {
		t.Error("clips or pause in the wrong place")
	}

	single := Concat(1000, 500*time.Millisecond, a)
	if len(single.Samples) != 100 {
		t.Errorf("single clip len = %d, want 100", len(single.Samples))
	}

	if empty := Concat(1000, time.Second); len(empty.Samples) != 0 {
		t.Errorf("empty concat len = %d, want 0", len(empty.Samples))
	}
}

func TestSilence(t *testing.T) {
	s := Silence(500*time.Millisecond, 22050)
	if len(s.Samples) != 11025 {
		t.Errorf("len = %d, want 11025", len(s.Samples))
	}
	if s.Peak() != 0 {
		t.Error("Silence must be silent")
	}
}

func TestDecibels(t *testing.T) {
	if got := DBToAmplitude(-40); math.Abs(got-0.01) > 1e-12 {
		t.Errorf("DBToAmplitude(-40) = %v, want 0.01", got)
	}
	if got := AmplitudeToDB(0.1); math.Abs(got+20) > 1e-9 {
		t.Errorf("AmplitudeToDB(0.1) = %v, want -20", got)
	}
	if !math.IsInf(AmplitudeToDB(0), -1) {
		t.Error("AmplitudeToDB(0) must be -Inf")
	}
}
