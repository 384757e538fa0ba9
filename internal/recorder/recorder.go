// Package recorder captures voice samples from the microphone.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/voxclone/internal/audio"
	"github.com/dgnsrekt/voxclone/internal/output"
)

const (
	// DefaultSampleRate is the capture rate.
	DefaultSampleRate = 22050

	// DefaultDuration is used when no duration is given.
	DefaultDuration = 120 * time.Second

	// MinDuration is the shortest accepted recording.
	MinDuration = 5 * time.Second

	// ConfirmAbove is the length beyond which callers ask for confirmation.
	ConfirmAbove = 10 * time.Minute

	// SilenceThreshold is the peak amplitude below which a take counts as
	// silent.
	SilenceThreshold = 0.001

	countdownFrom = 3
)

var (
	// ErrDurationTooShort is returned for recordings under MinDuration
	ErrDurationTooShort = errors.New("duration must be at least 5 seconds")

	// ErrSilentRecording is returned when the microphone captured nothing
	ErrSilentRecording = errors.New("recording appears to be silent")
)

// NeedsConfirmation reports whether d is long enough that the user should
// confirm it first.
func NeedsConfirmation(d time.Duration) bool {
	return d > ConfirmAbove
}

// Options describes one recording.
type Options struct {
	Duration time.Duration
	Output   string // empty writes <dir>/sample_<ts>.wav

	// Countdown is called with 3, 2, 1 before capture starts.
	Countdown func(n int)
	// Started is called when capture begins.
	Started func()
}

// Recording describes a saved take.
type Recording struct {
	Path     string
	Duration time.Duration
	Size     int64
	Peak     float64
}

// Recorder records samples into a voice profile directory.
type Recorder struct {
	capturer   Capturer
	sampleRate int
	dir        string
	tick       time.Duration
	now        func() time.Time
	logger     *log.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSampleRate sets the capture rate.
func WithSampleRate(rate int) Option {
	return func(r *Recorder) {
		if rate > 0 {
			r.sampleRate = rate
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Recorder) {
		r.logger = l
	}
}

// withClock replaces the countdown interval and clock in tests.
func withClock(tick time.Duration, now func() time.Time) Option {
	return func(r *Recorder) {
		r.tick = tick
		r.now = now
	}
}

// New creates a recorder that saves into dir by default.
func New(capturer Capturer, dir string, opts ...Option) *Recorder {
	r := &Recorder{
		capturer:   capturer,
		sampleRate: DefaultSampleRate,
		dir:        dir,
		tick:       time.Second,
		now:        time.Now,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SampleRate returns the capture rate.
func (r *Recorder) SampleRate() int { return r.sampleRate }

// Record counts down, captures audio and writes it as a WAV file. Silent
// takes are discarded.
func (r *Recorder) Record(ctx context.Context, opts Options) (*Recording, error) {
	if opts.Duration == 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Duration < MinDuration {
		return nil, ErrDurationTooShort
	}

	path := opts.Output
	if path == "" {
		path = filepath.Join(r.dir, output.SampleName(r.now()))
	}

	for i := countdownFrom; i > 0; i-- {
		if opts.Countdown != nil {
			opts.Countdown(i)
		}
		if err := sleep(ctx, r.tick); err != nil {
			return nil, err
		}
	}

	if opts.Started != nil {
		opts.Started()
	}
	r.logger.Debug("Recording", "duration", opts.Duration, "rate", r.sampleRate, "path", path)

	pcm, err := r.capturer.Capture(ctx, opts.Duration, r.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("error recording audio: %w", err)
	}

	clip := audio.FromPCM16(pcm, r.sampleRate)
	peak := clip.Peak()
	if len(clip.Samples) == 0 || peak < SilenceThreshold {
		return nil, ErrSilentRecording
	}

	if err := clip.WriteFile(path); err != nil {
		return nil, fmt.Errorf("unable to save recording: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &Recording{
		Path:     path,
		Duration: clip.Duration(),
		Size:     info.Size(),
		Peak:     peak,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
