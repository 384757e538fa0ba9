package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/voxclone/internal/audio"
)

// ErrNoSamples is returned when a profile has nothing to combine.
var ErrNoSamples = errors.New("no voice samples found")

// PrepareOptions controls sample cleaning.
type PrepareOptions struct {
	SampleRate       int
	MinSilence       time.Duration
	SilenceThreshold float64 // dBFS
	Headroom         float64 // dB below full scale after normalizing
}

// DefaultPrepareOptions matches the defaults of the prepare command.
func DefaultPrepareOptions() PrepareOptions {
	return PrepareOptions{
		SampleRate:       22050,
		MinSilence:       500 * time.Millisecond,
		SilenceThreshold: -40,
		Headroom:         0.1,
	}
}

// Prepared describes one cleaned recording.
type Prepared struct {
	Input  string
	Output string
	Before time.Duration
	After  time.Duration
	Size   int64

	// Trimmed is false when no non-silent audio was found and the clip was
	// written untrimmed.
	Trimmed bool
}

// Prepare cleans one recording: mono, resampled, peak normalized and with
// leading and trailing silence removed. An empty output writes next to the
// input as <name>.processed.wav.
func Prepare(input, output string, opts PrepareOptions) (*Prepared, error) {
	if output == "" {
		output = ProcessedPath(input)
	}

	clip, err := audio.DecodeFile(input)
	if err != nil {
		return nil, err
	}
	before := clip.Duration()

	clip = clip.Resample(opts.SampleRate).Normalize(opts.Headroom)
	clip, trimmed := audio.TrimSilence(clip, opts.MinSilence, opts.SilenceThreshold)

	if err := clip.WriteFile(output); err != nil {
		return nil, err
	}
	info, err := os.Stat(output)
	if err != nil {
		return nil, fmt.Errorf("unable to stat %s: %w", output, err)
	}

	log.Debug("Prepared sample", "input", input, "output", output, "before", before, "after", clip.Duration())
	return &Prepared{
		Input:   input,
		Output:  output,
		Before:  before,
		After:   clip.Duration(),
		Size:    info.Size(),
		Trimmed: trimmed,
	}, nil
}

// RawSamples returns the recordings of a profile that are not themselves
// processed copies.
func (l *Library) RawSamples(name string) ([]string, error) {
	samples, err := l.Samples(name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range samples {
		if !strings.HasSuffix(s, ProcessedSuffix) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Batch is the outcome of PrepareAll.
type Batch struct {
	Prepared []*Prepared
	Skipped  []string
}

// PrepareAll cleans every raw sample of a profile. Samples that fail to
// load are skipped and reported. progress, when set, is called before each
// file.
func (l *Library) PrepareAll(name string, opts PrepareOptions, progress func(i, n int, path string)) (*Batch, error) {
	samples, err := l.RawSamples(name)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSamples, l.Dir(name))
	}

	b := &Batch{Prepared: make([]*Prepared, 0, len(samples))}
	for i, s := range samples {
		if progress != nil {
			progress(i+1, len(samples), s)
		}
		p, err := Prepare(s, "", opts)
		if err != nil {
			log.Debug("Could not prepare sample", "file", s, "err", err)
			b.Skipped = append(b.Skipped, s)
			continue
		}
		b.Prepared = append(b.Prepared, p)
	}
	return b, nil
}

// Combined describes a freshly built combined.wav.
type Combined struct {
	Path     string
	Sources  []string
	Skipped  []string
	Duration time.Duration
	Size     int64
}

// Combine joins a profile's samples into combined.wav with gap of silence
// between them. Samples that fail to load are skipped and reported.
func (l *Library) Combine(name string, rate int, gap time.Duration, progress func(i, n int, path string)) (*Combined, error) {
	sources, err := l.CombineSources(name)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSamples, l.Dir(name))
	}

	res := &Combined{Path: filepath.Join(l.Dir(name), CombinedName)}
	clips := make([]*audio.Clip, 0, len(sources))
	for i, s := range sources {
		if progress != nil {
			progress(i+1, len(sources), s)
		}
		clip, err := audio.DecodeFile(s)
		if err != nil {
			log.Debug("Could not load sample", "file", s, "err", err)
			res.Skipped = append(res.Skipped, s)
			continue
		}
		clips = append(clips, clip)
		res.Sources = append(res.Sources, s)
	}
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: every sample in %s failed to load", ErrNoSamples, l.Dir(name))
	}

	combined := audio.Concat(rate, gap, clips...)
	if err := combined.WriteFile(res.Path); err != nil {
		return nil, err
	}
	info, err := os.Stat(res.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to stat %s: %w", res.Path, err)
	}
	res.Duration = combined.Duration()
	res.Size = info.Size()
	return res, nil
}
