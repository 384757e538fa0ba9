package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// PlayerState represents the current state of the player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StateClosed
)

// String returns a readable state name.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// pollInterval is how often Play checks whether oto finished.
const pollInterval = 20 * time.Millisecond

// oto allows one context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

// Player plays clips through the system audio device using oto.
type Player struct {
	context *oto.Context

	// Keep PCM alive while oto reads from it.
	active []byte
	player *oto.Player

	state  atomic.Int32
	volume float64

	mu sync.Mutex

	sampleRate int
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	BufferSize time.Duration
	Volume     float64 // 0.0 to 1.0
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		BufferSize: 100 * time.Millisecond,
		Volume:     1.0,
	}
}

func validateConfig(config PlayerConfig) error {
	// oto only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	if config.Volume < 0 || config.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", config.Volume)
	}
	return nil
}

// NewPlayer opens the audio device. The device is opened once per process;
// later players must use the same sample rate.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   config.SampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   config.BufferSize,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoRate = config.SampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != config.SampleRate {
		return nil, fmt.Errorf("audio device already open at %d Hz", otoRate)
	}

	p := &Player{
		context:    otoCtx,
		volume:     config.Volume,
		sampleRate: config.SampleRate,
	}
	p.state.Store(int32(StateStopped))
	return p, nil
}

// Play plays clip and blocks until playback ends or ctx is done.
func (p *Player) Play(ctx context.Context, clip *Clip) error {
	if clip == nil || len(clip.Samples) == 0 {
		return errors.New("audio data is empty")
	}

	p.mu.Lock()
	if PlayerState(p.state.Load()) == StateClosed {
		p.mu.Unlock()
		return errors.New("player is closed")
	}
	p.stopLocked()

	p.active = clip.Resample(p.sampleRate).PCM16()
	player := p.context.NewPlayer(bytes.NewReader(p.active))
	player.SetVolume(p.volume)
	p.player = player
	player.Play()
	p.state.Store(int32(StatePlaying))
	p.mu.Unlock()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				p.mu.Lock()
				if p.player == player {
					p.stopLocked()
				}
				p.mu.Unlock()
				return player.Err()
			}
		}
	}
}

// Stop stops playback and releases the current stream.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if p.player != nil {
		p.player.Pause()
		_ = p.player.Close()
		p.player = nil
	}
	p.active = nil
	if PlayerState(p.state.Load()) != StateClosed {
		p.state.Store(int32(StateStopped))
	}
}

// Close stops playback. The shared device stays open for the process.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.state.Store(int32(StateClosed))
	return nil
}
