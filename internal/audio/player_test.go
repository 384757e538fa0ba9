package audio

import (
	"testing"
	"time"
)

// TestPlayerConfig tests the player configuration validation.
func TestPlayerConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    PlayerConfig
		expectErr bool
	}{
		{
			name:      "default config",
			config:    DefaultPlayerConfig(),
			expectErr: false,
		},
		{
			name:      "valid config 48000Hz",
			config:    PlayerConfig{SampleRate: 48000, BufferSize: 50 * time.Millisecond, Volume: 0.5},
			expectErr: false,
		},
		{
			name:      "invalid sample rate",
			config:    PlayerConfig{SampleRate: 22050, Volume: 1},
			expectErr: true,
		},
		{
			name:      "negative buffer",
			config:    PlayerConfig{SampleRate: 44100, BufferSize: -time.Millisecond, Volume: 1},
			expectErr: true,
		},
		{
			name:      "volume too loud",
			config:    PlayerConfig{SampleRate: 44100, Volume: 1.5},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.config)
			if (err != nil) != tt.expectErr {
				t.Errorf("validateConfig() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}

func TestPlayerStateString(t *testing.T) {
	tests := map[PlayerState]string{
		StateStopped:    "stopped",
		StatePlaying:    "playing",
		StateClosed:     "closed",
		PlayerState(42): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("PlayerState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
