package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/voxclone/internal/voice"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	minSampleRate = 8000
	maxSampleRate = 192000
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch strings.ToLower(c.Server.Mode) {
	case "latents", "speaker":
	default:
		fail("server.mode must be latents or speaker, got %q", c.Server.Mode)
	}
	if strings.TrimSpace(c.Server.URL) == "" {
		fail("server.url is required")
	}
	if c.Server.Timeout <= 0 {
		fail("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Server.RequestsPerMinute < 0 {
		fail("server.requests_per_minute must not be negative")
	}

	if c.Voice.MaxTextLength < 1 {
		fail("voice.max_text_length must be at least 1, got %d", c.Voice.MaxTextLength)
	}
	if !voice.IsSupportedLanguage(c.Voice.Language) {
		fail("voice.language %q is not supported (supported: %s)",
			c.Voice.Language, strings.Join(voice.SupportedLanguages(), ", "))
	}

	if c.Cache.Enabled {
		if c.Cache.MemoryMB < 1 {
			fail("cache.memory_mb must be at least 1")
		}
		if c.Cache.DiskMB < 1 {
			fail("cache.disk_mb must be at least 1")
		}
		if c.Cache.CompressionLevel < 1 || c.Cache.CompressionLevel > 22 {
			fail("cache.compression_level must be between 1 and 22, got %d", c.Cache.CompressionLevel)
		}
	}

	if !validSampleRate(c.Record.SampleRate) {
		fail("record.sample_rate must be between %d and %d, got %d", minSampleRate, maxSampleRate, c.Record.SampleRate)
	}
	if c.Record.Duration < 0 {
		fail("record.duration must not be negative")
	}
	if !validSampleRate(c.Prepare.SampleRate) {
		fail("prepare.sample_rate must be between %d and %d, got %d", minSampleRate, maxSampleRate, c.Prepare.SampleRate)
	}
	if c.Prepare.MinSilence < 0 {
		fail("prepare.min_silence must not be negative")
	}
	if c.Prepare.Gap < 0 {
		fail("prepare.gap must not be negative")
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		fail("web.port must be between 1 and 65535, got %d", c.Web.Port)
	}
	if c.Web.Auth != "" {
		if _, _, ok := c.WebCredentials(); !ok {
			fail("web.auth must be user:password")
		}
	}

	return errors.Join(errs...)
}

// WebCredentials splits web.auth into user and password.
func (c *Config) WebCredentials() (user, password string, ok bool) {
	user, password, ok = strings.Cut(c.Web.Auth, ":")
	if !ok || user == "" || password == "" {
		return "", "", false
	}
	return user, password, true
}

// ExpandPaths resolves a leading ~ in every configured path.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.Paths.VoicesDir, &c.Paths.OutputsDir, &c.Paths.CacheDir} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("unable to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

func validSampleRate(r int) bool {
	return r >= minSampleRate && r <= maxSampleRate
}
