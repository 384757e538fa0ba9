// Package config holds the voxclone configuration: typed settings, their
// defaults, validation and the default YAML file written on first run.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/voxclone/internal/voice"
)

// AppName scopes config, data and cache directories.
const AppName = "voxclone"

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Paths    PathsConfig    `mapstructure:"paths" yaml:"paths"`
	Voice    VoiceConfig    `mapstructure:"voice" yaml:"voice"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Playback PlaybackConfig `mapstructure:"playback" yaml:"playback"`
	Record   RecordConfig   `mapstructure:"record" yaml:"record"`
	Prepare  PrepareConfig  `mapstructure:"prepare" yaml:"prepare"`
	Web      WebConfig      `mapstructure:"web" yaml:"web"`
	Publish  PublishConfig  `mapstructure:"publish" yaml:"publish"`
}

// ServerConfig locates the XTTS inference server.
type ServerConfig struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	Mode              string        `mapstructure:"mode" yaml:"mode"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	SpeakerRoot       string        `mapstructure:"speaker_root" yaml:"speaker_root"`
}

// PathsConfig holds the on-disk layout.
type PathsConfig struct {
	VoicesDir  string `mapstructure:"voices_dir" yaml:"voices_dir"`
	OutputsDir string `mapstructure:"outputs_dir" yaml:"outputs_dir"`
	CacheDir   string `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// VoiceConfig holds synthesis defaults.
type VoiceConfig struct {
	Default       string `mapstructure:"default" yaml:"default"`
	Language      string `mapstructure:"language" yaml:"language"`
	MaxTextLength int    `mapstructure:"max_text_length" yaml:"max_text_length"`
}

// CacheConfig sizes the speaker latent cache.
type CacheConfig struct {
	Enabled          bool `mapstructure:"enabled" yaml:"enabled"`
	MemoryMB         int  `mapstructure:"memory_mb" yaml:"memory_mb"`
	DiskMB           int  `mapstructure:"disk_mb" yaml:"disk_mb"`
	CompressionLevel int  `mapstructure:"compression_level" yaml:"compression_level"`
}

// PlaybackConfig controls playback of generated audio.
type PlaybackConfig struct {
	AutoPlay bool `mapstructure:"auto_play" yaml:"auto_play"`
}

// RecordConfig controls microphone capture.
type RecordConfig struct {
	SampleRate  int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Duration    int    `mapstructure:"duration" yaml:"duration"` // seconds
	Device      string `mapstructure:"device" yaml:"device"`
	InputFormat string `mapstructure:"input_format" yaml:"input_format"`
}

// PrepareConfig controls sample cleaning and combining.
type PrepareConfig struct {
	SampleRate       int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	MinSilence       time.Duration `mapstructure:"min_silence" yaml:"min_silence"`
	SilenceThreshold float64       `mapstructure:"silence_threshold" yaml:"silence_threshold"` // dBFS
	Gap              time.Duration `mapstructure:"gap" yaml:"gap"`
}

// WebConfig controls the web form.
type WebConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        int    `mapstructure:"port" yaml:"port"`
	Auth        string `mapstructure:"auth" yaml:"auth"` // user:password
	UploadLimit string `mapstructure:"upload_limit" yaml:"upload_limit"`
}

// PublishConfig mirrors generated files to a NATS object store.
type PublishConfig struct {
	NATSURL string `mapstructure:"nats_url" yaml:"nats_url"`
	Bucket  string `mapstructure:"bucket" yaml:"bucket"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:     "http://localhost:8000",
			Mode:    "latents",
			Timeout: 120 * time.Second,
		},
		Paths: PathsConfig{
			VoicesDir:  "voices",
			OutputsDir: "outputs",
		},
		Voice: VoiceConfig{
			Default:       "my_voice",
			Language:      voice.DefaultLanguage,
			MaxTextLength: voice.DefaultMaxTextLength,
		},
		Cache: CacheConfig{
			Enabled:          true,
			MemoryMB:         32,
			DiskMB:           256,
			CompressionLevel: 3,
		},
		Playback: PlaybackConfig{AutoPlay: true},
		Record: RecordConfig{
			SampleRate: 22050,
			Duration:   120,
		},
		Prepare: PrepareConfig{
			SampleRate:       22050,
			MinSilence:       500 * time.Millisecond,
			SilenceThreshold: -40,
			Gap:              500 * time.Millisecond,
		},
		Web: WebConfig{
			Host:        "127.0.0.1",
			Port:        7860,
			UploadLimit: "2M",
		},
		Publish: PublishConfig{Bucket: "VOXCLONE_OUTPUTS"},
	}
}

// SetDefaults registers every default with v so environment variables and
// config files can override individual keys.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)
	v.SetDefault("server.speaker_root", d.Server.SpeakerRoot)

	v.SetDefault("paths.voices_dir", d.Paths.VoicesDir)
	v.SetDefault("paths.outputs_dir", d.Paths.OutputsDir)
	v.SetDefault("paths.cache_dir", d.Paths.CacheDir)

	v.SetDefault("voice.default", d.Voice.Default)
	v.SetDefault("voice.language", d.Voice.Language)
	v.SetDefault("voice.max_text_length", d.Voice.MaxTextLength)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.compression_level", d.Cache.CompressionLevel)

	v.SetDefault("playback.auto_play", d.Playback.AutoPlay)

	v.SetDefault("record.sample_rate", d.Record.SampleRate)
	v.SetDefault("record.duration", d.Record.Duration)
	v.SetDefault("record.device", d.Record.Device)
	v.SetDefault("record.input_format", d.Record.InputFormat)

	v.SetDefault("prepare.sample_rate", d.Prepare.SampleRate)
	v.SetDefault("prepare.min_silence", d.Prepare.MinSilence)
	v.SetDefault("prepare.silence_threshold", d.Prepare.SilenceThreshold)
	v.SetDefault("prepare.gap", d.Prepare.Gap)

	v.SetDefault("web.host", d.Web.Host)
	v.SetDefault("web.port", d.Web.Port)
	v.SetDefault("web.auth", d.Web.Auth)
	v.SetDefault("web.upload_limit", d.Web.UploadLimit)

	v.SetDefault("publish.nats_url", d.Publish.NATSURL)
	v.SetDefault("publish.bucket", d.Publish.Bucket)
}

// Load decodes v into a Config, expands paths and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CacheDir returns the latent cache directory, falling back to the user
// cache dir.
func (c *Config) CacheDir() (string, error) {
	if c.Paths.CacheDir != "" {
		return c.Paths.CacheDir, nil
	}
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "latents"), nil
}

// WebAddr returns host:port for the web server.
func (c *Config) WebAddr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// DefaultVoicePath returns voices/<default>/combined.wav.
func (c *Config) DefaultVoicePath() string {
	return filepath.Join(c.Paths.VoicesDir, c.Voice.Default, "combined.wav")
}
