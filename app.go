package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/voxclone/internal/audio"
	"github.com/dgnsrekt/voxclone/internal/cache"
	"github.com/dgnsrekt/voxclone/internal/config"
	"github.com/dgnsrekt/voxclone/internal/output"
	"github.com/dgnsrekt/voxclone/internal/profile"
	"github.com/dgnsrekt/voxclone/internal/voice"
	"github.com/dgnsrekt/voxclone/internal/xtts"
)

// app holds what the synthesis commands share: the voice library, the
// outputs directory and a single Cloner over the XTTS backend.
type app struct {
	cfg     *config.Config
	library *profile.Library
	outputs *output.Dir
	client  *xtts.Client
	cloner  *voice.Cloner

	closers []func() error
}

// newBackend builds the XTTS client and, when enabled, its latent cache.
func newBackend(cfg *config.Config) (*xtts.Client, func() error, error) {
	mode, err := xtts.ParseMode(cfg.Server.Mode)
	if err != nil {
		return nil, nil, err
	}

	opts := []xtts.Option{
		xtts.WithMode(mode),
		xtts.WithTimeout(cfg.Server.Timeout),
		xtts.WithRequestsPerMinute(cfg.Server.RequestsPerMinute),
		xtts.WithLogger(log.Default()),
	}
	if cfg.Server.SpeakerRoot != "" {
		opts = append(opts, xtts.WithSpeakerRoot(cfg.Server.SpeakerRoot, cfg.Paths.VoicesDir))
	}

	closer := func() error { return nil }
	if cfg.Cache.Enabled {
		dir, err := cfg.CacheDir()
		if err != nil {
			return nil, nil, err
		}
		m, err := cache.NewManager(cache.Config{
			MemoryCapacity:   int64(cfg.Cache.MemoryMB) << 20,
			DiskCapacity:     int64(cfg.Cache.DiskMB) << 20,
			DiskPath:         dir,
			CompressionLevel: cfg.Cache.CompressionLevel,
		}, cache.WithLogger(log.Default()))
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open latent cache: %w", err)
		}
		log.Debug("Latent cache ready", "dir", dir)
		opts = append(opts, xtts.WithLatentCache(m))
		closer = m.Close
	}

	client, err := xtts.New(cfg.Server.URL, opts...)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return client, closer, nil
}

// newApp connects to the backend. The returned app must be closed.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		library: profile.New(cfg.Paths.VoicesDir),
		outputs: output.NewDir(cfg.Paths.OutputsDir),
	}

	client, closeCache, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.closers = append(a.closers, closeCache)

	opts := []voice.Option{
		voice.WithMaxTextLength(cfg.Voice.MaxTextLength),
		voice.WithLogger(log.Default()),
	}
	if cfg.Publish.NATSURL != "" {
		pub, err := output.NewNATSPublisher(cfg.Publish.NATSURL, cfg.Publish.Bucket)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		log.Debug("Publishing outputs", "bucket", pub.Bucket())
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, voice.WithPublisher(pub))
	}

	log.Info("Connecting to XTTS server", "url", client.BaseURL(), "mode", client.Mode())
	cloner, err := voice.New(ctx, client, opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.cloner = cloner
	return a, nil
}

// Close releases the cache and publisher.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// playFile plays a WAV file through the default audio device.
func playFile(ctx context.Context, path string) error {
	clip, err := audio.DecodeFile(path)
	if err != nil {
		return err
	}
	return playClip(ctx, clip)
}

func playClip(ctx context.Context, clip *audio.Clip) error {
	p, err := audio.NewPlayer(audio.DefaultPlayerConfig())
	if err != nil {
		return err
	}
	defer p.Close() //nolint:errcheck
	return p.Play(ctx, clip)
}

// play plays path, logging failures instead of returning them.
func play(ctx context.Context, w io.Writer, path string) {
	fmt.Fprintln(w, subtle("Playing audio... (Ctrl+C to stop)"))
	if err := playFile(ctx, path); err != nil && ctx.Err() == nil {
		log.Warn("Could not play audio", "err", err)
		fmt.Fprintln(w, subtle("Audio saved but couldn't auto-play."))
	}
}

// printResult prints the success banner for a generated file.
func printResult(w io.Writer, res *voice.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, success("Success!"))
	fmt.Fprintf(w, "  Output: %s\n", res.Path)
	fmt.Fprintf(w, "  Size:   %s\n", humanize.Bytes(uint64(res.Size))) //nolint:gosec
	if res.Duration > 0 {
		fmt.Fprintf(w, "  Length: %.1fs\n", res.Duration.Seconds())
	}
	fmt.Fprintln(w)
}

// printVoices lists the voice profiles.
func printVoices(w io.Writer, lib *profile.Library) error {
	profiles, err := lib.Profiles()
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, heading("Available Voice Profiles:"))
	if len(profiles) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  No voice profiles found.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Create one by running:")
		fmt.Fprintln(w, "    "+keyword("voxclone record"))
		fmt.Fprintln(w, "    "+keyword("voxclone prepare -a"))
		fmt.Fprintln(w)
		return nil
	}

	for _, p := range profiles {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  "+keyword(p.Name))
		if p.HasCombined {
			fmt.Fprintf(w, "     %s (%s) - Ready to use!\n", profile.CombinedName, humanize.Bytes(uint64(p.CombinedSize))) //nolint:gosec
		}
		if p.Samples > 0 {
			fmt.Fprintf(w, "     %d sample file(s)\n", p.Samples)
		}
	}
	fmt.Fprintln(w)
	return nil
}

// printSetupHint explains how to create a voice profile.
func printSetupHint(w io.Writer) {
	fmt.Fprintln(w, "Create a new voice profile:")
	fmt.Fprintln(w, "  1. "+keyword("voxclone record 120"))
	fmt.Fprintln(w, "  2. "+keyword("voxclone prepare -a"))
}

// voiceLibrary returns the configured voices directory.
func voiceLibrary() *profile.Library {
	return profile.New(settings.Paths.VoicesDir)
}
