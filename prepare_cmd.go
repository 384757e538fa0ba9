package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/voxclone/internal/config"
	"github.com/dgnsrekt/voxclone/internal/profile"
)

var (
	prepareInput      string
	prepareOutput     string
	prepareVoiceDir   string
	prepareProcessAll bool

	prepareCmd = &cobra.Command{
		Use:   "prepare",
		Short: "Clean voice samples and combine them into one reference",
		Long: paragraph(fmt.Sprintf("\n%s: convert to mono, resample, normalize and trim silence, then join every sample of a voice into combined.wav.",
			keyword("Prepare voice samples"))),
		Example: paragraph(`voxclone prepare
voxclone prepare --input sample.wav
voxclone prepare --voice-dir voices/my_voice
voxclone prepare --process-all`),
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			dir := prepareVoiceDir
			if dir == "" {
				dir = voiceLibrary().Dir(settings.Voice.Default)
			}
			return runPrepare(os.Stdout, settings, dir, prepareInput, prepareOutput, prepareProcessAll)
		},
	}
)

func init() {
	prepareCmd.Flags().StringVarP(&prepareInput, "input", "i", "", "input audio file to process")
	prepareCmd.Flags().StringVarP(&prepareOutput, "output", "o", "", "output file path (default: <input>.processed.wav)")
	prepareCmd.Flags().StringVarP(&prepareVoiceDir, "voice-dir", "d", "", "voice directory (default: voices/<voice>)")
	prepareCmd.Flags().BoolVarP(&prepareProcessAll, "process-all", "a", false, "process all sample files individually before combining")
}

func prepareOptions(cfg *config.Config) profile.PrepareOptions {
	opts := profile.DefaultPrepareOptions()
	opts.SampleRate = cfg.Prepare.SampleRate
	opts.MinSilence = cfg.Prepare.MinSilence
	opts.SilenceThreshold = cfg.Prepare.SilenceThreshold
	return opts
}

func runPrepare(w io.Writer, cfg *config.Config, voiceDir, input, out string, processAll bool) error {
	if info, err := os.Stat(voiceDir); err != nil || !info.IsDir() {
		fmt.Fprintln(w, failure("Voice directory not found: "+voiceDir))
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Create it with:")
		fmt.Fprintln(w, "  "+keyword("mkdir -p "+voiceDir))
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Then record samples:")
		fmt.Fprintln(w, "  "+keyword("voxclone record"))
		return fmt.Errorf("voice directory %s: %w", voiceDir, fs.ErrNotExist)
	}

	opts := prepareOptions(cfg)
	if input != "" {
		fmt.Fprintln(w, heading("Processing single file..."))
		p, err := profile.Prepare(input, out, opts)
		if err != nil {
			return err
		}
		printPrepared(w, p)
		return nil
	}

	lib := profile.New(filepath.Dir(voiceDir))
	name := filepath.Base(voiceDir)

	if processAll {
		fmt.Fprintln(w, heading("Processing all samples individually..."))
		fmt.Fprintln(w)
		batch, err := lib.PrepareAll(name, opts, func(i, n int, path string) {
			fmt.Fprintf(w, "  [%d/%d] %s\n", i, n, filepath.Base(path))
		})
		if errors.Is(err, profile.ErrNoSamples) {
			fmt.Fprintln(w, failure("No samples found in "+voiceDir))
			return err
		}
		if err != nil {
			return err
		}
		for _, p := range batch.Prepared {
			printPrepared(w, p)
		}
		for _, s := range batch.Skipped {
			fmt.Fprintln(w, failure("  Warning: failed to process "+filepath.Base(s)))
		}
		fmt.Fprintln(w, success("All samples processed!"))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, heading("Combining voice samples..."))
	fmt.Fprintln(w)
	res, err := lib.Combine(name, cfg.Prepare.SampleRate, cfg.Prepare.Gap, func(i, n int, path string) {
		fmt.Fprintf(w, "  [%d/%d] %s\n", i, n, filepath.Base(path))
	})
	if errors.Is(err, profile.ErrNoSamples) {
		fmt.Fprintln(w, failure("No voice samples found in "+voiceDir))
		fmt.Fprintln(w, "   Expected files: "+profile.SamplePrefix+"*.wav")
		return err
	}
	if err != nil {
		return err
	}
	for _, s := range res.Skipped {
		fmt.Fprintln(w, failure("  Warning: failed to load "+filepath.Base(s)))
	}

	secs := res.Duration.Seconds()
	fmt.Fprintln(w)
	fmt.Fprintln(w, success("Combined audio saved!"))
	fmt.Fprintln(w, "   File:    ", res.Path)
	fmt.Fprintf(w, "   Duration: %.1f seconds (%.1f minutes)\n", secs, secs/60)
	fmt.Fprintln(w, "   Size:    ", humanize.Bytes(uint64(res.Size))) //nolint:gosec
	fmt.Fprintln(w)
	fmt.Fprintln(w, success("Success! Your voice is ready for cloning."))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  Test the voice clone:")
	fmt.Fprintln(w, "    "+keyword(`voxclone quick "Hello, this is a test!"`))
	fmt.Fprintln(w, "  Or use the interactive mode:")
	fmt.Fprintln(w, "    "+keyword("voxclone --interactive"))
	return nil
}

func printPrepared(w io.Writer, p *profile.Prepared) {
	if !p.Trimmed {
		fmt.Fprintln(w, failure("   Warning: no non-silent audio detected in "+filepath.Base(p.Input)))
	}
	fmt.Fprintln(w, success("   Saved: ")+p.Output)
	fmt.Fprintf(w, "   Duration: %.1fs -> %.1fs\n", p.Before.Seconds(), p.After.Seconds())
	fmt.Fprintln(w, "   Size:", humanize.Bytes(uint64(p.Size))) //nolint:gosec
	fmt.Fprintln(w)
}
