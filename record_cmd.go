package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/voxclone/internal/recorder"
)

var (
	recordOutput      string
	recordListDevices bool

	recordCmd = &cobra.Command{
		Use:   "record [SECONDS]",
		Short: "Record voice samples from the microphone",
		Long: paragraph(fmt.Sprintf("\n%s for the default voice profile using ffmpeg. Recordings shorter than 5 seconds are rejected and silent takes are discarded.",
			keyword("Record a voice sample"))),
		Example: paragraph(`voxclone record
voxclone record 60
voxclone record --list-devices
voxclone record --device hw:1`),
		Args: cobra.MaximumNArgs(1),
		RunE: runRecord,
	}
)

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "output file path (default: voices/<voice>/sample_<timestamp>.wav)")
	recordCmd.Flags().StringP("device", "d", "", "ffmpeg input device")
	recordCmd.Flags().BoolVarP(&recordListDevices, "list-devices", "l", false, "list available audio devices and exit")

	_ = viper.BindPFlag("record.device", recordCmd.Flags().Lookup("device"))
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	if recordListDevices {
		out, err := recorder.ListDevices(ctx, settings.Record.InputFormat)
		if err != nil {
			return err
		}
		fmt.Println(heading("Available Audio Devices"))
		fmt.Println(out)
		return nil
	}

	d, err := parseSeconds(args, settings.Record.Duration)
	if err != nil {
		return err
	}
	if d < recorder.MinDuration {
		return recorder.ErrDurationTooShort
	}
	if recorder.NeedsConfirmation(d) {
		fmt.Println(failure("Warning: Recording for more than 10 minutes"))
		if !confirm(os.Stdin, os.Stdout, "Continue? [y/N]: ") {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	capturer := recorder.NewFFmpegCapturer(settings.Record.InputFormat, settings.Record.Device)
	rec := recorder.New(capturer, voiceLibrary().Dir(settings.Voice.Default),
		recorder.WithSampleRate(settings.Record.SampleRate),
		recorder.WithLogger(log.Default()),
	)

	fmt.Println()
	fmt.Println(heading("Voice Recording Tool"))
	fmt.Printf("  Duration:    %s (%.1f minutes)\n", d, d.Minutes())
	fmt.Printf("  Sample Rate: %d Hz\n", rec.SampleRate())
	fmt.Printf("  Input:       %s %s\n", capturer.Format, capturer.Device)
	fmt.Println()
	fmt.Println("Recording Tips:")
	fmt.Println("   Find a quiet environment with no background noise.")
	fmt.Println("   Speak naturally and clearly, and vary your tone.")
	fmt.Println("   Keep a consistent distance from the microphone.")
	fmt.Println()
	fmt.Println("Recording starts in...")

	var stopBar func()
	res, err := rec.Record(ctx, recorder.Options{
		Duration: d,
		Output:   recordOutput,
		Countdown: func(n int) {
			fmt.Printf("   %d...\n", n)
		},
		Started: func() {
			fmt.Println()
			fmt.Println(failure("RECORDING NOW!") + " Speak clearly...")
			stopBar = showProgress(ctx, d)
		},
	})
	if stopBar != nil {
		stopBar()
	}
	if errors.Is(err, recorder.ErrSilentRecording) {
		fmt.Println(failure("WARNING: Recording appears to be silent!"))
		fmt.Println("   Check your microphone settings and try again.")
		return err
	}
	if errors.Is(err, recorder.ErrFFmpegNotFound) {
		fmt.Println("Install ffmpeg to record from the microphone.")
		return err
	}
	if err != nil {
		return err
	}

	fmt.Println(success("Recording complete!"))
	fmt.Println()
	fmt.Println("  Saved to:      ", res.Path)
	fmt.Printf("  Duration:       %.1f seconds\n", res.Duration.Seconds())
	fmt.Println("  Size:          ", humanize.Bytes(uint64(res.Size))) //nolint:gosec
	fmt.Printf("  Max amplitude:  %.3f\n", res.Peak)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Record more samples (optional, for variety)")
	fmt.Println("  2. Prepare audio: " + keyword("voxclone prepare -a"))
	fmt.Println("  3. Test the clone: " + keyword(`voxclone quick "Hello world!"`))
	return nil
}

// parseSeconds reads the optional SECONDS argument.
func parseSeconds(args []string, def int) (time.Duration, error) {
	if len(args) == 0 {
		if def <= 0 {
			return recorder.DefaultDuration, nil
		}
		return time.Duration(def) * time.Second, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: must be a whole number of seconds", args[0])
	}
	return time.Duration(n) * time.Second, nil
}

// confirm asks a yes/no question; only y or yes accepts.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// showProgress advances a progress bar once a second until d has passed.
// The returned func stops it.
func showProgress(ctx context.Context, d time.Duration) func() {
	secs := int64(d / time.Second)
	bar := progressbar.NewOptions64(secs,
		progressbar.OptionSetDescription("recording"),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_ = bar.Add(1)
			}
		}
	}()

	return func() {
		cancel()
		<-done
		_ = bar.Finish()
	}
}
