package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// ErrFFmpegNotFound is returned when the ffmpeg binary is not on PATH.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

// Capturer records mono signed 16-bit little endian PCM.
type Capturer interface {
	Capture(ctx context.Context, d time.Duration, sampleRate int) ([]byte, error)
}

// FFmpegCapturer records from an input device through ffmpeg.
type FFmpegCapturer struct {
	Binary string
	Format string // ffmpeg input format, e.g. pulse, alsa, avfoundation, dshow
	Device string
}

// NewFFmpegCapturer returns a capturer for the given input format and
// device. Empty values select the platform default.
func NewFFmpegCapturer(format, device string) *FFmpegCapturer {
	defFormat, defDevice := DefaultInput(runtime.GOOS)
	if format == "" {
		format = defFormat
	}
	if device == "" {
		device = defDevice
	}
	return &FFmpegCapturer{Binary: "ffmpeg", Format: format, Device: device}
}

// DefaultInput returns the ffmpeg input format and device for goos.
func DefaultInput(goos string) (format, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

// Args returns the ffmpeg command line for a capture.
func (f *FFmpegCapturer) Args(d time.Duration, sampleRate int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-f", f.Format,
		"-i", f.Device,
		"-t", strconv.FormatFloat(d.Seconds(), 'f', 3, 64),
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-",
	}
}

// Capture runs ffmpeg and returns the recorded PCM.
func (f *FFmpegCapturer) Capture(ctx context.Context, d time.Duration, sampleRate int) ([]byte, error) {
	bin, err := exec.LookPath(f.Binary)
	if err != nil {
		return nil, ErrFFmpegNotFound
	}

	cmd := exec.CommandContext(ctx, bin, f.Args(d, sampleRate)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg capture failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ListDevices returns ffmpeg's listing of input devices for format.
func ListDevices(ctx context.Context, format string) (string, error) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", ErrFFmpegNotFound
	}
	if format == "" {
		format, _ = DefaultInput(runtime.GOOS)
	}

	var args []string
	switch format {
	case "avfoundation":
		args = []string{"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""}
	case "dshow":
		args = []string{"-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy"}
	default:
		args = []string{"-hide_banner", "-sources", format}
	}

	// device listing exits non-zero on most platforms
	out, _ := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if len(bytes.TrimSpace(out)) == 0 {
		return "", fmt.Errorf("ffmpeg printed no devices for input format %s", format)
	}
	return string(out), nil
}
