package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	// BitDepth is the sample width of every WAV file this package writes.
	BitDepth = 16
)

var (
	// ErrInvalidWAV indicates the data is not a readable WAV file
	ErrInvalidWAV = errors.New("invalid WAV data")

	// ErrUnsupportedFormat indicates a WAV encoding this package cannot read
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// Decode reads a WAV file. Multi-channel audio is down-mixed to mono by
// averaging the channels.
func Decode(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM data: %w", err)
	}

	channels := int(d.NumChans)
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}

	convert, err := sampleConverter(int(d.WavAudioFormat), int(d.BitDepth))
	if err != nil {
		return nil, err
	}

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += convert(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels)
	}

	return &Clip{Samples: samples, SampleRate: int(d.SampleRate)}, nil
}

func sampleConverter(format, bitDepth int) (func(int) float64, error) {
	if format == wavFormatExtensible {
		format = wavFormatPCM
	}
	switch {
	case format == wavFormatFloat && bitDepth == 32:
		return func(v int) float64 {
			return float64(math.Float32frombits(uint32(v))) //nolint:gosec
		}, nil
	case format == wavFormatPCM && bitDepth == 8:
		return func(v int) float64 { return float64(v-128) / 128 }, nil
	case format == wavFormatPCM && (bitDepth == 16 || bitDepth == 24 || bitDepth == 32):
		scale := float64(int64(1) << (bitDepth - 1))
		return func(v int) float64 { return float64(v) / scale }, nil
	default:
		return nil, fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedFormat, format, bitDepth)
	}
}

// DecodeBytes decodes an in-memory WAV file.
func DecodeBytes(data []byte) (*Clip, error) {
	return Decode(bytes.NewReader(data))
}

// DecodeFile decodes the WAV file at path.
func DecodeFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	clip, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", path, err)
	}
	return clip, nil
}

// Encode writes the clip as a 16-bit PCM mono WAV file.
func (c *Clip) Encode(w io.WriteSeeker) error {
	enc := wav.NewEncoder(w, c.SampleRate, BitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: c.SampleRate},
		Data:           c.intSamples(),
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}

// Bytes returns the clip encoded as a WAV file.
func (c *Clip) Bytes() ([]byte, error) {
	var sb seekBuffer
	if err := c.Encode(&sb); err != nil {
		return nil, err
	}
	return sb.buf, nil
}

// WriteFile encodes the clip to path. The file is written to a temporary
// name first and renamed into place.
func (c *Clip) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", path, err)
	}

	encErr := c.Encode(f)
	closeErr := f.Close()
	if encErr != nil {
		_ = os.Remove(tmp)
		return encErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return closeErr
	}
	return os.Rename(tmp, path)
}

// PCM16 returns the clip as signed 16-bit little endian PCM.
func (c *Clip) PCM16() []byte {
	out := make([]byte, len(c.Samples)*2)
	for i, v := range c.intSamples() {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v))) //nolint:gosec
	}
	return out
}

func (c *Clip) intSamples() []int {
	out := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = int(math.Round(clamp(s) * math.MaxInt16))
	}
	return out
}

// FromPCM16 builds a clip from signed 16-bit little endian mono PCM.
func FromPCM16(pcm []byte, sampleRate int) *Clip {
	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:])) //nolint:gosec
		samples[i] = float64(v) / 32768
	}
	return &Clip{Samples: samples, SampleRate: sampleRate}
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// WrapPCM16 turns raw signed 16-bit mono PCM into a WAV file.
func WrapPCM16(pcm []byte, sampleRate int) ([]byte, error) {
	return FromPCM16(pcm, sampleRate).Bytes()
}

// seekBuffer is an in-memory io.WriteSeeker for the WAV encoder, which
// rewrites the header sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		if end > cap(s.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, s.buf)
			s.buf = grown
		} else {
			s.buf = s.buf[:end]
		}
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.buf))
	default:
		return 0, errors.New("seek: invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("seek: negative position")
	}
	s.pos = int(next)
	return next, nil
}
