package audio

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := NewClip([]float64{0, 0.5, -0.5, 0.25, -1}, 22050)

	data, err := c.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if !IsWAV(data) {
		t.Fatal("Bytes() did not produce a RIFF/WAVE header")
	}

	got, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes() error: %v", err)
	}
	if got.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", got.SampleRate)
	}
	if len(got.Samples) != len(c.Samples) {
		t.Fatalf("len = %d, want %d", len(got.Samples), len(c.Samples))
	}
	for i := range c.Samples {
		if math.Abs(got.Samples[i]-c.Samples[i]) > 1e-3 {
			t.Errorf("sample %d = %v, want %v", i, got.Samples[i], c.Samples[i])
		}
	}
}

func TestDecodeStereoDownmix(t *testing.T) {
	var sb seekBuffer
	enc := wav.NewEncoder(&sb, 44100, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           []int{1000, 3000, -2000, 2000},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	c, err := DecodeBytes(sb.buf)
	if err != nil {
		t.Fatalf("DecodeBytes() error: %v", err)
	}
	if len(c.Samples) != 2 {
		t.Fatalf("len = %d, want 2 frames", len(c.Samples))
	}
	if want := 2000.0 / 32768; math.Abs(c.Samples[0]-want) > 1e-9 {
		t.Errorf("frame 0 = %v, want %v", c.Samples[0], want)
	}
	if c.Samples[1] != 0 {
		t.Errorf("frame 1 = %v, want 0", c.Samples[1])
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := DecodeBytes([]byte("definitely not a wav file"))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("DecodeBytes() error = %v, want ErrInvalidWAV", err)
	}
}

func TestWrapPCM16(t *testing.T) {
	pcm := NewClip([]float64{0.5, -0.5, 0, 0.25}, 24000).PCM16()
	if len(pcm) != 8 {
		t.Fatalf("PCM16() len = %d, want 8", len(pcm))
	}
	if IsWAV(pcm) {
		t.Fatal("raw PCM must not look like WAV")
	}

	data, err := WrapPCM16(pcm, 24000)
	if err != nil {
		t.Fatalf("WrapPCM16() error: %v", err)
	}
	c, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes() error: %v", err)
	}
	if c.SampleRate != 24000 || len(c.Samples) != 4 {
		t.Errorf("got %d samples at %d Hz, want 4 at 24000", len(c.Samples), c.SampleRate)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.wav")
	c := constantClip(0.1, 2205, 22050)

	if err := c.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	got, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile() error: %v", err)
	}
	if got.Duration() != c.Duration() {
		t.Errorf("Duration() = %v, want %v", got.Duration(), c.Duration())
	}
}

func TestSeekBuffer(t *testing.T) {
	var sb seekBuffer
	_, _ = sb.Write([]byte("hello world"))
	if _, err := sb.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	_, _ = sb.Write([]byte("HELLO"))
	if _, err := sb.Seek(0, 2); err != nil {
		t.Fatal(err)
	}
	_, _ = sb.Write([]byte("!"))

	if !bytes.Equal(sb.buf, []byte("HELLO world!")) {
		t.Errorf("buf = %q", sb.buf)
	}
	if _, err := sb.Seek(-100, 1); err == nil {
		t.Error("Seek() before start should fail")
	}
}
