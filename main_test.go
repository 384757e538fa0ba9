package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/voxclone/internal/audio"
	"github.com/dgnsrekt/voxclone/internal/config"
	"github.com/dgnsrekt/voxclone/internal/output"
	"github.com/dgnsrekt/voxclone/internal/profile"
	"github.com/dgnsrekt/voxclone/internal/recorder"
	"github.com/dgnsrekt/voxclone/internal/voice"
	"github.com/dgnsrekt/voxclone/internal/xtts"
)

func TestEnsureConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "voxclone.yml")
	if err := ensureConfigFile(file); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	var got config.Config
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("default config is not valid YAML: %v", err)
	}
	if got.Server.URL != config.Default().Server.URL {
		t.Errorf("server.url = %q", got.Server.URL)
	}

	if err := os.WriteFile(file, []byte("voice:\n  default: custom\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ensureConfigFile(file); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(file)
	if !strings.Contains(string(data), "custom") {
		t.Error("existing config file was overwritten")
	}
}

func TestEnsureConfigFileRejectsExtension(t *testing.T) {
	for _, file := range []string{"", filepath.Join(t.TempDir(), "voxclone.json")} {
		if err := ensureConfigFile(file); err == nil {
			t.Errorf("%q: expected error", file)
		}
	}
}

func TestResolveOutput(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")
	dir := output.NewDir(root)
	now := time.Date(2024, 3, 4, 5, 6, 7, 0, time.Local)

	got, err := resolveOutput(dir, "", now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "output_20240304_050607.wav" {
		t.Errorf("generated = %s", got)
	}

	got, err = resolveOutput(dir, filepath.Join(root, "sub", "greeting.wav"), now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "greeting.wav" {
		t.Errorf("explicit = %s", got)
	}
	if info, err := os.Stat(filepath.Dir(got)); err != nil || !info.IsDir() {
		t.Error("parent directory not created")
	}

	_, err = resolveOutput(dir, filepath.Join(t.TempDir(), "elsewhere.wav"), now)
	if !errors.Is(err, voice.ErrPathOutsideRoot) {
		t.Errorf("err = %v, want ErrPathOutsideRoot", err)
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		args    []string
		def     int
		want    time.Duration
		wantErr bool
	}{
		{nil, 0, recorder.DefaultDuration, false},
		{nil, 30, 30 * time.Second, false},
		{[]string{"60"}, 30, time.Minute, false},
		{[]string{"1m"}, 30, 0, true},
	}
	for _, tt := range tests {
		got, err := parseSeconds(tt.args, tt.def)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSeconds(%v) err = %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSeconds(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
		"y":     true,
	}
	for in, want := range tests {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(in), &out, "Continue? [y/N]: "); got != want {
			t.Errorf("confirm(%q) = %v, want %v", in, got, want)
		}
		if out.String() != "Continue? [y/N]: " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func writeTone(t *testing.T, path string, rate int) {
	t.Helper()
	s := make([]float64, rate)
	for i := range s {
		s[i] = 0.4 * math.Sin(2*math.Pi*220*float64(i)/float64(rate))
	}
	clip := audio.Concat(rate, 0, audio.Silence(time.Second, rate), audio.NewClip(s, rate))
	if err := clip.WriteFile(path); err != nil {
		t.Fatal(err)
	}
}

func TestRunPrepare(t *testing.T) {
	cfg := config.Default()
	dir := filepath.Join(t.TempDir(), "voices", "me")
	writeTone(t, filepath.Join(dir, "sample_1.wav"), 44100)
	writeTone(t, filepath.Join(dir, "sample_2.wav"), 22050)

	var out bytes.Buffer
	if err := runPrepare(&out, &cfg, dir, "", "", true); err != nil {
		t.Fatalf("runPrepare: %v\n%s", err, out.String())
	}

	for _, name := range []string{"sample_1.processed.wav", "sample_2.processed.wav", profile.CombinedName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	for _, want := range []string{"[1/2] sample_1.wav", "[2/2] sample_2.processed.wav", "ready for cloning"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	combined, err := audio.DecodeFile(filepath.Join(dir, profile.CombinedName))
	if err != nil {
		t.Fatal(err)
	}
	if combined.SampleRate != cfg.Prepare.SampleRate {
		t.Errorf("combined rate = %d", combined.SampleRate)
	}
	if combined.Duration() > 3*time.Second {
		t.Errorf("combined duration = %v, leading silence was not trimmed", combined.Duration())
	}
}

func TestRunPrepareSkipsCorruptSample(t *testing.T) {
	cfg := config.Default()
	dir := filepath.Join(t.TempDir(), "voices", "me")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sample_a.wav"), []byte("not a wav file"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeTone(t, filepath.Join(dir, "sample_b.wav"), 22050)

	var out bytes.Buffer
	if err := runPrepare(&out, &cfg, dir, "", "", true); err != nil {
		t.Fatalf("runPrepare: %v\n%s", err, out.String())
	}
	for _, name := range []string{"sample_b.processed.wav", profile.CombinedName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	for _, want := range []string{"failed to process sample_a.wav", "ready for cloning"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunPrepareSingleFile(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	in := filepath.Join(dir, "take.wav")
	writeTone(t, in, 22050)
	outPath := filepath.Join(dir, "clean.wav")

	var out bytes.Buffer
	if err := runPrepare(&out, &cfg, dir, in, outPath, false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(dir, profile.CombinedName)); !errors.Is(err, fs.ErrNotExist) {
		t.Error("single file mode must not combine")
	}
}

func TestRunPrepareErrors(t *testing.T) {
	cfg := config.Default()

	var out bytes.Buffer
	missing := filepath.Join(t.TempDir(), "nope")
	if err := runPrepare(&out, &cfg, missing, "", "", false); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
	if !strings.Contains(out.String(), "mkdir -p") {
		t.Errorf("missing setup hint:\n%s", out.String())
	}

	out.Reset()
	empty := t.TempDir()
	if err := runPrepare(&out, &cfg, empty, "", "", false); !errors.Is(err, profile.ErrNoSamples) {
		t.Errorf("err = %v, want ErrNoSamples", err)
	}
	if !strings.Contains(out.String(), "sample_*.wav") {
		t.Errorf("missing expected files hint:\n%s", out.String())
	}
}

func TestPrintVoices(t *testing.T) {
	root := filepath.Join(t.TempDir(), "voices")
	lib := profile.New(root)

	var out bytes.Buffer
	if err := printVoices(&out, lib); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No voice profiles found") {
		t.Errorf("empty listing:\n%s", out.String())
	}

	writeTone(t, filepath.Join(root, "alice", "sample_1.wav"), 22050)
	writeTone(t, filepath.Join(root, "alice", profile.CombinedName), 22050)

	out.Reset()
	if err := printVoices(&out, lib); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"alice", "Ready to use!", "1 sample file(s)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("listing missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunHealth(t *testing.T) {
	var clones atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/languages", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"en", "es"})
	})
	mux.HandleFunc("/clone_speaker", func(w http.ResponseWriter, _ *http.Request) {
		clones.Add(1)
		_ = json.NewEncoder(w).Encode(xtts.Latents{
			GPTCondLatent:    [][]float64{{0.1}},
			SpeakerEmbedding: []float64{0.2},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client, err := xtts.New(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	ref := filepath.Join(t.TempDir(), "combined.wav")
	writeTone(t, ref, 22050)

	var out bytes.Buffer
	if err := runHealth(context.Background(), &out, client, ref, false); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"healthy", "latents mode", "Languages: en es"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if n := clones.Load(); n != 0 {
		t.Errorf("clone_speaker called %d times without --warm", n)
	}

	out.Reset()
	if err := runHealth(context.Background(), &out, client, ref, true); err != nil {
		t.Fatal(err)
	}
	if n := clones.Load(); n != 1 || !strings.Contains(out.String(), "Voice latents cached") {
		t.Errorf("clones = %d, output:\n%s", n, out.String())
	}

	ts.Close()
	out.Reset()
	if err := runHealth(context.Background(), &out, client, ref, false); err == nil {
		t.Error("expected an error from a stopped server")
	}
	if !strings.Contains(out.String(), "unhealthy") {
		t.Errorf("output:\n%s", out.String())
	}
}
