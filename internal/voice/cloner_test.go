package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/voxclone/internal/audio"
)

type fakeBackend struct {
	healthErr error
	synthErr  error
	data      []byte

	calls    atomic.Int32
	inflight atomic.Int32
	overlap  atomic.Bool

	mu       sync.Mutex
	lastText string
	lastLang string
}

func (f *fakeBackend) Synthesize(_ context.Context, text, _ string, language string) ([]byte, error) {
	if f.inflight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inflight.Add(-1)
	time.Sleep(5 * time.Millisecond)

	f.calls.Add(1)
	f.mu.Lock()
	f.lastText, f.lastLang = text, language
	f.mu.Unlock()

	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return f.data, nil
}

func (f *fakeBackend) Health(context.Context) error {
	return f.healthErr
}

type fakePublisher struct {
	names []string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, name string, _ []byte) error {
	f.names = append(f.names, name)
	return f.err
}

func wavBytes(t *testing.T) []byte {
	t.Helper()
	data, err := audio.NewClip(make([]float64, 2400), 24000).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func reference(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "combined.wav")
	if err := os.WriteFile(path, wavBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewRequiresHealthyBackend(t *testing.T) {
	if _, err := New(context.Background(), nil); !errors.Is(err, ErrNoBackend) {
		t.Errorf("New(nil) error = %v, want ErrNoBackend", err)
	}

	_, err := New(context.Background(), &fakeBackend{healthErr: errors.New("connection refused")})
	if CodeOf(err) != ErrorCodeEngineUnavailable {
		t.Errorf("New() code = %s, want %s", CodeOf(err), ErrorCodeEngineUnavailable)
	}
}

func TestCloneVoice(t *testing.T) {
	backend := &fakeBackend{data: wavBytes(t)}
	pub := &fakePublisher{}
	c, err := New(context.Background(), backend, WithPublisher(pub))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	out := filepath.Join(t.TempDir(), "outputs", "sub", "output_20250101_120000.wav")
	res, err := c.CloneVoice(context.Background(), Request{
		Text:      "Hello world",
		Reference: reference(t),
		Output:    out,
	})
	if err != nil {
		t.Fatalf("CloneVoice() error: %v", err)
	}

	if res.Path != out {
		t.Errorf("Path = %q, want %q", res.Path, out)
	}
	if res.Size != int64(len(backend.data)) {
		t.Errorf("Size = %d, want %d", res.Size, len(backend.data))
	}
	if res.Duration != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", res.Duration)
	}
	if backend.lastLang != "en" {
		t.Errorf("language = %q, want default en", backend.lastLang)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
	if len(pub.names) != 1 || pub.names[0] != "output_20250101_120000.wav" {
		t.Errorf("published %v", pub.names)
	}
}

func TestCloneVoiceValidation(t *testing.T) {
	backend := &fakeBackend{data: wavBytes(t)}
	c, err := New(context.Background(), backend, WithMaxTextLength(20))
	if err != nil {
		t.Fatal(err)
	}
	ref := reference(t)
	out := filepath.Join(t.TempDir(), "out.wav")

	tests := []struct {
		name string
		req  Request
		code ErrorCode
	}{
		{"empty text", Request{Text: "  ", Reference: ref, Output: out}, ErrorCodeInvalidInput},
		{"too long", Request{Text: strings.Repeat("x", 21), Reference: ref, Output: out}, ErrorCodeTextTooLong},
		{"bad language", Request{Text: "hi", Reference: ref, Output: out, Language: "xx"}, ErrorCodeUnsupportedLanguage},
		{"missing reference", Request{Text: "hi", Reference: ref + ".missing", Output: out}, ErrorCodeReferenceNotFound},
		{"missing output", Request{Text: "hi", Reference: ref}, ErrorCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CloneVoice(context.Background(), tt.req)
			if CodeOf(err) != tt.code {
				t.Errorf("code = %s, want %s (err %v)", CodeOf(err), tt.code, err)
			}
			if !IsInputError(err) {
				t.Errorf("IsInputError(%v) = false", err)
			}
		})
	}

	if backend.calls.Load() != 0 {
		t.Errorf("backend called %d times for invalid input", backend.calls.Load())
	}
}

func TestCloneVoiceBackendErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		fatal     bool
		retryable bool
	}{
		{"out of memory", fmt.Errorf("xtts: %w: CUDA out of memory", ErrResourceExhausted), ErrorCodeResourceExhausted, true, false},
		{"unavailable", fmt.Errorf("xtts: %w", ErrBackendUnavailable), ErrorCodeEngineUnavailable, true, true},
		{"timeout", context.DeadlineExceeded, ErrorCodeTimeout, false, true},
		{"canceled", context.Canceled, ErrorCodeCanceled, false, false},
		{"other", errors.New("boom"), ErrorCodeEngineFailure, false, false},
	}

	ref := reference(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(context.Background(), &fakeBackend{synthErr: tt.err})
			if err != nil {
				t.Fatal(err)
			}
			out := filepath.Join(t.TempDir(), "out.wav")
			_, err = c.CloneVoice(context.Background(), Request{Text: "hi", Reference: ref, Output: out})

			var ce *CloneError
			if !errors.As(err, &ce) {
				t.Fatalf("error %v is not a CloneError", err)
			}
			if ce.Code != tt.code {
				t.Errorf("Code = %s, want %s", ce.Code, tt.code)
			}
			if ce.IsFatal() != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", ce.IsFatal(), tt.fatal)
			}
			if ce.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", ce.IsRetryable(), tt.retryable)
			}
			if !errors.Is(err, tt.err) {
				t.Error("cause not preserved")
			}
			if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
				t.Error("output written despite failure")
			}
		})
	}
}

func TestClonerSerializesRequests(t *testing.T) {
	backend := &fakeBackend{data: wavBytes(t)}
	c, err := New(context.Background(), backend)
	if err != nil {
		t.Fatal(err)
	}
	ref := reference(t)
	dir := t.TempDir()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = c.CloneVoice(context.Background(), Request{
				Text:      "hello",
				Reference: ref,
				Output:    filepath.Join(dir, fmt.Sprintf("%d.wav", i)),
			})
		}(i)
	}
	wg.Wait()

	if backend.overlap.Load() {
		t.Error("backend saw concurrent synthesis calls")
	}
	if backend.calls.Load() != 8 {
		t.Errorf("calls = %d, want 8", backend.calls.Load())
	}
}

func TestSpeak(t *testing.T) {
	c, err := New(context.Background(), &fakeBackend{data: wavBytes(t)})
	if err != nil {
		t.Fatal(err)
	}
	clip, err := c.Speak(context.Background(), "hola", reference(t), "es")
	if err != nil {
		t.Fatalf("Speak() error: %v", err)
	}
	if clip.SampleRate != 24000 || len(clip.Samples) != 2400 {
		t.Errorf("clip = %d samples at %d Hz", len(clip.Samples), clip.SampleRate)
	}

	bad, err := New(context.Background(), &fakeBackend{data: []byte("garbage")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bad.Speak(context.Background(), "hola", reference(t), "es"); CodeOf(err) != ErrorCodeEngineFailure {
		t.Errorf("Speak() with garbage code = %s", CodeOf(err))
	}
}

func TestPreview(t *testing.T) {
	short := "Hello world"
	if got := Preview(short); got != short {
		t.Errorf("Preview(short) = %q", got)
	}
	long := strings.Repeat("a", 100)
	if got := Preview(long); got != strings.Repeat("a", 60)+"..." {
		t.Errorf("Preview(long) = %q", got)
	}
	exact := strings.Repeat("b", 60)
	if got := Preview(exact); got != exact {
		t.Errorf("Preview(60 chars) = %q", got)
	}
	for _, n := range []int{61, 63} {
		if got := Preview(strings.Repeat("c", n)); got != strings.Repeat("c", 60)+"..." {
			t.Errorf("Preview(%d chars) = %q", n, got)
		}
	}
}
