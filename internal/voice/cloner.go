package voice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxclone/internal/audio"
	"github.com/muesli/reflow/truncate"
)

// previewWidth is the number of characters of text shown in log output.
const previewWidth = 60

// Backend performs the actual XTTS-v2 synthesis. Synthesize returns a
// complete WAV file.
type Backend interface {
	Synthesize(ctx context.Context, text, reference, language string) ([]byte, error)
	Health(ctx context.Context) error
}

// Publisher receives a copy of every generated file.
type Publisher interface {
	Publish(ctx context.Context, name string, data []byte) error
}

// Request describes one synthesis.
type Request struct {
	Text      string
	Reference string // path to the reference voice WAV
	Output    string // path of the WAV file to write
	Language  string // empty selects DefaultLanguage
}

// Result describes a generated file.
type Result struct {
	Path     string
	Size     int64
	Duration time.Duration
	Elapsed  time.Duration
}

// Cloner is the single synthesis entry point shared by every front-end. It
// is created once per process and serializes requests against the backend.
type Cloner struct {
	backend       Backend
	publisher     Publisher
	maxTextLength int
	logger        *log.Logger

	mu sync.Mutex
}

// Option configures a Cloner.
type Option func(*Cloner)

// WithMaxTextLength sets the maximum accepted text length in characters.
func WithMaxTextLength(n int) Option {
	return func(c *Cloner) {
		if n > 0 {
			c.maxTextLength = n
		}
	}
}

// WithLogger sets the logger used for progress output.
func WithLogger(l *log.Logger) Option {
	return func(c *Cloner) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPublisher mirrors every generated file to p.
func WithPublisher(p Publisher) Option {
	return func(c *Cloner) {
		c.publisher = p
	}
}

// New creates a Cloner and checks that the backend is reachable.
func New(ctx context.Context, backend Backend, opts ...Option) (*Cloner, error) {
	if backend == nil {
		return nil, NewCloneError(ErrorCodeEngineUnavailable, "cannot create voice cloner", ErrNoBackend)
	}

	c := &Cloner{
		backend:       backend,
		maxTextLength: DefaultMaxTextLength,
		logger:        log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := backend.Health(ctx); err != nil {
		return nil, NewCloneError(ErrorCodeEngineUnavailable, "voice cloning backend is not ready", err)
	}
	c.logger.Debug("Voice cloner ready", "max_text_length", c.maxTextLength)

	return c, nil
}

// SupportedLanguages returns the supported language codes.
func (c *Cloner) SupportedLanguages() []string {
	return SupportedLanguages()
}

// MaxTextLength returns the configured text limit.
func (c *Cloner) MaxTextLength() int {
	return c.maxTextLength
}

// CloneVoice synthesizes req.Text in the voice of req.Reference and writes
// the result to req.Output.
func (c *Cloner) CloneVoice(ctx context.Context, req Request) (*Result, error) {
	lang, err := c.validate(req.Text, req.Reference, req.Language)
	if err != nil {
		return nil, err
	}
	if req.Output == "" {
		return nil, NewCloneError(ErrorCodeInvalidInput, "output path is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil { //nolint:gosec
		return nil, NewCloneError(ErrorCodeIO, "unable to create output directory", err)
	}

	start := time.Now()
	data, err := c.synthesize(ctx, req.Text, req.Reference, lang)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(req.Output, data, 0o644); err != nil { //nolint:gosec
		return nil, NewCloneError(ErrorCodeIO, "unable to write output file", err)
	}

	res := &Result{
		Path:    req.Output,
		Size:    int64(len(data)),
		Elapsed: time.Since(start),
	}
	if clip, err := audio.DecodeBytes(data); err == nil {
		res.Duration = clip.Duration()
	}
	c.logger.Info("Audio saved", "path", req.Output, "elapsed", res.Elapsed.Round(time.Millisecond))

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, filepath.Base(req.Output), data); err != nil {
			c.logger.Warn("Could not publish output", "path", req.Output, "err", err)
		}
	}

	return res, nil
}

// Speak synthesizes text without writing a file and returns the decoded
// audio, ready for playback.
func (c *Cloner) Speak(ctx context.Context, text, reference, language string) (*audio.Clip, error) {
	lang, err := c.validate(text, reference, language)
	if err != nil {
		return nil, err
	}

	data, err := c.synthesize(ctx, text, reference, lang)
	if err != nil {
		return nil, err
	}

	clip, err := audio.DecodeBytes(data)
	if err != nil {
		return nil, NewCloneError(ErrorCodeEngineFailure, "backend returned unreadable audio", err)
	}
	return clip, nil
}

func (c *Cloner) validate(text, reference, language string) (string, error) {
	if err := ValidateText(text, c.maxTextLength); err != nil {
		return "", err
	}
	lang, err := ValidateLanguage(language)
	if err != nil {
		return "", err
	}
	if err := ValidateReference(reference); err != nil {
		return "", err
	}
	return lang, nil
}

func (c *Cloner) synthesize(ctx context.Context, text, reference, lang string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Generating",
		"text", Preview(text),
		"reference", filepath.Base(reference),
		"language", lang,
	)

	data, err := c.backend.Synthesize(ctx, text, reference, lang)
	if err != nil {
		ce := classify(err)
		c.logger.Error("Error generating audio", "code", ce.Code, "err", err)
		return nil, ce
	}
	if len(data) == 0 {
		return nil, NewCloneError(ErrorCodeEngineFailure, "backend returned no audio", nil)
	}
	return data, nil
}

// Preview shortens text for display, appending "..." when it was cut.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewWidth {
		return text
	}
	return truncate.String(text, previewWidth) + "..."
}

// String implements fmt.Stringer.
func (r Result) String() string {
	return fmt.Sprintf("%s (%d bytes)", r.Path, r.Size)
}
