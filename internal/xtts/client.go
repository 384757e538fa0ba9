package xtts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/voxclone/internal/audio"
	"github.com/dgnsrekt/voxclone/internal/voice"
)

// API paths.
const (
	pathCloneSpeaker = "/clone_speaker"
	pathTTS          = "/tts"
	pathTTSToAudio   = "/tts_to_audio/"
	pathLanguages    = "/languages"
)

const (
	contentTypeJSON = "application/json"

	// StreamingSampleRate is the rate of raw PCM returned by /tts.
	StreamingSampleRate = 24000

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 120 * time.Second

	// error bodies are read up to this size
	maxErrorBody = 64 << 10

	oomMarker = "CUDA out of memory"
)

var (
	// ErrOutOfMemory is returned when the server runs out of GPU memory
	ErrOutOfMemory = errors.New("server out of memory")

	// ErrEmptyAudio is returned when the server answers without audio
	ErrEmptyAudio = errors.New("server returned empty audio")

	// ErrUnknownMode is returned for an unsupported API mode
	ErrUnknownMode = errors.New("unknown server mode")
)

// Mode selects the server API.
type Mode string

const (
	// ModeLatents targets coqui xtts-streaming-server.
	ModeLatents Mode = "latents"

	// ModeSpeaker targets xtts-api-server.
	ModeSpeaker Mode = "speaker"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLatents, ModeSpeaker:
		return m, nil
	case "":
		return ModeLatents, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// LatentCache stores encoded speaker latents. *cache.Manager satisfies it.
type LatentCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Latents are the conditioning tensors the server derives from a reference
// voice.
type Latents struct {
	GPTCondLatent    [][]float64 `json:"gpt_cond_latent"`
	SpeakerEmbedding []float64   `json:"speaker_embedding"`
}

type ttsRequest struct {
	Text             string      `json:"text"`
	Language         string      `json:"language"`
	SpeakerEmbedding []float64   `json:"speaker_embedding"`
	GPTCondLatent    [][]float64 `json:"gpt_cond_latent"`
}

type speakerRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

var _ voice.Backend = (*Client)(nil)

// Client is an XTTS server client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	mode       Mode
	httpClient *http.Client
	timeout    time.Duration

	limiter *rate.Limiter
	latents LatentCache

	// speaker mode: local voices dir and where the server sees it
	speakerRoot string
	localRoot   string

	logger *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMode selects the server API.
func WithMode(m Mode) Option {
	return func(c *Client) {
		c.mode = m
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRequestsPerMinute limits synthesis requests. Zero means unlimited.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithLatentCache caches speaker latents across calls and processes.
func WithLatentCache(lc LatentCache) Option {
	return func(c *Client) {
		c.latents = lc
	}
}

// WithSpeakerRoot maps reference paths under localRoot to serverRoot, for
// servers that mount the voices directory elsewhere.
func WithSpeakerRoot(serverRoot, localRoot string) Option {
	return func(c *Client) {
		c.speakerRoot = serverRoot
		c.localRoot = localRoot
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if u == "" {
		return nil, errors.New("server URL is required")
	}

	c := &Client{
		baseURL: u,
		mode:    ModeLatents,
		timeout: DefaultTimeout,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if _, err := ParseMode(string(c.mode)); err != nil {
		return nil, err
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Mode returns the server API in use.
func (c *Client) Mode() Mode { return c.mode }

// Synthesize renders text in the voice of reference and returns a WAV file.
func (c *Client) Synthesize(ctx context.Context, text, reference, language string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	switch c.mode {
	case ModeSpeaker:
		return c.synthesizeSpeaker(ctx, text, reference, language)
	default:
		return c.synthesizeLatents(ctx, text, reference, language)
	}
}

func (c *Client) synthesizeLatents(ctx context.Context, text, reference, language string) ([]byte, error) {
	latents, err := c.speakerLatents(ctx, reference)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(ttsRequest{
		Text:             text,
		Language:         language,
		SpeakerEmbedding: latents.SpeakerEmbedding,
		GPTCondLatent:    latents.GPTCondLatent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathTTS, contentTypeJSON, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var encoded string
	if err := json.NewDecoder(resp.Body).Decode(&encoded); err != nil {
		return nil, fmt.Errorf("failed to decode audio response: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	if audio.IsWAV(data) {
		return data, nil
	}
	return audio.WrapPCM16(data, StreamingSampleRate)
}

func (c *Client) synthesizeSpeaker(ctx context.Context, text, reference, language string) ([]byte, error) {
	body, err := json.Marshal(speakerRequest{
		Text:       text,
		SpeakerWav: c.serverPath(reference),
		Language:   language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathTTSToAudio, contentTypeJSON, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}

// serverPath rewrites reference for a server that mounts the voices
// directory at speakerRoot.
func (c *Client) serverPath(reference string) string {
	if c.speakerRoot == "" || c.localRoot == "" {
		return reference
	}
	absRef, err := filepath.Abs(reference)
	if err != nil {
		return reference
	}
	absRoot, err := filepath.Abs(c.localRoot)
	if err != nil {
		return reference
	}
	rel, err := filepath.Rel(absRoot, absRef)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return reference
	}
	return path.Join(c.speakerRoot, filepath.ToSlash(rel))
}

// speakerLatents returns the latents for reference, from cache when the
// file contents were seen before.
func (c *Client) speakerLatents(ctx context.Context, reference string) (*Latents, error) {
	data, err := os.ReadFile(reference) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read reference audio: %w", err)
	}

	sum := sha256.Sum256(data)
	key := "latents:" + hex.EncodeToString(sum[:])

	if c.latents != nil {
		if cached, ok := c.latents.Get(key); ok {
			var l Latents
			if err := json.Unmarshal(cached, &l); err == nil {
				c.logger.Debug("Speaker latents cache hit", "reference", filepath.Base(reference))
				return &l, nil
			}
		}
	}

	l, raw, err := c.cloneSpeaker(ctx, filepath.Base(reference), data)
	if err != nil {
		return nil, err
	}

	if c.latents != nil {
		if err := c.latents.Put(key, raw); err != nil {
			c.logger.Warn("Failed to cache speaker latents", "err", err)
		}
	}
	return l, nil
}

// Warm computes the conditioning latents of reference ahead of the first
// synthesis so later requests hit the latent cache. It reports false in
// speaker mode, where the server keeps its own speaker state.
func (c *Client) Warm(ctx context.Context, reference string) (bool, error) {
	if c.mode != ModeLatents {
		return false, nil
	}
	if _, err := c.speakerLatents(ctx, reference); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) cloneSpeaker(ctx context.Context, name string, wav []byte) (*Latents, []byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("wav_file", name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to build upload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathCloneSpeaker, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read speaker latents: %w", err)
	}

	var l Latents
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, nil, fmt.Errorf("failed to decode speaker latents: %w", err)
	}
	if len(l.SpeakerEmbedding) == 0 || len(l.GPTCondLatent) == 0 {
		return nil, nil, errors.New("server returned empty speaker latents")
	}
	return &l, raw, nil
}

// Languages lists the language codes the server supports.
func (c *Client) Languages(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, pathLanguages, "", http.NoBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read languages: %w", err)
	}
	return parseLanguages(raw)
}

// parseLanguages accepts a bare list of codes or an object whose
// "languages" field is a list or a name to code map.
func parseLanguages(raw []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Languages json.RawMessage `json:"languages"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || len(wrapped.Languages) == 0 {
		return nil, fmt.Errorf("unexpected languages response: %s", truncateBody(raw))
	}
	if err := json.Unmarshal(wrapped.Languages, &list); err == nil {
		return list, nil
	}

	var named map[string]string
	if err := json.Unmarshal(wrapped.Languages, &named); err != nil {
		return nil, fmt.Errorf("unexpected languages response: %s", truncateBody(raw))
	}
	for _, code := range named {
		list = append(list, code)
	}
	sort.Strings(list)
	return list, nil
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, pathLanguages, "", http.NoBody)
	if err != nil {
		return fmt.Errorf("health check failed for server at %s: %w", c.baseURL, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// do sends a request and returns the response when the status is 200. The
// caller closes the body.
func (c *Client) do(ctx context.Context, method, p, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	c.logger.Debug("XTTS request", "method", method, "path", p,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close() //nolint:errcheck
		return nil, parseErrorResponse(resp)
	}
	return resp, nil
}

// transportError marks connection failures so callers can tell an
// unreachable server from a failed synthesis.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("request aborted: %w", ctxErr)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("request timed out: %w: %w", context.DeadlineExceeded, err)
	}
	return fmt.Errorf("%w: %w", voice.ErrBackendUnavailable, err)
}

func parseErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	detail := truncateBody(raw)
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && len(er.Detail) > 0 {
		var s string
		if err := json.Unmarshal(er.Detail, &s); err == nil {
			detail = s
		} else {
			detail = string(er.Detail)
		}
	}

	switch {
	case strings.Contains(detail, oomMarker):
		return fmt.Errorf("%w: %w: %s", ErrOutOfMemory, voice.ErrResourceExhausted, detail)
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway:
		return fmt.Errorf("%w: server returned %s: %s", voice.ErrBackendUnavailable, resp.Status, detail)
	default:
		return fmt.Errorf("server returned %s: %s", resp.Status, detail)
	}
}

func truncateBody(raw []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
