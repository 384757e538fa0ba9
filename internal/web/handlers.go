package web

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/dgnsrekt/voxclone/internal/output"
	"github.com/dgnsrekt/voxclone/internal/voice"
)

// GenerateRequest is the body of POST /api/generate, as a form or JSON.
type GenerateRequest struct {
	Text     string `form:"text" json:"text"`
	Voice    string `form:"voice" json:"voice"`
	Language string `form:"language" json:"language"`
}

// GenerateResponse is returned by POST /api/generate.
type GenerateResponse struct {
	AudioURL string `json:"audio_url,omitempty"`
	File     string `json:"file,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Status   string `json:"status"`
}

// VoiceEntry is one selectable reference file.
type VoiceEntry struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// LanguageEntry is one supported language.
type LanguageEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type indexData struct {
	Voices        []VoiceEntry
	Languages     []LanguageEntry
	Language      string
	MaxTextLength int
	Examples      []string
	Tips          template.HTML
}

func (s *Server) index(c echo.Context) error {
	voices, err := s.voiceEntries()
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "index.html", indexData{
		Voices:        voices,
		Languages:     languageEntries(),
		Language:      s.cfg.Language,
		MaxTextLength: s.cfg.MaxTextLength,
		Examples:      examples,
		Tips:          s.tmpl.tips,
	})
}

func (s *Server) listVoices(c echo.Context) error {
	if c.QueryParam("refresh") != "" {
		s.voices.invalidate()
	}
	voices, err := s.voiceEntries()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, voices)
}

func (s *Server) listLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, languageEntries())
}

func (s *Server) voiceEntries() ([]VoiceEntry, error) {
	files, err := s.voices.Files()
	if err != nil {
		return nil, fmt.Errorf("unable to list voices: %w", err)
	}
	out := make([]VoiceEntry, len(files))
	for i, f := range files {
		out[i] = VoiceEntry{Label: f.Label, Path: f.Path}
	}
	return out, nil
}

func languageEntries() []LanguageEntry {
	langs := voice.Languages()
	out := make([]LanguageEntry, len(langs))
	for i, l := range langs {
		out[i] = LanguageEntry{Code: l.Code, Name: l.Name}
	}
	return out
}

func (s *Server) generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return s.reject(c, "Invalid request")
	}

	if strings.TrimSpace(req.Text) == "" {
		return s.reject(c, "Please enter some text to synthesize")
	}
	if utf8.RuneCountInString(req.Text) > s.cfg.MaxTextLength {
		return s.reject(c, fmt.Sprintf("Text too long (max %d characters)", s.cfg.MaxTextLength))
	}
	if strings.TrimSpace(req.Voice) == "" {
		return s.reject(c, "Please select a voice file")
	}

	reference, err := voice.ValidatePath(req.Voice, s.cfg.Library.Root())
	if err != nil {
		return s.reject(c, err.Error())
	}
	if info, err := os.Stat(reference); err != nil || !info.Mode().IsRegular() {
		return s.reject(c, "Voice file not found: "+req.Voice)
	}

	lang := req.Language
	if lang == "" {
		lang = s.cfg.Language
	}
	if lang, err = voice.ValidateLanguage(lang); err != nil {
		return s.reject(c, err.Error())
	}

	path, err := s.cfg.Outputs.Next(output.WebName(s.now()))
	if err != nil {
		s.metrics.generated("error")
		return c.JSON(http.StatusInternalServerError, GenerateResponse{Status: "Error: " + err.Error()})
	}

	ctx := c.Request().Context()
	start := time.Now()
	res, err := s.cfg.Cloner.CloneVoice(ctx, voice.Request{
		Text:      req.Text,
		Reference: reference,
		Output:    path,
		Language:  lang,
	})
	if err != nil {
		s.cfg.Outputs.Discard(path)
		if voice.IsInputError(err) {
			return s.reject(c, err.Error())
		}
		s.metrics.generated("error")
		return c.JSON(http.StatusBadGateway, GenerateResponse{Status: "Error: " + err.Error()})
	}
	s.metrics.observe(time.Since(start))
	s.metrics.generated("success")

	name := filepath.Base(res.Path)
	return c.JSON(http.StatusOK, GenerateResponse{
		AudioURL: "/outputs/" + name,
		File:     name,
		Size:     res.Size,
		Status:   fmt.Sprintf("Generated successfully! (%.1f KB)", float64(res.Size)/1024),
	})
}

func (s *Server) reject(c echo.Context, msg string) error {
	s.metrics.generated("invalid")
	return c.JSON(http.StatusBadRequest, GenerateResponse{Status: "Error: " + msg})
}

func (s *Server) serveOutput(c echo.Context) error {
	path, err := s.cfg.Outputs.Open(c.Param("name"))
	if err != nil {
		if errors.Is(err, voice.ErrPathOutsideRoot) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid file name")
		}
		return echo.ErrNotFound
	}
	return c.File(path)
}

func (s *Server) healthz(c echo.Context) error {
	if s.cfg.Health == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	if err := s.cfg.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
