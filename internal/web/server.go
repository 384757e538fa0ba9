// Package web serves the browser form and JSON API for voice cloning.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dgnsrekt/voxclone/internal/config"
	"github.com/dgnsrekt/voxclone/internal/output"
	"github.com/dgnsrekt/voxclone/internal/profile"
	"github.com/dgnsrekt/voxclone/internal/voice"
)

// Synthesizer writes one synthesized file.
type Synthesizer interface {
	CloneVoice(ctx context.Context, req voice.Request) (*voice.Result, error)
}

// Config configures a Server.
type Config struct {
	Cloner  Synthesizer
	Health  func(ctx context.Context) error
	Library *profile.Library
	Outputs *output.Dir

	MaxTextLength int
	Language      string // preselected language

	// Username and Password enable basic auth when both are set.
	Username string
	Password string

	UploadLimit string // echo body limit, e.g. "2M"
	Logger      *log.Logger
}

// Server is the web front-end.
type Server struct {
	echo    *echo.Echo
	cfg     Config
	tmpl    *renderer
	voices  *voiceList
	metrics *metrics
	logger  *log.Logger
	now     func() time.Time
}

// New builds the server and its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Cloner == nil {
		return nil, errors.New("web: no cloner configured")
	}
	if cfg.Library == nil || cfg.Outputs == nil {
		return nil, errors.New("web: voices and outputs directories are required")
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = voice.DefaultMaxTextLength
	}
	if lang, err := voice.ValidateLanguage(cfg.Language); err == nil {
		cfg.Language = lang
	} else {
		cfg.Language = voice.DefaultLanguage
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		echo:    echo.New(),
		cfg:     cfg,
		tmpl:    tmpl,
		voices:  newVoiceList(cfg.Library, cfg.Logger),
		metrics: newMetrics(),
		logger:  cfg.Logger,
		now:     time.Now,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = tmpl

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if cfg.UploadLimit != "" {
		e.Use(middleware.BodyLimit(cfg.UploadLimit))
	}
	e.Use(s.logRequests)
	if cfg.Username != "" && cfg.Password != "" {
		e.Use(middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/healthz"
			},
			Realm:     "voxclone",
			Validator: s.checkCredentials,
		}))
	}

	e.GET("/", s.index)
	e.GET("/api/voices", s.listVoices)
	e.GET("/api/languages", s.listLanguages)
	e.POST("/api/generate", s.generate)
	e.GET("/outputs/:name", s.serveOutput)
	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(s.metrics.handler()))

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, timeouts config.HTTPTimeouts) error {
	srv := s.echo.Server
	srv.ReadTimeout = timeouts.Read
	srv.ReadHeaderTimeout = timeouts.Read
	srv.WriteTimeout = timeouts.Write
	srv.RegisterOnShutdown(func() {
		s.logger.Info("Web server shutting down")
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return s.echo.Shutdown(sctx)
	}
}

// Close stops the voice directory watcher.
func (s *Server) Close() error {
	return s.voices.Close()
}

func (s *Server) checkCredentials(user, password string, _ echo.Context) (bool, error) {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	return userOK && passOK, nil
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req, res := c.Request(), c.Response()
		s.logger.Info("HTTP request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", res.Status,
			"request_id", res.Header().Get(echo.HeaderXRequestID),
			"duration", time.Since(start).Round(time.Millisecond),
		)
		return nil
	}
}
