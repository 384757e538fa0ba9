package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"

	"github.com/dgnsrekt/voxclone/internal/config"
)

// setupLog logs to stderr at info level. With VOXCLONE_DEBUG set, debug
// output is also appended to voxclone.log in the user log directory.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)
	log.SetReportTimestamp(false)

	if os.Getenv("VOXCLONE_DEBUG") == "" {
		return func() error { return nil }, nil
	}
	return enableDebugLog()
}

// enableDebugLog switches to debug level and mirrors log output to the
// debug log file.
func enableDebugLog() (func() error, error) {
	path, err := gap.NewScope(gap.User, config.AppName).LogPath(config.AppName + ".log")
	if err != nil {
		return nil, fmt.Errorf("unable to find log directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.SetLevel(log.DebugLevel)
	log.SetReportTimestamp(true)
	log.Debug("Debug logging enabled", "file", path)
	return f.Close, nil
}
