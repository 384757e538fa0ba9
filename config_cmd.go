package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/voxclone/internal/config"
)

var configCmd = &cobra.Command{
	Use:         "config",
	Hidden:      false,
	Short:       "Edit the voxclone config file",
	Long:        paragraph(fmt.Sprintf("\n%s the voxclone config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example:     paragraph("voxclone config\nvoxclone config --config path/to/config.yml"),
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSettings: "true"},
	RunE: func(*cobra.Command, []string) error {
		file := configPath()
		if err := ensureConfigFile(file); err != nil {
			return err
		}

		c, err := editor.Cmd("voxclone", file)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", file)
		return nil
	},
}

// configPath returns the --config file, else the file viper loaded, else
// the default location.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	if used := viper.GetViper().ConfigFileUsed(); used != "" {
		return used
	}
	return defaultConfigFile
}

// ensureConfigFile writes the default configuration to file unless it
// already exists.
func ensureConfigFile(file string) error {
	if file == "" {
		return errors.New("no configuration file location")
	}

	if ext := path.Ext(file); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		data, err := config.RenderDefault()
		if err != nil {
			return err
		}
		if err := os.WriteFile(file, data, 0o600); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
