// Package main provides the entry point for the voxclone CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/voxclone/internal/config"
	"github.com/dgnsrekt/voxclone/internal/output"
	"github.com/dgnsrekt/voxclone/internal/repl"
	"github.com/dgnsrekt/voxclone/internal/voice"
)

// skipSettings marks commands that run without loading the configuration.
const skipSettings = "voxclone/skip-settings"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	debug             bool
	settings          *config.Config
	closeLog          = func() error { return nil }

	text        string
	outputPath  string
	interactive bool
	listVoices  bool
	playOutput  bool

	rootCmd = &cobra.Command{
		Use:   "voxclone",
		Short: "Clone a voice with XTTS-v2 from the command line",
		Long: paragraph(
			fmt.Sprintf("\nSpeak any text in %s, from a short reference recording.", keyword("your own voice")),
		),
		Example: paragraph(`voxclone --interactive
voxclone --text "Hello world!" --output outputs/greeting.wav
voxclone --voice my_voice --text "Testing"
voxclone --text "Bonjour le monde" --language fr
voxclone --list-voices`),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadSettings(cmd)
		},
		RunE: execute,
	}
)

func loadSettings(cmd *cobra.Command) error {
	if debug && os.Getenv("VOXCLONE_DEBUG") == "" {
		c, err := enableDebugLog()
		if err != nil {
			return err
		}
		closeLog = c
	}

	if cmd.Annotations[skipSettings] != "" {
		return nil
	}

	if cmd.Root().PersistentFlags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
		log.Debug("Using configuration file", "path", configFile)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	settings = cfg
	return nil
}

func execute(cmd *cobra.Command, _ []string) error {
	lib := voiceLibrary()
	if listVoices {
		return printVoices(os.Stdout, lib)
	}

	ref, err := lib.Find(settings.Voice.Default)
	if err != nil {
		fmt.Fprintln(os.Stderr, failure("Error: "+err.Error()))
		_ = printVoices(os.Stderr, lib)
		printSetupHint(os.Stderr)
		return err
	}

	if !interactive && strings.TrimSpace(text) == "" {
		fmt.Fprintln(os.Stderr, failure("Error: --text is required (or use --interactive mode)"))
		fmt.Fprintln(os.Stderr)
		_ = cmd.Help()
		return errors.New("no text given")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	var out string
	if !interactive {
		if err := voice.ValidateText(text, settings.Voice.MaxTextLength); err != nil {
			return err
		}
		if outputPath != "" {
			if out, err = resolveOutput(output.NewDir(settings.Paths.OutputsDir), outputPath, time.Now()); err != nil {
				return err
			}
		}
	}

	fmt.Println("Using voice:", keyword(ref))

	a, err := newApp(ctx, settings)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if interactive {
		cfg := repl.Config{
			Cloner:   a.cloner,
			Voice:    ref,
			Outputs:  a.outputs,
			Language: settings.Voice.Language,
		}
		if playOutput || settings.Playback.AutoPlay {
			cfg.Play = playFile
		}
		return repl.Run(ctx, cfg)
	}

	if out == "" {
		if out, err = resolveOutput(a.outputs, "", time.Now()); err != nil {
			return err
		}
	}
	res, err := a.cloner.CloneVoice(ctx, voice.Request{
		Text:      text,
		Reference: ref,
		Output:    out,
		Language:  settings.Voice.Language,
	})
	if err != nil {
		if outputPath == "" {
			a.outputs.Discard(out)
		}
		return err
	}
	printResult(os.Stdout, res)

	if playOutput {
		play(ctx, os.Stdout, res.Path)
	}
	return nil
}

// resolveOutput returns the output file for a single synthesis. A user
// supplied path must lie inside the outputs directory.
func resolveOutput(dir *output.Dir, path string, now time.Time) (string, error) {
	if path == "" {
		return dir.Next(output.Name(now))
	}
	resolved, err := dir.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("output path must be within %s: %w", dir.Root(), err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil { //nolint:gosec
		return "", fmt.Errorf("unable to create output directory: %w", err)
	}
	return resolved, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closeLog()
		_ = closer()
		os.Exit(1)
	}
	_ = closeLog()
	_ = closer()
}

func init() {
	config.SetDefaults(viper.GetViper())
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", configPath()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs to the log file")

	rootCmd.Flags().StringVarP(&text, "text", "t", "", "text to synthesize")
	rootCmd.Flags().StringP("voice", "v", config.Default().Voice.Default, "voice profile name or path to a wav file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: auto-generated in the outputs directory)")
	rootCmd.Flags().StringP("language", "l", voice.DefaultLanguage, "language code ("+strings.Join(voice.SupportedLanguages(), ", ")+")")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "interactive mode: continuous text-to-speech session")
	rootCmd.Flags().BoolVar(&listVoices, "list-voices", false, "list available voice profiles and exit")
	rootCmd.Flags().BoolVar(&playOutput, "play", false, "play the generated audio")

	// Config bindings
	_ = viper.BindPFlag("voice.default", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("voice.language", rootCmd.Flags().Lookup("language"))

	rootCmd.AddCommand(configCmd, manCmd, quickCmd, recordCmd, prepareCmd, webCmd, healthCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("VOXCLONE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.AppName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	defaultConfigFile = filepath.Join(dirs[0], config.AppName+".yml")
	if err := ensureConfigFile(defaultConfigFile); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
