package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/voxclone/internal/output"
	"github.com/dgnsrekt/voxclone/internal/voice"
)

var quickNoSave bool

var quickCmd = &cobra.Command{
	Use:   "quick TEXT...",
	Short: "Speak text with your default voice",
	Long: paragraph(fmt.Sprintf("\n%s with the default voice profile and play the result. All arguments are joined into one sentence.",
		keyword("Clone your voice in one command"))),
	Example: paragraph(`voxclone quick "Hello world, this is my cloned voice!"
voxclone quick What a beautiful day it is today!
voxclone quick --no-save Testing one two three`),
	RunE: func(cmd *cobra.Command, args []string) error {
		sentence := strings.TrimSpace(strings.Join(args, " "))
		if sentence == "" {
			printQuickUsage(os.Stderr)
			return errors.New("no text given")
		}
		if err := voice.ValidateText(sentence, settings.Voice.MaxTextLength); err != nil {
			return err
		}

		ref := settings.DefaultVoicePath()
		if err := voice.ValidateReference(ref); err != nil {
			fmt.Fprintln(os.Stderr, failure("Error: Voice file not found!"))
			fmt.Fprintln(os.Stderr, "   Expected:", ref)
			fmt.Fprintln(os.Stderr)
			printQuickSetup(os.Stderr, sentence)
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		a, err := newApp(ctx, settings)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if quickNoSave {
			clip, err := a.cloner.Speak(ctx, sentence, ref, settings.Voice.Language)
			if err != nil {
				return err
			}
			fmt.Println(subtle(fmt.Sprintf("Playing %.1fs of audio... (Ctrl+C to stop)", clip.Duration().Seconds())))
			if err := playClip(ctx, clip); err != nil && ctx.Err() == nil {
				return fmt.Errorf("unable to play audio: %w", err)
			}
			return nil
		}

		out, err := a.outputs.Next(output.QuickName(time.Now()))
		if err != nil {
			return err
		}
		res, err := a.cloner.CloneVoice(ctx, voice.Request{
			Text:      sentence,
			Reference: ref,
			Output:    out,
			Language:  settings.Voice.Language,
		})
		if err != nil {
			a.outputs.Discard(out)
			return err
		}
		printResult(os.Stdout, res)

		if settings.Playback.AutoPlay {
			play(ctx, os.Stdout, res.Path)
		}

		fmt.Println()
		fmt.Println("Generate more:")
		fmt.Println("   " + keyword(`voxclone quick "Your next sentence here"`))
		fmt.Println()
		fmt.Println("Try advanced features:")
		fmt.Println("   " + keyword("voxclone --interactive"))
		fmt.Println("   " + keyword("voxclone web"))
		return nil
	},
}

func init() {
	quickCmd.Flags().BoolVar(&quickNoSave, "no-save", false, "play the result without writing a file")
}

func printQuickUsage(w io.Writer) {
	fmt.Fprintln(w, heading("Quick Voice Cloner"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, `  voxclone quick "Your text here"`)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, `  voxclone quick "Hello world, this is my cloned voice!"`)
	fmt.Fprintln(w, `  voxclone quick "What a beautiful day it is today!"`)
	fmt.Fprintln(w)
	printQuickSetup(w, "")
}

func printQuickSetup(w io.Writer, sentence string) {
	fmt.Fprintln(w, "First time setup:")
	fmt.Fprintln(w, "  1. Record your voice:")
	fmt.Fprintln(w, "     "+keyword("voxclone record 120"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  2. Prepare and combine the samples:")
	fmt.Fprintln(w, "     "+keyword("voxclone prepare -a"))
	fmt.Fprintln(w)
	if sentence == "" {
		fmt.Fprintln(w, "  3. Then use this command!")
	} else {
		fmt.Fprintln(w, "  3. Then try again:")
		fmt.Fprintln(w, "     "+keyword(fmt.Sprintf("voxclone quick %q", truncate.StringWithTail(sentence, 30, "..."))))
	}
	fmt.Fprintln(w)
}
