package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/voxclone/internal/xtts"
)

var (
	healthWarm bool

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check that the XTTS server is reachable",
		Example: paragraph(`voxclone health
voxclone health --warm`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, closer, err := newBackend(settings)
			if err != nil {
				return err
			}
			defer closer() //nolint:errcheck

			ctx, cancel := context.WithTimeout(cmd.Context(), settings.Server.Timeout)
			defer cancel()

			return runHealth(ctx, os.Stdout, client, settings.DefaultVoicePath(), healthWarm)
		},
	}
)

func init() {
	healthCmd.Flags().BoolVar(&healthWarm, "warm", false, "precompute the default voice's speaker latents")
}

// healthBackend is the part of the XTTS client the health command uses.
type healthBackend interface {
	Health(ctx context.Context) error
	Languages(ctx context.Context) ([]string, error)
	Warm(ctx context.Context, reference string) (bool, error)
	BaseURL() string
	Mode() xtts.Mode
}

func runHealth(ctx context.Context, w io.Writer, client healthBackend, voicePath string, warm bool) error {
	if err := client.Health(ctx); err != nil {
		fmt.Fprintln(w, failure("unhealthy"), client.BaseURL())
		return err
	}
	fmt.Fprintln(w, success("healthy"), client.BaseURL(), subtle("("+string(client.Mode())+" mode)"))

	langs, err := client.Languages(ctx)
	if err != nil {
		log.Warn("Could not list server languages", "err", err)
	} else {
		fmt.Fprintln(w, "  Languages:", strings.Join(langs, " "))
	}

	if !warm {
		return nil
	}
	ok, err := client.Warm(ctx, voicePath)
	if err != nil {
		fmt.Fprintln(w, failure("  Could not warm voice: ")+voicePath)
		return err
	}
	if ok {
		fmt.Fprintln(w, success("  Voice latents cached: ")+voicePath)
	} else {
		fmt.Fprintln(w, subtle("  Speaker mode keeps voices on the server, nothing to warm."))
	}
	return nil
}
