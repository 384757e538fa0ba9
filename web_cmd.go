package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/voxclone/internal/config"
	"github.com/dgnsrekt/voxclone/internal/web"
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the voice cloning web form",
	Long: paragraph(fmt.Sprintf("\n%s in the browser: pick a voice, type text, choose a language and listen to the result.",
		keyword("Clone voices"))),
	Example: paragraph(`voxclone web
voxclone web --host 0.0.0.0 --port 8080
voxclone web --auth admin:secret`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		timeouts, err := config.LoadHTTPTimeouts()
		if err != nil {
			return err
		}

		a, err := newApp(ctx, settings)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if files, err := a.library.Files(); err == nil && len(files) == 0 {
			log.Warn("No voice files found", "dir", a.library.Root())
			printSetupHint(os.Stderr)
		}

		user, password, _ := settings.WebCredentials()
		srv, err := web.New(web.Config{
			Cloner:        a.cloner,
			Health:        a.client.Health,
			Library:       a.library,
			Outputs:       a.outputs,
			MaxTextLength: settings.Voice.MaxTextLength,
			Language:      settings.Voice.Language,
			Username:      user,
			Password:      password,
			UploadLimit:   settings.Web.UploadLimit,
			Logger:        log.Default(),
		})
		if err != nil {
			return err
		}
		defer srv.Close() //nolint:errcheck

		addr := settings.WebAddr()
		log.Info("Web UI listening", "url", "http://"+addr, "auth", user != "")
		return srv.ListenAndServe(ctx, addr, timeouts)
	},
}

func init() {
	webCmd.Flags().String("host", config.Default().Web.Host, "address to listen on")
	webCmd.Flags().Int("port", config.Default().Web.Port, "port to listen on")
	webCmd.Flags().String("auth", "", "enable basic auth, as user:password")

	_ = viper.BindPFlag("web.host", webCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("web.port", webCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("web.auth", webCmd.Flags().Lookup("auth"))
}
