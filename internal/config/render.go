package config

import (
	"bytes"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const header = `# voxclone configuration
#
# server.mode: "latents" for the coqui xtts-streaming-server API,
# "speaker" for xtts-api-server. In speaker mode the server opens the
# reference WAV itself; set server.speaker_root when it sees voices_dir
# under a different path.
#
# web.auth: "user:password" enables basic auth on the web form.
# publish.nats_url: when set, every generated file is copied to the
# JetStream object store bucket publish.bucket.

`

// RenderDefault returns the default configuration as a commented YAML
// document.
func RenderDefault() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return nil, fmt.Errorf("unable to render default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("unable to render default config: %w", err)
	}
	return buf.Bytes(), nil
}

// HTTPTimeouts are web server timeouts read from the environment.
type HTTPTimeouts struct {
	Read     time.Duration `env:"VOXCLONE_HTTP_READ_TIMEOUT" envDefault:"30s"`
	Write    time.Duration `env:"VOXCLONE_HTTP_WRITE_TIMEOUT" envDefault:"10m"`
	Shutdown time.Duration `env:"VOXCLONE_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadHTTPTimeouts parses HTTPTimeouts from the environment.
func LoadHTTPTimeouts() (HTTPTimeouts, error) {
	t, err := env.ParseAs[HTTPTimeouts]()
	if err != nil {
		return HTTPTimeouts{}, fmt.Errorf("unable to read HTTP timeouts: %w", err)
	}
	return t, nil
}
