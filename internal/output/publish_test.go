package output

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/require"
)

func startJetStream(t *testing.T) *server.Server {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	s := test.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s
}

func TestNATSPublisher(t *testing.T) {
	s := startJetStream(t)

	pub, err := NewNATSPublisher(s.ClientURL(), "")
	require.NoError(t, err)
	defer pub.Close() //nolint:errcheck
	require.Equal(t, DefaultBucket, pub.Bucket())

	ctx := context.Background()
	data := []byte("RIFF....WAVEfmt ")
	require.NoError(t, pub.Publish(ctx, "web_ui_20240309_070501.wav", data))

	got, err := pub.fetch(ctx, "web_ui_20240309_070501.wav")
	require.NoError(t, err)
	require.Equal(t, data, got)

	_, err = pub.fetch(ctx, "missing.wav")
	require.Error(t, err)
}

func TestNATSPublisherBindsExistingBucket(t *testing.T) {
	s := startJetStream(t)

	first, err := NewNATSPublisher(s.ClientURL(), "clips")
	require.NoError(t, err)
	defer first.Close() //nolint:errcheck
	require.NoError(t, first.Publish(context.Background(), "a.wav", []byte("a")))

	second, err := NewNATSPublisher(s.ClientURL(), "clips")
	require.NoError(t, err)
	defer second.Close() //nolint:errcheck

	got, err := second.fetch(context.Background(), "a.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got)
}

func TestNATSPublisherUnreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "clips")
	require.Error(t, err)
}

func TestNop(t *testing.T) {
	require.NoError(t, Nop{}.Publish(context.Background(), "x.wav", nil))
}
