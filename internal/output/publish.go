package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/dgnsrekt/voxclone/internal/voice"
)

// DefaultBucket is the object store bucket used when none is configured.
const DefaultBucket = "VOXCLONE_OUTPUTS"

var (
	_ voice.Publisher = Nop{}
	_ voice.Publisher = (*NATSPublisher)(nil)
)

// Nop discards published files.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, string, []byte) error { return nil }

// NATSPublisher copies generated files into a JetStream object store.
type NATSPublisher struct {
	conn   *nats.Conn
	store  nats.ObjectStore
	bucket string
}

// NewNATSPublisher connects to url and creates the bucket, or binds to it
// when it already exists.
func NewNATSPublisher(url, bucket string) (*NATSPublisher, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	nc, err := nats.Connect(url, nats.Name("voxclone"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Generated voice clips.",
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			nc.Close()
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucket, err)
		}
	}

	return &NATSPublisher{conn: nc, store: store, bucket: bucket}, nil
}

// Publish stores data under name, replacing any previous object.
func (p *NATSPublisher) Publish(ctx context.Context, name string, data []byte) error {
	_, err := p.store.Put(&nats.ObjectMeta{
		Name:        name,
		Description: "audio/wav",
	}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", name, p.bucket, err)
	}
	return nil
}

// fetch reads a published file back.
func (p *NATSPublisher) fetch(ctx context.Context, name string) ([]byte, error) {
	obj, err := p.store.Get(name, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", name, p.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", name, readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", name, closeErr)
	}
	return data, nil
}

// Bucket returns the object store bucket name.
func (p *NATSPublisher) Bucket() string { return p.bucket }

// Close drains the NATS connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
