// Package natsstore provides a blob.Publisher backed by a NATS JetStream
// object store bucket.
//
// JetStream objects are not reachable over plain HTTP, so the returned URLs
// point at voxpreview's own media route (PublicBaseURL) which streams objects
// back through [Store.Open].
package natsstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/MrWong99/voxpreview/pkg/blob"
)

var (
	_ blob.Publisher = (*Store)(nil)
	_ blob.Opener    = (*Store)(nil)
	_ blob.Pinger    = (*Store)(nil)
)

const contentTypeKey = "content-type"

// Store implements blob.Publisher and blob.Opener over a JetStream object store.
type Store struct {
	nc      *nats.Conn
	bucket  string
	baseURL string
	store   nats.ObjectStore
}

// Connect dials the NATS server at url and returns the connection.
// The caller owns the connection and must close it.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	opts = append([]nats.Option{nats.Name("voxpreview")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("natsstore: connect %s: %w", url, err)
	}
	return nc, nil
}

// New creates the bucket if it does not exist yet, or binds to it otherwise.
// publicBaseURL is the origin of the HTTP route serving the objects
// (e.g., "https://voxpreview.example.com/media").
func New(nc *nats.Conn, bucket, publicBaseURL string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("natsstore: bucket is required")
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("natsstore: jetstream context: %w", err)
	}

	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "voxpreview generated audio",
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("natsstore: create bucket %q: %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("natsstore: bind bucket %q: %w", bucket, err)
		}
	}

	return &Store{
		nc:      nc,
		bucket:  bucket,
		baseURL: publicBaseURL,
		store:   store,
	}, nil
}

// Publish stores data under path and returns its media URL.
func (s *Store) Publish(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := blob.ValidatePath(path); err != nil {
		return "", err
	}
	_, err := s.store.Put(&nats.ObjectMeta{
		Name:     path,
		Metadata: map[string]string{contentTypeKey: contentType},
	}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: nats put %s/%s: %w", blob.ErrStorage, s.bucket, path, err)
	}
	return blob.JoinURL(s.baseURL, path), nil
}

// Open returns a reader over the object stored at path and its content type.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	obj, err := s.store.Get(path, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, "", fmt.Errorf("%w: %s", blob.ErrNotFound, path)
		}
		return nil, "", fmt.Errorf("%w: nats get %s/%s: %w", blob.ErrStorage, s.bucket, path, err)
	}
	contentType := "application/octet-stream"
	if info, err := obj.Info(); err == nil && info.Metadata[contentTypeKey] != "" {
		contentType = info.Metadata[contentTypeKey]
	}
	return obj, contentType, nil
}

// Ping round-trips to the server.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("%w: nats flush: %w", blob.ErrStorage, err)
	}
	return nil
}
