// Package blob defines the Publisher abstraction used to store generated audio
// in a publicly reachable object store.
//
// A publish either fully succeeds, returning a URL that resolves to exactly the
// bytes written, or fails with an error wrapping [ErrStorage]. The URL is a
// pure function of the backend's public base URL and the object path, so the
// same path always yields the same URL.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// ErrStorage is wrapped by every backend failure.
var ErrStorage = errors.New("blob: storage error")

// ErrNotFound is returned by [Opener.Open] when no object exists at the path.
var ErrNotFound = errors.New("blob: object not found")

// Publisher stores bytes under a path and returns their public URL.
//
// Implementations must be safe for concurrent use.
type Publisher interface {
	// Publish writes data at path with the given content type and returns the
	// public URL of the stored object.
	Publish(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Opener is implemented by publishers whose objects are served by voxpreview
// itself rather than by the store (e.g., a NATS object store bucket).
type Opener interface {
	// Open returns a reader for the object at path and its content type.
	// Returns an error wrapping [ErrNotFound] when the object does not exist.
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
}

// Pinger is implemented by publishers that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JoinURL joins base and an object path, escaping each path segment.
// A trailing slash on base is ignored.
func JoinURL(base, path string) string {
	segs := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}

// ValidatePath rejects empty paths and paths that try to escape their prefix.
func ValidatePath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: invalid path %q", ErrStorage, path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: invalid path %q", ErrStorage, path)
		}
	}
	return nil
}

// WithTimeout wraps p so that every Publish call is bounded by d.
// A non-positive d returns p unchanged.
func WithTimeout(p Publisher, d time.Duration) Publisher {
	if d <= 0 {
		return p
	}
	return &timeoutPublisher{next: p, timeout: d}
}

type timeoutPublisher struct {
	next    Publisher
	timeout time.Duration
}

func (t *timeoutPublisher) Publish(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	u, err := t.next.Publish(ctx, path, data, contentType)
	if err != nil && !errors.Is(err, ErrStorage) {
		err = fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return u, err
}

// Open forwards to the wrapped publisher when it implements [Opener].
func (t *timeoutPublisher) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	o, ok := t.next.(Opener)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return o.Open(ctx, path)
}

// Ping forwards to the wrapped publisher when it implements [Pinger].
func (t *timeoutPublisher) Ping(ctx context.Context) error {
	if p, ok := t.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Unwrap returns the wrapped publisher.
func (t *timeoutPublisher) Unwrap() Publisher { return t.next }

// AsOpener returns p as an [Opener] if p, or any publisher it wraps, serves
// its own objects.
func AsOpener(p Publisher) (Opener, bool) {
	for p != nil {
		if tp, ok := p.(*timeoutPublisher); ok {
			p = tp.next
			continue
		}
		o, ok := p.(Opener)
		return o, ok
	}
	return nil, false
}
