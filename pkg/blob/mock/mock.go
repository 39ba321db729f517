// Package mock provides a test double for the blob.Publisher interface.
//
// Published objects are kept in memory so that tests can assert on their bytes
// and content type, and so that the HTTP media route can serve them back.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/MrWong99/voxpreview/pkg/blob"
)

// PublishCall records a single invocation of Publish.
type PublishCall struct {
	Ctx         context.Context
	Path        string
	Data        []byte
	ContentType string
}

// Object is a stored object.
type Object struct {
	Data        []byte
	ContentType string
}

// Publisher is a mock implementation of blob.Publisher and blob.Opener.
type Publisher struct {
	mu sync.Mutex

	// BaseURL prefixes returned URLs. Defaults to "https://blob.test".
	BaseURL string

	// Err, if non-nil, is returned by Publish and nothing is stored.
	Err error

	// Hook, if non-nil, runs before the object is stored.
	Hook func(ctx context.Context, path string)

	// PublishCalls records every call to Publish in order.
	PublishCalls []PublishCall

	objects map[string]Object
}

// Publish records the call and stores data under path.
func (p *Publisher) Publish(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	p.mu.Lock()
	p.PublishCalls = append(p.PublishCalls, PublishCall{
		Ctx:         ctx,
		Path:        path,
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
	})
	hook, err := p.Hook, p.Err
	p.mu.Unlock()

	if hook != nil {
		hook(ctx, path)
	}
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.objects == nil {
		p.objects = make(map[string]Object)
	}
	p.objects[path] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	base := p.BaseURL
	if base == "" {
		base = "https://blob.test"
	}
	return blob.JoinURL(base, path), nil
}

// Open returns the object stored at path.
func (p *Publisher) Open(_ context.Context, path string) (io.ReadCloser, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[path]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", blob.ErrNotFound, path)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), obj.ContentType, nil
}

// Object returns the stored object at path. Thread-safe.
func (p *Publisher) Object(path string) (Object, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[path]
	return obj, ok
}

// Calls returns a copy of the recorded Publish calls. Thread-safe.
func (p *Publisher) Calls() []PublishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishCall(nil), p.PublishCalls...)
}

// Reset clears recorded calls and stored objects. Thread-safe.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PublishCalls = nil
	p.objects = nil
}

var (
	_ blob.Publisher = (*Publisher)(nil)
	_ blob.Opener    = (*Publisher)(nil)
)
