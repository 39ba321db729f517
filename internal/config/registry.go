package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/voxpreview/pkg/blob"
	"github.com/MrWong99/voxpreview/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// TTSFactory constructs a TTS provider from its configuration entry.
type TTSFactory func(ctx context.Context, entry ProviderEntry) (tts.Provider, error)

// BlobFactory constructs an object store publisher from its configuration entry.
type BlobFactory func(ctx context.Context, entry ProviderEntry) (blob.Publisher, error)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	tts  map[string]TTSFactory
	blob map[string]BlobFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tts:  make(map[string]TTSFactory),
		blob: make(map[string]BlobFactory),
	}
}

// RegisterTTS registers a TTS provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTTS(name string, factory TTSFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterBlob registers an object store factory under name.
func (r *Registry) RegisterBlob(name string, factory BlobFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blob[name] = factory
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateTTS(ctx context.Context, entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// CreateBlob instantiates an object store using the factory registered under entry.Name.
func (r *Registry) CreateBlob(ctx context.Context, entry ProviderEntry) (blob.Publisher, error) {
	r.mu.RLock()
	factory, ok := r.blob[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: blob/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// OptionString returns the string option key, or "" when absent or not a string.
func (e ProviderEntry) OptionString(key string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return ""
}

// OptionBool returns the boolean option key, or false when absent or not a bool.
func (e ProviderEntry) OptionBool(key string) bool {
	v, _ := e.Options[key].(bool)
	return v
}
