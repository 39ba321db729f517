// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Google Cloud TTS) and
// turns a block of text into a complete encoded audio clip. Voxpreview never
// streams partial audio: a request either yields the whole clip or an error.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis requests may
// run in parallel (e.g., several visitors previewing different voices at once).
type Provider interface {
	// Synthesize converts req.Text into encoded audio using the voice and audio
	// settings carried by req. The returned slice holds the complete clip in the
	// encoding requested by req.Audio.Encoding.
	//
	// Returns an error if the backend cannot be reached, rejects the request, or
	// returns no audio. A cancelled ctx aborts the request.
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
