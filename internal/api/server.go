// Package api serves the voxpreview JSON API consumed by the browser client.
//
// Routes:
//
//	GET  /api/voices               list voice profiles with their sample URLs
//	GET  /api/voices/{id}          a single profile
//	POST /api/voices/{id}/sample   ensure and return the profile's preview sample
//	POST /api/generate             synthesise free text in a chosen voice
//	POST /api/session              start a visitor session
//	GET  /api/session?token=       report a session's generation quota
//	GET  /media/{path...}          stream stored audio (self-hosted stores only)
package api

import (
	"net/http"

	"github.com/MrWong99/voxpreview/internal/generate"
	"github.com/MrWong99/voxpreview/internal/samples"
	"github.com/MrWong99/voxpreview/internal/session"
	"github.com/MrWong99/voxpreview/pkg/blob"
	"github.com/MrWong99/voxpreview/pkg/voice"
)

// maxBodyBytes caps request bodies. The longest valid body is a 5000
// character text in at most 4 bytes per character plus the envelope.
const maxBodyBytes = 64 << 10

// Config holds the dependencies of a [Server].
type Config struct {
	Registry  *voice.Registry
	Samples   *samples.Manager
	Generator *generate.Service
	Sessions  *session.Tracker

	// EnforceQuota charges every generation against the caller's session
	// and refuses it once the quota is used up. When false, generations are
	// only counted.
	EnforceQuota bool

	// Media serves /media/{path...}. Nil disables the route.
	Media blob.Opener
}

// Server implements the HTTP handlers. It is safe for concurrent use.
type Server struct {
	registry  *voice.Registry
	samples   *samples.Manager
	generator *generate.Service
	sessions  *session.Tracker
	enforce   bool
	media     blob.Opener
}

// New creates a Server.
func New(cfg Config) *Server {
	return &Server{
		registry:  cfg.Registry,
		samples:   cfg.Samples,
		generator: cfg.Generator,
		sessions:  cfg.Sessions,
		enforce:   cfg.EnforceQuota,
		media:     cfg.Media,
	}
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/voices", s.handleListVoices)
	mux.HandleFunc("GET /api/voices/{id}", s.handleGetVoice)
	mux.HandleFunc("POST /api/voices/{id}/sample", s.handleSample)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/session", s.handleInitSession)
	mux.HandleFunc("GET /api/session", s.handleGetSession)
	if s.media != nil {
		mux.HandleFunc("GET /media/{path...}", s.handleMedia)
	}
}
