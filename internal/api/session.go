package api

import (
	"net/http"
	"time"

	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/internal/session"
)

type quotaBody struct {
	GenerationCount      int  `json:"generationCount"`
	RemainingGenerations int  `json:"remainingGenerations"`
	CanGenerate          bool `json:"canGenerate"`
}

func toQuotaBody(q session.Quota) quotaBody {
	return quotaBody{
		GenerationCount:      q.Used,
		RemainingGenerations: q.Remaining,
		CanGenerate:          q.CanGenerate,
	}
}

type sessionResponse struct {
	SessionToken string `json:"sessionToken"`
	ExpiresAt    string `json:"expiresAt"`
}

func (s *Server) handleInitSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Init(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("init session", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionToken: sess.Token,
		ExpiresAt:    sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	q := s.sessions.Check(r.Context(), r.URL.Query().Get("token"))
	writeJSON(w, http.StatusOK, toQuotaBody(q))
}
