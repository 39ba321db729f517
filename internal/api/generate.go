package api

import (
	"errors"
	"net/http"

	"github.com/MrWong99/voxpreview/internal/generate"
	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/internal/session"
	"github.com/MrWong99/voxpreview/pkg/voice"
)

type generateRequest struct {
	Text           string `json:"text"`
	VoiceProfileID int    `json:"voiceProfileId"`
	SessionToken   string `json:"sessionToken"`
}

type generateResponse struct {
	Success      bool          `json:"success"`
	AudioURL     string        `json:"audioUrl"`
	VoiceProfile voice.Profile `json:"voiceProfile"`
	Quota        quotaBody     `json:"quota"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Reject bad input before charging the session.
	if err := generate.ValidateText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, "text must be between 1 and 5000 characters")
		return
	}
	if _, err := s.registry.Get(req.VoiceProfileID); err != nil {
		writeError(w, http.StatusNotFound, "voice profile not found")
		return
	}

	if s.enforce {
		q, err := s.sessions.Acquire(ctx, req.SessionToken)
		switch {
		case errors.Is(err, session.ErrUnknownSession):
			writeError(w, http.StatusUnauthorized, "unknown or expired session")
			return
		case errors.Is(err, session.ErrQuotaExceeded):
			writeJSON(w, http.StatusTooManyRequests, struct {
				errorBody
				Quota quotaBody `json:"quota"`
			}{errorBody{"generation limit reached"}, toQuotaBody(q)})
			return
		}
	}

	res, err := s.generator.Generate(ctx, generate.Request{
		Text:           req.Text,
		VoiceProfileID: req.VoiceProfileID,
		SessionToken:   req.SessionToken,
	})
	if err != nil {
		if s.enforce {
			s.sessions.Refund(ctx, req.SessionToken)
		}
		log := observe.Logger(ctx).With("voice_profile_id", req.VoiceProfileID)
		switch {
		case errors.Is(err, generate.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "text must be between 1 and 5000 characters")
		case errors.Is(err, voice.ErrNotFound):
			writeError(w, http.StatusNotFound, "voice profile not found")
		case errors.Is(err, generate.ErrGenerationFailed):
			log.Error("generation failed", "err", err)
			writeError(w, http.StatusBadGateway, "failed to generate speech")
		default:
			log.Warn("generation aborted", "err", err)
			writeError(w, http.StatusServiceUnavailable, "failed to generate speech")
		}
		return
	}

	if !s.enforce && req.SessionToken != "" {
		if _, err := s.sessions.Record(ctx, req.SessionToken); err != nil {
			observe.Logger(ctx).Debug("generation not counted", "err", err)
		}
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Success:      true,
		AudioURL:     res.AudioURL,
		VoiceProfile: res.Profile,
		Quota:        toQuotaBody(s.sessions.Check(ctx, req.SessionToken)),
	})
}
