package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/internal/samples"
	"github.com/MrWong99/voxpreview/pkg/voice"
)

// profileBody is a profile as returned to clients. SampleAudioURL is null
// until the profile's preview has been generated.
type profileBody struct {
	voice.Profile
	SampleAudioURL *string `json:"sampleAudioUrl"`
}

type sampleResponse struct {
	Success  bool   `json:"success"`
	AudioURL string `json:"audioUrl"`
	Cached   bool   `json:"cached"`
	Message  string `json:"message"`
}

func withSample(p voice.Profile, url string, ok bool) profileBody {
	b := profileBody{Profile: p}
	if ok {
		b.SampleAudioURL = &url
	}
	return b
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	urls, err := s.samples.SampleURLs(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("list sample urls", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load voices")
		return
	}
	profiles := s.registry.List()
	out := make([]profileBody, 0, len(profiles))
	for _, p := range profiles {
		u, ok := urls[p.ID]
		out = append(out, withSample(p, u, ok))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetVoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "voice profile not found")
		return
	}
	u, found, err := s.samples.SampleURL(r.Context(), id)
	if err != nil {
		observe.Logger(r.Context()).Error("get sample url", "voice_profile_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load voice")
		return
	}
	writeJSON(w, http.StatusOK, withSample(p, u, found))
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.samples.EnsureSample(r.Context(), id)
	if err != nil {
		log := observe.Logger(r.Context()).With("voice_profile_id", id)
		switch {
		case errors.Is(err, voice.ErrNotFound):
			writeError(w, http.StatusNotFound, "voice profile not found")
		case errors.Is(err, voice.ErrNoSampleText):
			log.Error("profile has no sample text")
			writeError(w, http.StatusInternalServerError, "no sample text for voice profile")
		case errors.Is(err, samples.ErrSampleFailed):
			log.Error("sample generation failed", "err", err)
			writeError(w, http.StatusBadGateway, "failed to generate sample")
		default:
			log.Warn("sample request aborted", "err", err)
			writeError(w, http.StatusServiceUnavailable, "failed to generate sample")
		}
		return
	}

	msg := "Sample generated successfully"
	if res.Cached {
		msg = "Sample already exists"
	}
	writeJSON(w, http.StatusOK, sampleResponse{
		Success:  true,
		AudioURL: res.Sample.AudioURL,
		Cached:   res.Cached,
		Message:  msg,
	})
}

// pathID parses the {id} path value. It writes a 400 and returns false when
// the value is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid voice profile id")
		return 0, false
	}
	return id, true
}
