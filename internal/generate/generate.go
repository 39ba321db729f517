// Package generate implements free-text speech generation: validate the
// request, synthesise the text in the chosen voice, publish the clip under a
// unique path and hand back its public URL.
package generate

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MrWong99/voxpreview/internal/audit"
	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/internal/speech"
	"github.com/MrWong99/voxpreview/pkg/blob"
	"github.com/MrWong99/voxpreview/pkg/voice"
)

// MaxTextLength is the maximum accepted text length in characters.
const MaxTextLength = 5000

// PathPrefix is the object store prefix for generated clips.
const PathPrefix = "tts-audio"

var (
	// ErrInvalidInput is returned for empty, blank or over-long text.
	ErrInvalidInput = errors.New("generate: invalid input")

	// ErrGenerationFailed wraps provider and storage failures.
	ErrGenerationFailed = errors.New("generate: generation failed")
)

// Request is a free-text generation request.
type Request struct {
	Text           string
	VoiceProfileID int

	// SessionToken is carried into the audit record only.
	SessionToken string
}

// Result is a successful generation.
type Result struct {
	AudioURL string
	Profile  voice.Profile
}

// Option configures a [Service].
type Option func(*Service)

// WithRecorder appends an audit record for every successful generation.
func WithRecorder(r audit.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithMetrics records generation outcomes and publish latency on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// withClock overrides time.Now (tests only).
func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs generations. It is safe for concurrent use.
type Service struct {
	registry  *voice.Registry
	synth     speech.Synthesizer
	publisher blob.Publisher
	recorder  audit.Recorder
	metrics   *observe.Metrics
	now       func() time.Time
}

// New creates a Service.
func New(reg *voice.Registry, synth speech.Synthesizer, pub blob.Publisher, opts ...Option) *Service {
	s := &Service{
		registry:  reg,
		synth:     synth,
		publisher: pub,
		recorder:  audit.Nop{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// ValidateText reports whether text is acceptable for generation.
func ValidateText(text string) error {
	n := utf8.RuneCountInString(text)
	switch {
	case strings.TrimSpace(text) == "":
		return fmt.Errorf("%w: text is required", ErrInvalidInput)
	case n > MaxTextLength:
		return fmt.Errorf("%w: text is %d characters, maximum is %d", ErrInvalidInput, n, MaxTextLength)
	}
	return nil
}

// Generate synthesises req.Text in the voice of req.VoiceProfileID and
// publishes it under a fresh path. Every call synthesises; results are
// never shared between calls.
//
// Errors wrap [ErrInvalidInput], [voice.ErrNotFound] or [ErrGenerationFailed].
// Input and profile errors are returned before any provider call.
func (s *Service) Generate(ctx context.Context, req Request) (res Result, err error) {
	if err := ValidateText(req.Text); err != nil {
		s.metrics.RecordGeneration(ctx, "invalid")
		return Result{}, err
	}
	profile, err := s.registry.Get(req.VoiceProfileID)
	if err != nil {
		s.metrics.RecordGeneration(ctx, "not_found")
		return Result{}, err
	}

	ctx, span := observe.StartSpan(ctx, "generate")
	defer func() { observe.EndSpan(span, err) }()
	log := observe.Logger(ctx).With("voice_profile_id", profile.ID)

	audio, err := s.synth.Synthesize(ctx, req.Text, profile.ID)
	if err != nil {
		s.metrics.RecordGeneration(ctx, "failed")
		log.Warn("generation synthesis failed", "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	enc := s.synth.Encoding()
	path := s.objectPath(profile.ID, enc.Extension())
	start := time.Now()
	url, err := s.publisher.Publish(ctx, path, audio, enc.ContentType())
	s.metrics.RecordPublish(ctx, time.Since(start), err)
	if err != nil {
		s.metrics.RecordGeneration(ctx, "failed")
		log.Warn("generation publish failed", "path", path, "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	s.metrics.RecordGeneration(ctx, "ok")
	log.Info("generation complete", "audio_url", url, "chars", utf8.RuneCountInString(req.Text), "bytes", len(audio))

	rec := audit.Record{
		CreatedAt:      s.now().UTC(),
		Text:           req.Text,
		VoiceProfileID: profile.ID,
		ResultURL:      url,
		SessionToken:   req.SessionToken,
	}
	if rerr := s.recorder.Record(ctx, rec); rerr != nil {
		log.Warn("audit record failed", "err", rerr)
	}

	return Result{AudioURL: url, Profile: profile}, nil
}

// objectPath returns tts-audio/voice-<id>-<unix millis>-<8 hex>.<ext>.
func (s *Service) objectPath(profileID int, ext string) string {
	id := uuid.New()
	return fmt.Sprintf("%s/voice-%d-%d-%s.%s", PathPrefix, profileID, s.now().UnixMilli(), hex.EncodeToString(id[:4]), ext)
}
