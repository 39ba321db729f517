// Package speech implements the synthesis gateway: it resolves a voice
// profile to its provider voice and asks the configured TTS provider for a
// complete MP3 clip, under a per-call timeout and a circuit breaker.
package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/internal/resilience"
	"github.com/MrWong99/voxpreview/pkg/provider/tts"
	"github.com/MrWong99/voxpreview/pkg/voice"
)

// ErrProvider wraps every failure originating from the speech provider:
// transport, credentials, quota, timeout, open circuit or empty audio.
var ErrProvider = errors.New("speech: provider error")

const defaultTimeout = 20 * time.Second

// Synthesizer turns text into audio for a voice profile. *Gateway is the
// production implementation.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, profileID int) ([]byte, error)
	Encoding() tts.Encoding
}

var _ Synthesizer = (*Gateway)(nil)

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout bounds each provider attempt. Default: 20s.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithBreaker wraps provider calls in cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(g *Gateway) { g.breaker = cb }
}

// WithRetry sets the retry policy. The default performs a single attempt.
func WithRetry(p resilience.RetryPolicy) Option {
	return func(g *Gateway) { g.retry = p }
}

// WithMetrics records latency and request counters on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithProviderName sets the provider label used in metrics and logs.
func WithProviderName(name string) Option {
	return func(g *Gateway) { g.providerName = name }
}

// WithAudio overrides the audio settings. Default: [tts.DefaultAudio].
func WithAudio(a tts.AudioConfig) Option {
	return func(g *Gateway) { g.audio = a }
}

// Gateway is the synthesis gateway. It is safe for concurrent use.
type Gateway struct {
	registry     *voice.Registry
	provider     tts.Provider
	providerName string
	timeout      time.Duration
	breaker      *resilience.CircuitBreaker
	retry        resilience.RetryPolicy
	audio        tts.AudioConfig
	metrics      *observe.Metrics
}

// New returns a Gateway resolving voices through reg and synthesising with p.
func New(reg *voice.Registry, p tts.Provider, opts ...Option) *Gateway {
	g := &Gateway{
		registry:     reg,
		provider:     p,
		providerName: "tts",
		timeout:      defaultTimeout,
		audio:        tts.DefaultAudio(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Encoding reports the encoding of clips returned by Synthesize.
func (g *Gateway) Encoding() tts.Encoding {
	if g.audio.Encoding == "" {
		return tts.EncodingMP3
	}
	return g.audio.Encoding
}

// Synthesize produces audio for text spoken by profileID.
//
// Returns an error wrapping [voice.ErrUnknownVoice] when the profile has no
// provider voice (no provider call is made), or wrapping [ErrProvider] for any
// provider-side failure.
func (g *Gateway) Synthesize(ctx context.Context, text string, profileID int) (audio []byte, err error) {
	pv, err := g.registry.ProviderVoice(profileID)
	if err != nil {
		return nil, err
	}

	ctx, span := observe.StartSpan(ctx, "speech.synthesize")
	span.SetAttributes(
		observe.Attr("voice", pv.Name),
		observe.Attr("provider", g.providerName),
	)
	defer func() { observe.EndSpan(span, err) }()

	req := tts.Request{Text: text, Voice: pv.Selection(), Audio: g.audio}

	start := time.Now()
	err = resilience.Retry(ctx, g.retry, func(ctx context.Context) error {
		return g.call(ctx, req, &audio)
	})
	g.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		g.metrics.RecordProviderRequest(ctx, g.providerName, "tts", "error")
		g.metrics.RecordProviderError(ctx, g.providerName, "tts")
		observe.Logger(ctx).Warn("speech synthesis failed",
			"profile_id", profileID,
			"voice", pv.Name,
			"err", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	g.metrics.RecordProviderRequest(ctx, g.providerName, "tts", "ok")
	return audio, nil
}

// call performs one provider attempt under the timeout and breaker.
func (g *Gateway) call(ctx context.Context, req tts.Request, out *[]byte) error {
	attempt := func() error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		b, err := g.provider.Synthesize(ctx, req)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return errors.New("provider returned no audio")
		}
		*out = b
		return nil
	}
	if g.breaker == nil {
		return attempt()
	}
	return g.breaker.Execute(attempt)
}
