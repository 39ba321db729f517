// Package google provides a Google Cloud Text-to-Speech backed TTS provider.
// It implements the tts.Provider interface on top of the official
// cloud.google.com/go/texttospeech client.
//
// The SDK client is created once by [New] and shared by every request; call
// [Provider.Close] on shutdown to release its gRPC connection.
//
// Authentication follows Application Default Credentials unless a service
// account key file is supplied with [WithCredentialsFile].
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/MrWong99/voxpreview/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// ErrEmptyAudio is returned when the API responds successfully but without audio.
var ErrEmptyAudio = errors.New("google: response contained no audio")

// speechClient is the subset of *texttospeech.Client used by Provider.
type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// Option is a functional option for configuring the Google Provider.
type Option func(*Provider)

// WithCredentialsFile authenticates with the service account key at path
// instead of Application Default Credentials.
func WithCredentialsFile(path string) Option {
	return func(p *Provider) {
		if path != "" {
			p.clientOpts = append(p.clientOpts, option.WithCredentialsFile(path))
		}
	}
}

// WithEndpoint overrides the API endpoint (e.g., a regional endpoint).
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		if endpoint != "" {
			p.clientOpts = append(p.clientOpts, option.WithEndpoint(endpoint))
		}
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// withClient injects a pre-built client. Used by tests.
func withClient(c speechClient) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// Provider implements tts.Provider backed by Google Cloud Text-to-Speech.
type Provider struct {
	client     speechClient
	clientOpts []option.ClientOption
	logger     *slog.Logger
}

// New creates a Provider and dials the Text-to-Speech API.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	p := &Provider{logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	if p.client == nil {
		c, err := texttospeech.NewClient(ctx, p.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("google: create client: %w", err)
		}
		p.client = c
	}
	return p, nil
}

// Synthesize sends a single SynthesizeSpeech request and returns the encoded audio.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	started := time.Now()
	resp, err := p.client.SynthesizeSpeech(ctx, buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("google: synthesize speech: %w", err)
	}
	audio := resp.GetAudioContent()
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	p.logger.Debug("google tts synthesize completed",
		"voice", req.Voice.Name,
		"chars", len(req.Text),
		"bytes", len(audio),
		"took", time.Since(started),
	)
	return audio, nil
}

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

// buildRequest maps a provider-neutral request onto the Cloud TTS protobuf.
func buildRequest(req tts.Request) *texttospeechpb.SynthesizeSpeechRequest {
	rate := req.Audio.SpeakingRate
	if rate == 0 {
		rate = 1.0
	}
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: req.Voice.LanguageCode,
			Name:         req.Voice.Name,
			SsmlGender:   ssmlGender(req.Voice.Gender),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: audioEncoding(req.Audio.Encoding),
			Pitch:         req.Audio.Pitch,
			SpeakingRate:  rate,
		},
	}
}

func ssmlGender(g tts.SSMLGender) texttospeechpb.SsmlVoiceGender {
	switch g {
	case tts.GenderMale:
		return texttospeechpb.SsmlVoiceGender_MALE
	case tts.GenderFemale:
		return texttospeechpb.SsmlVoiceGender_FEMALE
	case tts.GenderNeutral:
		return texttospeechpb.SsmlVoiceGender_NEUTRAL
	default:
		return texttospeechpb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED
	}
}

func audioEncoding(e tts.Encoding) texttospeechpb.AudioEncoding {
	switch e {
	case tts.EncodingOggOpus:
		return texttospeechpb.AudioEncoding_OGG_OPUS
	case tts.EncodingLinear16:
		return texttospeechpb.AudioEncoding_LINEAR16
	default:
		return texttospeechpb.AudioEncoding_MP3
	}
}
