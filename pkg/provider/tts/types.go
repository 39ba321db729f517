package tts

import (
	"errors"
	"strings"
)

// Encoding names an output audio container/codec.
type Encoding string

const (
	// EncodingMP3 produces MPEG audio layer III, served as audio/mpeg.
	EncodingMP3 Encoding = "mp3"

	// EncodingOggOpus produces Opus in an Ogg container, served as audio/ogg.
	EncodingOggOpus Encoding = "ogg_opus"

	// EncodingLinear16 produces 16-bit PCM in a WAV container, served as audio/wav.
	EncodingLinear16 Encoding = "linear16"
)

// ContentType returns the MIME type used when publishing audio in encoding e.
func (e Encoding) ContentType() string {
	switch e {
	case EncodingOggOpus:
		return "audio/ogg"
	case EncodingLinear16:
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}

// Extension returns the file extension (without dot) for encoding e.
func (e Encoding) Extension() string {
	switch e {
	case EncodingOggOpus:
		return "ogg"
	case EncodingLinear16:
		return "wav"
	default:
		return "mp3"
	}
}

// SSMLGender is the coarse gender hint a provider uses to pick a voice.
type SSMLGender string

const (
	GenderMale    SSMLGender = "MALE"
	GenderFemale  SSMLGender = "FEMALE"
	GenderNeutral SSMLGender = "NEUTRAL"
)

// VoiceSelection identifies a concrete provider voice.
type VoiceSelection struct {
	// LanguageCode is a BCP-47 tag such as "en-US" or "en-GB".
	LanguageCode string

	// Name is the provider-specific voice name (e.g., "en-US-Neural2-A").
	Name string

	// Gender is the SSML gender hint.
	Gender SSMLGender
}

// AudioConfig holds output settings for a synthesis request.
type AudioConfig struct {
	// Encoding selects the output format. Zero value means MP3.
	Encoding Encoding

	// Pitch in semitones, 0 = voice default.
	Pitch float64

	// SpeakingRate multiplier, 1.0 = voice default. Zero is treated as 1.0.
	SpeakingRate float64
}

// DefaultAudio returns the audio settings used for every voxpreview clip:
// MP3, neutral pitch, normal speaking rate.
func DefaultAudio() AudioConfig {
	return AudioConfig{Encoding: EncodingMP3, Pitch: 0, SpeakingRate: 1.0}
}

// Request is a single synthesis request.
type Request struct {
	Text  string
	Voice VoiceSelection
	Audio AudioConfig
}

// ErrEmptyText is returned by [Request.Validate] when the text is blank.
var ErrEmptyText = errors.New("tts: empty text")

// ErrNoVoice is returned by [Request.Validate] when no voice name or language is set.
var ErrNoVoice = errors.New("tts: no voice selected")

// Validate reports whether r carries enough information to be sent to a provider.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if r.Voice.Name == "" && r.Voice.LanguageCode == "" {
		return ErrNoVoice
	}
	return nil
}
