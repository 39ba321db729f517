// Package voice defines the fixed catalogue of selectable voice profiles and
// the immutable [Registry] that serves it.
//
// A [Profile] pairs the marketing metadata shown to visitors (name, accent,
// gender, tone, avatar) with the concrete provider voice used for synthesis and
// the canned sample text used to produce its preview clip.
package voice

import (
	"errors"
	"fmt"

	"github.com/MrWong99/voxpreview/pkg/provider/tts"
)

// Gender is the presented gender of a voice profile.
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
)

// IsValid reports whether g is a recognised gender.
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNonBinary:
		return true
	}
	return false
}

// Sentinel errors returned by [Registry] lookups.
var (
	// ErrNotFound is returned when no profile exists for an id.
	ErrNotFound = errors.New("voice: profile not found")

	// ErrNoSampleText is returned when a profile exists but has no sample text.
	ErrNoSampleText = errors.New("voice: no sample text for profile")

	// ErrUnknownVoice is returned when a profile id has no provider voice mapping.
	ErrUnknownVoice = errors.New("voice: no provider voice for profile")
)

// ProviderVoice is the concrete TTS voice a profile maps to.
type ProviderVoice struct {
	// LanguageCode is a BCP-47 tag (e.g., "en-GB").
	LanguageCode string `yaml:"language_code" json:"languageCode"`

	// Name is the provider's voice name (e.g., "en-GB-Neural2-B").
	Name string `yaml:"name" json:"name"`

	// SSMLGender is one of MALE, FEMALE or NEUTRAL.
	SSMLGender tts.SSMLGender `yaml:"ssml_gender" json:"ssmlGender"`
}

// Selection converts v into the provider-neutral selection used by tts.Request.
func (v ProviderVoice) Selection() tts.VoiceSelection {
	return tts.VoiceSelection{
		LanguageCode: v.LanguageCode,
		Name:         v.Name,
		Gender:       v.SSMLGender,
	}
}

// Profile is a selectable persona with a display identity and a provider voice.
type Profile struct {
	ID          int    `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Accent      string `yaml:"accent" json:"accent"`
	Gender      Gender `yaml:"gender" json:"gender"`
	VoiceType   string `yaml:"voice_type" json:"voiceType"`
	Description string `yaml:"description" json:"description"`
	AvatarURL   string `yaml:"avatar_url" json:"avatarUrl"`

	// SampleText is the canned sentence used to produce the preview clip.
	// Empty means the profile has no preview.
	SampleText string `yaml:"sample_text" json:"-"`

	// Provider is the concrete TTS voice. A profile without one cannot be synthesised.
	Provider ProviderVoice `yaml:"provider" json:"-"`
}

// Validate checks that p is a usable profile definition.
func (p Profile) Validate() error {
	var errs []error
	if p.ID <= 0 {
		errs = append(errs, fmt.Errorf("voice: id must be positive, got %d", p.ID))
	}
	if p.Name == "" {
		errs = append(errs, errors.New("voice: name is required"))
	}
	if !p.Gender.IsValid() {
		errs = append(errs, fmt.Errorf("voice: gender %q is invalid; valid values: male, female, non-binary", p.Gender))
	}
	if p.Provider.Name == "" && p.Provider.LanguageCode == "" {
		errs = append(errs, errors.New("voice: provider voice is required"))
	}
	switch p.Provider.SSMLGender {
	case "", tts.GenderMale, tts.GenderFemale, tts.GenderNeutral:
	default:
		errs = append(errs, fmt.Errorf("voice: ssml_gender %q is invalid; valid values: MALE, FEMALE, NEUTRAL", p.Provider.SSMLGender))
	}
	return errors.Join(errs...)
}
