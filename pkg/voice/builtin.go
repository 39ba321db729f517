package voice

import "github.com/MrWong99/voxpreview/pkg/provider/tts"

// Builtin returns the seven profiles shipped with voxpreview. Each call
// returns a fresh slice.
func Builtin() []Profile {
	return []Profile{
		{
			ID:          1,
			Name:        "Alex - US Young",
			Accent:      "US",
			Gender:      GenderMale,
			VoiceType:   "young",
			Description: "Friendly and energetic young American voice",
			AvatarURL:   "/avatars/us-male-young.png",
			SampleText:  "Hello! I'm Alex, a friendly and energetic young American voice.",
			Provider:    ProviderVoice{LanguageCode: "en-US", Name: "en-US-Neural2-A", SSMLGender: tts.GenderMale},
		},
		{
			ID:          2,
			Name:        "Emma - US Professional",
			Accent:      "US",
			Gender:      GenderFemale,
			VoiceType:   "professional",
			Description: "Professional and confident American voice",
			AvatarURL:   "/avatars/us-female-professional.png",
			SampleText:  "Good morning. I'm Emma, bringing professional expertise to your projects.",
			Provider:    ProviderVoice{LanguageCode: "en-US", Name: "en-US-Neural2-C", SSMLGender: tts.GenderFemale},
		},
		{
			ID:          3,
			Name:        "James - UK Mature",
			Accent:      "UK",
			Gender:      GenderMale,
			VoiceType:   "mature",
			Description: "Sophisticated and distinguished British voice",
			AvatarURL:   "/avatars/uk-male-mature.png",
			SampleText:  "Right then, I'm James, your sophisticated British narrator.",
			Provider:    ProviderVoice{LanguageCode: "en-GB", Name: "en-GB-Neural2-B", SSMLGender: tts.GenderMale},
		},
		{
			ID:          4,
			Name:        "Sophie - UK Casual",
			Accent:      "UK",
			Gender:      GenderFemale,
			VoiceType:   "casual",
			Description: "Friendly and approachable British voice",
			AvatarURL:   "/avatars/uk-female-casual.png",
			SampleText:  "Hey there! I'm Sophie, your casual and approachable British companion.",
			Provider:    ProviderVoice{LanguageCode: "en-GB", Name: "en-GB-Neural2-F", SSMLGender: tts.GenderFemale},
		},
		{
			ID:          5,
			Name:        "Liam - Australian Casual",
			Accent:      "Australian",
			Gender:      GenderMale,
			VoiceType:   "casual",
			Description: "Relaxed and friendly Australian voice",
			AvatarURL:   "/avatars/australian-male-casual.png",
			// The shipped clip introduces the speaker as "Jake"; kept as recorded.
			SampleText: "G'day mate! I'm Jake, bringing authentic Australian charm to your content.",
			Provider:   ProviderVoice{LanguageCode: "en-AU", Name: "en-AU-Neural2-B", SSMLGender: tts.GenderMale},
		},
		{
			ID:          6,
			Name:        "Priya - Indian Professional",
			Accent:      "Indian",
			Gender:      GenderFemale,
			VoiceType:   "professional",
			Description: "Professional and articulate Indian voice",
			AvatarURL:   "/avatars/indian-female-professional.png",
			SampleText:  "Namaste! I'm Priya, your professional Indian voice guide.",
			Provider:    ProviderVoice{LanguageCode: "en-IN", Name: "en-IN-Neural2-B", SSMLGender: tts.GenderFemale},
		},
		{
			ID:          7,
			Name:        "Casey - Non-binary Young",
			Accent:      "US",
			Gender:      GenderNonBinary,
			VoiceType:   "young",
			Description: "Contemporary and inclusive voice",
			AvatarURL:   "/avatars/nonbinary-young.png",
			SampleText:  "Hi everyone! I'm Alex, your inclusive and modern voice option.",
			Provider:    ProviderVoice{LanguageCode: "en-US", Name: "en-US-Neural2-E", SSMLGender: tts.GenderFemale},
		},
	}
}
