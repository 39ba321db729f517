package tts_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/voxpreview/pkg/provider/tts"
)

func TestEncoding_ContentTypeAndExtension(t *testing.T) {
	tests := []struct {
		enc      tts.Encoding
		wantType string
		wantExt  string
	}{
		{tts.EncodingMP3, "audio/mpeg", "mp3"},
		{"", "audio/mpeg", "mp3"},
		{tts.EncodingOggOpus, "audio/ogg", "ogg"},
		{tts.EncodingLinear16, "audio/wav", "wav"},
	}
	for _, tc := range tests {
		if got := tc.enc.ContentType(); got != tc.wantType {
			t.Errorf("%q.ContentType() = %q, want %q", tc.enc, got, tc.wantType)
		}
		if got := tc.enc.Extension(); got != tc.wantExt {
			t.Errorf("%q.Extension() = %q, want %q", tc.enc, got, tc.wantExt)
		}
	}
}

func TestRequest_Validate(t *testing.T) {
	ok := tts.Request{Text: "hi", Voice: tts.VoiceSelection{LanguageCode: "en-US"}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid request: %v", err)
	}
	if err := (tts.Request{Text: "\n\t", Voice: ok.Voice}).Validate(); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("blank text: err = %v", err)
	}
	if err := (tts.Request{Text: "hi"}).Validate(); !errors.Is(err, tts.ErrNoVoice) {
		t.Errorf("no voice: err = %v", err)
	}
}

func TestDefaultAudio(t *testing.T) {
	a := tts.DefaultAudio()
	if a.Encoding != tts.EncodingMP3 || a.Pitch != 0 || a.SpeakingRate != 1.0 {
		t.Errorf("DefaultAudio() = %+v", a)
	}
}
