// Package audit records every successful free-text generation. Records are
// append-only; nothing in voxpreview reads them back except for operator
// inspection.
package audit

import (
	"context"
	"time"
)

// Record is a single generation entry.
type Record struct {
	CreatedAt      time.Time `json:"created_at"`
	Text           string    `json:"text"`
	VoiceProfileID int       `json:"voice_profile_id"`
	ResultURL      string    `json:"result_url"`
	SessionToken   string    `json:"session_token,omitempty"`
}

// Recorder appends generation records.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// Nop discards every record.
type Nop struct{}

// Record implements [Recorder].
func (Nop) Record(context.Context, Record) error { return nil }

var _ Recorder = Nop{}
