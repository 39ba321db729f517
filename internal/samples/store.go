// Package samples implements the cache-aside manager for voice preview clips.
//
// Each voice profile has at most one stored [Sample]. The first request for a
// profile synthesises its canned sample text, publishes the clip and records
// it; every later request is served from the [Store] without touching the
// speech provider or the object store.
package samples

import (
	"context"
	"time"
)

// Sample is the stored preview clip of a voice profile.
type Sample struct {
	// VoiceProfileID is the owning profile. Unique across the store.
	VoiceProfileID int `json:"voiceProfileId"`

	// AudioURL is the public URL of the clip.
	AudioURL string `json:"audioUrl"`

	// Label is a human-readable description ("Sample for <profile name>").
	Label string `json:"label"`

	// CreatedAt is when the sample was first recorded.
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists samples keyed by voice profile id.
//
// Implementations must be safe for concurrent use and must guarantee that at
// most one sample exists per profile id, even under concurrent inserts.
type Store interface {
	// Get returns the sample for profileID, or (nil, nil) when none exists.
	Get(ctx context.Context, profileID int) (*Sample, error)

	// InsertIfAbsent stores s unless a sample for s.VoiceProfileID already
	// exists. It returns the sample that is stored after the call (s itself or
	// the earlier winner) and whether s was the one inserted.
	InsertIfAbsent(ctx context.Context, s Sample) (Sample, bool, error)

	// List returns all stored samples ordered by profile id.
	List(ctx context.Context) ([]Sample, error)
}
