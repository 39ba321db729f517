package voice

import (
	"fmt"
	"slices"
)

// Registry is an immutable, id-keyed catalogue of voice profiles.
// It is safe for concurrent use because nothing mutates it after [NewRegistry].
type Registry struct {
	byID    map[int]Profile
	ordered []Profile
}

// NewRegistry validates profiles and builds a [Registry] ordered by id.
// Duplicate ids are rejected.
func NewRegistry(profiles []Profile) (*Registry, error) {
	r := &Registry{
		byID:    make(map[int]Profile, len(profiles)),
		ordered: make([]Profile, 0, len(profiles)),
	}
	for i, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("voice: profiles[%d]: %w", i, err)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("voice: profiles[%d]: duplicate id %d", i, p.ID)
		}
		r.byID[p.ID] = p
		r.ordered = append(r.ordered, p)
	}
	slices.SortFunc(r.ordered, func(a, b Profile) int { return a.ID - b.ID })
	return r, nil
}

// MustBuiltin returns a registry over [Builtin]. It panics only if the
// compiled-in catalogue is malformed.
func MustBuiltin() *Registry {
	r, err := NewRegistry(Builtin())
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the profile with the given id, or [ErrNotFound].
func (r *Registry) Get(id int) (Profile, error) {
	p, ok := r.byID[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return p, nil
}

// List returns every profile ordered by ascending id. The slice is a copy.
func (r *Registry) List() []Profile {
	return slices.Clone(r.ordered)
}

// IDs returns every profile id in ascending order.
func (r *Registry) IDs() []int {
	ids := make([]int, len(r.ordered))
	for i, p := range r.ordered {
		ids[i] = p.ID
	}
	return ids
}

// Len reports the number of profiles.
func (r *Registry) Len() int { return len(r.ordered) }

// SampleText returns the canned preview sentence for id.
// Returns [ErrNotFound] for an unknown id and [ErrNoSampleText] when the
// profile exists but has no sample text.
func (r *Registry) SampleText(id int) (string, error) {
	p, err := r.Get(id)
	if err != nil {
		return "", err
	}
	if p.SampleText == "" {
		return "", fmt.Errorf("%w: id %d", ErrNoSampleText, id)
	}
	return p.SampleText, nil
}

// ProviderVoice returns the provider voice mapped to id, or [ErrUnknownVoice].
func (r *Registry) ProviderVoice(id int) (ProviderVoice, error) {
	p, ok := r.byID[id]
	if !ok || (p.Provider.Name == "" && p.Provider.LanguageCode == "") {
		return ProviderVoice{}, fmt.Errorf("%w: id %d", ErrUnknownVoice, id)
	}
	return p.Provider, nil
}
