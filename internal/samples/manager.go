package samples

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/internal/speech"
	"github.com/MrWong99/voxpreview/pkg/blob"
	"github.com/MrWong99/voxpreview/pkg/voice"
)

// ErrSampleFailed wraps every synthesis, publish or store failure on the
// miss path. No sample is recorded when it is returned.
var ErrSampleFailed = errors.New("samples: sample generation failed")

// PathPrefix is the object store prefix under which samples are published.
const PathPrefix = "voice-samples"

const defaultBudget = 60 * time.Second

// SamplePath returns the deterministic object path of a profile's sample.
func SamplePath(profileID int, ext string) string {
	return fmt.Sprintf("%s/voice-%d.%s", PathPrefix, profileID, ext)
}

// Label returns the display label stored with a profile's sample.
func Label(p voice.Profile) string {
	return "Sample for " + p.Name
}

// Result is returned by [Manager.EnsureSample].
type Result struct {
	Sample Sample

	// Cached is true when the sample already existed before this call.
	Cached bool
}

// Option configures a [Manager].
type Option func(*Manager)

// WithMetrics records lookups and publish latency on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(mg *Manager) { mg.metrics = m }
}

// WithBudget bounds a single miss (synthesis, publish and insert). The miss
// runs detached from the caller's cancellation so that a client hanging up
// does not abort the work other waiters share. Default: 60s.
func WithBudget(d time.Duration) Option {
	return func(mg *Manager) {
		if d > 0 {
			mg.budget = d
		}
	}
}

// Manager resolves voice profile samples cache-aside. It is safe for
// concurrent use.
type Manager struct {
	registry  *voice.Registry
	synth     speech.Synthesizer
	publisher blob.Publisher
	store     Store
	metrics   *observe.Metrics
	budget    time.Duration

	flights singleflight.Group
}

// NewManager creates a Manager.
func NewManager(reg *voice.Registry, synth speech.Synthesizer, pub blob.Publisher, store Store, opts ...Option) *Manager {
	m := &Manager{
		registry:  reg,
		synth:     synth,
		publisher: pub,
		store:     store,
		budget:    defaultBudget,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// EnsureSample returns the stored sample of profileID, producing and storing
// it first if none exists.
//
// At most one synthesis per profile runs at a time in this process; across
// processes the store's unique key decides the winner and every caller gets
// the winning row. Errors wrap [voice.ErrNotFound], [voice.ErrNoSampleText]
// or [ErrSampleFailed].
func (m *Manager) EnsureSample(ctx context.Context, profileID int) (Result, error) {
	profile, err := m.registry.Get(profileID)
	if err != nil {
		return Result{}, err
	}

	existing, err := m.store.Get(ctx, profileID)
	if err != nil {
		m.metrics.RecordSampleLookup(ctx, "error")
		return Result{}, fmt.Errorf("%w: %w", ErrSampleFailed, err)
	}
	if existing != nil {
		m.metrics.RecordSampleLookup(ctx, "hit")
		return Result{Sample: *existing, Cached: true}, nil
	}

	ch := m.flights.DoChan(strconv.Itoa(profileID), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.budget)
		defer cancel()
		return m.produce(fctx, profile)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if !errors.Is(res.Err, voice.ErrNoSampleText) {
				m.metrics.RecordSampleLookup(ctx, "error")
			}
			return Result{}, res.Err
		}
		r := res.Val.(Result)
		if r.Cached {
			m.metrics.RecordSampleLookup(ctx, "hit")
		} else {
			m.metrics.RecordSampleLookup(ctx, "miss")
		}
		return r, nil
	}
}

// produce runs the miss path for profile. It is only called inside a flight.
func (m *Manager) produce(ctx context.Context, profile voice.Profile) (res Result, err error) {
	ctx, span := observe.StartSpan(ctx, "samples.produce")
	defer func() { observe.EndSpan(span, err) }()
	log := observe.Logger(ctx).With("voice_profile_id", profile.ID)

	// A flight that finished just before this one started may have stored it.
	existing, err := m.store.Get(ctx, profile.ID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSampleFailed, err)
	}
	if existing != nil {
		return Result{Sample: *existing, Cached: true}, nil
	}

	text, err := m.registry.SampleText(profile.ID)
	if err != nil {
		return Result{}, err
	}

	audio, err := m.synth.Synthesize(ctx, text, profile.ID)
	if err != nil {
		log.Warn("sample synthesis failed", "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrSampleFailed, err)
	}

	enc := m.synth.Encoding()
	start := time.Now()
	url, err := m.publisher.Publish(ctx, SamplePath(profile.ID, enc.Extension()), audio, enc.ContentType())
	m.metrics.RecordPublish(ctx, time.Since(start), err)
	if err != nil {
		log.Warn("sample publish failed", "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrSampleFailed, err)
	}

	stored, inserted, err := m.store.InsertIfAbsent(ctx, Sample{
		VoiceProfileID: profile.ID,
		AudioURL:       url,
		Label:          Label(profile),
	})
	if err != nil {
		log.Warn("sample insert failed", "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrSampleFailed, err)
	}
	if !inserted {
		log.Debug("sample insert lost race, using stored sample", "audio_url", stored.AudioURL)
	} else {
		log.Info("sample created", "audio_url", stored.AudioURL, "bytes", len(audio))
	}
	return Result{Sample: stored, Cached: !inserted}, nil
}

// SampleURL returns the stored sample URL of profileID, if any. It never
// triggers synthesis.
func (m *Manager) SampleURL(ctx context.Context, profileID int) (string, bool, error) {
	s, err := m.store.Get(ctx, profileID)
	if err != nil {
		return "", false, err
	}
	if s == nil {
		return "", false, nil
	}
	return s.AudioURL, true, nil
}

// SampleURLs returns the stored sample URL of every profile that has one.
func (m *Manager) SampleURLs(ctx context.Context) (map[int]string, error) {
	list, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(list))
	for _, s := range list {
		out[s.VoiceProfileID] = s.AudioURL
	}
	return out, nil
}

// PrewarmReport summarises a [Manager.Prewarm] run.
type PrewarmReport struct {
	Created int
	Cached  int
	Failed  map[int]error
}

// Prewarm ensures a sample exists for each id, in order. Failures are logged
// and collected; the run continues with the next profile. A nil ids slice
// means every registered profile.
func (m *Manager) Prewarm(ctx context.Context, ids []int) PrewarmReport {
	if ids == nil {
		ids = m.registry.IDs()
	}
	rep := PrewarmReport{Failed: make(map[int]error)}
	for _, id := range ids {
		if ctx.Err() != nil {
			rep.Failed[id] = ctx.Err()
			continue
		}
		res, err := m.EnsureSample(ctx, id)
		switch {
		case err != nil:
			slog.Warn("prewarm: sample failed", "voice_profile_id", id, "err", err)
			rep.Failed[id] = err
		case res.Cached:
			rep.Cached++
		default:
			slog.Info("prewarm: sample created", "voice_profile_id", id, "audio_url", res.Sample.AudioURL)
			rep.Created++
		}
	}
	return rep
}
