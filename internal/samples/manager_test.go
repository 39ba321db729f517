package samples

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	blobmock "github.com/MrWong99/voxpreview/pkg/blob/mock"
	"github.com/MrWong99/voxpreview/pkg/provider/tts"
	"github.com/MrWong99/voxpreview/pkg/voice"
)

// fakeSynth is a speech.Synthesizer test double. When gate is non-nil every
// call blocks until it is closed.
type fakeSynth struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, profileID int) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte("mp3:" + text), nil
}

func (f *fakeSynth) Encoding() tts.Encoding { return tts.EncodingMP3 }

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSynth) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func testProfile(id int, name, sampleText string) voice.Profile {
	return voice.Profile{
		ID:         id,
		Name:       name,
		Gender:     voice.GenderFemale,
		SampleText: sampleText,
		Provider:   voice.ProviderVoice{LanguageCode: "en-US", Name: "en-US-Test", SSMLGender: tts.GenderFemale},
	}
}

func newTestManager(t *testing.T, store Store) (*Manager, *fakeSynth, *blobmock.Publisher) {
	t.Helper()
	reg, err := voice.NewRegistry([]voice.Profile{
		testProfile(1, "Alex", "Hello from Alex."),
		testProfile(2, "Emma", "Hello from Emma."),
		testProfile(3, "Mute", ""),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	synth := &fakeSynth{}
	pub := &blobmock.Publisher{}
	if store == nil {
		store = NewMemStore()
	}
	return NewManager(reg, synth, pub, store), synth, pub
}

func TestEnsureSample_MissThenHit(t *testing.T) {
	t.Parallel()
	m, synth, pub := newTestManager(t, nil)
	ctx := context.Background()

	first, err := m.EnsureSample(ctx, 1)
	if err != nil {
		t.Fatalf("first EnsureSample: %v", err)
	}
	if first.Cached {
		t.Error("first call reported cached sample")
	}
	wantURL := "https://blob.test/voice-samples/voice-1.mp3"
	if first.Sample.AudioURL != wantURL {
		t.Errorf("AudioURL = %q, want %q", first.Sample.AudioURL, wantURL)
	}
	if first.Sample.Label != "Sample for Alex" {
		t.Errorf("Label = %q", first.Sample.Label)
	}

	obj, ok := pub.Object("voice-samples/voice-1.mp3")
	if !ok {
		t.Fatal("sample object not published")
	}
	if string(obj.Data) != "mp3:Hello from Alex." || obj.ContentType != "audio/mpeg" {
		t.Errorf("published object = %q (%s)", obj.Data, obj.ContentType)
	}

	second, err := m.EnsureSample(ctx, 1)
	if err != nil {
		t.Fatalf("second EnsureSample: %v", err)
	}
	if !second.Cached {
		t.Error("second call did not report cached sample")
	}
	if second.Sample.AudioURL != wantURL {
		t.Errorf("second AudioURL = %q, want %q", second.Sample.AudioURL, wantURL)
	}
	if n := synth.callCount(); n != 1 {
		t.Errorf("synthesis calls = %d, want 1", n)
	}
	if n := len(pub.Calls()); n != 1 {
		t.Errorf("publish calls = %d, want 1", n)
	}
}

func TestEnsureSample_UnknownProfile(t *testing.T) {
	t.Parallel()
	m, synth, pub := newTestManager(t, nil)

	_, err := m.EnsureSample(context.Background(), 99)
	if !errors.Is(err, voice.ErrNotFound) {
		t.Fatalf("err = %v, want voice.ErrNotFound", err)
	}
	if synth.callCount() != 0 || len(pub.Calls()) != 0 {
		t.Error("unknown profile reached provider or storage")
	}
}

func TestEnsureSample_NoSampleText(t *testing.T) {
	t.Parallel()
	m, synth, _ := newTestManager(t, nil)

	_, err := m.EnsureSample(context.Background(), 3)
	if !errors.Is(err, voice.ErrNoSampleText) {
		t.Fatalf("err = %v, want voice.ErrNoSampleText", err)
	}
	if errors.Is(err, ErrSampleFailed) {
		t.Error("missing sample text reported as generation failure")
	}
	if synth.callCount() != 0 {
		t.Error("synthesis called without sample text")
	}
}

func TestEnsureSample_FailureLeavesNoRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(*fakeSynth, *blobmock.Publisher)
	}{
		{
			name:  "synthesis fails",
			setup: func(s *fakeSynth, _ *blobmock.Publisher) { s.setErr(errors.New("quota exhausted")) },
		},
		{
			name:  "publish fails",
			setup: func(_ *fakeSynth, p *blobmock.Publisher) { p.Err = errors.New("bucket gone") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := NewMemStore()
			m, synth, pub := newTestManager(t, store)
			tt.setup(synth, pub)

			_, err := m.EnsureSample(context.Background(), 2)
			if !errors.Is(err, ErrSampleFailed) {
				t.Fatalf("err = %v, want ErrSampleFailed", err)
			}
			got, err := store.Get(context.Background(), 2)
			if err != nil {
				t.Fatalf("store.Get: %v", err)
			}
			if got != nil {
				t.Errorf("row written after failure: %+v", got)
			}
		})
	}
}

func TestEnsureSample_RecoversAfterFailure(t *testing.T) {
	t.Parallel()
	m, synth, _ := newTestManager(t, nil)
	synth.setErr(errors.New("unavailable"))

	if _, err := m.EnsureSample(context.Background(), 1); err == nil {
		t.Fatal("expected error while provider fails")
	}
	synth.setErr(nil)

	res, err := m.EnsureSample(context.Background(), 1)
	if err != nil {
		t.Fatalf("EnsureSample after recovery: %v", err)
	}
	if res.Cached {
		t.Error("sample after recovery reported cached")
	}
}

func TestEnsureSample_ConcurrentCallersShareOneSynthesis(t *testing.T) {
	t.Parallel()
	m, synth, pub := newTestManager(t, nil)
	synth.gate = make(chan struct{})

	const callers = 16
	var wg sync.WaitGroup
	urls := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.EnsureSample(context.Background(), 1)
			urls[i], errs[i] = res.Sample.AudioURL, err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(synth.gate)
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if urls[i] != urls[0] {
			t.Errorf("caller %d got %q, caller 0 got %q", i, urls[i], urls[0])
		}
	}
	if n := synth.callCount(); n != 1 {
		t.Errorf("synthesis calls = %d, want 1", n)
	}
	if n := len(pub.Calls()); n != 1 {
		t.Errorf("publish calls = %d, want 1", n)
	}
}

// racedStore hides an existing winner from Get so that the manager takes the
// miss path and then loses the insert.
type racedStore struct {
	*MemStore
}

func (s racedStore) Get(context.Context, int) (*Sample, error) { return nil, nil }

func TestEnsureSample_InsertRaceReturnsWinner(t *testing.T) {
	t.Parallel()
	mem := NewMemStore()
	winner := Sample{VoiceProfileID: 1, AudioURL: "https://other.test/voice-samples/voice-1.mp3", Label: "Sample for Alex"}
	if _, _, err := mem.InsertIfAbsent(context.Background(), winner); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m, _, _ := newTestManager(t, racedStore{mem})

	res, err := m.EnsureSample(context.Background(), 1)
	if err != nil {
		t.Fatalf("EnsureSample: %v", err)
	}
	if res.Sample.AudioURL != winner.AudioURL {
		t.Errorf("AudioURL = %q, want winner %q", res.Sample.AudioURL, winner.AudioURL)
	}
	if !res.Cached {
		t.Error("losing insert not reported as cached")
	}

	list, _ := mem.List(context.Background())
	if len(list) != 1 {
		t.Errorf("stored samples = %d, want 1", len(list))
	}
}

func TestEnsureSample_CallerCancelDoesNotAbortFlight(t *testing.T) {
	t.Parallel()
	store := NewMemStore()
	m, synth, _ := newTestManager(t, store)
	synth.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.EnsureSample(ctx, 2)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	close(synth.gate)
	deadline := time.Now().Add(2 * time.Second)
	for {
		s, _ := store.Get(context.Background(), 2)
		if s != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("detached flight never stored the sample")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSampleURLs(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, ok, err := m.SampleURL(ctx, 1); err != nil || ok {
		t.Fatalf("SampleURL before generation = ok:%v err:%v", ok, err)
	}
	if _, err := m.EnsureSample(ctx, 1); err != nil {
		t.Fatalf("EnsureSample: %v", err)
	}

	u, ok, err := m.SampleURL(ctx, 1)
	if err != nil || !ok || u == "" {
		t.Fatalf("SampleURL = %q ok:%v err:%v", u, ok, err)
	}
	urls, err := m.SampleURLs(ctx)
	if err != nil {
		t.Fatalf("SampleURLs: %v", err)
	}
	if len(urls) != 1 || urls[1] != u {
		t.Errorf("SampleURLs = %v", urls)
	}
}

func TestPrewarm(t *testing.T) {
	t.Parallel()
	m, synth, _ := newTestManager(t, nil)
	ctx := context.Background()

	rep := m.Prewarm(ctx, nil)
	if rep.Created != 2 || rep.Cached != 0 {
		t.Errorf("first run created=%d cached=%d, want 2/0", rep.Created, rep.Cached)
	}
	if err, ok := rep.Failed[3]; !ok || !errors.Is(err, voice.ErrNoSampleText) {
		t.Errorf("Failed = %v, want profile 3 ErrNoSampleText", rep.Failed)
	}

	rep = m.Prewarm(ctx, []int{1, 2})
	if rep.Created != 0 || rep.Cached != 2 || len(rep.Failed) != 0 {
		t.Errorf("second run = %+v, want all cached", rep)
	}
	if n := synth.callCount(); n != 2 {
		t.Errorf("synthesis calls = %d, want 2", n)
	}
}
