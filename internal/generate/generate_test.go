package generate

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/voxpreview/internal/audit"
	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/internal/speech"
	blobmock "github.com/MrWong99/voxpreview/pkg/blob/mock"
	"github.com/MrWong99/voxpreview/pkg/provider/tts/mock"
	"github.com/MrWong99/voxpreview/pkg/voice"
)

type recordingRecorder struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (r *recordingRecorder) Record(_ context.Context, rec audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

type fixture struct {
	svc      *Service
	provider *mock.Provider
	pub      *blobmock.Publisher
	rec      *recordingRecorder
	reader   *sdkmetric.ManualReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	reg := voice.MustBuiltin()
	p := &mock.Provider{Audio: []byte("ID3-audio")}
	pub := &blobmock.Publisher{BaseURL: "https://cdn.test"}
	rec := &recordingRecorder{}
	gw := speech.New(reg, p, speech.WithMetrics(m))
	svc := New(reg, gw, pub,
		WithRecorder(rec),
		WithMetrics(m),
		withClock(func() time.Time { return time.UnixMilli(1700000000123) }),
	)
	return &fixture{svc: svc, provider: p, pub: pub, rec: rec, reader: reader}
}

func (f *fixture) generations(t *testing.T, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := f.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "voxpreview.generations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("generations data is %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("status"); ok && v.AsString() == status {
					return dp.Value
				}
			}
		}
	}
	return 0
}

var pathRE = regexp.MustCompile(`^tts-audio/voice-2-1700000000123-[0-9a-f]{8}\.mp3$`)

func TestGenerate_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.svc.Generate(context.Background(), Request{Text: "Hello world", VoiceProfileID: 2, SessionToken: "session_abc"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Profile.ID != 2 || res.Profile.Name != "Emma - US Professional" {
		t.Errorf("Profile = %+v", res.Profile)
	}

	calls := f.pub.Calls()
	if len(calls) != 1 {
		t.Fatalf("publish calls = %d, want 1", len(calls))
	}
	if !pathRE.MatchString(calls[0].Path) {
		t.Errorf("path = %q", calls[0].Path)
	}
	if calls[0].ContentType != "audio/mpeg" || string(calls[0].Data) != "ID3-audio" {
		t.Errorf("published %q as %s", calls[0].Data, calls[0].ContentType)
	}
	if res.AudioURL != "https://cdn.test/"+calls[0].Path {
		t.Errorf("AudioURL = %q", res.AudioURL)
	}

	if got := f.provider.Calls()[0].Request.Text; got != "Hello world" {
		t.Errorf("provider text = %q", got)
	}

	if len(f.rec.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(f.rec.records))
	}
	r := f.rec.records[0]
	if r.Text != "Hello world" || r.VoiceProfileID != 2 || r.ResultURL != res.AudioURL || r.SessionToken != "session_abc" {
		t.Errorf("audit record = %+v", r)
	}
	if f.generations(t, "ok") != 1 {
		t.Error("ok generation not counted")
	}
}

func TestGenerate_UniquePaths(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	seen := make(map[string]bool)
	for range 5 {
		res, err := f.svc.Generate(context.Background(), Request{Text: "same text", VoiceProfileID: 2})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if seen[res.AudioURL] {
			t.Fatalf("duplicate URL %q", res.AudioURL)
		}
		seen[res.AudioURL] = true
	}
	if n := f.provider.CallCount(); n != 5 {
		t.Errorf("provider calls = %d, want 5 (no reuse)", n)
	}
}

func TestGenerate_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "  \n\t "},
		{name: "too long", text: strings.Repeat("a", MaxTextLength+1)},
		{name: "too long multibyte", text: strings.Repeat("é", MaxTextLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			_, err := f.svc.Generate(context.Background(), Request{Text: tt.text, VoiceProfileID: 1})
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			if f.provider.CallCount() != 0 {
				t.Error("provider called for invalid input")
			}
			if f.generations(t, "invalid") != 1 {
				t.Error("invalid generation not counted")
			}
		})
	}
}

func TestValidateText_Boundaries(t *testing.T) {
	t.Parallel()
	if err := ValidateText("a"); err != nil {
		t.Errorf("1 char: %v", err)
	}
	if err := ValidateText(strings.Repeat("ü", MaxTextLength)); err != nil {
		t.Errorf("%d multibyte chars: %v", MaxTextLength, err)
	}
}

func TestGenerate_UnknownProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Generate(context.Background(), Request{Text: "hi", VoiceProfileID: 42})
	if !errors.Is(err, voice.ErrNotFound) {
		t.Fatalf("err = %v, want voice.ErrNotFound", err)
	}
	if f.provider.CallCount() != 0 || len(f.pub.Calls()) != 0 {
		t.Error("unknown profile reached provider or storage")
	}
}

func TestGenerate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(*fixture)
		wantErr error
	}{
		{
			name:    "provider error",
			setup:   func(f *fixture) { f.provider.Err = errors.New("PERMISSION_DENIED") },
			wantErr: speech.ErrProvider,
		},
		{
			name:    "storage error",
			setup:   func(f *fixture) { f.pub.Err = errors.New("access denied") },
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			tt.setup(f)

			res, err := f.svc.Generate(context.Background(), Request{Text: "hello", VoiceProfileID: 1})
			if !errors.Is(err, ErrGenerationFailed) {
				t.Fatalf("err = %v, want ErrGenerationFailed", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want it to wrap %v", err, tt.wantErr)
			}
			if res.AudioURL != "" {
				t.Errorf("partial result %+v", res)
			}
			if len(f.rec.records) != 0 {
				t.Error("audit record written for failed generation")
			}
			if f.generations(t, "failed") != 1 {
				t.Error("failed generation not counted")
			}
		})
	}
}

func TestGenerate_AuditFailureIsNotReturned(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.rec.err = errors.New("disk full")

	if _, err := f.svc.Generate(context.Background(), Request{Text: "hello", VoiceProfileID: 1}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}
