package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxpreview/internal/config"
	"github.com/MrWong99/voxpreview/pkg/blob"
	blobmock "github.com/MrWong99/voxpreview/pkg/blob/mock"
	"github.com/MrWong99/voxpreview/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voxpreview/pkg/provider/tts/mock"
)

const minimal = `
providers:
  blob:
    name: s3
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
  cors_origins: ["https://voices.example.com"]
providers:
  tts:
    name: google
    options:
      credentials_file: /etc/voxpreview/sa.json
  blob:
    name: s3
    options:
      bucket: voxpreview-audio
      region: eu-central-1
      path_style: true
database:
  postgres_dsn: postgres://localhost/voxpreview
session:
  limit: 3
  ttl: 2h
  enforce: false
synthesis:
  timeout: 5s
  retries: 2
audit:
  backend: postgres
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Session.Limit != 3 || cfg.Session.TTL != 2*time.Hour || cfg.Session.Enforce {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Synthesis.Timeout != 5*time.Second || cfg.Synthesis.Retries != 2 {
		t.Errorf("synthesis = %+v", cfg.Synthesis)
	}
	// Unset values keep defaults.
	if cfg.Synthesis.BreakerMaxFailures != 5 || cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("defaults lost: %+v / %+v", cfg.Synthesis, cfg.Server)
	}
	b := cfg.Providers.Blob
	if b.OptionString("bucket") != "voxpreview-audio" || !b.OptionBool("path_style") {
		t.Errorf("blob options = %v", b.Options)
	}
	if b.OptionString("missing") != "" || b.OptionBool("bucket") {
		t.Error("option helpers returned values for absent or mistyped keys")
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.Limit != 2 || !cfg.Session.Enforce || cfg.Session.TTL != 24*time.Hour {
		t.Errorf("session defaults = %+v", cfg.Session)
	}
	if cfg.Providers.TTS.Name != "google" {
		t.Errorf("tts default = %q", cfg.Providers.TTS.Name)
	}
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if reg.Len() != 7 {
		t.Errorf("builtin voices = %d, want 7", reg.Len())
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(minimal + "\nunknown_section: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing blob provider",
			yaml: `server: {log_level: info}`,
			want: "providers.blob.name is required",
		},
		{
			name: "invalid log level",
			yaml: minimal + "server:\n  log_level: verbose\n",
			want: "server.log_level",
		},
		{
			name: "non-positive limit",
			yaml: minimal + "session:\n  limit: 0\n",
			want: "session.limit",
		},
		{
			name: "retries out of range",
			yaml: minimal + "synthesis:\n  retries: 9\n",
			want: "synthesis.retries",
		},
		{
			name: "speaking rate out of range",
			yaml: minimal + "synthesis:\n  speaking_rate: 7\n",
			want: "synthesis.speaking_rate",
		},
		{
			name: "file audit without path",
			yaml: minimal + "audit:\n  backend: file\n",
			want: "audit.path",
		},
		{
			name: "postgres audit without dsn",
			yaml: minimal + "audit:\n  backend: postgres\n",
			want: "database.postgres_dsn",
		},
		{
			name: "invalid audit backend",
			yaml: minimal + "audit:\n  backend: kafka\n",
			want: "audit.backend",
		},
		{
			name: "incomplete tls",
			yaml: minimal + "server:\n  tls:\n    cert_file: a.pem\n",
			want: "server.tls",
		},
		{
			name: "duplicate voices",
			yaml: minimal + `
voices:
  - {id: 1, name: A, gender: male, provider: {language_code: en-US, name: en-US-A, ssml_gender: MALE}}
  - {id: 1, name: B, gender: female, provider: {language_code: en-US, name: en-US-B, ssml_gender: FEMALE}}
`,
			want: "voices",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  log_level: loud\nsession:\n  limit: -1\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.log_level", "session.limit", "providers.blob.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestConfig_CustomVoices(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(minimal + `
voices:
  - id: 10
    name: Narrator
    gender: non-binary
    sample_text: Once upon a time.
    provider:
      language_code: en-US
      name: en-US-Neural2-F
      ssml_gender: NEUTRAL
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
	text, err := reg.SampleText(10)
	if err != nil || text != "Once upon a time." {
		t.Errorf("SampleText = %q, %v", text, err)
	}
}

// Not parallel: t.Setenv.
func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxpreview.yaml")
	if err := os.WriteFile(path, []byte(minimal+"server:\n  listen_addr: \":7000\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("VOXPREVIEW_LOG_LEVEL", "warn")
	t.Setenv("VOXPREVIEW_SESSION_LIMIT", "4")
	t.Setenv("VOXPREVIEW_SESSION_ENFORCE", "false")
	t.Setenv("VOXPREVIEW_CORS_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("VOXPREVIEW_BLOB_API_KEY", "secret")
	t.Setenv("VOXPREVIEW_POSTGRES_DSN", "postgres://env/db")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":7000" {
		t.Errorf("listen_addr = %q, want file value", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogWarn || cfg.Session.Limit != 4 || cfg.Session.Enforce {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Server, cfg.Session)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.test" {
		t.Errorf("cors_origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Providers.Blob.APIKey != "secret" || cfg.Providers.Blob.Name != "s3" {
		t.Errorf("blob entry = %+v", cfg.Providers.Blob)
	}
	if cfg.Database.PostgresDSN != "postgres://env/db" {
		t.Errorf("dsn = %q", cfg.Database.PostgresDSN)
	}
}

func TestLoadFromReader_ExampleConfig(t *testing.T) {
	t.Parallel()

	f, err := os.Open(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("open example config: %v", err)
	}
	defer f.Close()

	cfg, err := config.LoadFromReader(f)
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Providers.Blob.Name != "s3" || cfg.Providers.Blob.OptionString("bucket") != "voxpreview-audio" {
		t.Errorf("blob entry = %+v", cfg.Providers.Blob)
	}
	if cfg.Audit.Backend != config.AuditFile {
		t.Errorf("audit backend = %q, want file", cfg.Audit.Backend)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	ctx := context.Background()
	if _, err := r.CreateTTS(ctx, config.ProviderEntry{Name: "polly"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTTS err = %v", err)
	}
	if _, err := r.CreateBlob(ctx, config.ProviderEntry{Name: "gcs"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateBlob err = %v", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	want := &ttsmock.Provider{}
	r.RegisterTTS("mock", func(_ context.Context, e config.ProviderEntry) (tts.Provider, error) {
		if e.APIKey != "k" {
			t.Errorf("entry = %+v", e)
		}
		return want, nil
	})
	pub := &blobmock.Publisher{}
	r.RegisterBlob("mock", func(context.Context, config.ProviderEntry) (blob.Publisher, error) { return pub, nil })

	got, err := r.CreateTTS(context.Background(), config.ProviderEntry{Name: "mock", APIKey: "k"})
	if err != nil || got != want {
		t.Errorf("CreateTTS = %v, %v", got, err)
	}
	gotPub, err := r.CreateBlob(context.Background(), config.ProviderEntry{Name: "mock"})
	if err != nil || gotPub != pub {
		t.Errorf("CreateBlob = %v, %v", gotPub, err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	boom := errors.New("no credentials")
	r.RegisterTTS("bad", func(context.Context, config.ProviderEntry) (tts.Provider, error) { return nil, boom })
	if _, err := r.CreateTTS(context.Background(), config.ProviderEntry{Name: "bad"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
