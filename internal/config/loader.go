package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voxpreview/pkg/voice"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tts":  {"google"},
	"blob": {"s3", "nats"},
}

// Load reads the YAML configuration file at path, applies environment
// overrides and returns a validated [Config]. An empty path loads the
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Environment variables are not consulted.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with VOXPREVIEW_* environment variables. Unset
// variables leave the current values untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	if cfg.Providers.Blob.Name == "" {
		errs = append(errs, errors.New("providers.blob.name is required"))
	}
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("blob", cfg.Providers.Blob.Name)

	// Session
	if cfg.Session.Limit <= 0 {
		errs = append(errs, fmt.Errorf("session.limit must be positive, got %d", cfg.Session.Limit))
	}
	if cfg.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be positive, got %s", cfg.Session.TTL))
	}

	// Synthesis
	s := cfg.Synthesis
	if s.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("synthesis.timeout must be positive, got %s", s.Timeout))
	}
	if s.Retries < 0 || s.Retries > 5 {
		errs = append(errs, fmt.Errorf("synthesis.retries %d is out of range [0, 5]", s.Retries))
	}
	if s.BreakerMaxFailures < 0 {
		errs = append(errs, fmt.Errorf("synthesis.breaker_max_failures must not be negative, got %d", s.BreakerMaxFailures))
	}
	if s.SpeakingRate != 0 && (s.SpeakingRate < 0.25 || s.SpeakingRate > 4.0) {
		errs = append(errs, fmt.Errorf("synthesis.speaking_rate %.2f is out of range [0.25, 4.0]", s.SpeakingRate))
	}
	if s.Pitch < -20 || s.Pitch > 20 {
		errs = append(errs, fmt.Errorf("synthesis.pitch %.2f is out of range [-20, 20]", s.Pitch))
	}

	// Audit
	switch {
	case !cfg.Audit.Backend.IsValid():
		errs = append(errs, fmt.Errorf("audit.backend %q is invalid; valid values: none, file, postgres", cfg.Audit.Backend))
	case cfg.Audit.Backend == AuditFile && cfg.Audit.Path == "":
		errs = append(errs, errors.New("audit.path is required when audit.backend is file"))
	case cfg.Audit.Backend == AuditPostgres && cfg.Database.PostgresDSN == "":
		errs = append(errs, errors.New("audit.backend postgres requires database.postgres_dsn"))
	}

	// Observability
	if r := cfg.Observability.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.trace_sample_ratio %.2f is out of range [0, 1]", r))
	}

	// Voices
	if len(cfg.Voices) > 0 {
		if _, err := voice.NewRegistry(cfg.Voices); err != nil {
			errs = append(errs, fmt.Errorf("voices: %w", err))
		}
	}

	if cfg.Database.PostgresDSN == "" {
		slog.Debug("database.postgres_dsn is empty; samples are kept in memory and regenerated after restart")
	}

	return errors.Join(errs...)
}

// Registry returns the voice registry described by cfg: the configured
// voices when present, the built-in catalogue otherwise.
func (c *Config) Registry() (*voice.Registry, error) {
	if len(c.Voices) == 0 {
		return voice.NewRegistry(voice.Builtin())
	}
	return voice.NewRegistry(c.Voices)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
