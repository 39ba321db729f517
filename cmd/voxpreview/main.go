// Command voxpreview serves the voice preview API: the voice catalogue,
// cached preview samples and quota-limited free-text synthesis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/MrWong99/voxpreview/internal/app"
	"github.com/MrWong99/voxpreview/internal/config"
	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/pkg/blob"
	"github.com/MrWong99/voxpreview/pkg/blob/natsstore"
	"github.com/MrWong99/voxpreview/pkg/blob/s3"
	"github.com/MrWong99/voxpreview/pkg/provider/tts"
	"github.com/MrWong99/voxpreview/pkg/provider/tts/google"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	prewarm := flag.Bool("prewarm", false, "generate missing voice samples at startup")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "voxpreview: load %s: %v\n", *envFile, err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxpreview: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxpreview: %v\n", err)
		}
		return 1
	}
	if *prewarm {
		cfg.Samples.Prewarm = true
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("voxpreview starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:      "voxpreview",
		ServiceVersion:   version,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(tctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	var closers closerStack
	defer closers.closeAll()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg, &closers)

	providers, err := buildProviders(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready; press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Resources opened by a factory are pushed onto closers.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config, closers *closerStack) {
	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("google", func(ctx context.Context, entry config.ProviderEntry) (tts.Provider, error) {
		var opts []google.Option
		if path := entry.OptionString("credentials_file"); path != "" {
			opts = append(opts, google.WithCredentialsFile(path))
		}
		if entry.BaseURL != "" {
			opts = append(opts, google.WithEndpoint(entry.BaseURL))
		}
		p, err := google.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		closers.push(p.Close)
		return p, nil
	})

	// ── Blob ──────────────────────────────────────────────────────────────────

	reg.RegisterBlob("s3", func(ctx context.Context, entry config.ProviderEntry) (blob.Publisher, error) {
		return s3.New(ctx, s3.Config{
			Bucket:          entry.OptionString("bucket"),
			Region:          entry.OptionString("region"),
			Endpoint:        entry.BaseURL,
			UsePathStyle:    entry.OptionBool("path_style"),
			PublicBaseURL:   entry.OptionString("public_base_url"),
			ACL:             entry.OptionString("acl"),
			AccessKeyID:     entry.OptionString("access_key_id"),
			SecretAccessKey: entry.APIKey,
		})
	})

	// nats connects to BaseURL, or runs an in-process JetStream server when
	// the "embedded" option is set. Objects are served back through /media.
	reg.RegisterBlob("nats", func(_ context.Context, entry config.ProviderEntry) (blob.Publisher, error) {
		var nc *nats.Conn
		if entry.OptionBool("embedded") {
			srv, err := natsstore.RunEmbedded(entry.OptionString("store_dir"))
			if err != nil {
				return nil, err
			}
			closers.push(srv.Close)
			nc = srv.Conn()
		} else {
			var err error
			nc, err = natsstore.Connect(entry.BaseURL)
			if err != nil {
				return nil, err
			}
			closers.push(nc.Drain)
		}

		bucket := entry.OptionString("bucket")
		if bucket == "" {
			bucket = "voxpreview-audio"
		}
		base := entry.OptionString("public_base_url")
		if base == "" {
			base = blob.JoinURL(cfg.Server.PublicBaseURL, "media")
		}
		return natsstore.New(nc, bucket, base)
	})
}

// buildProviders instantiates the configured providers from reg.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	p, err := reg.CreateTTS(ctx, cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	ps.TTS = p
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	b, err := reg.CreateBlob(ctx, cfg.Providers.Blob)
	if err != nil {
		return nil, fmt.Errorf("create blob provider %q: %w", cfg.Providers.Blob.Name, err)
	}
	ps.Blob = b
	slog.Info("provider created", "kind", "blob", "name", cfg.Providers.Blob.Name)

	return ps, nil
}

// closerStack closes resources in reverse order of acquisition.
type closerStack struct {
	fns []func() error
}

func (s *closerStack) push(fn func() error) { s.fns = append(s.fns, fn) }

func (s *closerStack) closeAll() {
	for i := len(s.fns) - 1; i >= 0; i-- {
		if err := s.fns[i](); err != nil {
			slog.Warn("close error", "err", err)
		}
	}
	s.fns = nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
