package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/hoanghai1803/pressroom/internal/api"
	"github.com/hoanghai1803/pressroom/internal/config"
	"github.com/hoanghai1803/pressroom/internal/feeds"
	"github.com/hoanghai1803/pressroom/internal/lock"
	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/monitor"
	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/providers/webflow"
	"github.com/hoanghai1803/pressroom/internal/providers/wordpress"
	"github.com/hoanghai1803/pressroom/internal/publish"
	"github.com/hoanghai1803/pressroom/internal/secrets"
	"github.com/hoanghai1803/pressroom/internal/storage"
)

// options are the command-line flags. Each falls back to an environment
// variable.
type options struct {
	Config  string `long:"config" env:"PRESSROOM_CONFIG" default:"config.toml" description:"Path to config file"`
	DataDir string `long:"data-dir" env:"PRESSROOM_DATA_DIR" default:"./data" description:"Path to data directory"`
	Debug   bool   `long:"debug" env:"PRESSROOM_DEBUG" description:"Enable debug logging"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(opts); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// Load configuration (auto-creates default if missing).
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Ensure data directory exists.
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = filepath.Join(opts.DataDir, "pressroom.db")
	}
	db, err := storage.OpenDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	version, err := storage.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready", "path", dbPath, "schema_version", version)

	store := storage.NewStore(db)

	key, err := secrets.ParseKey(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("security.encryption_key: %w", err)
	}
	cipher, err := secrets.New(key)
	if err != nil {
		return err
	}

	backoff := providers.BackoffPolicy{
		MaxAttempts: cfg.Publishing.RetryAttempts,
		BaseDelay:   cfg.Publishing.RetryBaseDelay(),
		Multiplier:  cfg.Publishing.RetryMultiplier,
	}
	registry := providers.NewRegistry(mapping.NewResolver(store, nil), backoff)
	registry.Register(providers.PlatformWebflow, func() providers.Adapter {
		return webflow.New(webflow.Options{
			BaseURL:      cfg.Webflow.APIBaseURL,
			ReadTimeout:  cfg.Publishing.ReadTimeout(),
			WriteTimeout: cfg.Publishing.WriteTimeout(),
		})
	})
	registry.Register(providers.PlatformWordPress, func() providers.Adapter {
		return wordpress.New(&http.Client{}, time.Duration(cfg.WordPress.TimeoutSeconds)*time.Second)
	})

	locker, closeLocker, err := newLocker(cfg.Lock)
	if err != nil {
		return err
	}
	defer closeLocker()

	svc := publish.NewService(store, registry, cipher, locker, cfg.Lock.TTL())

	importer := feeds.NewImporter(store, feeds.Options{
		MaxItems:           cfg.Importer.MaxItems,
		ExtractFullContent: cfg.Importer.ExtractFullContent,
		Timeout:            time.Duration(cfg.Importer.TimeoutSeconds) * time.Second,
		RateLimit:          time.Duration(cfg.Importer.RateLimitMs) * time.Millisecond,
	})

	mon := monitor.New(store, svc,
		time.Duration(cfg.Health.CheckIntervalMinutes)*time.Minute,
		cfg.Publishing.ReadTimeout())
	if err := mon.Start(); err != nil {
		return err
	}
	defer mon.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(svc, store, importer, mon),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", "http://"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// newLocker builds the configured publish lock backend. The returned func
// releases its resources.
func newLocker(cfg config.LockConfig) (lock.Locker, func(), error) {
	if cfg.Backend != "redis" {
		return lock.NewMemory(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := lock.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis lock backend: %w", err)
	}
	slog.Info("using redis publish lock", "addr", cfg.RedisAddr)
	return r, func() {
		if err := r.Close(); err != nil {
			slog.Warn("closing redis lock", "error", err)
		}
	}, nil
}
