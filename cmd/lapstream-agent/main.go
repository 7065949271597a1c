package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lapworks/lapstream-go/internal/agent/config"
	"github.com/lapworks/lapstream-go/internal/agent/httpapi"
	"github.com/lapworks/lapstream-go/internal/agent/session"
	"github.com/lapworks/lapstream-go/internal/agent/wsserver"
	"github.com/lapworks/lapstream-go/internal/feed"
	"github.com/lapworks/lapstream-go/internal/infra/buildinfo"
	"github.com/lapworks/lapstream-go/internal/infra/confloader"
	"github.com/lapworks/lapstream-go/internal/infra/shutdown"
	"github.com/lapworks/lapstream-go/internal/storage"
	"github.com/lapworks/lapstream-go/internal/telemetry/logger"
	"github.com/lapworks/lapstream-go/internal/telemetry/metric"
	"github.com/lapworks/lapstream-go/pkg/eventbus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		circuit     = flag.String("circuit", "", "Start a recording session for this circuit")
		vehicle     = flag.String("vehicle", "", "Vehicle name for the recording session")
		gameMode    = flag.String("mode", "", "Game mode for the recording session")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lapstream-agent %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting lapstream-agent",
		"version", buildinfo.Version,
		"config", *configFile,
	)

	metrics := metric.NewRegistry()
	bus := eventbus.New()

	store, err := storage.Open(cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	intake, err := feed.New(cfg.Feed,
		feed.WithLogger(log),
		feed.WithMetrics(metrics),
	)
	if err != nil {
		store.Close()
		return fmt.Errorf("init feed: %w", err)
	}

	sessions := session.New(bus,
		session.WithLogger(log),
		session.WithStore(store),
		session.WithMetrics(metrics),
	)

	fanout, err := wsserver.New(cfg.Fanout, bus,
		wsserver.WithLogger(log),
		wsserver.WithMetrics(metrics),
	)
	if err != nil {
		store.Close()
		return fmt.Errorf("init fanout: %w", err)
	}

	mux := http.NewServeMux()
	fanout.Register(mux)
	httpapi.New(sessions, store, log).Register(mux)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	httpServer := &http.Server{Addr: cfg.Fanout.Addr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())

	// Config file watcher: apply log level changes without restart.
	watcher := startConfigWatcher(*configFile, log)

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down storage")
		return store.Close()
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("stopping feed and session pipeline")
		cancel()
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down fanout server")
		if err := fanout.Close(); err != nil {
			return err
		}
		return httpServer.Shutdown(ctx)
	})
	if watcher != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			return watcher.Stop()
		})
	}

	go func() {
		log.Info("fanout server listening", "addr", cfg.Fanout.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("fanout server error", "error", err)
		}
	}()

	go func() {
		if err := intake.Run(ctx); err != nil {
			log.Error("feed error", "error", err)
		}
	}()
	go sessions.Run(ctx, intake.Packets())

	if *circuit != "" {
		if _, err := sessions.Start(ctx, *circuit, *vehicle, *gameMode); err != nil {
			log.Error("start session failed", "error", err)
		}
	}

	log.Info("agent started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("agent stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.AgentConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger.
func initLogger(cfg *config.AgentConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// startConfigWatcher reloads the log level when the config file
// changes. Returns nil when no config file is in use.
func startConfigWatcher(configFile string, log logger.Logger) *confloader.Watcher {
	if configFile == "" {
		return nil
	}

	watcher, err := confloader.NewWatcher()
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return nil
	}
	if err := watcher.Watch(configFile); err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return nil
	}

	watcher.OnChange(func(path string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		log.Info("config reloaded", "log_level", cfg.Log.Level)
	})
	watcher.StartAsync()
	return watcher
}
