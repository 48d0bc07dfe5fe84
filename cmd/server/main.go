// Package main provides the entry point for the paper acquisition service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paperharbor/acquisition-service/internal/browser"
	"github.com/paperharbor/acquisition-service/internal/config"
	"github.com/paperharbor/acquisition-service/internal/crawl"
	"github.com/paperharbor/acquisition-service/internal/crawl/sources/biorxiv"
	"github.com/paperharbor/acquisition-service/internal/crawl/sources/pubmed"
	"github.com/paperharbor/acquisition-service/internal/crawl/sources/rssfeed"
	"github.com/paperharbor/acquisition-service/internal/events"
	"github.com/paperharbor/acquisition-service/internal/feeds"
	"github.com/paperharbor/acquisition-service/internal/observability"
	httpserver "github.com/paperharbor/acquisition-service/internal/server/http"
	"github.com/paperharbor/acquisition-service/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger.Info().Msg("paper acquisition service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics registry and endpoint.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	// Paper store: Postgres when configured, in-memory otherwise.
	var paperStore store.PaperStore
	if cfg.Database.Enabled {
		if cfg.Database.MigrationAutoRun {
			if err := store.Migrate(cfg.Database.DSN()); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			logger.Info().Msg("database migrations applied")
		}
		pg, err := store.NewPostgres(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pg.Close()
		paperStore = pg
		logger.Info().Str("host", cfg.Database.Host).Msg("postgres paper store ready")
	} else {
		paperStore = store.NewMemory()
		logger.Info().Msg("in-memory paper store ready")
	}

	// Saved-paper event stream.
	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled {
		kafkaPub := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.BatchTimeout, logger)
		defer func() {
			if closeErr := kafkaPub.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close kafka writer")
			}
		}()
		publisher = kafkaPub
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).
			Msg("kafka event publisher ready")
	}

	// Feed list, seeded from configuration.
	feedList := feeds.NewList()
	for _, entry := range cfg.Sources.RSS.Feeds {
		name, feedURL, err := config.ParseFeedEntry(entry)
		if err != nil {
			return fmt.Errorf("seed feeds: %w", err)
		}
		if err := feedList.Add(feedURL, name); err != nil {
			logger.Warn().Err(err).Str("url", feedURL).Msg("skipping configured feed")
		}
	}

	browserCfg := browser.Config{
		ExecPath:          cfg.Browser.ExecPath,
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Browser.UserAgent,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		SettleDelay:       cfg.Browser.SettleDelay,
	}

	// Source registry. Each browser-driven source owns its own session so a
	// crashed site cannot poison the next one.
	registrySources := crawl.NewRegistry()
	if cfg.Sources.PubMed.Enabled {
		registrySources.Register(pubmed.New(pubmed.Config{
			BaseURL:          cfg.Sources.PubMed.BaseURL,
			RatePerMinute:    cfg.Sources.PubMed.RatePerMinute,
			MaxPages:         cfg.Sources.PubMed.MaxPages,
			DetailFetchLimit: cfg.Sources.PubMed.DetailFetchLimit,
			MaxEmptyPages:    cfg.Crawl.MaxEmptyPages,
			MaxReconnects:    cfg.Browser.MaxReconnects,
		}, browser.NewChrome(browserCfg, logger), metrics, logger))
	}
	if cfg.Sources.BioRxiv.Enabled {
		registrySources.Register(biorxiv.New(biorxiv.Config{
			BaseURL:          cfg.Sources.BioRxiv.BaseURL,
			RatePerMinute:    cfg.Sources.BioRxiv.RatePerMinute,
			MaxPages:         cfg.Sources.BioRxiv.MaxPages,
			DetailFetchLimit: cfg.Sources.BioRxiv.DetailFetchLimit,
			MaxEmptyPages:    cfg.Crawl.MaxEmptyPages,
			MaxReconnects:    cfg.Browser.MaxReconnects,
		}, browser.NewChrome(browserCfg, logger), metrics, logger))
	}
	if cfg.Sources.RSS.Enabled {
		reader := feeds.NewReader(feeds.ReaderConfig{Timeout: cfg.Sources.RSS.FetchTimeout})
		registrySources.Register(rssfeed.New(rssfeed.Config{
			RatePerMinute: cfg.Sources.RSS.RatePerMinute,
		}, reader, feedList, metrics, logger))
	}

	// Orchestrator.
	manager := crawl.NewManager(crawl.ManagerConfig{
		DefaultTarget: cfg.Crawl.DefaultTarget,
		Retry: crawl.RetryPolicy{
			MaxAttempts: cfg.Crawl.RetryMaxAttempts,
			BaseDelay:   cfg.Crawl.RetryBaseDelay,
			Jitter:      crawl.DefaultJitter,
		},
	}, registrySources, paperStore, publisher, feedList, metrics, logger)
	defer manager.Close()

	// HTTP surface.
	server := httpserver.NewServer(httpserver.Config{
		Address:         cfg.Server.Address(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsPath:     cfg.Metrics.Path,
	}, manager, metricsHandler, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
