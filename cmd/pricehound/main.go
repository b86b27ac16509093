// Package main wires together the price discovery service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pricehound/pricehound/internal/api"
	"github.com/pricehound/pricehound/internal/clock/system"
	"github.com/pricehound/pricehound/internal/config"
	"github.com/pricehound/pricehound/internal/crawler"
	"github.com/pricehound/pricehound/internal/id/uuid"
	"github.com/pricehound/pricehound/internal/ledger"
	"github.com/pricehound/pricehound/internal/logging"
	"github.com/pricehound/pricehound/internal/merchant"
	memorypublisher "github.com/pricehound/pricehound/internal/publisher/memory"
	pubsubpublisher "github.com/pricehound/pricehound/internal/publisher/pubsub"
	"github.com/pricehound/pricehound/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	merchants := make([]merchant.Merchant, 0, len(cfg.Crawler.Merchants))
	for _, baseURL := range cfg.Crawler.Merchants {
		m, err := merchant.FromBaseURL(baseURL)
		if err != nil {
			return fmt.Errorf("resolve merchant: %w", err)
		}
		merchants = append(merchants, m)
	}

	clock := system.New()
	idGen := uuid.New()

	store, err := ledger.NewPostgresLedger(
		ctx, cfg.DB.DSN(), idGen, clock, cfg.DB.Currency, logger.Named("ledger"))
	if err != nil {
		return fmt.Errorf("connect ledger: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	gate := crawler.NewRobotsGate(cfg.Crawler.UserAgent, logger.Named("robots"))
	prober := crawler.NewCollyProber(cfg.Crawler.UserAgent, cfg.Crawler.ProbeTimeout())

	renderer, err := crawler.NewChromedpRenderer(crawler.RendererConfig{
		MaxParallel: cfg.Crawler.MaxParallel,
		WaitTimeout: cfg.Crawler.RenderTimeout(),
		DomainQPS:   cfg.Crawler.DomainQPS,
		UserAgent:   cfg.Crawler.UserAgent,
	}, logger.Named("renderer"))
	if err != nil {
		return fmt.Errorf("start renderer: %w", err)
	}
	defer renderer.Close()

	publisher, closePublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	archive, closeArchive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	discoverer, err := crawler.NewDiscoverer(
		merchants, gate, prober, renderer, store, publisher, archive, clock,
		crawler.DiscovererConfig{
			MerchantTimeout: cfg.Crawler.MerchantTimeout(),
			Topic:           cfg.PubSub.TopicName,
		},
		logger.Named("discoverer"),
	)
	if err != nil {
		return fmt.Errorf("build discoverer: %w", err)
	}

	apiServer := api.NewServer(discoverer, store, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// buildPublisher returns the Pub/Sub publisher when a project is
// configured, otherwise an in-memory one so price-drop events still have
// a sink in development.
func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" {
		logger.Info("pubsub project not configured, using in-memory publisher")
		return memorypublisher.New(), func() {}, nil
	}
	p, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
	if err != nil {
		return nil, nil, fmt.Errorf("connect pubsub: %w", err)
	}
	closeFn := func() {
		if err := p.Close(); err != nil {
			logger.Warn("pubsub close failed", zap.Error(err))
		}
	}
	return p, closeFn, nil
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Provider, func(), error) {
	switch cfg.Snapshots.Provider {
	case "gcs":
		g, err := storage.NewGCSProvider(ctx, cfg.Snapshots.GCSBucket, logger.Named("gcs"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect snapshot bucket: %w", err)
		}
		closeFn := func() {
			if err := g.Close(); err != nil {
				logger.Warn("gcs close failed", zap.Error(err))
			}
		}
		return g, closeFn, nil
	case "local":
		l, err := storage.NewLocalProvider(cfg.Snapshots.LocalDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init snapshot dir: %w", err)
		}
		return l, func() {}, nil
	default:
		return &storage.NoOpProvider{}, func() {}, nil
	}
}
