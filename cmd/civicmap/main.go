package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/civic-map-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/civic-map-service/internal/adapter/kafka"
	"github.com/couchcryptid/civic-map-service/internal/config"
	"github.com/couchcryptid/civic-map-service/internal/domain"
	"github.com/couchcryptid/civic-map-service/internal/observability"
	"github.com/couchcryptid/civic-map-service/internal/pipeline"
	"github.com/couchcryptid/civic-map-service/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	locale, err := config.LoadLocale(cfg.LocaleFile)
	if err != nil {
		logger.Error("failed to load locale", "error", err)
		os.Exit(1)
	}
	style, err := domain.ParseMapStyle(cfg.MapStyle, domain.StyleDark)
	if err != nil {
		logger.Error("invalid MAP_STYLE", "error", err)
		os.Exit(1)
	}

	parser := domain.NewParser(locale, cfg.Location)
	var loader source.Loader
	switch cfg.SourceDriver {
	case config.DriverSQLite:
		db, err := source.OpenSQLite(cfg.DataPath, cfg.SQLiteTable, parser)
		if err != nil {
			logger.Error("failed to open sqlite source", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		loader = db
	default:
		loader = source.NewCSVLoader(cfg.DataPath, parser)
	}
	clock := clockwork.NewRealClock()
	cached := source.NewCachedLoader(loader, cfg.SourceCacheTTL, clock, logger, metrics)
	logger.Info("ticket source configured",
		"driver", cfg.SourceDriver,
		"path", cfg.DataPath,
		"max_rows", cfg.MaxRows,
		"cache_ttl", cfg.SourceCacheTTL,
	)

	opts := []pipeline.Option{
		pipeline.WithMaxRows(cfg.MaxRows),
		pipeline.WithDefaultStyle(style),
		pipeline.WithClock(clock),
	}
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(publisher))
		metrics.SnapshotsEnabled.Set(1)
		logger.Info("view snapshot publishing enabled", "topic", cfg.KafkaViewTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("view snapshot publishing disabled")
	}

	p := pipeline.New(cached, locale, cfg.Location, logger, metrics, opts...)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Warm the source cache in the background; readiness flips once it loads.
	g.Go(func() error {
		if err := p.Warm(gctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("source warm-up abandoned", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server error", "error", err)
	}

	if publisher != nil {
		p.Drain()
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
