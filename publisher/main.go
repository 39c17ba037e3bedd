package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avolkhov/newsdigest/internal/config"
	"github.com/avolkhov/newsdigest/internal/logger"
	"github.com/avolkhov/newsdigest/internal/publish"
	"github.com/avolkhov/newsdigest/internal/sink"
	"github.com/avolkhov/newsdigest/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("publisher")
	cfg, err := config.LoadPublisher()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	recordStore := connectStore(ctx, log, cfg.ElasticsearchAddr, cfg.ElasticsearchIndex)
	if recordStore == nil {
		os.Exit(1)
	}

	s3Sink, err := sink.NewS3(ctx, sink.S3Config{
		Bucket:       cfg.S3Bucket,
		Prefix:       cfg.S3Prefix,
		Region:       cfg.S3Region,
		UsePathStyle: cfg.S3UsePathStyle,
	})
	if err != nil {
		log.Error("init s3 sink", slog.Any("err", err))
		os.Exit(1)
	}

	publisher := publish.New(recordStore, s3Sink, publish.Config{
		BaseURL:  cfg.FeedBaseURL,
		Language: cfg.FeedLanguage,
	}, log)

	log.Info("publisher started",
		slog.String("bucket", cfg.S3Bucket),
		slog.Duration("interval", cfg.Interval),
	)

	runOnce(ctx, log, publisher)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, publisher)
		}
	}
}

func runOnce(ctx context.Context, log *slog.Logger, publisher *publish.Publisher) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	summary, err := publisher.Publish(runCtx)
	if err != nil {
		log.Warn("publish run failed (will retry on next interval)", slog.Any("err", err))
		return
	}

	log.Info("publish run completed",
		slog.Int("published", len(summary.Published)),
		slog.Int("failed", len(summary.Failed)),
	)
	for _, f := range summary.Failed {
		log.Warn("category feed failed", slog.String("category", f.Category), slog.Any("err", f.Err))
	}
}

func connectStore(ctx context.Context, log *slog.Logger, addr, index string) *store.Store {
	retryDelay := 2 * time.Second

	for attempt := 1; attempt <= 10; attempt++ {
		s, err := store.New(addr, index, log)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = s.Ping(pingCtx)
			cancel()
			if err == nil {
				log.Info("connected to elasticsearch", slog.String("addr", addr))
				return s
			}
		}

		log.Warn("elasticsearch not ready, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", retryDelay),
		)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil
		}
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	log.Error("failed to connect to elasticsearch after retries")
	return nil
}
