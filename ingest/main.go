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
	"github.com/avolkhov/newsdigest/internal/dedupe"
	"github.com/avolkhov/newsdigest/internal/enrich"
	"github.com/avolkhov/newsdigest/internal/events"
	"github.com/avolkhov/newsdigest/internal/feedlist"
	"github.com/avolkhov/newsdigest/internal/feedsource"
	"github.com/avolkhov/newsdigest/internal/ingest"
	"github.com/avolkhov/newsdigest/internal/logger"
	"github.com/avolkhov/newsdigest/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("ingest")
	cfg, err := config.LoadIngest()
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

	source, err := feedsource.New(feedsource.Config{
		ConnectTimeout: cfg.FetchConnectTimeout,
		TotalTimeout:   cfg.FetchTotalTimeout,
		Encodings:      cfg.Encodings,
		EntryLimit:     cfg.EntryLimit,
	})
	if err != nil {
		log.Error("init feed source", slog.Any("err", err))
		os.Exit(1)
	}

	var latest dedupe.LatestLinks
	if cfg.RedisAddr != "" {
		redisLatest, err := dedupe.NewRedis(ctx, cfg.RedisAddr, 24*time.Hour)
		if err != nil {
			log.Error("init redis", slog.Any("err", err))
			os.Exit(1)
		}
		defer redisLatest.Close()
		latest = redisLatest
		log.Info("latest-link cache backed by redis", slog.String("addr", cfg.RedisAddr))
	} else {
		latest = dedupe.NewMemory(1024, 24*time.Hour)
	}
	deduper := dedupe.New(recordStore, latest)

	cohereClient, err := enrich.NewCohereClient(cfg.CohereAPIKey, cfg.CohereModel, cfg.TargetLanguage)
	if err != nil {
		log.Error("init cohere client", slog.Any("err", err))
		os.Exit(1)
	}
	enricher := enrich.New(cohereClient, cohereClient, enrich.Config{
		MaxAttempts: cfg.EnrichMaxAttempts,
		CallTimeout: cfg.EnrichTimeout,
		Categories:  cfg.Categories,
	})

	var emitter ingest.Emitter
	if len(cfg.KafkaBrokers) > 0 {
		kafkaEmitter := events.NewEmitter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaEmitter.Close()
		emitter = kafkaEmitter
		log.Info("record events enabled", slog.String("topic", cfg.KafkaTopic))
	}

	coordinator := ingest.New(source, deduper, enricher, recordStore, emitter, ingest.Config{
		Concurrency:     cfg.Concurrency,
		BatchSize:       cfg.BatchSize,
		BatchPause:      cfg.BatchPause,
		EntryDelay:      cfg.EntryDelay,
		FetchMaxRetries: cfg.FetchMaxRetries,
	}, log)

	log.Info("ingestion worker started",
		slog.String("urls_file", cfg.URLsFile),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Duration("cycle_pause", cfg.CyclePause),
	)

	for {
		if err := runCycle(ctx, log, cfg, recordStore, coordinator); err != nil {
			log.Error("cycle failed, backing off",
				slog.Any("err", err),
				slog.Duration("backoff", cfg.ErrorBackoff),
			)
			if !sleep(ctx, cfg.ErrorBackoff) {
				break
			}
			continue
		}

		if !sleep(ctx, cfg.CyclePause) {
			break
		}
	}

	log.Info("shutdown signal received")
}

func runCycle(ctx context.Context, log *slog.Logger, cfg *config.Ingest, recordStore *store.Store, coordinator *ingest.Coordinator) error {
	purgeCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	deleted, err := recordStore.PurgeOlderThan(purgeCtx, time.Now().UTC().Add(-cfg.RetentionMaxAge), cfg.RetentionBatchSize)
	cancel()
	if err != nil {
		// Old records linger one cycle; ingestion still proceeds.
		log.Warn("retention purge failed", slog.Any("err", err))
	} else if deleted > 0 {
		log.Info("retention purge completed", slog.Int64("deleted", deleted))
	}

	urls, err := feedlist.Load(cfg.URLsFile)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		log.Warn("url list is empty", slog.String("file", cfg.URLsFile))
		return nil
	}

	coordinator.Run(ctx, urls)
	return nil
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

		if !sleep(ctx, retryDelay) {
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

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
