package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/avolkhov/newsdigest/internal/enrich"
	"github.com/avolkhov/newsdigest/internal/feedsource"
	"github.com/avolkhov/newsdigest/internal/models"
	"github.com/avolkhov/newsdigest/internal/store"
)

// FeedSource fetches and parses one feed URL.
type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]models.RawEntry, error)
}

// Deduper decides whether an entry is new and records ingested links.
type Deduper interface {
	IsNew(ctx context.Context, entry models.RawEntry) (bool, error)
	Remember(ctx context.Context, sourceURL, link string) error
}

// Enricher turns raw entry text into the enriched form.
type Enricher interface {
	Enrich(ctx context.Context, title, description string) (enrich.Result, error)
}

// RecordWriter persists enriched records.
type RecordWriter interface {
	InsertBatch(ctx context.Context, records []models.EnrichedRecord) (int, []store.RecordFailure)
}

// Emitter publishes a notification for every persisted record. Optional.
type Emitter interface {
	RecordPersisted(ctx context.Context, rec models.EnrichedRecord) error
}

// URLFailure itemizes one feed URL that failed this cycle and why.
type URLFailure struct {
	URL string
	Err error
}

// Summary aggregates one ingestion cycle.
type Summary struct {
	Processed int
	Skipped   int
	Failed    []URLFailure
}

// Config tunes the coordinator.
type Config struct {
	// Concurrency caps simultaneous in-flight feeds.
	Concurrency int
	// BatchSize is how many URLs are scheduled per batch; a pause separates
	// batches to rate-limit aggregate request volume.
	BatchSize  int
	BatchPause time.Duration
	// EntryDelay spaces successive entries within one feed so neither the
	// origin server nor the transform capability gets bursts.
	EntryDelay time.Duration
	// FetchMaxRetries bounds transient-fetch retries per URL per cycle.
	FetchMaxRetries int
}

// Coordinator drives fetch, dedupe, enrich and persist across many feed
// URLs with bounded concurrency. A failure on one URL never aborts the
// others.
type Coordinator struct {
	source   FeedSource
	dedupe   Deduper
	enricher Enricher
	store    RecordWriter
	emitter  Emitter
	cfg      Config
	log      *slog.Logger
}

// New builds a Coordinator. emitter may be nil.
func New(source FeedSource, dedupe Deduper, enricher Enricher, writer RecordWriter, emitter Emitter, cfg Config, log *slog.Logger) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Concurrency
	}
	if cfg.FetchMaxRetries < 0 {
		cfg.FetchMaxRetries = 0
	}
	return &Coordinator{
		source:   source,
		dedupe:   dedupe,
		enricher: enricher,
		store:    writer,
		emitter:  emitter,
		cfg:      cfg,
		log:      log,
	}
}

// Run processes every URL to a terminal state and reports counts plus the
// itemized failures. Cancellation is honored between batches: URLs not yet
// scheduled are left for the next cycle, in-flight ones finish.
func (c *Coordinator) Run(ctx context.Context, urls []string) Summary {
	runID := uuid.NewString()[:8]
	log := c.log.With(slog.String("run", runID))
	log.Info("ingestion cycle started", slog.Int("urls", len(urls)))

	var (
		mu      sync.Mutex
		summary Summary
	)

	sem := make(chan struct{}, c.cfg.Concurrency)

	for start := 0; start < len(urls); start += c.cfg.BatchSize {
		if ctx.Err() != nil {
			log.Info("cycle interrupted between batches",
				slog.Int("remaining", len(urls)-start))
			break
		}

		end := min(start+c.cfg.BatchSize, len(urls))
		batch := urls[start:end]

		var wg sync.WaitGroup
		for _, url := range batch {
			wg.Add(1)
			go func(url string) {
				defer wg.Done()

				sem <- struct{}{}
				defer func() { <-sem }()

				res := c.processURL(ctx, log, url)

				mu.Lock()
				summary.Processed += res.processed
				summary.Skipped += res.skipped
				if res.err != nil {
					summary.Failed = append(summary.Failed, URLFailure{URL: url, Err: res.err})
				}
				mu.Unlock()
			}(url)
		}
		wg.Wait()

		if end < len(urls) {
			if err := sleepCtx(ctx, c.cfg.BatchPause); err != nil {
				break
			}
		}
	}

	log.Info("ingestion cycle finished",
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", len(summary.Failed)),
	)
	for _, f := range summary.Failed {
		log.Warn("feed failed", slog.String("url", f.URL), slog.Any("err", f.Err))
	}

	return summary
}

type urlResult struct {
	processed int
	skipped   int
	err       error
}

// processURL walks one feed to a terminal state: fetch with retry, then per
// entry dedupe, enrich and persist strictly in that order.
func (c *Coordinator) processURL(ctx context.Context, log *slog.Logger, url string) urlResult {
	entries, err := c.fetchWithRetry(ctx, url)
	if err != nil {
		return urlResult{err: err}
	}
	if len(entries) == 0 {
		log.Debug("feed empty", slog.String("url", url))
		return urlResult{skipped: 1}
	}

	var res urlResult
	newestIngested := false

	for i, entry := range entries {
		if i > 0 {
			if err := sleepCtx(ctx, c.cfg.EntryDelay); err != nil {
				break
			}
		}

		isNew, err := c.dedupe.IsNew(ctx, entry)
		if err != nil {
			res.err = err
			break
		}
		if !isNew {
			res.skipped++
			if i == 0 {
				newestIngested = true
			}
			continue
		}

		enriched, err := c.enricher.Enrich(ctx, entry.Title, entry.Description)
		if err != nil {
			// This entry is lost for the cycle; its siblings still get a
			// chance.
			if res.err == nil {
				res.err = err
			}
			log.Warn("enrichment failed",
				slog.String("link", entry.Link),
				slog.Any("err", err),
			)
			continue
		}

		rec := models.EnrichedRecord{
			Link:                entry.Link,
			OriginalTitle:       enriched.TranslatedTitle,
			OriginalDescription: enriched.TranslatedDescription,
			AITitle:             enriched.AITitle,
			AISummary:           enriched.AISummary,
			AICategory:          enriched.AICategory,
			Published:           entry.Published,
			SourceURL:           entry.SourceURL,
		}

		inserted, failures := c.store.InsertBatch(ctx, []models.EnrichedRecord{rec})
		if len(failures) > 0 {
			if res.err == nil {
				res.err = failures[0].Err
			}
			continue
		}

		if inserted == 0 {
			// Lost a race with a concurrent writer; the record exists.
			res.skipped++
		} else {
			res.processed++
			c.emit(ctx, log, rec)
		}
		if i == 0 {
			newestIngested = true
		}
	}

	// Remember the feed's newest link only once it is confirmed in the
	// store, so a failed first entry is retried next cycle.
	if newestIngested {
		if err := c.dedupe.Remember(ctx, url, entries[0].Link); err != nil {
			log.Warn("latest-link update failed", slog.String("url", url), slog.Any("err", err))
		}
	}

	return res
}

func (c *Coordinator) fetchWithRetry(ctx context.Context, url string) ([]models.RawEntry, error) {
	var entries []models.RawEntry

	op := func() error {
		got, err := c.source.Fetch(ctx, url)
		if err != nil {
			var fetchErr *feedsource.FetchError
			if errors.As(err, &fetchErr) {
				return err
			}
			// Decode failures and the like will not improve on retry.
			return backoff.Permanent(err)
		}
		entries = got
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.FetchMaxRetries)),
		ctx,
	)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Coordinator) emit(ctx context.Context, log *slog.Logger, rec models.EnrichedRecord) {
	if c.emitter == nil {
		return
	}
	if err := c.emitter.RecordPersisted(ctx, rec); err != nil {
		log.Warn("record event emit failed", slog.String("link", rec.Link), slog.Any("err", err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
