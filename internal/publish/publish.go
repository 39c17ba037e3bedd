package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/avolkhov/newsdigest/internal/models"
	"github.com/avolkhov/newsdigest/internal/sink"
)

// RecordReader is the read-only slice of the store the publisher uses.
type RecordReader interface {
	All(ctx context.Context) ([]models.EnrichedRecord, error)
}

// CategoryFailure reports one category whose document could not be produced
// or uploaded.
type CategoryFailure struct {
	Category string
	Err      error
}

// Summary is the outcome of one publishing cycle.
type Summary struct {
	Published []string
	Failed    []CategoryFailure
}

// Config holds the presentation parameters of the generated feeds.
type Config struct {
	// BaseURL is where the generated documents are reachable; used for the
	// channel self link.
	BaseURL  string
	Language string
}

// Publisher regenerates one RSS document per category from the full record
// set and replaces the previous version in the sink.
type Publisher struct {
	store    RecordReader
	sink     sink.Sink
	baseURL  string
	language string
	log      *slog.Logger
	now      func() time.Time
}

// New builds a Publisher.
func New(store RecordReader, out sink.Sink, cfg Config, log *slog.Logger) *Publisher {
	return &Publisher{
		store:    store,
		sink:     out,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		language: cfg.Language,
		log:      log,
		now:      time.Now,
	}
}

type categoryGroup struct {
	label   string
	records []models.EnrichedRecord
}

// Publish reads every stored record, groups by category and writes one feed
// document per category. A failure in one category never blocks the others;
// only a store read failure aborts the whole run.
func (p *Publisher) Publish(ctx context.Context) (Summary, error) {
	records, err := p.store.All(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read records: %w", err)
	}

	groups := groupByCategory(records)
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var summary Summary
	cycleStart := p.now()

	for _, key := range keys {
		group := groups[key]
		if err := p.publishCategory(ctx, key, group, cycleStart); err != nil {
			p.log.Warn("category publish failed",
				slog.String("category", group.label),
				slog.Any("err", err),
			)
			summary.Failed = append(summary.Failed, CategoryFailure{Category: group.label, Err: err})
			continue
		}
		summary.Published = append(summary.Published, key)
	}

	return summary, nil
}

func (p *Publisher) publishCategory(ctx context.Context, key string, group categoryGroup, cycleStart time.Time) error {
	doc, err := p.buildDocument(group, cycleStart)
	if err != nil {
		return fmt.Errorf("build document: %w", err)
	}

	path := key + ".xml"

	// Best-effort removal of the previous version; the upload below
	// overwrites content at the same path regardless.
	if err := p.sink.Delete(ctx, path); err != nil {
		p.log.Debug("stale document delete failed", slog.String("path", path), slog.Any("err", err))
	}

	if err := p.sink.Upload(ctx, path, "application/rss+xml", strings.NewReader(doc)); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	return nil
}

func (p *Publisher) buildDocument(group categoryGroup, cycleStart time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       fmt.Sprintf("News - %s", group.label),
		Description: fmt.Sprintf("News articles related to %s", group.label),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/%s.xml", p.baseURL, CategoryKey(group.label))},
		Created:     cycleStart,
	}

	for _, rec := range group.records {
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       rec.AITitle,
			Description: rec.AISummary,
			Link:        &feeds.Link{Href: rec.Link},
			Created:     resolveDate(rec, cycleStart),
		})
	}

	rssFeed := (&feeds.Rss{Feed: feed}).RssFeed()
	rssFeed.Language = p.language

	return feeds.ToXML(rssFeed)
}

// resolveDate picks the entry publication date: the source-declared date
// when parseable, then ingestion time, then the cycle start. An entry is
// never left without a date.
func resolveDate(rec models.EnrichedRecord, cycleStart time.Time) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if ts, err := time.Parse(layout, rec.Published); err == nil {
			return ts
		}
	}
	if !rec.CreatedAt.IsZero() {
		return rec.CreatedAt
	}
	return cycleStart
}

func groupByCategory(records []models.EnrichedRecord) map[string]categoryGroup {
	groups := make(map[string]categoryGroup)
	for _, rec := range records {
		label := strings.TrimSpace(rec.AICategory)
		if label == "" {
			continue
		}
		key := CategoryKey(label)
		if key == "" {
			continue
		}
		group, ok := groups[key]
		if !ok {
			group = categoryGroup{label: label}
		}
		group.records = append(group.records, rec)
		groups[key] = group
	}
	return groups
}
