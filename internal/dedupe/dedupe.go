package dedupe

import (
	"context"
	"fmt"

	"github.com/avolkhov/newsdigest/internal/models"
)

// LinkChecker is the slice of the record store dedup needs.
type LinkChecker interface {
	Exists(ctx context.Context, link string) (bool, error)
}

// Deduplicator decides whether a parsed entry has been ingested before.
type Deduplicator struct {
	store  LinkChecker
	latest LatestLinks
}

// New builds a Deduplicator. latest may be nil, which disables the fast path.
func New(store LinkChecker, latest LatestLinks) *Deduplicator {
	if latest == nil {
		latest = NewMemory(1, 0)
	}
	return &Deduplicator{store: store, latest: latest}
}

// IsNew reports whether the entry has not been ingested yet.
//
// The fast path compares the entry link against the newest link previously
// ingested from the same source; equality is exact, so it can never produce
// a false negative. Everything else falls through to a store lookup. A
// fast-path read error is ignored, the store remains the source of truth.
func (d *Deduplicator) IsNew(ctx context.Context, entry models.RawEntry) (bool, error) {
	if known, err := d.latest.Get(ctx, entry.SourceURL); err == nil && known != "" && known == entry.Link {
		return false, nil
	}

	exists, err := d.store.Exists(ctx, entry.Link)
	if err != nil {
		return false, fmt.Errorf("check link %s: %w", entry.Link, err)
	}
	return !exists, nil
}

// Remember records the newest confirmed-ingested link for a source. Failures
// are returned so callers can log them, but they are not fatal: the fast
// path is an optimization over the store lookup, not a correctness layer.
func (d *Deduplicator) Remember(ctx context.Context, sourceURL, link string) error {
	return d.latest.Set(ctx, sourceURL, link)
}
