package dedupe

import (
	"context"
	"sync"
	"time"
)

// LatestLinks remembers the newest ingested link per feed URL. It backs the
// dedup fast path: when a feed's newest entry matches the remembered link,
// the whole feed can be skipped without a store lookup.
type LatestLinks interface {
	Get(ctx context.Context, sourceURL string) (string, error)
	Set(ctx context.Context, sourceURL, link string) error
}

type memoryEntry struct {
	link string
	ts   time.Time
}

// Memory is an in-process LatestLinks with a capacity bound and TTL. State is
// lost on restart, which only costs extra store lookups on the next cycle.
type Memory struct {
	mu       sync.Mutex
	items    map[string]memoryEntry
	order    []string
	capacity int
	ttl      time.Duration
}

// NewMemory creates a memory-backed latest-link table.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Memory{
		items:    make(map[string]memoryEntry, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the remembered link for a source, or "" when unknown.
func (m *Memory) Get(_ context.Context, sourceURL string) (string, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.items[sourceURL]; ok && now.Sub(e.ts) <= m.ttl {
		return e.link, nil
	}
	return "", nil
}

// Set records the newest ingested link for a source.
func (m *Memory) Set(_ context.Context, sourceURL, link string) error {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[sourceURL]; !ok {
		m.order = append(m.order, sourceURL)
	}
	m.items[sourceURL] = memoryEntry{link: link, ts: now}
	m.compact(now)
	return nil
}

func (m *Memory) compact(now time.Time) {
	cutoff := now.Add(-m.ttl)

	for len(m.order) > 0 {
		oldest := m.order[0]
		e, ok := m.items[oldest]
		if ok && len(m.items) <= m.capacity && !e.ts.Before(cutoff) {
			break
		}
		m.order = m.order[1:]
		if ok && (len(m.items) > m.capacity || e.ts.Before(cutoff)) {
			delete(m.items, oldest)
		}
	}
}
