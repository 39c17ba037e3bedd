package dedupe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avolkhov/newsdigest/internal/dedupe"
	"github.com/avolkhov/newsdigest/internal/models"
)

type stubChecker struct {
	existing map[string]bool
	lookups  int
}

func (s *stubChecker) Exists(_ context.Context, link string) (bool, error) {
	s.lookups++
	return s.existing[link], nil
}

func entry(link string) models.RawEntry {
	return models.RawEntry{Link: link, SourceURL: "https://example.com/rss"}
}

func TestIsNewConsultsStore(t *testing.T) {
	checker := &stubChecker{existing: map[string]bool{"https://example.com/old": true}}
	d := dedupe.New(checker, dedupe.NewMemory(10, time.Hour))

	isNew, err := d.IsNew(context.Background(), entry("https://example.com/old"))
	require.NoError(t, err)
	require.False(t, isNew)

	isNew, err = d.IsNew(context.Background(), entry("https://example.com/new"))
	require.NoError(t, err)
	require.True(t, isNew)
	require.Equal(t, 2, checker.lookups)
}

func TestIsNewFastPathSkipsStoreLookup(t *testing.T) {
	checker := &stubChecker{existing: map[string]bool{}}
	d := dedupe.New(checker, dedupe.NewMemory(10, time.Hour))

	require.NoError(t, d.Remember(context.Background(), "https://example.com/rss", "https://example.com/latest"))

	isNew, err := d.IsNew(context.Background(), entry("https://example.com/latest"))
	require.NoError(t, err)
	require.False(t, isNew)
	require.Zero(t, checker.lookups)
}

func TestFastPathIsExactMatchOnly(t *testing.T) {
	checker := &stubChecker{existing: map[string]bool{}}
	d := dedupe.New(checker, dedupe.NewMemory(10, time.Hour))

	require.NoError(t, d.Remember(context.Background(), "https://example.com/rss", "https://example.com/latest"))

	isNew, err := d.IsNew(context.Background(), entry("https://example.com/other"))
	require.NoError(t, err)
	require.True(t, isNew)
	require.Equal(t, 1, checker.lookups)
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := dedupe.NewMemory(10, 20*time.Millisecond)
	require.NoError(t, m.Set(context.Background(), "src", "link"))

	time.Sleep(25 * time.Millisecond)

	got, err := m.Get(context.Background(), "src")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryCapacityEvictsOldest(t *testing.T) {
	m := dedupe.NewMemory(1, time.Hour)
	require.NoError(t, m.Set(context.Background(), "first", "a"))
	require.NoError(t, m.Set(context.Background(), "second", "b"))

	got, err := m.Get(context.Background(), "first")
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = m.Get(context.Background(), "second")
	require.NoError(t, err)
	require.Equal(t, "b", got)
}
