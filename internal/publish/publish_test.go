package publish_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avolkhov/newsdigest/internal/models"
	"github.com/avolkhov/newsdigest/internal/publish"
)

type stubReader struct {
	records []models.EnrichedRecord
	err     error
}

func (s *stubReader) All(_ context.Context) ([]models.EnrichedRecord, error) {
	return s.records, s.err
}

type memorySink struct {
	uploads   map[string]string
	deletes   []string
	failPaths map[string]bool
	deleteErr error
}

func newMemorySink() *memorySink {
	return &memorySink{uploads: map[string]string{}, failPaths: map[string]bool{}}
}

func (m *memorySink) Upload(_ context.Context, path, _ string, body io.Reader) error {
	if m.failPaths[path] {
		return errors.New("upload rejected")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.uploads[path] = string(data)
	return nil
}

func (m *memorySink) Delete(_ context.Context, path string) error {
	m.deletes = append(m.deletes, path)
	return m.deleteErr
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rec(link, category, published string, createdAt time.Time) models.EnrichedRecord {
	return models.EnrichedRecord{
		Link:       link,
		AITitle:    "Title for " + link,
		AISummary:  "Summary for " + link,
		AICategory: category,
		Published:  published,
		CreatedAt:  createdAt,
	}
}

func TestCategoryKeyNormalization(t *testing.T) {
	for _, label := range []string{"World News", "world_news", "World/News"} {
		require.Equal(t, "world_news", publish.CategoryKey(label), label)
	}
	require.Equal(t, "a_b", publish.CategoryKey("  A  _/ b "))
	require.Equal(t, "", publish.CategoryKey("   "))
}

func TestPublishGroupsByCategory(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reader := &stubReader{records: []models.EnrichedRecord{
		rec("https://example.com/a", "Politics", "", created),
		rec("https://example.com/b", "Technology", "", created),
		rec("https://example.com/c", "Politics", "", created),
		rec("https://example.com/d", "", created.Format(time.RFC1123Z), created),
	}}
	out := newMemorySink()

	p := publish.New(reader, out, publish.Config{BaseURL: "https://feeds.example.com", Language: "en"}, discard())
	summary, err := p.Publish(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"politics", "technology"}, summary.Published)
	require.Empty(t, summary.Failed)
	require.Contains(t, out.uploads, "politics.xml")
	require.Contains(t, out.uploads, "technology.xml")
	require.Len(t, out.uploads, 2)

	politics := out.uploads["politics.xml"]
	require.Contains(t, politics, "Title for https://example.com/a")
	require.Contains(t, politics, "Title for https://example.com/c")
	require.NotContains(t, politics, "https://example.com/b")
}

func TestPublishMergesEquivalentLabels(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reader := &stubReader{records: []models.EnrichedRecord{
		rec("https://example.com/a", "World News", "", created),
		rec("https://example.com/b", "world_news", "", created),
		rec("https://example.com/c", "World/News", "", created),
	}}
	out := newMemorySink()

	p := publish.New(reader, out, publish.Config{BaseURL: "https://feeds.example.com"}, discard())
	summary, err := p.Publish(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"world_news"}, summary.Published)
	require.Len(t, out.uploads, 1)

	doc := out.uploads["world_news.xml"]
	for _, link := range []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"} {
		require.Contains(t, doc, link)
	}
}

func TestPublishDeletesBeforeUpload(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reader := &stubReader{records: []models.EnrichedRecord{
		rec("https://example.com/a", "Economy", "", created),
	}}
	out := newMemorySink()

	p := publish.New(reader, out, publish.Config{}, discard())
	_, err := p.Publish(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"economy.xml"}, out.deletes)
	require.Contains(t, out.uploads, "economy.xml")
}

func TestPublishProceedsWhenDeleteFails(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reader := &stubReader{records: []models.EnrichedRecord{
		rec("https://example.com/a", "Economy", "", created),
	}}
	out := newMemorySink()
	out.deleteErr = errors.New("no such key")

	p := publish.New(reader, out, publish.Config{}, discard())
	summary, err := p.Publish(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"economy"}, summary.Published)
	require.Contains(t, out.uploads, "economy.xml")
}

func TestPublishCategoryFailureIsIsolated(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reader := &stubReader{records: []models.EnrichedRecord{
		rec("https://example.com/a", "Economy", "", created),
		rec("https://example.com/b", "Politics", "", created),
	}}
	out := newMemorySink()
	out.failPaths["economy.xml"] = true

	p := publish.New(reader, out, publish.Config{}, discard())
	summary, err := p.Publish(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"politics"}, summary.Published)
	require.Len(t, summary.Failed, 1)
	require.Equal(t, "Economy", summary.Failed[0].Category)
	require.Contains(t, out.uploads, "politics.xml")
}

func TestPublishStoreFailureIsFatal(t *testing.T) {
	reader := &stubReader{err: errors.New("store unreachable")}
	p := publish.New(reader, newMemorySink(), publish.Config{}, discard())

	_, err := p.Publish(context.Background())
	require.Error(t, err)
}

func TestResolveDateFallbacks(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	published := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)

	// Source-declared date wins when parseable.
	reader := &stubReader{records: []models.EnrichedRecord{
		rec("https://example.com/a", "World", published.Format(time.RFC1123Z), created),
	}}
	out := newMemorySink()
	p := publish.New(reader, out, publish.Config{}, discard())
	_, err := p.Publish(context.Background())
	require.NoError(t, err)
	require.Contains(t, out.uploads["world.xml"], published.Format(time.RFC1123Z))

	// Unparseable published falls back to CreatedAt.
	reader.records = []models.EnrichedRecord{
		rec("https://example.com/b", "World", "yesterday-ish", created),
	}
	out = newMemorySink()
	p = publish.New(reader, out, publish.Config{}, discard())
	_, err = p.Publish(context.Background())
	require.NoError(t, err)
	require.Contains(t, out.uploads["world.xml"], created.Format(time.RFC1123Z))

	// Neither: the emitted date is the publish cycle's start, i.e. this year,
	// not the zero time.
	reader.records = []models.EnrichedRecord{
		rec("https://example.com/c", "World", "", time.Time{}),
	}
	out = newMemorySink()
	p = publish.New(reader, out, publish.Config{}, discard())
	_, err = p.Publish(context.Background())
	require.NoError(t, err)
	require.Contains(t, out.uploads, "world.xml")
	require.NotContains(t, out.uploads["world.xml"], "0001")
	require.Contains(t, out.uploads["world.xml"], time.Now().UTC().Format("2006"))
}
