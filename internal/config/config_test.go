package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avolkhov/newsdigest/internal/config"
)

func TestLoadIngestDefaults(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("FEED_URLS_FILE", "")
	t.Setenv("FEED_ENCODINGS", "")
	t.Setenv("CATEGORY_SET", "")

	cfg, err := config.LoadIngest()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "articles", cfg.ElasticsearchIndex)
	require.Equal(t, "feeds.txt", cfg.URLsFile)
	require.Equal(t, []string{"utf-8", "iso-8859-1"}, cfg.Encodings)
	require.Equal(t, 2, cfg.EntryLimit)
	require.Equal(t, 10, cfg.Concurrency)
	require.Equal(t, 3, cfg.FetchMaxRetries)
	require.Equal(t, 3, cfg.EnrichMaxAttempts)
	require.Equal(t, 720*time.Hour, cfg.RetentionMaxAge)
	require.Empty(t, cfg.Categories)
}

func TestLoadIngestOverrides(t *testing.T) {
	t.Setenv("FEED_URLS_FILE", "/etc/feeds/list.txt")
	t.Setenv("FEED_ENCODINGS", "utf-8, windows-1251")
	t.Setenv("FEED_ENTRY_LIMIT", "5")
	t.Setenv("INGEST_CONCURRENCY", "4")
	t.Setenv("INGEST_BATCH_SIZE", "8")
	t.Setenv("INGEST_ENTRY_DELAY", "250ms")
	t.Setenv("CATEGORY_SET", "Politics, Technology,Economy")
	t.Setenv("RETENTION_MAX_AGE", "48h")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092,broker-b:9093")

	cfg, err := config.LoadIngest()
	require.NoError(t, err)

	require.Equal(t, "/etc/feeds/list.txt", cfg.URLsFile)
	require.Equal(t, []string{"utf-8", "windows-1251"}, cfg.Encodings)
	require.Equal(t, 5, cfg.EntryLimit)
	require.Equal(t, 4, cfg.Concurrency)
	require.Equal(t, 8, cfg.BatchSize)
	require.Equal(t, 250*time.Millisecond, cfg.EntryDelay)
	require.Equal(t, []string{"Politics", "Technology", "Economy"}, cfg.Categories)
	require.Equal(t, 48*time.Hour, cfg.RetentionMaxAge)
	require.Equal(t, []string{"broker-a:9092", "broker-b:9093"}, cfg.KafkaBrokers)
}

func TestLoadIngestRejectsBadValues(t *testing.T) {
	t.Setenv("INGEST_CONCURRENCY", "0")

	_, err := config.LoadIngest()
	require.Error(t, err)
}

func TestLoadPublisherRequiresBucket(t *testing.T) {
	t.Setenv("S3_BUCKET", "")

	_, err := config.LoadPublisher()
	require.Error(t, err)
}

func TestLoadPublisherTrimsPrefix(t *testing.T) {
	t.Setenv("S3_BUCKET", "rss-feeds")
	t.Setenv("S3_PREFIX", "/feeds/")
	t.Setenv("PUBLISH_INTERVAL", "30s")

	cfg, err := config.LoadPublisher()
	require.NoError(t, err)

	require.Equal(t, "rss-feeds", cfg.S3Bucket)
	require.Equal(t, "feeds", cfg.S3Prefix)
	require.Equal(t, 30*time.Second, cfg.Interval)
}

func TestLoadAPIPageBounds(t *testing.T) {
	t.Setenv("API_PAGE_SIZE", "200")
	t.Setenv("API_MAX_PAGE_SIZE", "100")

	_, err := config.LoadAPI()
	require.Error(t, err)
}
