package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Ingest holds configuration for the feed-ingestion worker.
type Ingest struct {
	Common
	URLsFile  string
	Encodings []string

	EntryLimit   int
	Concurrency  int
	BatchSize    int
	BatchPause   time.Duration
	EntryDelay   time.Duration
	CyclePause   time.Duration
	ErrorBackoff time.Duration

	FetchMaxRetries     int
	FetchConnectTimeout time.Duration
	FetchTotalTimeout   time.Duration

	EnrichMaxAttempts int
	EnrichTimeout     time.Duration
	TargetLanguage    string
	Categories        []string
	CohereAPIKey      string
	CohereModel       string

	RetentionMaxAge    time.Duration
	RetentionBatchSize int

	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string
}

// Publisher configures the category feed generator.
type Publisher struct {
	Common
	Interval     time.Duration
	FeedBaseURL  string
	FeedLanguage string

	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3UsePathStyle bool
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// LoadIngest builds an Ingest config from environment variables.
func LoadIngest() (*Ingest, error) {
	c := &Ingest{
		Common:    loadCommon(),
		URLsFile:  getEnv("FEED_URLS_FILE", "feeds.txt"),
		Encodings: splitAndTrim(getEnv("FEED_ENCODINGS", "utf-8,iso-8859-1")),

		EntryLimit:   getInt("FEED_ENTRY_LIMIT", 2),
		Concurrency:  getInt("INGEST_CONCURRENCY", 10),
		BatchSize:    getInt("INGEST_BATCH_SIZE", 10),
		BatchPause:   getDuration("INGEST_BATCH_PAUSE", "2s"),
		EntryDelay:   getDuration("INGEST_ENTRY_DELAY", "1s"),
		CyclePause:   getDuration("INGEST_CYCLE_PAUSE", "5s"),
		ErrorBackoff: getDuration("INGEST_ERROR_BACKOFF", "60s"),

		FetchMaxRetries:     getInt("FETCH_MAX_RETRIES", 3),
		FetchConnectTimeout: getDuration("FETCH_CONNECT_TIMEOUT", "5s"),
		FetchTotalTimeout:   getDuration("FETCH_TOTAL_TIMEOUT", "30s"),

		EnrichMaxAttempts: getInt("ENRICH_MAX_ATTEMPTS", 3),
		EnrichTimeout:     getDuration("ENRICH_TIMEOUT", "60s"),
		TargetLanguage:    getEnv("TARGET_LANGUAGE", "English"),
		Categories:        splitAndTrim(os.Getenv("CATEGORY_SET")),
		CohereAPIKey:      os.Getenv("COHERE_API_KEY"),
		CohereModel:       getEnv("COHERE_MODEL", "command-r-08-2024"),

		RetentionMaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		RetentionBatchSize: getInt("RETENTION_BATCH_SIZE", 500),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		KafkaBrokers: splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "records_new"),
	}

	if len(c.Encodings) == 0 {
		return nil, fmt.Errorf("FEED_ENCODINGS must contain at least one encoding")
	}
	if c.EntryLimit <= 0 {
		return nil, fmt.Errorf("FEED_ENTRY_LIMIT must be positive")
	}
	if c.Concurrency <= 0 {
		return nil, fmt.Errorf("INGEST_CONCURRENCY must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("INGEST_BATCH_SIZE must be positive")
	}
	if c.FetchMaxRetries < 0 {
		return nil, fmt.Errorf("FETCH_MAX_RETRIES cannot be negative")
	}
	if c.EnrichMaxAttempts <= 0 {
		return nil, fmt.Errorf("ENRICH_MAX_ATTEMPTS must be positive")
	}
	if c.RetentionMaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.RetentionBatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

// LoadPublisher builds a Publisher config from environment variables.
func LoadPublisher() (*Publisher, error) {
	c := &Publisher{
		Common:       loadCommon(),
		Interval:     getDuration("PUBLISH_INTERVAL", "1m"),
		FeedBaseURL:  getEnv("FEED_BASE_URL", "https://feeds.example.com"),
		FeedLanguage: getEnv("FEED_LANGUAGE", "en"),

		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Prefix:       strings.Trim(os.Getenv("S3_PREFIX"), "/"),
		S3Region:       os.Getenv("S3_REGION"),
		S3UsePathStyle: strings.EqualFold(strings.TrimSpace(os.Getenv("S3_USE_PATH_STYLE")), "true"),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("PUBLISH_INTERVAL must be positive")
	}
	if c.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET must be set")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:      loadCommon(),
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: getInt("API_PAGE_SIZE", 20),
		MaxPage:     getInt("API_MAX_PAGE_SIZE", 100),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "articles"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
