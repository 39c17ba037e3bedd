package feedsource

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/avolkhov/newsdigest/internal/models"
	"github.com/avolkhov/newsdigest/internal/processing"
)

const maxBodyBytes = 10 << 20

// Config controls fetching and decoding behaviour.
type Config struct {
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
	Encodings      []string
	EntryLimit     int
	UserAgent      string
}

// Source fetches a feed URL and turns it into raw entries. It performs no
// retries; transient-failure policy belongs to the coordinator.
type Source struct {
	client    *http.Client
	encodings []namedEncoding
	limit     int
	userAgent string
}

type namedEncoding struct {
	name string
	enc  encoding.Encoding
}

// New builds a Source. Encoding names are resolved against the IANA index;
// unknown names are rejected up front rather than at fetch time.
func New(cfg Config) (*Source, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 30 * time.Second
	}
	if cfg.EntryLimit <= 0 {
		cfg.EntryLimit = 2
	}
	if len(cfg.Encodings) == 0 {
		cfg.Encodings = []string{"utf-8"}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "newsdigest/1.0 (+https://github.com/avolkhov/newsdigest)"
	}

	encodings := make([]namedEncoding, 0, len(cfg.Encodings))
	for _, name := range cfg.Encodings {
		if isUTF8(name) {
			encodings = append(encodings, namedEncoding{name: name})
			continue
		}
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("unknown encoding %q", name)
		}
		encodings = append(encodings, namedEncoding{name: name, enc: enc})
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.TotalTimeout / 2,
		MaxIdleConnsPerHost:   4,
	}

	return &Source{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.TotalTimeout,
		},
		encodings: encodings,
		limit:     cfg.EntryLimit,
		userAgent: cfg.UserAgent,
	}, nil
}

// Fetch downloads and parses one feed, returning at most the configured
// number of newest entries. A feed that parses to nothing is an empty slice,
// not an error.
func (s *Source) Fetch(ctx context.Context, feedURL string) ([]models.RawEntry, error) {
	body, err := s.download(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	text, ok := s.decode(body)
	if !ok {
		names := make([]string, 0, len(s.encodings))
		for _, e := range s.encodings {
			names = append(names, e.name)
		}
		return nil, &DecodeError{URL: feedURL, Encodings: names}
	}

	feed, err := gofeed.NewParser().ParseString(text)
	if err != nil || feed == nil {
		// Malformed markup is routine in the wild; treat it as an empty feed.
		return nil, nil
	}

	count := min(len(feed.Items), s.limit)
	entries := make([]models.RawEntry, 0, count)
	for _, item := range feed.Items[:count] {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			// No usable identity; skip rather than guess one.
			continue
		}
		entries = append(entries, models.RawEntry{
			Title:       processing.CleanHTML(item.Title),
			Description: processing.CleanHTML(item.Description),
			Link:        link,
			Published:   strings.TrimSpace(item.Published),
			SourceURL:   feedURL,
		})
	}

	return entries, nil
}

func (s *Source) download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: feedURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	return body, nil
}

// decode tries the configured encodings in order and returns the first
// successful decoding.
func (s *Source) decode(body []byte) (string, bool) {
	for _, e := range s.encodings {
		if e.enc == nil {
			if utf8.Valid(body) {
				return string(body), true
			}
			continue
		}
		decoded, err := e.enc.NewDecoder().Bytes(body)
		if err != nil {
			continue
		}
		return string(decoded), true
	}
	return "", false
}

func isUTF8(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
