package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/avolkhov/newsdigest/internal/models"
)

// Store wraps go-elasticsearch with the record-store operations the pipeline
// needs: point lookup by link, batch insert, retention purge, and reads for
// the publisher and API.
type Store struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
	now   func() time.Time
}

// RecordFailure reports one record that could not be persisted.
type RecordFailure struct {
	Link string
	Err  error
}

// SearchParams narrow the read endpoint query.
type SearchParams struct {
	Category string
	From     int
	Size     int
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64                   `json:"total"`
	Items []models.EnrichedRecord `json:"items"`
}

// New instantiates the store client.
func New(addr, index string, logger *slog.Logger) (*Store, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Store{es: es, index: index, log: logger, now: time.Now}, nil
}

// Ping checks if Elasticsearch is available.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health pings the cluster health endpoint.
func (s *Store) Health(ctx context.Context) error {
	res, err := s.es.Cluster.Health(s.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// Exists reports whether a record with this link is already stored. The
// document ID is derived from the link, so this is a single HEAD request.
func (s *Store) Exists(ctx context.Context, link string) (bool, error) {
	req := esapi.ExistsRequest{
		Index:      s.index,
		DocumentID: models.RecordID(link),
	}

	res, err := req.Do(ctx, s.es)
	if err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("exists check failed: %s", res.Status())
	}
}

// InsertBatch writes records with create semantics: a link that already
// exists is a no-op, never a second row. When a whole bulk call fails the
// batch is halved and retried so one bad record cannot sink its siblings.
// CreatedAt is assigned here, at insert time.
func (s *Store) InsertBatch(ctx context.Context, records []models.EnrichedRecord) (int, []RecordFailure) {
	if len(records) == 0 {
		return 0, nil
	}

	stamped := make([]models.EnrichedRecord, len(records))
	copy(stamped, records)
	now := s.now().UTC()
	for i := range stamped {
		stamped[i].CreatedAt = now
	}

	return s.insert(ctx, stamped)
}

func (s *Store) insert(ctx context.Context, records []models.EnrichedRecord) (int, []RecordFailure) {
	inserted, failures, err := s.bulkCreate(ctx, records)
	if err == nil {
		return inserted, failures
	}

	if len(records) == 1 {
		return 0, []RecordFailure{{Link: records[0].Link, Err: err}}
	}

	// The whole call failed; subdivide so healthy records still land.
	mid := len(records) / 2
	leftIns, leftFail := s.insert(ctx, records[:mid])
	rightIns, rightFail := s.insert(ctx, records[mid:])
	return leftIns + rightIns, append(leftFail, rightFail...)
}

func (s *Store) bulkCreate(ctx context.Context, records []models.EnrichedRecord) (int, []RecordFailure, error) {
	var body bytes.Buffer
	for _, rec := range records {
		action := map[string]any{
			"create": map[string]any{
				"_index": s.index,
				"_id":    models.RecordID(rec.Link),
			},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal bulk action: %w", err)
		}
		docLine, err := json.Marshal(rec)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal record: %w", err)
		}
		body.Write(actionLine)
		body.WriteByte('\n')
		body.Write(docLine)
		body.WriteByte('\n')
	}

	res, err := s.es.Bulk(
		bytes.NewReader(body.Bytes()),
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithIndex(s.index),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("bulk insert: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("bulk insert failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Items []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, nil, fmt.Errorf("decode bulk response: %w", err)
	}

	inserted := 0
	var failures []RecordFailure
	for i, item := range parsed.Items {
		if i >= len(records) {
			break
		}
		result, ok := item["create"]
		if !ok {
			continue
		}
		switch {
		case result.Status == http.StatusCreated:
			inserted++
		case result.Status == http.StatusConflict:
			// Duplicate link; the unique-key invariant makes this a no-op.
			s.log.Debug("duplicate record skipped", slog.String("link", records[i].Link))
		default:
			reason := "unknown bulk failure"
			if result.Error != nil {
				reason = fmt.Sprintf("%s: %s", result.Error.Type, result.Error.Reason)
			}
			failures = append(failures, RecordFailure{
				Link: records[i].Link,
				Err:  fmt.Errorf("status %d: %s", result.Status, reason),
			})
		}
	}

	return inserted, failures, nil
}

// PurgeOlderThan removes records created before the cutoff using batched
// delete-by-query. It loops until a batch deletes fewer documents than the
// requested batch size.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"created_at": map[string]any{
						"lt": cutoff.UTC().Format(time.RFC3339),
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal purge body: %w", err)
		}

		res, err := s.es.DeleteByQuery(
			[]string{s.index},
			bytes.NewReader(payload),
			s.es.DeleteByQuery.WithContext(ctx),
			s.es.DeleteByQuery.WithWaitForCompletion(true),
			s.es.DeleteByQuery.WithConflicts("proceed"),
			s.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode purge response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

const readPageSize = 1000

// All reads the entire record set, newest first. The publisher rebuilds
// every category document from scratch, so there is no incremental mode.
func (s *Store) All(ctx context.Context) ([]models.EnrichedRecord, error) {
	var out []models.EnrichedRecord

	from := 0
	for {
		result, err := s.search(ctx, SearchParams{From: from, Size: readPageSize})
		if err != nil {
			return nil, err
		}
		out = append(out, result.Items...)
		from += len(result.Items)
		if len(result.Items) < readPageSize || int64(from) >= result.Total {
			break
		}
	}

	return out, nil
}

// Search executes a filtered, paginated read.
func (s *Store) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	return s.search(ctx, params)
}

func (s *Store) search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > readPageSize {
		params.Size = readPageSize
	}
	if params.From < 0 {
		params.From = 0
	}

	query := map[string]any{"match_all": map[string]any{}}
	if params.Category != "" {
		query = map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"term": map[string]any{"ai_category": params.Category}},
				},
			},
		}
	}

	body := map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query":            query,
		"sort": []map[string]any{
			{"created_at": map[string]any{"order": "desc"}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.EnrichedRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.EnrichedRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}

	return &SearchResult{
		Total: parsed.Hits.Total.Value,
		Items: items,
	}, nil
}
