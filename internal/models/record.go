package models

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// RawEntry is a single feed item as parsed from a source, before enrichment.
// Link is the natural identity of an entry; entries without one are dropped
// at parse time.
type RawEntry struct {
	Title       string
	Description string
	Link        string
	Published   string
	SourceURL   string
}

// EnrichedRecord is the canonical structure stored in Elasticsearch.
// Records are immutable once written; only the retention sweep removes them.
type EnrichedRecord struct {
	Link                string    `json:"link"`
	OriginalTitle       string    `json:"original_title"`
	OriginalDescription string    `json:"original_description"`
	AITitle             string    `json:"ai_title"`
	AISummary           string    `json:"ai_summary"`
	AICategory          string    `json:"ai_category"`
	Published           string    `json:"published"`
	SourceURL           string    `json:"source_url"`
	CreatedAt           time.Time `json:"created_at"`
}

// RecordID hashes a link into a deterministic document ID, so inserting the
// same link twice targets the same document.
func RecordID(link string) string {
	s := sha1.Sum([]byte(link))
	return hex.EncodeToString(s[:])
}
