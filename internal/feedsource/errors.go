package feedsource

import (
	"fmt"
	"strings"
)

// FetchError reports a network-level failure or a non-success HTTP status.
// The coordinator treats it as transient and retries with backoff.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError means none of the configured encodings produced valid text.
// It is never retried; the bytes will not get better.
type DecodeError struct {
	URL       string
	Encodings []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: no encoding succeeded (tried %s)", e.URL, strings.Join(e.Encodings, ", "))
}
