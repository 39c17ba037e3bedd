package sink

import (
	"context"
	"io"
)

// Sink is a named-blob store the publisher writes category documents to.
// Upload overwrites whatever is at the path; Delete of a missing path is not
// an error.
type Sink interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader) error
	Delete(ctx context.Context, path string) error
}
