package repository

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"storyhub/pkg/models"
)

// Document is the raw content of one named document together with its revision
type Document struct {
	Name     models.DocumentName
	Content  []byte
	Revision string
}

// UpdateFunc transforms the current content of a document. exists is false when the
// document has never been written; current is nil in that case.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// DocumentStore persists whole documents. Writes replace the entire content.
type DocumentStore interface {
	// Get returns models.ErrDocumentNotFound when the document does not exist
	Get(ctx context.Context, name models.DocumentName) (*Document, error)

	// Put replaces the document. A non-empty expectedRevision must match the current
	// revision or models.ErrRevisionConflict is returned and nothing is written.
	Put(ctx context.Context, name models.DocumentName, content []byte, expectedRevision string) (string, error)

	// Update runs fn and writes its result while holding the document, so no other
	// writer can interleave. Used for server-side counters and appends.
	Update(ctx context.Context, name models.DocumentName, fn UpdateFunc) (string, error)
}

// Revision is the content hash used as an optimistic concurrency token
func Revision(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}
