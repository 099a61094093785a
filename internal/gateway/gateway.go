// Package gateway is the only path between the catalog logic and stored documents.
// Local runs in-process on a DocumentStore; Client talks to a remote server over the form protocol.
package gateway

import (
	"context"
	"io"

	"storyhub/internal/repository"
	"storyhub/pkg/models"
)

// Document is re-exported so callers need not import the repository package
type Document = repository.Document

// Gateway reads and overwrites whole documents and performs the few server-side
// mutations that must not race: view counting and comment appends.
type Gateway interface {
	// Read returns models.ErrDocumentNotFound when the document was never written
	Read(ctx context.Context, name models.DocumentName) (*Document, error)

	// Replace overwrites the whole document. An empty expectedRevision writes unconditionally.
	Replace(ctx context.Context, name models.DocumentName, content []byte, expectedRevision string) (string, error)

	// IncrementView bumps stats.views of one story, creating default stats if missing
	IncrementView(ctx context.Context, storyID string) error

	// ListComments returns the global comment list, newest first
	ListComments(ctx context.Context) ([]models.Comment, error)

	// AddComment prepends c and drops the oldest entries beyond models.MaxStoredComments
	AddComment(ctx context.Context, c models.Comment) error

	// UploadImage stores an image under key (uploads/...) and returns its URL
	UploadImage(ctx context.Context, key string, body io.Reader) (string, error)
}

// Error is a business failure reported by the remote gateway. Message is passed through verbatim.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
