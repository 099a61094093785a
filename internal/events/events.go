// Package events fans out catalog change notifications to subscribers
// (websocket clients, an AMQP queue).
package events

import (
	"context"
	"errors"
	"time"
)

// Event types
const (
	TypeDocumentReplaced = "document.replaced"
	TypeStoryDeleted     = "story.deleted"
	TypeStoryVisibility  = "story.visibility"
	TypeStoryViewed      = "story.viewed"
	TypeChapterPublished = "chapter.published"
	TypeCommentAdded     = "comment.added"
)

// Event describes one successful mutation
type Event struct {
	Type      string    `json:"type"`
	Document  string    `json:"document,omitempty"`
	Revision  string    `json:"revision,omitempty"`
	StoryID   string    `json:"story_id,omitempty"`
	ChapterID string    `json:"chapter_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events. Implementations must not block for long; mutations have
// already been persisted when Publish is called.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
