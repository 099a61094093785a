package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"storyhub/internal/repository"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
)

// writable lists the documents clients may overwrite wholesale.
// Comments only change through AddComment.
var writable = map[models.DocumentName]bool{
	models.DocStories:        true,
	models.DocAnnouncement:   true,
	models.DocGuide:          true,
	models.DocUploadSettings: true,
	models.DocGenres:         true,
}

// Local implements Gateway on top of a DocumentStore and a BlobStore
type Local struct {
	docs  repository.DocumentStore
	blobs repository.BlobStore
}

// NewLocal creates an in-process gateway. blobs may be nil when uploads are disabled.
func NewLocal(docs repository.DocumentStore, blobs repository.BlobStore) *Local {
	return &Local{docs: docs, blobs: blobs}
}

func (g *Local) Read(ctx context.Context, name models.DocumentName) (*Document, error) {
	return g.docs.Get(ctx, name)
}

func (g *Local) Replace(ctx context.Context, name models.DocumentName, content []byte, expectedRevision string) (string, error) {
	if !writable[name] {
		return "", fmt.Errorf("%s: %w", name, models.ErrUnsupportedDocument)
	}
	if !json.Valid(content) {
		return "", fmt.Errorf("%s: %w", name, models.ErrMalformedDocument)
	}
	rev, err := g.docs.Put(ctx, name, content, expectedRevision)
	if err != nil {
		return "", err
	}
	logger.Document(string(name), "replace", rev)
	return rev, nil
}

func (g *Local) IncrementView(ctx context.Context, storyID string) error {
	if storyID == "" {
		return fmt.Errorf("story id is required: %w", models.ErrInvalidInput)
	}
	_, err := g.docs.Update(ctx, models.DocStories, func(current []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, models.ErrStoryNotFound
		}
		return incrementViews(current, storyID)
	})
	return err
}

// incrementViews edits the raw document so fields this server does not model survive
func incrementViews(content []byte, storyID string) ([]byte, error) {
	var stories []map[string]json.RawMessage
	if err := json.Unmarshal(content, &stories); err != nil {
		return nil, fmt.Errorf("%s: %w", models.DocStories, models.ErrMalformedDocument)
	}

	for _, story := range stories {
		var id string
		if err := json.Unmarshal(story["id"], &id); err != nil || id != storyID {
			continue
		}

		stats := map[string]interface{}{"views": 0, "rating": 0, "likes": 0, "comments": 0}
		if raw, ok := story["stats"]; ok && string(raw) != "null" {
			existing := map[string]interface{}{}
			if err := json.Unmarshal(raw, &existing); err == nil {
				for k, v := range existing {
					stats[k] = v
				}
			}
		}
		views := 0
		if v, ok := stats["views"].(float64); ok {
			views = int(v)
		} else if v, ok := stats["views"].(int); ok {
			views = v
		}
		stats["views"] = views + 1

		encoded, err := json.Marshal(stats)
		if err != nil {
			return nil, err
		}
		story["stats"] = encoded
		return Encode(stories)
	}
	return nil, models.ErrStoryNotFound
}

func (g *Local) ListComments(ctx context.Context) ([]models.Comment, error) {
	doc, err := g.docs.Get(ctx, models.DocComments)
	if errors.Is(err, models.ErrDocumentNotFound) {
		return []models.Comment{}, nil
	}
	if err != nil {
		return nil, err
	}
	comments, err := DecodeStrict[[]models.Comment](models.DocComments, doc.Content)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

func (g *Local) AddComment(ctx context.Context, c models.Comment) error {
	entry, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode comment: %w", err)
	}
	_, err = g.docs.Update(ctx, models.DocComments, func(current []byte, exists bool) ([]byte, error) {
		var list []json.RawMessage
		if exists {
			// an unreadable comments file is reset rather than blocking new comments
			if err := json.Unmarshal(current, &list); err != nil {
				logger.Warnf("comments document unreadable, starting a new list: %v", err)
				list = nil
			}
		}
		list = append([]json.RawMessage{entry}, list...)
		if len(list) > models.MaxStoredComments {
			list = list[:models.MaxStoredComments]
		}
		return Encode(list)
	})
	return err
}

func (g *Local) UploadImage(ctx context.Context, key string, body io.Reader) (string, error) {
	if g.blobs == nil {
		return "", errors.New("server uploads are not configured")
	}
	return g.blobs.Put(ctx, key, body)
}
