package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"storyhub/internal/events"
	"storyhub/internal/gateway"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
	"storyhub/pkg/utils"
)

// CommentService defines comment operations
type CommentService interface {
	// List returns the comments of one story, newest first
	List(ctx context.Context, storyID string) ([]models.Comment, error)
	// Add posts a comment. A nil author posts as Guest.
	Add(ctx context.Context, storyID string, author *models.User, req models.CreateCommentRequest) (*models.Comment, error)
}

type commentService struct {
	gw      gateway.Gateway
	catalog *Catalog
	events  events.Publisher
	now     func() time.Time
}

// NewCommentService creates a new comment service
func NewCommentService(gw gateway.Gateway, catalog *Catalog, pub events.Publisher) CommentService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &commentService{gw: gw, catalog: catalog, events: pub, now: time.Now}
}

func (s *commentService) List(ctx context.Context, storyID string) ([]models.Comment, error) {
	all, err := s.gw.ListComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	out := make([]models.Comment, 0)
	for _, c := range all {
		if c.StoryID == storyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *commentService) Add(ctx context.Context, storyID string, author *models.User, req models.CreateCommentRequest) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("content is required: %w", models.ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return nil, fmt.Errorf("content exceeds maximum length of %d characters: %w", models.MaxCommentLength, models.ErrInvalidInput)
	}
	if _, ok := s.catalog.Story(storyID); !ok {
		return nil, fmt.Errorf("%s: %w", storyID, models.ErrStoryNotFound)
	}

	comment := models.Comment{
		ID:        utils.GenerateCommentID(),
		StoryID:   storyID,
		UserID:    models.GuestUserID,
		UserName:  models.GuestUserName,
		Content:   content,
		CreatedAt: models.FormatTimestamp(s.now()),
	}
	if author != nil {
		comment.UserID = author.ID
		comment.UserName = author.Name
		comment.UserAvatar = author.Avatar
	}

	if err := s.gw.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	err := s.events.Publish(ctx, events.Event{
		Type:      events.TypeCommentAdded,
		Document:  string(models.DocComments),
		StoryID:   storyID,
		Timestamp: s.now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithFields(map[string]interface{}{"event": events.TypeCommentAdded, "story_id": storyID}).WithError(err).Warn("failed to publish comment event")
	}
	return &comment, nil
}
