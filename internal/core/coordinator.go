package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyhub/internal/events"
	"storyhub/internal/gateway"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
)

// Coordinator performs every catalog mutation: read the authoritative document,
// transform it, write it back whole, then update the cache.
type Coordinator interface {
	DeleteStory(ctx context.Context, storyID string) error
	ToggleStoryVisibility(ctx context.Context, storyID string) (bool, error)
	IncrementView(ctx context.Context, storyID string) error
	UpdateGenres(ctx context.Context, genres []string) error
	AddGenre(ctx context.Context, name string) error
	RemoveGenre(ctx context.Context, name string) error
	UpdateGuide(ctx context.Context, content string) error
	UpdateUploadSettings(ctx context.Context, settings models.UploadSettings) error
	UpdateAnnouncement(ctx context.Context, message string, show bool) error
	// SaveStories writes a full stories list computed by the caller from a Raw read
	SaveStories(ctx context.Context, stories []models.Story, baseRevision string) (string, error)
	// ReplaceDocument overwrites any writable document with client supplied JSON
	ReplaceDocument(ctx context.Context, name models.DocumentName, content []byte, expectedRevision string) (string, error)
}

// CoordinatorOptions tune write behaviour
type CoordinatorOptions struct {
	// OptimisticWrites sends the revision read in step one with the write, so a
	// concurrent writer causes models.ErrRevisionConflict instead of a lost update.
	OptimisticWrites bool
	Now              func() time.Time
}

type coordinator struct {
	gw      gateway.Gateway
	catalog *Catalog
	events  events.Publisher
	opts    CoordinatorOptions
}

// NewCoordinator creates the mutation coordinator
func NewCoordinator(gw gateway.Gateway, catalog *Catalog, pub events.Publisher, opts CoordinatorOptions) Coordinator {
	if pub == nil {
		pub = events.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &coordinator{gw: gw, catalog: catalog, events: pub, opts: opts}
}

func (c *coordinator) DeleteStory(ctx context.Context, storyID string) error {
	stories, rev, err := c.catalog.Raw(ctx)
	if err != nil {
		return err
	}
	next := make([]models.Story, 0, len(stories))
	for _, s := range stories {
		if s.ID != storyID {
			next = append(next, s)
		}
	}
	if len(next) == len(stories) {
		return fmt.Errorf("%s: %w", storyID, models.ErrStoryNotFound)
	}

	newRev, err := c.write(ctx, models.DocStories, next, rev)
	if err != nil {
		return err
	}
	c.catalog.setStories(next, newRev)
	c.emit(ctx, events.Event{Type: events.TypeStoryDeleted, Document: string(models.DocStories), Revision: newRev, StoryID: storyID})
	return nil
}

func (c *coordinator) ToggleStoryVisibility(ctx context.Context, storyID string) (bool, error) {
	stories, rev, err := c.catalog.Raw(ctx)
	if err != nil {
		return false, err
	}
	found, hidden := false, false
	next := make([]models.Story, len(stories))
	for i, s := range stories {
		if s.ID == storyID {
			s.IsHidden = !s.IsHidden
			found, hidden = true, s.IsHidden
		}
		next[i] = s
	}
	if !found {
		return false, fmt.Errorf("%s: %w", storyID, models.ErrStoryNotFound)
	}

	newRev, err := c.write(ctx, models.DocStories, next, rev)
	if err != nil {
		return false, err
	}
	c.catalog.setStories(next, newRev)
	c.emit(ctx, events.Event{Type: events.TypeStoryVisibility, Document: string(models.DocStories), Revision: newRev, StoryID: storyID})
	return hidden, nil
}

// IncrementView is applied by the gateway under the document lock; the cache is bumped afterwards
func (c *coordinator) IncrementView(ctx context.Context, storyID string) error {
	if err := c.gw.IncrementView(ctx, storyID); err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	c.catalog.bumpViews(storyID)
	c.emit(ctx, events.Event{Type: events.TypeStoryViewed, StoryID: storyID})
	return nil
}

func (c *coordinator) UpdateGenres(ctx context.Context, genres []string) error {
	_, rev, err := c.rawGenres(ctx)
	if err != nil {
		return err
	}
	next := make([]string, 0, len(genres))
	seen := make(map[string]bool, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		key := models.CanonicalGenre(g)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		next = append(next, g)
	}
	return c.writeGenres(ctx, next, rev)
}

func (c *coordinator) AddGenre(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("genre name is required: %w", models.ErrInvalidInput)
	}
	genres, rev, err := c.rawGenres(ctx)
	if err != nil {
		return err
	}
	for _, g := range genres {
		if models.CanonicalGenre(g) == models.CanonicalGenre(name) {
			return fmt.Errorf("genre %q already exists: %w", name, models.ErrInvalidInput)
		}
	}
	return c.writeGenres(ctx, append(genres, name), rev)
}

func (c *coordinator) RemoveGenre(ctx context.Context, name string) error {
	genres, rev, err := c.rawGenres(ctx)
	if err != nil {
		return err
	}
	next := make([]string, 0, len(genres))
	for _, g := range genres {
		if models.CanonicalGenre(g) != models.CanonicalGenre(name) {
			next = append(next, g)
		}
	}
	if len(next) == len(genres) {
		return fmt.Errorf("genre %q: %w", name, models.ErrNotFound)
	}
	return c.writeGenres(ctx, next, rev)
}

func (c *coordinator) UpdateGuide(ctx context.Context, content string) error {
	doc, _, err := readDoc(ctx, c.gw, models.DocGuide)
	if err != nil {
		return err
	}
	guide := models.Guide{Content: content, UpdatedAt: models.FormatTimestamp(c.opts.Now())}
	newRev, err := c.write(ctx, models.DocGuide, guide, doc.Revision)
	if err != nil {
		return err
	}
	c.catalog.setGuide(guide)
	c.emit(ctx, events.Event{Type: events.TypeDocumentReplaced, Document: string(models.DocGuide), Revision: newRev})
	return nil
}

func (c *coordinator) UpdateUploadSettings(ctx context.Context, settings models.UploadSettings) error {
	doc, _, err := readDoc(ctx, c.gw, models.DocUploadSettings)
	if err != nil {
		return err
	}
	newRev, err := c.write(ctx, models.DocUploadSettings, settings, doc.Revision)
	if err != nil {
		return err
	}
	c.catalog.setUploadSettings(settings)
	c.emit(ctx, events.Event{Type: events.TypeDocumentReplaced, Document: string(models.DocUploadSettings), Revision: newRev})
	return nil
}

func (c *coordinator) UpdateAnnouncement(ctx context.Context, message string, show bool) error {
	doc, _, err := readDoc(ctx, c.gw, models.DocAnnouncement)
	if err != nil {
		return err
	}
	a := &models.Announcement{Message: message, IsShow: show, UpdatedAt: models.FormatTimestamp(c.opts.Now())}
	newRev, err := c.write(ctx, models.DocAnnouncement, a, doc.Revision)
	if err != nil {
		return err
	}
	c.catalog.setAnnouncement(a)
	c.emit(ctx, events.Event{Type: events.TypeDocumentReplaced, Document: string(models.DocAnnouncement), Revision: newRev, Message: message})
	return nil
}

func (c *coordinator) SaveStories(ctx context.Context, stories []models.Story, baseRevision string) (string, error) {
	if stories == nil {
		stories = []models.Story{}
	}
	newRev, err := c.write(ctx, models.DocStories, stories, baseRevision)
	if err != nil {
		return "", err
	}
	c.catalog.setStories(stories, newRev)
	c.emit(ctx, events.Event{Type: events.TypeDocumentReplaced, Document: string(models.DocStories), Revision: newRev})
	return newRev, nil
}

// ReplaceDocument checks that content decodes into the document's type before writing,
// so the cache never holds something the store would reject on the next load.
func (c *coordinator) ReplaceDocument(ctx context.Context, name models.DocumentName, content []byte, expectedRevision string) (string, error) {
	var apply func(rev string)
	switch name {
	case models.DocStories:
		stories, err := gateway.DecodeStrict[[]models.Story](name, content)
		if err != nil {
			return "", err
		}
		apply = func(rev string) { c.catalog.setStories(stories, rev) }
	case models.DocAnnouncement:
		a, err := gateway.DecodeStrict[*models.Announcement](name, content)
		if err != nil {
			return "", err
		}
		apply = func(string) { c.catalog.setAnnouncement(a) }
	case models.DocGuide:
		g, err := gateway.DecodeStrict[models.Guide](name, content)
		if err != nil {
			return "", err
		}
		apply = func(string) { c.catalog.setGuide(g) }
	case models.DocUploadSettings:
		s := models.DefaultUploadSettings()
		if err := gateway.DecodeInto(name, content, &s); err != nil {
			return "", err
		}
		apply = func(string) { c.catalog.setUploadSettings(s) }
	case models.DocGenres:
		g, err := gateway.DecodeStrict[[]string](name, content)
		if err != nil {
			return "", err
		}
		apply = func(string) { c.catalog.setGenres(g) }
	default:
		return "", fmt.Errorf("%s: %w", name, models.ErrUnsupportedDocument)
	}

	rev, err := c.gw.Replace(ctx, name, content, expectedRevision)
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	apply(rev)
	c.emit(ctx, events.Event{Type: events.TypeDocumentReplaced, Document: string(name), Revision: rev})
	return rev, nil
}

// rawGenres reads the stored genres; a missing or empty document starts from the defaults
func (c *coordinator) rawGenres(ctx context.Context) ([]string, string, error) {
	doc, _, err := readDoc(ctx, c.gw, models.DocGenres)
	if err != nil {
		return nil, "", err
	}
	genres, err := gateway.DecodeStrict[[]string](models.DocGenres, doc.Content)
	if err != nil {
		return nil, "", err
	}
	if len(genres) == 0 {
		genres = models.DefaultGenres()
	}
	return genres, doc.Revision, nil
}

func (c *coordinator) writeGenres(ctx context.Context, genres []string, baseRevision string) error {
	newRev, err := c.write(ctx, models.DocGenres, genres, baseRevision)
	if err != nil {
		return err
	}
	c.catalog.setGenres(genres)
	c.emit(ctx, events.Event{Type: events.TypeDocumentReplaced, Document: string(models.DocGenres), Revision: newRev})
	return nil
}

// write encodes v and replaces the whole document. Without optimistic writes the
// base revision is ignored and the last writer wins.
func (c *coordinator) write(ctx context.Context, name models.DocumentName, v interface{}, baseRevision string) (string, error) {
	content, err := gateway.Encode(v)
	if err != nil {
		return "", err
	}
	expected := ""
	if c.opts.OptimisticWrites {
		expected = baseRevision
	}
	rev, err := c.gw.Replace(ctx, name, content, expected)
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return rev, nil
}

func (c *coordinator) emit(ctx context.Context, e events.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = c.opts.Now().UTC()
	}
	if err := c.events.Publish(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithFields(map[string]interface{}{"event": e.Type, "story_id": e.StoryID}).WithError(err).Warn("failed to publish catalog event")
	}
}
