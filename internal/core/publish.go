package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"storyhub/internal/events"
	"storyhub/internal/gateway"
	"storyhub/internal/repository"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
	"storyhub/pkg/utils"
)

// PublishMode selects between creating a story and adding a chapter to one
type PublishMode string

const (
	PublishModeNew    PublishMode = "new"
	PublishModeUpdate PublishMode = "update"
)

// Transport is where chapter images end up
type Transport string

const (
	TransportServer Transport = "server" // local blob store served under /uploads
	TransportDrive  Transport = "drive"  // remote blob store
	TransportLink   Transport = "link"   // caller supplies image URLs
)

// ErrTransportDisabled is returned when upload settings forbid the requested transport
var ErrTransportDisabled = errors.New("upload transport is disabled")

// ImageFile is one uploaded image held in memory so it can be retried
type ImageFile struct {
	Name string
	Data []byte
}

// PublishRequest carries one upload form submission
type PublishRequest struct {
	Mode      PublishMode
	Transport Transport

	// update mode
	StoryID string

	// new mode
	Title          string
	OriginalAuthor string
	Uploader       string
	Description    string
	Genres         []string
	Cover          *ImageFile
	CoverURL       string

	Status       models.StoryStatus
	ChapterOrder int
	ChapterTitle string
	Pages        []ImageFile
	PageURLs     []string
}

// PublishResult is returned after the stories document was written
type PublishResult struct {
	Story    models.Story
	Chapter  models.Chapter
	Revision string
}

// PublishError reports a failed metadata write after all images were stored.
// Fallback holds the stories document that should have been written.
type PublishError struct {
	Err      error
	Fallback []byte
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to save stories: %v", e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// PublishService runs the upload flow: images first, then a single stories write
type PublishService interface {
	Publish(ctx context.Context, user *models.User, req PublishRequest) (*PublishResult, error)
	// Allowed lists the transports enabled by the current upload settings
	Allowed() []Transport
}

// PublishOptions tune retries
type PublishOptions struct {
	Attempts   int
	RetryDelay time.Duration
	Events     events.Publisher
	Now        func() time.Time
}

type publishService struct {
	catalog *Catalog
	coord   Coordinator
	blobs   map[Transport]repository.BlobStore
	opts    PublishOptions
}

// NewPublishService creates the publish service. blobs maps server and drive to their
// stores; a transport without a store is rejected even if enabled.
func NewPublishService(catalog *Catalog, coord Coordinator, blobs map[Transport]repository.BlobStore, opts PublishOptions) PublishService {
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &publishService{catalog: catalog, coord: coord, blobs: blobs, opts: opts}
}

// Allowed lists the transports enabled by the upload settings that also have storage
// behind them
func (s *publishService) Allowed() []Transport {
	settings := s.catalog.UploadSettings()
	var out []Transport
	for _, t := range []Transport{TransportServer, TransportDrive, TransportLink} {
		if transportEnabled(settings, t) && s.hasStorage(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *publishService) hasStorage(t Transport) bool {
	return t == TransportLink || s.blobs[t] != nil
}

func transportEnabled(settings models.UploadSettings, t Transport) bool {
	switch t {
	case TransportServer:
		return settings.AllowServer
	case TransportDrive:
		return settings.AllowDrive || settings.AllowDriveFolder
	case TransportLink:
		return settings.AllowCanva
	}
	return false
}

func (s *publishService) Publish(ctx context.Context, user *models.User, req PublishRequest) (*PublishResult, error) {
	if user == nil || !user.CanUpload() {
		return nil, models.ErrForbidden
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	now := s.opts.Now()
	storyID := req.StoryID
	var existing models.Story
	if req.Mode == PublishModeNew {
		storyID = utils.GenerateStoryID()
	} else {
		stories, _, err := s.catalog.Raw(ctx)
		if err != nil {
			return nil, err
		}
		found := false
		for _, st := range stories {
			if st.ID == storyID {
				existing, found = st, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: %w", storyID, models.ErrStoryNotFound)
		}
		if !existing.OwnedBy(user) {
			return nil, models.ErrForbidden
		}
	}
	chapterID := utils.GenerateChapterID()
	order := req.ChapterOrder
	if order < 1 {
		order = len(existing.Chapters) + 1
	}

	coverURL := existing.CoverURL
	if req.Mode == PublishModeNew {
		var err error
		coverURL, err = s.uploadCover(ctx, req, storyID)
		if err != nil {
			return nil, err
		}
	}

	images, err := s.uploadPages(ctx, req, storyID, chapterID, order)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.ChapterTitle)
	if title == "" {
		title = fmt.Sprintf("Chapter %d", order)
	}
	chapter := models.Chapter{
		ID:          chapterID,
		StoryID:     storyID,
		Order:       order,
		Title:       title,
		Images:      images,
		PublishedAt: models.FormatTimestamp(now),
	}

	// Re-read right before writing to keep the lost-update window small
	stories, rev, err := s.catalog.Raw(ctx)
	if err != nil {
		return nil, err
	}

	var story models.Story
	if req.Mode == PublishModeNew {
		story = newStory(user, req, storyID, coverURL, chapter, now)
		stories = append([]models.Story{story}, stories...)
	} else {
		idx := -1
		for i, st := range stories {
			if st.ID == storyID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%s: %w", storyID, models.ErrStoryNotFound)
		}
		story = stories[idx].Clone()
		story.Chapters = append(story.Chapters, chapter)
		story.LastUpdated = models.FormatTimestamp(now)
		story.PublishedTimeRelative = LabelJustNow
		if req.Status != "" {
			story.Status = req.Status
		}
		next := make([]models.Story, 0, len(stories))
		next = append(next, story)
		next = append(next, stories[:idx]...)
		next = append(next, stories[idx+1:]...)
		stories = next
	}

	newRev, err := s.coord.SaveStories(ctx, stories, rev)
	if err != nil {
		fallback, encErr := gateway.Encode(stories)
		if encErr != nil {
			logger.Errorf("failed to encode fallback stories document: %v", encErr)
		}
		return nil, &PublishError{Err: err, Fallback: fallback}
	}

	e := events.Event{
		Type:      events.TypeChapterPublished,
		Document:  string(models.DocStories),
		Revision:  newRev,
		StoryID:   storyID,
		ChapterID: chapterID,
		Message:   story.Title + " - " + chapter.Title,
		Timestamp: now.UTC(),
	}
	if err := s.opts.Events.Publish(ctx, e); err != nil {
		logger.WithFields(map[string]interface{}{"story_id": storyID}).WithError(err).Warn("failed to publish chapter event")
	}

	logger.WithFields(map[string]interface{}{
		"story_id":   storyID,
		"chapter_id": chapterID,
		"mode":       req.Mode,
		"transport":  req.Transport,
		"pages":      len(images),
	}).Info("chapter published")

	return &PublishResult{Story: story, Chapter: chapter, Revision: newRev}, nil
}

func (s *publishService) validate(req PublishRequest) error {
	switch req.Mode {
	case PublishModeNew:
		if strings.TrimSpace(req.Title) == "" {
			return fmt.Errorf("title is required: %w", models.ErrInvalidInput)
		}
		if req.Transport != TransportLink && req.Cover == nil {
			return fmt.Errorf("cover image is required: %w", models.ErrInvalidInput)
		}
	case PublishModeUpdate:
		if req.StoryID == "" {
			return fmt.Errorf("story id is required: %w", models.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown mode %q: %w", req.Mode, models.ErrInvalidInput)
	}

	if len(s.Allowed()) == 0 {
		return fmt.Errorf("uploads are closed: %w", ErrTransportDisabled)
	}
	if !transportEnabled(s.catalog.UploadSettings(), req.Transport) {
		return fmt.Errorf("%s: %w", req.Transport, ErrTransportDisabled)
	}
	if !s.hasStorage(req.Transport) {
		return fmt.Errorf("%s: no storage configured: %w", req.Transport, ErrTransportDisabled)
	}

	if req.Transport == TransportLink {
		if len(cleanURLs(req.PageURLs)) == 0 {
			return fmt.Errorf("no page links: %w", models.ErrInvalidInput)
		}
	} else if len(req.Pages) == 0 {
		return fmt.Errorf("no pages: %w", models.ErrInvalidInput)
	}
	if req.Status != "" && !req.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", req.Status, models.ErrInvalidInput)
	}
	return nil
}

func (s *publishService) uploadCover(ctx context.Context, req PublishRequest, storyID string) (string, error) {
	if req.Transport == TransportLink {
		return strings.TrimSpace(req.CoverURL), nil
	}
	key := fmt.Sprintf("%s/%s/cover.%s", repository.UploadRoot, storyID, extension(*req.Cover))
	return s.upload(ctx, req.Transport, key, *req.Cover)
}

// uploadPages stores pages one after another. An exhausted page aborts the submission;
// pages already stored are left in place.
func (s *publishService) uploadPages(ctx context.Context, req PublishRequest, storyID, chapterID string, order int) ([]string, error) {
	if req.Transport == TransportLink {
		return cleanURLs(req.PageURLs), nil
	}
	urls := make([]string, 0, len(req.Pages))
	for i, page := range req.Pages {
		key := fmt.Sprintf("%s/%s/%s/ch%d_page_%03d.%s", repository.UploadRoot, storyID, chapterID, order, i+1, extension(page))
		url, err := s.upload(ctx, req.Transport, key, page)
		if err != nil {
			return nil, fmt.Errorf("page %d/%d: %w", i+1, len(req.Pages), err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// upload retries with a fixed delay. Unsupported media is not retried.
func (s *publishService) upload(ctx context.Context, t Transport, key string, f ImageFile) (string, error) {
	store := s.blobs[t]
	var lastErr error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		url, err := store.Put(ctx, key, bytes.NewReader(f.Data))
		if err == nil && url != "" {
			return url, nil
		}
		if err == nil {
			err = errors.New("empty url returned")
		}
		if errors.Is(err, models.ErrUnsupportedMedia) || errors.Is(err, models.ErrInvalidPath) {
			return "", err
		}
		lastErr = err
		logger.WithFields(map[string]interface{}{"key": key, "attempt": attempt}).WithError(err).Warn("image upload failed")
		if attempt < s.opts.Attempts {
			if err := utils.Sleep(ctx, s.opts.RetryDelay); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("failed to upload %s after %d attempts: %w", key, s.opts.Attempts, lastErr)
}

func newStory(user *models.User, req PublishRequest, storyID, coverURL string, chapter models.Chapter, now time.Time) models.Story {
	uploader := strings.TrimSpace(req.Uploader)
	if uploader == "" {
		uploader = user.Name
	}
	author := strings.TrimSpace(req.OriginalAuthor)
	if author == "" {
		author = "Unknown"
	}
	badge := "Admin"
	if user.Role == models.UserRoleTranslator {
		badge = "Translator"
	}
	status := req.Status
	if status == "" {
		status = models.StoryStatusOngoing
	}
	genres := make([]string, 0, len(req.Genres))
	for _, g := range req.Genres {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	return models.Story{
		ID:                    storyID,
		Title:                 strings.TrimSpace(req.Title),
		OriginalAuthor:        author,
		Translator:            uploader,
		Uploader:              uploader,
		UploaderID:            user.ID,
		UploaderBadge:         badge,
		CoverURL:              coverURL,
		Description:           req.Description,
		Genres:                genres,
		Status:                status,
		Chapters:              []models.Chapter{chapter},
		PublishedTimeRelative: LabelJustNow,
		LastUpdated:           models.FormatTimestamp(now),
	}
}

// extension takes the file name's extension, falling back to the sniffed type
func extension(f ImageFile) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
	if ext != "" {
		return ext
	}
	return strings.TrimPrefix(mimetype.Detect(f.Data).Extension(), ".")
}

func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
