// Package core - Core Business Logic
// Protocol-agnostic catalog, publishing, user and comment services
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"storyhub/internal/gateway"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
)

// ErrCatalogClosed is returned by a catalog after Teardown
var ErrCatalogClosed = errors.New("catalog is closed")

// Snapshot is the in-memory copy of every catalog document
type Snapshot struct {
	Stories         []models.Story
	StoriesRevision string
	Announcement    *models.Announcement
	Guide           models.Guide
	UploadSettings  models.UploadSettings
	Genres          []string
	LoadedAt        time.Time
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Stories = models.CloneStories(s.Stories)
	out.Genres = append([]string(nil), s.Genres...)
	if s.Announcement != nil {
		a := *s.Announcement
		out.Announcement = &a
	}
	return out
}

// Catalog caches the documents read by every page. It is loaded eagerly, refreshed
// on demand and updated directly by the coordinator after each successful write.
type Catalog struct {
	gw gateway.Gateway

	mu     sync.RWMutex
	snap   Snapshot
	closed bool
	// gens counts coordinator updates per document; Load drops a result when the
	// count moved while it was reading
	gens map[models.DocumentName]uint64
}

// NewCatalog creates an empty catalog holding default values until Load runs
func NewCatalog(gw gateway.Gateway) *Catalog {
	return &Catalog{
		gw: gw,
		snap: Snapshot{
			Stories:        []models.Story{},
			UploadSettings: models.DefaultUploadSettings(),
			Genres:         models.DefaultGenres(),
		},
		gens: make(map[models.DocumentName]uint64),
	}
}

// Load fetches all catalog documents concurrently. A document that fails keeps its
// last-known (or default) value; the returned error joins every per-document failure.
// A document updated by the coordinator while Load was reading keeps that update.
func (c *Catalog) Load(ctx context.Context) error {
	if c.isClosed() {
		return ErrCatalogClosed
	}
	gens := c.generations()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	fail := func(name models.DocumentName, err error) {
		logger.WithFields(map[string]interface{}{"document": name}).WithError(err).Warn("catalog document kept its previous value")
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		mu.Unlock()
	}

	g.Go(func() error {
		stories, rev, err := readStories(ctx, c.gw)
		if err != nil {
			fail(models.DocStories, err)
			return nil
		}
		c.loaded(models.DocStories, gens, func(snap *Snapshot) {
			snap.Stories = models.CloneStories(stories)
			snap.StoriesRevision = rev
		})
		return nil
	})
	g.Go(func() error {
		doc, found, err := readDoc(ctx, c.gw, models.DocAnnouncement)
		if err != nil {
			fail(models.DocAnnouncement, err)
			return nil
		}
		var a *models.Announcement
		if found {
			if a, err = gateway.DecodeStrict[*models.Announcement](models.DocAnnouncement, doc.Content); err != nil {
				fail(models.DocAnnouncement, err)
				return nil
			}
		}
		c.loaded(models.DocAnnouncement, gens, func(snap *Snapshot) { snap.Announcement = a })
		return nil
	})
	g.Go(func() error {
		doc, _, err := readDoc(ctx, c.gw, models.DocGuide)
		if err != nil {
			fail(models.DocGuide, err)
			return nil
		}
		guide, err := gateway.DecodeStrict[models.Guide](models.DocGuide, doc.Content)
		if err != nil {
			fail(models.DocGuide, err)
			return nil
		}
		c.loaded(models.DocGuide, gens, func(snap *Snapshot) { snap.Guide = guide })
		return nil
	})
	g.Go(func() error {
		doc, _, err := readDoc(ctx, c.gw, models.DocUploadSettings)
		if err != nil {
			fail(models.DocUploadSettings, err)
			return nil
		}
		settings := models.DefaultUploadSettings()
		if err := gateway.DecodeInto(models.DocUploadSettings, doc.Content, &settings); err != nil {
			fail(models.DocUploadSettings, err)
			return nil
		}
		c.loaded(models.DocUploadSettings, gens, func(snap *Snapshot) { snap.UploadSettings = settings })
		return nil
	})
	g.Go(func() error {
		doc, _, err := readDoc(ctx, c.gw, models.DocGenres)
		if err != nil {
			fail(models.DocGenres, err)
			return nil
		}
		genres, err := gateway.DecodeStrict[[]string](models.DocGenres, doc.Content)
		if err != nil {
			fail(models.DocGenres, err)
			return nil
		}
		c.loaded(models.DocGenres, gens, func(snap *Snapshot) { snap.Genres = genresOrDefault(genres) })
		return nil
	})
	g.Wait()

	c.mu.Lock()
	c.snap.LoadedAt = time.Now()
	c.mu.Unlock()

	return errors.Join(errs...)
}

// Refresh reloads every document
func (c *Catalog) Refresh(ctx context.Context) error {
	return c.Load(ctx)
}

// Teardown ends the catalog lifecycle. Later loads and raw reads fail with ErrCatalogClosed.
func (c *Catalog) Teardown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Raw reads the persisted stories document, bypassing the cache
func (c *Catalog) Raw(ctx context.Context) ([]models.Story, string, error) {
	if c.isClosed() {
		return nil, "", ErrCatalogClosed
	}
	return readStories(ctx, c.gw)
}

// Snapshot returns a deep copy of the cached documents
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.clone()
}

// Stories returns a copy of the cached stories in stored order
func (c *Catalog) Stories() []models.Story {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.CloneStories(c.snap.Stories)
}

// Story looks up one cached story
func (c *Catalog) Story(id string) (models.Story, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.snap.Stories {
		if s.ID == id {
			return s.Clone(), true
		}
	}
	return models.Story{}, false
}

func (c *Catalog) Genres() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.snap.Genres...)
}

func (c *Catalog) UploadSettings() models.UploadSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.UploadSettings
}

func (c *Catalog) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Catalog) generations() map[models.DocumentName]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[models.DocumentName]uint64, len(c.gens))
	for name, n := range c.gens {
		out[name] = n
	}
	return out
}

// loaded applies a document read by Load unless the coordinator updated it since
// the generations in seen were taken
func (c *Catalog) loaded(name models.DocumentName, seen map[models.DocumentName]uint64, apply func(*Snapshot)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[name] != seen[name] {
		logger.WithFields(map[string]interface{}{"document": name}).Debug("catalog document changed during load, keeping the newer value")
		return false
	}
	apply(&c.snap)
	return true
}

// update applies a coordinator write and bumps the document's generation
func (c *Catalog) update(name models.DocumentName, apply func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[name]++
	apply(&c.snap)
}

func (c *Catalog) setStories(stories []models.Story, revision string) {
	if stories == nil {
		stories = []models.Story{}
	}
	c.update(models.DocStories, func(snap *Snapshot) {
		snap.Stories = models.CloneStories(stories)
		snap.StoriesRevision = revision
	})
}

func (c *Catalog) setAnnouncement(a *models.Announcement) {
	c.update(models.DocAnnouncement, func(snap *Snapshot) { snap.Announcement = a })
}

func (c *Catalog) setGuide(g models.Guide) {
	c.update(models.DocGuide, func(snap *Snapshot) { snap.Guide = g })
}

func (c *Catalog) setUploadSettings(s models.UploadSettings) {
	c.update(models.DocUploadSettings, func(snap *Snapshot) { snap.UploadSettings = s })
}

func (c *Catalog) setGenres(genres []string) {
	c.update(models.DocGenres, func(snap *Snapshot) { snap.Genres = genresOrDefault(genres) })
}

// genresOrDefault falls back to the default list when the stored one is empty
func genresOrDefault(genres []string) []string {
	if len(genres) == 0 {
		return models.DefaultGenres()
	}
	return append([]string(nil), genres...)
}

// bumpViews mirrors a server-side view increment. The stories revision is left as is;
// the next raw read supplies the new one.
func (c *Catalog) bumpViews(id string) {
	c.update(models.DocStories, func(snap *Snapshot) {
		for i := range snap.Stories {
			if snap.Stories[i].ID == id {
				snap.Stories[i].Stats.Views++
				return
			}
		}
	})
}

// readDoc reads one document; a missing document is reported as found=false with empty content
func readDoc(ctx context.Context, gw gateway.Gateway, name models.DocumentName) (*gateway.Document, bool, error) {
	doc, err := gw.Read(ctx, name)
	if errors.Is(err, models.ErrDocumentNotFound) {
		return &gateway.Document{Name: name}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return doc, true, nil
}

func readStories(ctx context.Context, gw gateway.Gateway) ([]models.Story, string, error) {
	doc, _, err := readDoc(ctx, gw, models.DocStories)
	if err != nil {
		return nil, "", err
	}
	stories, err := gateway.DecodeStrict[[]models.Story](models.DocStories, doc.Content)
	if err != nil {
		return nil, "", err
	}
	if stories == nil {
		stories = []models.Story{}
	}
	return stories, doc.Revision, nil
}
