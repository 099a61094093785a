package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyhub/internal/gateway"
	"storyhub/internal/repository"
	"storyhub/pkg/models"
)

const seedStories = `[
	{"id":"s_1","title":"Mùa Hè","genres":["Cute","SFW"],"status":"ongoing","lastUpdated":"2024-06-01T10:00:00.000Z","stats":{"views":10}},
	{"id":"s_2","title":"Night Shift","genres":["Bara","NSFW"],"status":"Đã hoàn thành","stats":{"views":30}},
	{"id":"s_3","title":"Hidden Gem","genres":["Cute"],"isHidden":true,"stats":{"views":99}}
]`

func newTestGateway(t *testing.T) *gateway.Local {
	t.Helper()
	docs, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return gateway.NewLocal(docs, repository.NewLocalBlobStore(t.TempDir(), ""))
}

func seed(t *testing.T, gw gateway.Gateway, name models.DocumentName, content string) string {
	t.Helper()
	rev, err := gw.Replace(context.Background(), name, []byte(content), "")
	require.NoError(t, err)
	return rev
}

func storedStories(t *testing.T, gw gateway.Gateway) []models.Story {
	t.Helper()
	stories, _, err := readStories(context.Background(), gw)
	require.NoError(t, err)
	return stories
}

func storyIDs(stories []models.Story) []string {
	ids := make([]string, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
	}
	return ids
}

// failingGateway rejects every write
type failingGateway struct {
	gateway.Gateway
}

func (failingGateway) Replace(context.Context, models.DocumentName, []byte, string) (string, error) {
	return "", errors.New("disk full")
}

func (failingGateway) UploadImage(context.Context, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

// racingGateway holds the first n stories reads until all of them have happened,
// so two mutations are guaranteed to start from the same document.
type racingGateway struct {
	gateway.Gateway
	mu      sync.Mutex
	pending int
	release chan struct{}
}

func newRacingGateway(inner gateway.Gateway) *racingGateway {
	return &racingGateway{Gateway: inner}
}

// arm makes the next n stories reads wait for each other
func (g *racingGateway) arm(n int) {
	g.mu.Lock()
	g.pending = n
	g.release = make(chan struct{})
	g.mu.Unlock()
}

func (g *racingGateway) Read(ctx context.Context, name models.DocumentName) (*gateway.Document, error) {
	doc, err := g.Gateway.Read(ctx, name)
	if name != models.DocStories {
		return doc, err
	}
	g.mu.Lock()
	if g.pending == 0 {
		g.mu.Unlock()
		return doc, err
	}
	g.pending--
	if g.pending == 0 {
		close(g.release)
	}
	g.mu.Unlock()
	<-g.release
	return doc, err
}

func TestCatalogLoadDefaults(t *testing.T) {
	c := NewCatalog(newTestGateway(t))
	require.NoError(t, c.Load(context.Background()))

	snap := c.Snapshot()
	assert.NotNil(t, snap.Stories)
	assert.Empty(t, snap.Stories)
	assert.Nil(t, snap.Announcement)
	assert.Equal(t, models.DefaultGenres(), snap.Genres)
	assert.Equal(t, models.DefaultUploadSettings(), snap.UploadSettings)
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestCatalogLoad(t *testing.T) {
	gw := newTestGateway(t)
	rev := seed(t, gw, models.DocStories, seedStories)
	seed(t, gw, models.DocGenres, `["Cute","Bara"]`)
	seed(t, gw, models.DocUploadSettings, `{"allowDrive":false}`)
	seed(t, gw, models.DocAnnouncement, `{"message":"hello","isShow":true}`)

	c := NewCatalog(gw)
	require.NoError(t, c.Load(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, []string{"s_1", "s_2", "s_3"}, storyIDs(snap.Stories))
	assert.Equal(t, rev, snap.StoriesRevision)
	assert.Equal(t, models.StoryStatusCompleted, snap.Stories[1].Status)
	assert.Equal(t, []string{"Cute", "Bara"}, snap.Genres)
	assert.False(t, snap.UploadSettings.AllowDrive)
	assert.True(t, snap.UploadSettings.AllowServer)
	require.NotNil(t, snap.Announcement)
	assert.Equal(t, "hello", snap.Announcement.Message)
}

func TestCatalogMalformedDocumentKeepsLastKnownValue(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	seed(t, gw, models.DocStories, seedStories)
	seed(t, gw, models.DocGenres, `["Cute"]`)

	c := NewCatalog(gw)
	require.NoError(t, c.Load(ctx))

	seed(t, gw, models.DocGenres, `{"not":"a list"}`)
	seed(t, gw, models.DocStories, `[{"id":"s_9"}]`)

	err := c.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedDocument))
	assert.Equal(t, []string{"Cute"}, c.Genres(), "genres keep the last good value")
	assert.Equal(t, []string{"s_9"}, storyIDs(c.Stories()), "stories still load independently")
}

func TestCatalogAccessorsReturnCopies(t *testing.T) {
	gw := newTestGateway(t)
	seed(t, gw, models.DocStories, seedStories)
	c := NewCatalog(gw)
	require.NoError(t, c.Load(context.Background()))

	stories := c.Stories()
	stories[0].Title = "changed"
	stories[0].Genres[0] = "changed"

	s, ok := c.Story("s_1")
	require.True(t, ok)
	assert.Equal(t, "Mùa Hè", s.Title)
	assert.Equal(t, "Cute", s.Genres[0])

	_, ok = c.Story("s_404")
	assert.False(t, ok)
}

func TestCatalogRawBypassesCache(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	seed(t, gw, models.DocStories, seedStories)
	c := NewCatalog(gw)
	require.NoError(t, c.Load(ctx))

	seed(t, gw, models.DocStories, `[]`)

	raw, _, err := c.Raw(ctx)
	require.NoError(t, err)
	assert.Empty(t, raw)
	assert.Len(t, c.Stories(), 3)
}

func TestCatalogTeardown(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(newTestGateway(t))
	c.Teardown()

	assert.ErrorIs(t, c.Load(ctx), ErrCatalogClosed)
	_, _, err := c.Raw(ctx)
	assert.ErrorIs(t, err, ErrCatalogClosed)
}

// gatedGateway parks the next stories read, after it has read the document, until
// release is closed
type gatedGateway struct {
	gateway.Gateway
	mu      sync.Mutex
	armed   bool
	held    chan struct{}
	release chan struct{}
}

func newGatedGateway(inner gateway.Gateway) *gatedGateway {
	return &gatedGateway{Gateway: inner}
}

func (g *gatedGateway) hold() {
	g.mu.Lock()
	g.armed = true
	g.held = make(chan struct{})
	g.release = make(chan struct{})
	g.mu.Unlock()
}

func (g *gatedGateway) Read(ctx context.Context, name models.DocumentName) (*gateway.Document, error) {
	doc, err := g.Gateway.Read(ctx, name)
	if name != models.DocStories {
		return doc, err
	}
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	g.mu.Unlock()
	if armed {
		close(g.held)
		<-g.release
	}
	return doc, err
}

func TestRefreshKeepsConcurrentCoordinatorWrite(t *testing.T) {
	ctx := context.Background()
	inner := newTestGateway(t)
	seed(t, inner, models.DocStories, seedStories)
	gw := newGatedGateway(inner)
	coord, cat, _ := newCoordinator(t, gw, CoordinatorOptions{})

	gw.hold()
	done := make(chan error, 1)
	go func() { done <- cat.Refresh(ctx) }()
	<-gw.held

	require.NoError(t, coord.DeleteStory(ctx, "s_2"))
	_, err := coord.ToggleStoryVisibility(ctx, "s_1")
	require.NoError(t, err)
	close(gw.release)
	require.NoError(t, <-done)

	stored := storedStories(t, inner)
	assert.Equal(t, []string{"s_1", "s_3"}, storyIDs(cat.Stories()), "deleted story stays deleted")
	s, ok := cat.Story("s_1")
	require.True(t, ok)
	assert.True(t, s.IsHidden, "hidden story stays hidden")
	assert.Equal(t, storyIDs(stored), storyIDs(cat.Stories()))

	require.NoError(t, cat.Refresh(ctx))
	assert.Equal(t, storyIDs(stored), storyIDs(cat.Stories()), "a later refresh applies again")
	s, _ = cat.Story("s_1")
	assert.True(t, s.IsHidden)
}
