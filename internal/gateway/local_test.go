package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyhub/internal/repository"
	"storyhub/pkg/models"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	docs, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewLocal(docs, repository.NewLocalBlobStore(t.TempDir(), ""))
}

func readStories(t *testing.T, g *Local) []models.Story {
	t.Helper()
	doc, err := g.Read(context.Background(), models.DocStories)
	require.NoError(t, err)
	stories, err := DecodeStrict[[]models.Story](models.DocStories, doc.Content)
	require.NoError(t, err)
	return stories
}

func TestIncrementViewIsMonotonic(t *testing.T) {
	ctx := context.Background()
	g := newLocal(t)

	_, err := g.Replace(ctx, models.DocStories, []byte(`[
		{"id":"s_1","title":"A","stats":{"views":41,"rating":4.5,"likes":3,"comments":0}},
		{"id":"s_2","title":"B"}
	]`), "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.IncrementView(ctx, "s_1"))
	}
	require.NoError(t, g.IncrementView(ctx, "s_2"))

	stories := readStories(t, g)
	assert.Equal(t, 44, stories[0].Stats.Views)
	assert.Equal(t, 4.5, stories[0].Stats.Rating)
	assert.Equal(t, 1, stories[1].Stats.Views, "missing stats start from defaults")
}

func TestIncrementViewPreservesUnknownFields(t *testing.T) {
	ctx := context.Background()
	g := newLocal(t)

	_, err := g.Replace(ctx, models.DocStories, []byte(`[{"id":"s_1","seriesNote":"keep me","stats":{"views":1,"bookmarks":7}}]`), "")
	require.NoError(t, err)
	require.NoError(t, g.IncrementView(ctx, "s_1"))

	doc, err := g.Read(ctx, models.DocStories)
	require.NoError(t, err)

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(doc.Content, &raw))
	assert.Equal(t, "keep me", raw[0]["seriesNote"])
	stats := raw[0]["stats"].(map[string]interface{})
	assert.EqualValues(t, 2, stats["views"])
	assert.EqualValues(t, 7, stats["bookmarks"])
}

func TestIncrementViewUnknownStory(t *testing.T) {
	ctx := context.Background()
	g := newLocal(t)

	err := g.IncrementView(ctx, "s_1")
	assert.True(t, errors.Is(err, models.ErrStoryNotFound), "no stories document yet")

	_, err = g.Replace(ctx, models.DocStories, []byte(`[]`), "")
	require.NoError(t, err)
	assert.True(t, errors.Is(g.IncrementView(ctx, "s_404"), models.ErrStoryNotFound))
}

func TestAddCommentNewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	g := newLocal(t)

	total := models.MaxStoredComments + 5
	for i := 0; i < total; i++ {
		require.NoError(t, g.AddComment(ctx, models.Comment{
			ID:      fmt.Sprintf("cmt_%04d", i),
			StoryID: "s_1",
			Content: "hi",
		}))
	}

	comments, err := g.ListComments(ctx)
	require.NoError(t, err)
	require.Len(t, comments, models.MaxStoredComments)
	assert.Equal(t, fmt.Sprintf("cmt_%04d", total-1), comments[0].ID)
	assert.Equal(t, "cmt_0005", comments[len(comments)-1].ID, "oldest entries are dropped")
}

func TestListCommentsEmpty(t *testing.T) {
	comments, err := newLocal(t).ListComments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)
}

func TestReplaceValidation(t *testing.T) {
	ctx := context.Background()
	g := newLocal(t)

	_, err := g.Replace(ctx, models.DocComments, []byte(`[]`), "")
	assert.True(t, errors.Is(err, models.ErrUnsupportedDocument))

	_, err = g.Replace(ctx, models.DocGenres, []byte(`["A",`), "")
	assert.True(t, errors.Is(err, models.ErrMalformedDocument))
}

func TestReplaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := newLocal(t)

	content := []byte(`{"message":"Bảo trì tối nay","isShow":true,"updatedAt":"2024-06-01T00:00:00.000Z"}`)
	rev, err := g.Replace(ctx, models.DocAnnouncement, content, "")
	require.NoError(t, err)

	doc, err := g.Read(ctx, models.DocAnnouncement)
	require.NoError(t, err)
	assert.Equal(t, content, doc.Content)
	assert.Equal(t, rev, doc.Revision)
}

func TestDecodeHelpers(t *testing.T) {
	_, err := DecodeStrict[[]models.Story](models.DocStories, []byte(`{"not":"a list"}`))
	assert.True(t, errors.Is(err, models.ErrMalformedDocument))

	empty, err := DecodeStrict[[]string](models.DocGenres, []byte("  "))
	require.NoError(t, err)
	assert.Nil(t, empty)

	settings := models.DefaultUploadSettings()
	require.NoError(t, DecodeInto(models.DocUploadSettings, []byte(`{"allowDrive":false}`), &settings))
	assert.False(t, settings.AllowDrive)
	assert.True(t, settings.AllowServer, "fields absent from the document keep their default")
	assert.True(t, settings.AllowDriveFolder)
}
