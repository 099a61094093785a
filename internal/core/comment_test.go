package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyhub/internal/events/eventstest"
	"storyhub/pkg/models"
)

func TestComments(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	seed(t, gw, models.DocStories, seedStories)
	cat := NewCatalog(gw)
	require.NoError(t, cat.Load(ctx))
	rec := &eventstest.Recorder{}
	svc := NewCommentService(gw, cat, rec)

	guest, err := svc.Add(ctx, "s_1", nil, models.CreateCommentRequest{Content: "  hay quá  "})
	require.NoError(t, err)
	assert.Equal(t, models.GuestUserID, guest.UserID)
	assert.Equal(t, models.GuestUserName, guest.UserName)
	assert.Equal(t, "hay quá", guest.Content)

	kuma := &models.User{ID: "u_1", Name: "Kuma", Avatar: "a.png"}
	_, err = svc.Add(ctx, "s_1", kuma, models.CreateCommentRequest{Content: "second"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, "s_2", kuma, models.CreateCommentRequest{Content: "other story"})
	require.NoError(t, err)

	list, err := svc.List(ctx, "s_1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Content, "newest first")
	assert.Equal(t, "Kuma", list[0].UserName)
	assert.Equal(t, "a.png", list[0].UserAvatar)

	empty, err := svc.List(ctx, "s_3")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	assert.Len(t, rec.Events(), 3)
}

func TestCommentValidation(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	seed(t, gw, models.DocStories, seedStories)
	cat := NewCatalog(gw)
	require.NoError(t, cat.Load(ctx))
	svc := NewCommentService(gw, cat, nil)

	_, err := svc.Add(ctx, "s_1", nil, models.CreateCommentRequest{Content: "   "})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Add(ctx, "s_1", nil, models.CreateCommentRequest{Content: strings.Repeat("a", models.MaxCommentLength+1)})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Add(ctx, "s_404", nil, models.CreateCommentRequest{Content: "hello"})
	assert.ErrorIs(t, err, models.ErrStoryNotFound)
}

func TestCommentSurvivesEventFailure(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	seed(t, gw, models.DocStories, seedStories)
	cat := NewCatalog(gw)
	require.NoError(t, cat.Load(ctx))
	rec := &eventstest.Recorder{Err: errors.New("broker down")}
	svc := NewCommentService(gw, cat, rec)

	c, err := svc.Add(ctx, "s_1", nil, models.CreateCommentRequest{Content: "still saved"})
	require.NoError(t, err)
	assert.Equal(t, "still saved", c.Content)

	list, err := svc.List(ctx, "s_1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, rec.Events(), 1)
}
