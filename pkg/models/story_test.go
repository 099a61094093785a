package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryStatusAcceptsLegacyLabels(t *testing.T) {
	raw := `[
		{"id":"s_1","status":"Đang tiến hành"},
		{"id":"s_2","status":"Đã hoàn thành"},
		{"id":"s_3","status":"Tạm ngưng"},
		{"id":"s_4","status":"completed"},
		{"id":"s_5","status":"dropped"}
	]`

	var stories []Story
	require.NoError(t, json.Unmarshal([]byte(raw), &stories))
	require.Len(t, stories, 5)

	assert.Equal(t, StoryStatusOngoing, stories[0].Status)
	assert.Equal(t, StoryStatusCompleted, stories[1].Status)
	assert.Equal(t, StoryStatusPaused, stories[2].Status)
	assert.Equal(t, StoryStatusCompleted, stories[3].Status)
	assert.Equal(t, StoryStatus("dropped"), stories[4].Status)
	assert.False(t, stories[4].Status.Valid())
}

func TestStoryMissingStatsDecodeToZero(t *testing.T) {
	var s Story
	require.NoError(t, json.Unmarshal([]byte(`{"id":"s_1","title":"A"}`), &s))
	assert.Equal(t, StoryStats{}, s.Stats)
}

func TestStoryOwnedBy(t *testing.T) {
	story := Story{ID: "s_1", UploaderID: "u_1", Translator: "Team Kuma"}

	assert.True(t, story.OwnedBy(&User{ID: "u_1", Role: UserRoleTranslator}))
	assert.True(t, story.OwnedBy(&User{ID: "u_9", Name: "Team Kuma", Role: UserRoleTranslator}))
	assert.True(t, story.OwnedBy(&User{ID: "u_2", Role: UserRoleAdmin}))
	assert.False(t, story.OwnedBy(&User{ID: "u_3", Name: "Someone", Role: UserRoleTranslator}))
	assert.False(t, story.OwnedBy(nil))
}

func TestStoryCloneIsDeep(t *testing.T) {
	orig := Story{
		ID:       "s_1",
		Genres:   []string{"Cute"},
		Chapters: []Chapter{{ID: "c_1", Images: []string{"a.png"}}},
	}
	cp := orig.Clone()
	cp.Genres[0] = "NSFW"
	cp.Chapters[0].Images[0] = "b.png"

	assert.Equal(t, "Cute", orig.Genres[0])
	assert.Equal(t, "a.png", orig.Chapters[0].Images[0])
}

func TestParseTimestamp(t *testing.T) {
	ts := ParseTimestamp("2024-03-01T10:20:30.000Z")
	assert.Equal(t, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), ts)

	assert.True(t, ParseTimestamp("").IsZero())
	assert.True(t, ParseTimestamp("yesterday").IsZero())

	assert.Equal(t, "2024-03-01T10:20:30.000Z", FormatTimestamp(ts))
}

func TestTaxonomy(t *testing.T) {
	tax := NewTaxonomy(nil)

	assert.True(t, tax.IsSensitiveGenre("NSFW"))
	assert.True(t, tax.IsSensitiveGenre(" nsfw "))
	assert.True(t, tax.IsSensitiveGenre("18+"))
	assert.False(t, tax.IsSensitiveGenre("SFW"))

	assert.True(t, tax.IsSensitive(Story{Genres: []string{"Cute", "Nsfw"}}))
	assert.False(t, tax.IsSensitive(Story{Genres: []string{"Cute"}}))

	custom := NewTaxonomy([]string{"Gore"})
	assert.True(t, custom.IsSensitiveGenre("gore"))
	assert.False(t, custom.IsSensitiveGenre("NSFW"))
}

func TestUserRoleLadder(t *testing.T) {
	reader := &User{Role: UserRoleUser}
	translator := &User{Role: UserRoleTranslator}
	admin := &User{Role: UserRoleAdmin}

	assert.False(t, reader.CanUpload())
	assert.True(t, translator.CanUpload())
	assert.True(t, admin.CanUpload())

	assert.False(t, translator.HasRole(UserRoleAdmin))
	assert.True(t, admin.HasRole(UserRoleTranslator))
	assert.True(t, reader.HasRole(UserRoleUser))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, 2, 2)
	assert.Equal(t, []int{3, 4}, page.Data)
	assert.True(t, page.Meta.HasMore)

	last := Paginate(items, 10, 4)
	assert.Equal(t, []int{5}, last.Data)
	assert.False(t, last.Meta.HasMore)

	past := Paginate(items, 2, 99)
	assert.Empty(t, past.Data)
}
