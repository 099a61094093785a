package models

import (
	"encoding/json"
	"strings"
	"time"
)

// StoryStatus represents valid story status values
type StoryStatus string

const (
	StoryStatusOngoing   StoryStatus = "ongoing"
	StoryStatusCompleted StoryStatus = "completed"
	StoryStatusPaused    StoryStatus = "paused"
)

// Labels written by the first generation of the site. Still found in old stories.json files.
var legacyStatusLabels = map[string]StoryStatus{
	"Đang tiến hành": StoryStatusOngoing,
	"Đã hoàn thành":  StoryStatusCompleted,
	"Tạm ngưng":      StoryStatusPaused,
}

// UnmarshalJSON accepts both the canonical values and the legacy labels.
// Unknown values are kept verbatim so a rewrite never loses them.
func (s *StoryStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStoryStatus(raw)
	return nil
}

// ParseStoryStatus maps a stored or user supplied label to a StoryStatus
func ParseStoryStatus(raw string) StoryStatus {
	raw = strings.TrimSpace(raw)
	if st, ok := legacyStatusLabels[raw]; ok {
		return st
	}
	switch StoryStatus(strings.ToLower(raw)) {
	case StoryStatusOngoing:
		return StoryStatusOngoing
	case StoryStatusCompleted:
		return StoryStatusCompleted
	case StoryStatusPaused:
		return StoryStatusPaused
	}
	return StoryStatus(raw)
}

// Valid reports whether s is one of the canonical statuses
func (s StoryStatus) Valid() bool {
	return s == StoryStatusOngoing || s == StoryStatusCompleted || s == StoryStatusPaused
}

// StoryStats holds reader counters. Views only ever change through increment-view.
type StoryStats struct {
	Views    int     `json:"views"`
	Rating   float64 `json:"rating"`
	Likes    int     `json:"likes"`
	Comments int     `json:"comments"`
}

// Chapter is an ordered image set. Images are immutable once published.
type Chapter struct {
	ID          string   `json:"id"`
	StoryID     string   `json:"storyId"`
	Order       int      `json:"order"`
	Title       string   `json:"title"`
	Images      []string `json:"images"`
	PublishedAt string   `json:"publishedAt"`
}

// Story is one entry of the stories document
type Story struct {
	ID                    string      `json:"id"`
	Title                 string      `json:"title"`
	OriginalAuthor        string      `json:"originalAuthor"`
	Translator            string      `json:"translator"`
	Uploader              string      `json:"uploader"`
	UploaderID            string      `json:"uploaderId,omitempty"`
	UploaderBadge         string      `json:"uploaderBadge,omitempty"`
	CoverURL              string      `json:"coverUrl"`
	Description           string      `json:"description"`
	Genres                []string    `json:"genres"`
	Status                StoryStatus `json:"status"`
	Chapters              []Chapter   `json:"chapters"`
	PublishedTimeRelative string      `json:"publishedTimeRelative,omitempty"`
	LastUpdated           string      `json:"lastUpdated"`
	IsHidden              bool        `json:"isHidden,omitempty"`
	Stats                 StoryStats  `json:"stats"`
}

// LastUpdatedAt parses LastUpdated. The zero time is returned when it is empty or unparseable.
func (s Story) LastUpdatedAt() time.Time {
	return ParseTimestamp(s.LastUpdated)
}

// OwnedBy reports whether u may manage this story.
// Name matching against the translator field is kept for stories uploaded before ids were recorded.
func (s Story) OwnedBy(u *User) bool {
	if u == nil {
		return false
	}
	if u.Role == UserRoleAdmin {
		return true
	}
	if s.UploaderID != "" && s.UploaderID == u.ID {
		return true
	}
	return s.Translator != "" && s.Translator == u.Name
}

// Clone returns a deep copy so cached stories can be handed out safely
func (s Story) Clone() Story {
	out := s
	out.Genres = append([]string(nil), s.Genres...)
	out.Chapters = make([]Chapter, len(s.Chapters))
	for i, ch := range s.Chapters {
		ch.Images = append([]string(nil), ch.Images...)
		out.Chapters[i] = ch
	}
	return out
}

// CloneStories deep copies a story list
func CloneStories(in []Story) []Story {
	if in == nil {
		return nil
	}
	out := make([]Story, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// ParseTimestamp accepts the ISO forms produced by browsers and by this server
func ParseTimestamp(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatTimestamp renders t the way stored documents expect (UTC, millisecond ISO)
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
