package core

import (
	"sort"
	"strings"
	"time"

	"storyhub/pkg/models"
)

// GenreAll disables the genre filter
const GenreAll = "All"

// Time labels
const (
	LabelJustNow  = "just now"
	LabelRecently = "recently"
)

// Query selects which stories a page lists
type Query struct {
	Search   string
	Genre    string
	ShowNSFW bool
}

// Projector derives page views from catalog snapshots. It never mutates its input.
type Projector struct {
	taxonomy *models.Taxonomy
	now      func() time.Time
}

// NewProjector creates a projector. A nil now uses time.Now.
func NewProjector(taxonomy *models.Taxonomy, now func() time.Time) *Projector {
	if taxonomy == nil {
		taxonomy = models.NewTaxonomy(nil)
	}
	if now == nil {
		now = time.Now
	}
	return &Projector{taxonomy: taxonomy, now: now}
}

// Visible is the shared visibility rule of every listing page
func (p *Projector) Visible(s models.Story, showNSFW bool) bool {
	if s.IsHidden {
		return false
	}
	return showNSFW || !p.taxonomy.IsSensitive(s)
}

// MatchesSearch is a case-insensitive substring match on the title or any genre
func MatchesSearch(s models.Story, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.Title), term) {
		return true
	}
	for _, g := range s.Genres {
		if strings.Contains(strings.ToLower(g), term) {
			return true
		}
	}
	return false
}

// MatchesGenre accepts a genre equal to or containing the selected one, ignoring case
func MatchesGenre(s models.Story, genre string) bool {
	genre = strings.ToLower(strings.TrimSpace(genre))
	if genre == "" || genre == strings.ToLower(GenreAll) {
		return true
	}
	for _, g := range s.Genres {
		g = strings.ToLower(g)
		if g == genre || strings.Contains(g, genre) {
			return true
		}
	}
	return false
}

// Filter applies visibility, search and genre in stored order
func (p *Projector) Filter(stories []models.Story, q Query) []models.Story {
	out := make([]models.Story, 0, len(stories))
	for _, s := range stories {
		if p.Visible(s, q.ShowNSFW) && MatchesSearch(s, q.Search) && MatchesGenre(s, q.Genre) {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Rank orders a copy of stories by views, highest first. Ties keep their stored order.
func Rank(stories []models.Story) []models.Story {
	out := models.CloneStories(stories)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Stats.Views > out[j].Stats.Views
	})
	return out
}

// TimeLabel renders how long ago a story was updated. Minutes are floored, so
// exactly five minutes is already "recently" and exactly an hour is a date.
func TimeLabel(now, lastUpdated time.Time) string {
	if lastUpdated.IsZero() {
		return LabelRecently
	}
	minutes := int(now.Sub(lastUpdated) / time.Minute)
	switch {
	case minutes < 5:
		return LabelJustNow
	case minutes < 60:
		return LabelRecently
	default:
		return lastUpdated.Format("2/1/2006")
	}
}

// Cards decorates stories with their time label and sensitivity flag
func (p *Projector) Cards(stories []models.Story) []models.StoryCard {
	now := p.now()
	cards := make([]models.StoryCard, len(stories))
	for i, s := range stories {
		cards[i] = models.StoryCard{
			Story:        s,
			UpdatedLabel: TimeLabel(now, s.LastUpdatedAt()),
			Sensitive:    p.taxonomy.IsSensitive(s),
		}
	}
	return cards
}

// Home lists visible stories in stored order, newest publication first
func (p *Projector) Home(snap Snapshot, q Query) models.HomePage {
	page := models.HomePage{
		Stories: p.Cards(p.Filter(snap.Stories, q)),
		Genres:  append([]string(nil), snap.Genres...),
	}
	if snap.Announcement != nil && snap.Announcement.IsShow {
		a := *snap.Announcement
		page.Announcement = &a
	}
	return page
}

// Genre lists visible stories of one genre
func (p *Projector) Genre(snap Snapshot, genre string, showNSFW bool) []models.StoryCard {
	return p.Cards(p.Filter(snap.Stories, Query{Genre: genre, ShowNSFW: showNSFW}))
}

// Rankings lists visible stories by views
func (p *Projector) Rankings(snap Snapshot, showNSFW bool) []models.StoryCard {
	return p.Cards(Rank(p.Filter(snap.Stories, Query{ShowNSFW: showNSFW})))
}

// ByUploader lists the stories a user manages, hidden ones included
func ByUploader(stories []models.Story, u *models.User) []models.Story {
	out := make([]models.Story, 0)
	for _, s := range stories {
		if s.OwnedBy(u) {
			out = append(out, s.Clone())
		}
	}
	return out
}
