package models

import "strings"

// Tag is an entry of the controlled genre vocabulary
type Tag struct {
	Name      string `json:"name" mapstructure:"name" yaml:"name"`
	Sensitive bool   `json:"sensitive" mapstructure:"sensitive" yaml:"sensitive"`
}

// DefaultSensitiveTags are hidden behind the NSFW gate unless configured otherwise
var DefaultSensitiveTags = []string{"NSFW", "18+"}

// Taxonomy decides which genre labels mark a story as sensitive.
// Labels are compared after trimming and case folding, so "nsfw " and "NSFW" are the same tag.
type Taxonomy struct {
	tags map[string]Tag
}

// NewTaxonomy builds a taxonomy from the configured sensitive tag names
func NewTaxonomy(sensitive []string) *Taxonomy {
	if len(sensitive) == 0 {
		sensitive = DefaultSensitiveTags
	}
	t := &Taxonomy{tags: make(map[string]Tag, len(sensitive))}
	for _, name := range sensitive {
		key := CanonicalGenre(name)
		if key == "" {
			continue
		}
		t.tags[key] = Tag{Name: strings.TrimSpace(name), Sensitive: true}
	}
	return t
}

// CanonicalGenre normalises a genre label for comparisons
func CanonicalGenre(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsSensitiveGenre reports whether a single label is a sensitive tag
func (t *Taxonomy) IsSensitiveGenre(name string) bool {
	tag, ok := t.tags[CanonicalGenre(name)]
	return ok && tag.Sensitive
}

// IsSensitive reports whether any of the story's genres is sensitive
func (t *Taxonomy) IsSensitive(s Story) bool {
	for _, g := range s.Genres {
		if t.IsSensitiveGenre(g) {
			return true
		}
	}
	return false
}

// SensitiveTags returns the configured sensitive tags
func (t *Taxonomy) SensitiveTags() []Tag {
	out := make([]Tag, 0, len(t.tags))
	for _, tag := range t.tags {
		out = append(out, tag)
	}
	return out
}
