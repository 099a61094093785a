package models

import "time"

// APIResponse is the envelope of every /api/v1 reply
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// GatewayResponse is the reply shape of the legacy form endpoint (/api.php).
// Clients read success and message and, depending on the action, one of the other keys.
type GatewayResponse struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	URL      string      `json:"url,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	User     *User       `json:"user,omitempty"`
	Token    string      `json:"token,omitempty"`
	Revision string      `json:"revision,omitempty"`
}

// StoryCard is a story as listed on the home, genre and ranking pages
type StoryCard struct {
	Story
	UpdatedLabel string `json:"updatedLabel"`
	Sensitive    bool   `json:"sensitive"`
}

// HomePage is the projection served to the landing page
type HomePage struct {
	Announcement *Announcement `json:"announcement,omitempty"`
	Stories      []StoryCard   `json:"stories"`
	Genres       []string      `json:"genres"`
}

// PaginationMeta
type PaginationMeta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// PaginatedResponse wraps one page of a list
type PaginatedResponse[T any] struct {
	Data []T           `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// NewPaginationMeta builds pagination metadata consistently
func NewPaginationMeta(total, limit, offset int) PaginationMeta {
	return PaginationMeta{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// Paginate slices items according to limit and offset
func Paginate[T any](items []T, limit, offset int) PaginatedResponse[T] {
	total := len(items)
	if offset < 0 || offset > total {
		offset = total
	}
	if limit <= 0 {
		limit = 20
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return PaginatedResponse[T]{
		Data: items[offset:end],
		Meta: NewPaginationMeta(total, limit, offset),
	}
}
