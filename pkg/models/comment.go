package models

// Comment is one entry of the global comments document
type Comment struct {
	ID         string `json:"id"`
	StoryID    string `json:"storyId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt"`
}

// CreateCommentRequest
type CreateCommentRequest struct {
	Content string `json:"content" form:"content" validate:"required,min=1,max=5000"`
}

const (
	MaxCommentLength = 5000

	// MaxStoredComments bounds the comments document; the oldest entries are dropped
	MaxStoredComments = 1000

	GuestUserID   = "guest"
	GuestUserName = "Guest"
)
