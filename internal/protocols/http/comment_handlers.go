package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storyhub/pkg/models"
)

// createComment posts a comment on a story. Anonymous callers post as Guest.
func (s *Server) createComment(c *gin.Context) {
	storyID := c.Param("id")

	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, models.APIResponse{
			Success:   false,
			Error:     "invalid request body",
			Timestamp: time.Now(),
		})
		return
	}

	author, _ := GetUser(c)
	comment, err := s.svc.Comments.Add(c.Request.Context(), storyID, author, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, models.APIResponse{
		Success:   true,
		Message:   "Comment created successfully",
		Data:      comment,
		Timestamp: time.Now(),
	})
}

// listComments returns one page of a story's comments, newest first
func (s *Server) listComments(c *gin.Context) {
	storyID := c.Param("id")
	page, limit := pageParams(c)

	comments, err := s.svc.Comments.List(c.Request.Context(), storyID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, models.APIResponse{
		Success:   true,
		Data:      models.Paginate(comments, limit, (page-1)*limit),
		Timestamp: time.Now(),
	})
}

// pageParams parses ?page= and ?limit= (1..100, default 20)
func pageParams(c *gin.Context) (page, limit int) {
	page = 1
	limit = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	return page, limit
}
