package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"storyhub/internal/core"
	"storyhub/pkg/models"
)

// signup handles user registration
func (s *Server) signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, models.APIResponse{
			Success:   false,
			Error:     "invalid request body",
			Timestamp: time.Now(),
		})
		return
	}

	resp, err := s.svc.Auth.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, models.APIResponse{
		Success:   true,
		Message:   "User registered successfully",
		Data:      resp,
		Timestamp: time.Now(),
	})
}

// login handles user authentication
func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.LoginID == "" {
		c.JSON(400, models.APIResponse{
			Success:   false,
			Error:     "loginId and password are required",
			Timestamp: time.Now(),
		})
		return
	}

	resp, err := s.svc.Auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, models.APIResponse{
		Success:   true,
		Message:   "Login successful",
		Data:      resp,
		Timestamp: time.Now(),
	})
}

// getMe returns the authenticated user
func (s *Server) getMe(c *gin.Context) {
	user, _ := GetUser(c)
	ok(c, 200, "", user)
}

// updateMe edits the caller's own profile
func (s *Server) updateMe(c *gin.Context) {
	userID, _ := GetUserID(c)

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := s.svc.Auth.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, 200, "Profile updated", user)
}

// listMyStories lists the stories the caller manages, hidden ones included
func (s *Server) listMyStories(c *gin.Context) {
	user, _ := GetUser(c)
	stories := core.ByUploader(s.svc.Catalog.Stories(), user)
	ok(c, 200, "", s.svc.Projector.Cards(stories))
}

// deleteMyStory lets an uploader remove a story they own
func (s *Server) deleteMyStory(c *gin.Context) {
	user, _ := GetUser(c)
	story, found := s.svc.Catalog.Story(c.Param("id"))
	if !found {
		respondError(c, models.ErrStoryNotFound)
		return
	}
	if !story.OwnedBy(user) {
		respondError(c, models.ErrForbidden)
		return
	}
	if err := s.svc.Coord.DeleteStory(c.Request.Context(), story.ID); err != nil {
		respondError(c, err)
		return
	}
	ok(c, 200, "Story deleted", nil)
}

// getUserProfile resolves :id as a user id, then as a display name
func (s *Server) getUserProfile(c *gin.Context) {
	user, err := s.svc.Auth.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, 200, "", user)
}
