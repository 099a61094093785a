package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storyhub/internal/core"
	"storyhub/pkg/models"
)

type genresRequest struct {
	Genres []string `json:"genres" binding:"required"`
}

type genreRequest struct {
	Name string `json:"name" binding:"required"`
}

type guideRequest struct {
	Content string `json:"content"`
}

type announcementRequest struct {
	Message string `json:"message"`
	IsShow  bool   `json:"isShow"`
}

func (s *Server) deleteStory(c *gin.Context) {
	if err := s.svc.Coord.DeleteStory(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Story deleted", nil)
}

func (s *Server) toggleStoryVisibility(c *gin.Context) {
	hidden, err := s.svc.Coord.ToggleStoryVisibility(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Visibility updated", gin.H{"isHidden": hidden})
}

// replaceGenres overwrites the whole genre list
func (s *Server) replaceGenres(c *gin.Context) {
	var req genresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "genres is required")
		return
	}
	if err := s.svc.Coord.UpdateGenres(c.Request.Context(), req.Genres); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Genres updated", s.svc.Catalog.Genres())
}

func (s *Server) addGenre(c *gin.Context) {
	var req genreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	if err := s.svc.Coord.AddGenre(c.Request.Context(), req.Name); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "Genre added", s.svc.Catalog.Genres())
}

// removeGenre only edits the genre list; stories keep their tags
func (s *Server) removeGenre(c *gin.Context) {
	if err := s.svc.Coord.RemoveGenre(c.Request.Context(), c.Param("genre")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Genre removed", s.svc.Catalog.Genres())
}

func (s *Server) updateGuide(c *gin.Context) {
	var req guideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := s.svc.Coord.UpdateGuide(c.Request.Context(), req.Content); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Guide updated", s.svc.Catalog.Snapshot().Guide)
}

func (s *Server) updateAnnouncement(c *gin.Context) {
	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := s.svc.Coord.UpdateAnnouncement(c.Request.Context(), req.Message, req.IsShow); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Announcement updated", s.svc.Catalog.Snapshot().Announcement)
}

func (s *Server) updateUploadSettings(c *gin.Context) {
	var req models.UploadSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := s.svc.Coord.UpdateUploadSettings(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Upload settings updated", s.svc.Catalog.UploadSettings())
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.svc.Auth.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "", users)
}

// adminUserAction runs delete_user, toggle_role or toggle_verify on :id
func (s *Server) adminUserAction(c *gin.Context) {
	actor, _ := GetUser(c)
	action := models.AdminActionType(c.Param("action"))
	target, err := s.svc.Auth.AdminAction(c.Request.Context(), actor, action, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Action executed", target)
}

// refreshCatalog reloads every document from storage
func (s *Server) refreshCatalog(c *gin.Context) {
	err := s.svc.Catalog.Refresh(c.Request.Context())
	if errors.Is(err, core.ErrCatalogClosed) {
		respondError(c, err)
		return
	}
	snap := s.svc.Catalog.Snapshot()
	data := gin.H{"stories": len(snap.Stories), "loaded_at": snap.LoadedAt}
	if err != nil {
		// partial loads keep the previous values, so report and still return the counts
		c.JSON(http.StatusMultiStatus, models.APIResponse{
			Success:   false,
			Error:     err.Error(),
			Data:      data,
			Timestamp: time.Now(),
		})
		return
	}
	ok(c, http.StatusOK, "Catalog reloaded", data)
}
