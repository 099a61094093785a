package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storyhub/internal/core"
	"storyhub/pkg/models"
)

// showNSFW reads the viewer's preference from ?nsfw=true|1
func showNSFW(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.Query("nsfw"))
	return err == nil && v
}

// getHome returns the landing page projection. Supports ?q=, ?genre= and ?nsfw=.
func (s *Server) getHome(c *gin.Context) {
	q := core.Query{
		Search:   c.Query("q"),
		Genre:    c.Query("genre"),
		ShowNSFW: showNSFW(c),
	}
	ok(c, http.StatusOK, "", s.svc.Projector.Home(s.svc.Catalog.Snapshot(), q))
}

func (s *Server) listGenres(c *gin.Context) {
	ok(c, http.StatusOK, "", s.svc.Catalog.Genres())
}

// getGenre lists the visible stories of one genre
func (s *Server) getGenre(c *gin.Context) {
	page, limit := pageParams(c)
	cards := s.svc.Projector.Genre(s.svc.Catalog.Snapshot(), c.Param("genre"), showNSFW(c))
	ok(c, http.StatusOK, "", models.Paginate(cards, limit, (page-1)*limit))
}

// getRankings lists visible stories by views, most viewed first
func (s *Server) getRankings(c *gin.Context) {
	page, limit := pageParams(c)
	cards := s.svc.Projector.Rankings(s.svc.Catalog.Snapshot(), showNSFW(c))
	ok(c, http.StatusOK, "", models.Paginate(cards, limit, (page-1)*limit))
}

func (s *Server) getGuide(c *gin.Context) {
	ok(c, http.StatusOK, "", s.svc.Catalog.Snapshot().Guide)
}

func (s *Server) getUploadSettings(c *gin.Context) {
	ok(c, http.StatusOK, "", s.svc.Catalog.UploadSettings())
}

// getStory returns one story. Hidden stories are only shown to admins and their uploader.
func (s *Server) getStory(c *gin.Context) {
	story, found := s.svc.Catalog.Story(c.Param("id"))
	if found && story.IsHidden {
		user, authed := GetUser(c)
		found = authed && (user.HasRole(models.UserRoleAdmin) || story.OwnedBy(user))
	}
	if !found {
		respondError(c, models.ErrStoryNotFound)
		return
	}
	ok(c, http.StatusOK, "", s.svc.Projector.Cards([]models.Story{story})[0])
}

// incrementView counts one read of a story
func (s *Server) incrementView(c *gin.Context) {
	if err := s.svc.Coord.IncrementView(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "View counted", nil)
}
