package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storyhub/internal/repository"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
)

// handleAction dispatches the legacy form protocol. The action comes from the
// form body or, for reads, the query string. Every reply is a models.GatewayResponse
// except get_users, which returns a bare array.
func (s *Server) handleAction(c *gin.Context) {
	action := c.PostForm("action")
	if action == "" {
		action = c.Query("action")
	}

	switch action {
	case "login":
		s.actionLogin(c)
	case "signup":
		s.actionSignup(c)
	case "update_profile":
		s.actionUpdateProfile(c)
	case "get_user_profile":
		s.actionGetUserProfile(c)
	case "get_users":
		s.actionGetUsers(c)
	case "admin_action":
		s.actionAdmin(c)
	case "upload_image":
		s.actionUploadImage(c)
	case "save_data":
		s.actionSaveData(c)
	case "increment_view":
		s.actionIncrementView(c)
	case "get_comments":
		s.actionGetComments(c)
	case "add_comment":
		s.actionAddComment(c)
	default:
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "Invalid Action"})
	}
}

// fail writes a gateway failure reply with the status statusFor picks
func fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithFields(map[string]interface{}{"action": c.PostForm("action")}).WithError(err).Error("gateway action failed")
	}
	c.JSON(status, models.GatewayResponse{Message: msg})
}

// throttled answers 429 and returns true when the caller exceeded the rate limit
func (s *Server) throttled(c *gin.Context) bool {
	if s.limiter.allow(c.ClientIP()) {
		return false
	}
	c.JSON(http.StatusTooManyRequests, models.GatewayResponse{Message: "too many requests"})
	return true
}

// formUser resolves the bearer token if one was sent. No token yields nil, nil.
func (s *Server) formUser(c *gin.Context) (*models.User, error) {
	token, found := bearerToken(c)
	if !found {
		return nil, nil
	}
	return s.svc.Auth.ValidateToken(c.Request.Context(), token)
}

// requireUser authenticates the request and checks allowed; it writes the failure reply itself
func (s *Server) requireUser(c *gin.Context, allowed func(*models.User) bool) (*models.User, bool) {
	user, err := s.formUser(c)
	if err != nil {
		fail(c, models.ErrUnauthorized)
		return nil, false
	}
	if user == nil {
		fail(c, models.ErrUnauthorized)
		return nil, false
	}
	if allowed != nil && !allowed(user) {
		fail(c, models.ErrForbidden)
		return nil, false
	}
	return user, true
}

func isAdmin(u *models.User) bool { return u.HasRole(models.UserRoleAdmin) }

func canUpload(u *models.User) bool { return u.CanUpload() }

func (s *Server) actionLogin(c *gin.Context) {
	if s.throttled(c) {
		return
	}
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil || req.LoginID == "" {
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "loginId and password are required"})
		return
	}
	resp, err := s.svc.Auth.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, Message: "Login successful", User: resp.User, Token: resp.Token})
}

func (s *Server) actionSignup(c *gin.Context) {
	if s.throttled(c) {
		return
	}
	var req models.SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "invalid signup form"})
		return
	}
	resp, err := s.svc.Auth.Signup(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, Message: "Signup successful", User: resp.User, Token: resp.Token})
}

func (s *Server) actionUpdateProfile(c *gin.Context) {
	user, found := s.requireUser(c, nil)
	if !found {
		return
	}
	// id is optional; when sent it must be the caller's own
	if id := c.PostForm("id"); id != "" && id != user.ID {
		fail(c, models.ErrForbidden)
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "invalid profile form"})
		return
	}
	updated, err := s.svc.Auth.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, Message: "Profile updated", User: updated})
}

func (s *Server) actionGetUserProfile(c *gin.Context) {
	idOrName := c.PostForm("userId")
	if idOrName == "" {
		idOrName = c.Query("userId")
	}
	if idOrName == "" {
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "userId is required"})
		return
	}
	user, err := s.svc.Auth.GetProfile(c.Request.Context(), idOrName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, User: user})
}

func (s *Server) actionGetUsers(c *gin.Context) {
	if _, found := s.requireUser(c, isAdmin); !found {
		return
	}
	users, err := s.svc.Auth.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) actionAdmin(c *gin.Context) {
	admin, found := s.requireUser(c, isAdmin)
	if !found {
		return
	}
	action := models.AdminActionType(c.PostForm("type"))
	target, err := s.svc.Auth.AdminAction(c.Request.Context(), admin, action, c.PostForm("targetId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, Message: "Action executed", User: target})
}

func (s *Server) actionUploadImage(c *gin.Context) {
	if _, found := s.requireUser(c, canUpload); !found {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "No file selected"})
		return
	}
	key := c.PostForm("path")
	if key == "" {
		key = repository.UploadRoot + "/" + header.Filename
	}

	file, err := header.Open()
	if err != nil {
		fail(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	url, err := s.svc.Gateway.UploadImage(c.Request.Context(), key, file)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, Message: "Upload successful", URL: url})
}

func (s *Server) actionSaveData(c *gin.Context) {
	docType := c.PostForm("type")
	content := c.PostForm("content")
	if docType == "" || content == "" {
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "Missing data"})
		return
	}
	name, known := models.ParseDocumentName(docType)
	if !known {
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "Invalid type"})
		return
	}

	// Translators may rewrite the stories list; everything else is admin only
	allowed := isAdmin
	if name == models.DocStories {
		allowed = canUpload
	}
	if _, found := s.requireUser(c, allowed); !found {
		return
	}

	revision, err := s.svc.Coord.ReplaceDocument(c.Request.Context(), name, []byte(content), c.PostForm("revision"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, Message: "Saved " + name.FileName(), Revision: revision})
}

func (s *Server) actionIncrementView(c *gin.Context) {
	if s.throttled(c) {
		return
	}
	id := c.PostForm("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "id is required"})
		return
	}
	if err := s.svc.Coord.IncrementView(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, Message: "View counted"})
}

func (s *Server) actionGetComments(c *gin.Context) {
	storyID := c.Query("storyId")
	if storyID == "" {
		storyID = c.PostForm("storyId")
	}

	var (
		comments []models.Comment
		err      error
	)
	if storyID != "" {
		comments, err = s.svc.Comments.List(c.Request.Context(), storyID)
	} else {
		comments, err = s.svc.Gateway.ListComments(c.Request.Context())
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, Data: comments})
}

// commentForm is the JSON carried in the comment field. Identity fields sent by
// the client are ignored; the author comes from the token.
type commentForm struct {
	StoryID string `json:"storyId"`
	Content string `json:"content"`
}

func (s *Server) actionAddComment(c *gin.Context) {
	if s.throttled(c) {
		return
	}
	var form commentForm
	if err := json.Unmarshal([]byte(c.PostForm("comment")), &form); err != nil || strings.TrimSpace(form.StoryID) == "" {
		c.JSON(http.StatusBadRequest, models.GatewayResponse{Message: "comment must be a JSON object with storyId and content"})
		return
	}

	author, err := s.formUser(c)
	if err != nil {
		fail(c, models.ErrUnauthorized)
		return
	}
	comment, err := s.svc.Comments.Add(c.Request.Context(), form.StoryID, author, models.CreateCommentRequest{Content: form.Content})
	if err != nil {
		if errors.Is(err, models.ErrStoryNotFound) {
			c.JSON(http.StatusNotFound, models.GatewayResponse{Message: "Story not found"})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GatewayResponse{Success: true, Message: "Comment added", Data: comment})
}
