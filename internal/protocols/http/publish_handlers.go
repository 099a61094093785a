package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storyhub/internal/core"
	"storyhub/pkg/models"
)

// listTransports returns the upload transports the current settings allow
func (s *Server) listTransports(c *gin.Context) {
	ok(c, http.StatusOK, "", s.svc.Publish.Allowed())
}

// publish accepts the multipart upload form:
//
//	mode=new|update, transport=server|drive|link, storyId (update),
//	title, originalAuthor, uploader, description, genres (repeated or comma separated),
//	cover (file) or coverUrl, status, chapterOrder, chapterTitle,
//	pages (repeated files) or pageUrls (repeated or one per line)
func (s *Server) publish(c *gin.Context) {
	user, _ := GetUser(c)
	if s.config.Server.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.Server.MaxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "expected a multipart form")
		return
	}

	req, err := publishRequestFromForm(form)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := s.svc.Publish.Publish(c.Request.Context(), user, req)
	if err != nil {
		var pubErr *core.PublishError
		if errors.As(err, &pubErr) {
			status, msg := statusFor(pubErr.Err)
			if status < http.StatusInternalServerError && status != http.StatusConflict {
				status = http.StatusInternalServerError
			}
			c.JSON(status, models.APIResponse{
				Success: false,
				Error:   msg,
				Message: "images were stored but the catalog was not updated; apply the fallback document manually",
				Data: gin.H{
					"fallback": json.RawMessage(pubErr.Fallback),
				},
				Timestamp: time.Now(),
			})
			return
		}
		respondError(c, err)
		return
	}

	ok(c, http.StatusCreated, "Published", result)
}

func publishRequestFromForm(form *multipart.Form) (core.PublishRequest, error) {
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	req := core.PublishRequest{
		Mode:           core.PublishMode(value("mode")),
		Transport:      core.Transport(value("transport")),
		StoryID:        value("storyId"),
		Title:          value("title"),
		OriginalAuthor: value("originalAuthor"),
		Uploader:       value("uploader"),
		Description:    value("description"),
		Genres:         splitList(form.Value["genres"], ","),
		CoverURL:       value("coverUrl"),
		Status:         models.ParseStoryStatus(value("status")),
		ChapterTitle:   value("chapterTitle"),
		PageURLs:       splitList(form.Value["pageUrls"], "\n"),
	}
	if req.Mode == "" {
		req.Mode = core.PublishModeNew
	}

	if raw := value("chapterOrder"); raw != "" {
		order, err := strconv.Atoi(raw)
		if err != nil || order < 1 {
			return req, fmt.Errorf("chapterOrder must be a positive number")
		}
		req.ChapterOrder = order
	}

	if covers := form.File["cover"]; len(covers) > 0 {
		cover, err := readImageFile(covers[0])
		if err != nil {
			return req, err
		}
		req.Cover = &cover
	}
	for _, fh := range form.File["pages"] {
		page, err := readImageFile(fh)
		if err != nil {
			return req, err
		}
		req.Pages = append(req.Pages, page)
	}
	return req, nil
}

// readImageFile buffers one upload so the publish flow can retry it
func readImageFile(fh *multipart.FileHeader) (core.ImageFile, error) {
	f, err := fh.Open()
	if err != nil {
		return core.ImageFile{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return core.ImageFile{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return core.ImageFile{Name: fh.Filename, Data: data}, nil
}

// splitList flattens repeated form values that may themselves hold sep separated items
func splitList(values []string, sep string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, sep) {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
