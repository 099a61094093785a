package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storyhub/pkg/models"
)

// getDocument serves the raw stored bytes of one document with its revision as ETag
func (s *Server) getDocument(name models.DocumentName) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := s.svc.Gateway.Read(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, models.ErrDocumentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": name.FileName() + " not found"})
				return
			}
			respondError(c, err)
			return
		}

		etag := `"` + doc.Revision + `"`
		c.Header("ETag", etag)
		c.Header("Cache-Control", "no-cache")
		if match := c.GetHeader("If-None-Match"); match != "" && etagMatches(match, etag) {
			c.Status(http.StatusNotModified)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", doc.Content)
	}
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
