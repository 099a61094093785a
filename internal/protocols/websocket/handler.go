package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"storyhub/internal/core"
)

// Handler upgrades connections and subscribes them to the change feed
type Handler struct {
	hub            *Hub
	authSvc        core.AuthService
	catalog        *core.Catalog
	upgrader       websocket.Upgrader
	allowedOrigins []string
	metrics        struct {
		sync.Mutex
		totalConnections uint64
		active           int
	}
}

// NewHandler creates a new WebSocket handler. An empty allowedOrigins list allows any origin.
func NewHandler(hub *Hub, authSvc core.AuthService, catalog *core.Catalog, allowedOrigins []string) *Handler {
	h := &Handler{
		hub:            hub,
		authSvc:        authSvc,
		catalog:        catalog,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// HandleWebSocket subscribes to the whole catalog, or to one story with ?story=<id>.
// A token is optional; it only labels the connection in logs.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	topic := TopicCatalog
	if storyID := c.Query("story"); storyID != "" {
		if _, ok := h.catalog.Story(storyID); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
			return
		}
		topic = StoryTopic(storyID)
	}

	userID := "anonymous"
	if token := extractToken(c); token != "" && h.authSvc != nil {
		user, err := h.authSvc.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "timestamp": time.Now().UTC().Format(time.RFC3339)})
			return
		}
		userID = user.ID
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// gorilla/websocket has already written the HTTP error
		logrus.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	h.updateMetrics(true)
	h.hub.ServeClient(conn, userID, topic, func() {
		h.updateMetrics(false)
	})
}

// GetGlobalStatus returns connection statistics
func (h *Handler) GetGlobalStatus(c *gin.Context) {
	h.metrics.Lock()
	defer h.metrics.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"total_connections": h.metrics.totalConnections,
		"active":            h.metrics.active,
		"catalog_clients":   h.hub.ClientCount(TopicCatalog),
		"server_time":       time.Now().UTC(),
	})
}

// extractToken reads the token from the query, the Authorization header or a cookie
func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if parts := strings.Fields(c.GetHeader("Authorization")); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	if cookie, err := c.Request.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Non-browser clients may omit Origin
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	if u, err := url.Parse(origin); err == nil {
		host := strings.ToLower(u.Hostname())
		if host == "localhost" || host == "127.0.0.1" {
			return true
		}
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func (h *Handler) updateMetrics(connected bool) {
	h.metrics.Lock()
	defer h.metrics.Unlock()
	if connected {
		h.metrics.totalConnections++
		h.metrics.active++
	} else if h.metrics.active > 0 {
		h.metrics.active--
	}
}
