// Package http serves the catalog over HTTP: the static document reads, the legacy
// form endpoint (/api.php) and the JSON API under /api/v1.
package http

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"storyhub/internal/core"
	"storyhub/internal/gateway"
	wsProtocol "storyhub/internal/protocols/websocket"
	"storyhub/internal/repository"
	"storyhub/pkg/config"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	Gateway   gateway.Gateway
	Catalog   *core.Catalog
	Coord     core.Coordinator
	Projector *core.Projector
	Auth      core.AuthService
	Comments  core.CommentService
	Publish   core.PublishService
	// Feed is optional; /ws is not registered without it
	Feed *wsProtocol.Handler
}

// Server manages HTTP REST API server
type Server struct {
	router  *gin.Engine
	config  *config.Config
	svc     Services
	limiter *ipLimiter
	httpSrv *http.Server
}

// NewServer creates a new HTTP server with all handlers
func NewServer(cfg *config.Config, svc Services) *Server {
	if cfg.Server.Mode == gin.DebugMode || cfg.Server.Mode == gin.TestMode {
		gin.SetMode(cfg.Server.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	// Global middleware
	router.Use(requestLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		router:  router,
		config:  cfg,
		svc:     svc,
		limiter: newIPLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	// Static documents, e.g. GET /stories.json
	for _, name := range models.Documents {
		s.router.GET("/"+name.FileName(), s.getDocument(name))
	}
	s.router.Static("/"+repository.UploadRoot, filepath.Join(s.config.Storage.UploadDir, repository.UploadRoot))

	// Legacy form endpoint
	for _, path := range []string{"/api.php", "/api"} {
		s.router.GET(path, s.handleAction)
		s.router.POST(path, s.handleAction)
	}

	if s.svc.Feed != nil {
		s.router.GET("/ws", s.svc.Feed.HandleWebSocket)
		s.router.GET("/ws/status", s.svc.Feed.GetGlobalStatus)
	}

	throttle := rateLimit(s.limiter)

	v1 := s.router.Group("/api/v1")
	{
		auth := v1.Group("/auth", throttle)
		{
			auth.POST("/signup", s.signup)
			auth.POST("/login", s.login)
		}

		// Catalog reads (public)
		v1.GET("/home", s.getHome)
		v1.GET("/genres", s.listGenres)
		v1.GET("/genres/:genre", s.getGenre)
		v1.GET("/rankings", s.getRankings)
		v1.GET("/guide", s.getGuide)
		v1.GET("/upload-settings", s.getUploadSettings)
		v1.GET("/stories/:id", OptionalAuthMiddleware(s.svc.Auth), s.getStory)
		v1.POST("/stories/:id/view", throttle, s.incrementView)
		v1.GET("/stories/:id/comments", s.listComments)
		v1.POST("/stories/:id/comments", throttle, OptionalAuthMiddleware(s.svc.Auth), s.createComment)

		// Users
		v1.GET("/users/:id", s.getUserProfile)

		me := v1.Group("/me", AuthMiddleware(s.svc.Auth))
		{
			me.GET("", s.getMe)
			me.PUT("", s.updateMe)
			me.GET("/stories", s.listMyStories)
			me.DELETE("/stories/:id", s.deleteMyStory)
		}

		// Publishing (translators and admins)
		publish := v1.Group("/publish", AuthMiddleware(s.svc.Auth), RoleMiddleware(models.UserRoleTranslator))
		{
			publish.GET("/transports", s.listTransports)
			publish.POST("", s.publish)
		}

		// Admin routes (requires admin role)
		admin := v1.Group("/admin", AuthMiddleware(s.svc.Auth), AdminMiddleware())
		{
			admin.DELETE("/stories/:id", s.deleteStory)
			admin.POST("/stories/:id/visibility", s.toggleStoryVisibility)
			admin.PUT("/genres", s.replaceGenres)
			admin.POST("/genres", s.addGenre)
			admin.DELETE("/genres/:genre", s.removeGenre)
			admin.PUT("/guide", s.updateGuide)
			admin.PUT("/announcement", s.updateAnnouncement)
			admin.PUT("/upload-settings", s.updateUploadSettings)
			admin.GET("/users", s.listUsers)
			admin.POST("/users/:id/:action", s.adminUserAction)
			admin.POST("/catalog/refresh", s.refreshCatalog)
		}
	}
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Infof("HTTP server listening on %s", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a server started with Start
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-None-Match")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "ETag")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// healthCheck returns server health status
func (s *Server) healthCheck(c *gin.Context) {
	snap := s.svc.Catalog.Snapshot()
	c.JSON(200, gin.H{
		"status":    "ok",
		"time":      time.Now().Format(time.RFC3339),
		"stories":   len(snap.Stories),
		"loaded_at": snap.LoadedAt,
	})
}
