package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tasktracker/internal/manager"
	"tasktracker/internal/models"
)

// Server provides HTTP handlers for the task tracker.
type Server struct {
	engine  *gin.Engine
	manager *manager.Manager
	logger  *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured.
// CORS handling is enabled only when corsOrigins is non-empty.
func New(m *manager.Manager, logger *slog.Logger, corsOrigins []string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(logger))
	if len(corsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  corsOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", headerRequestID},
			ExposeHeaders: []string{"Content-Length", headerRequestID},
			MaxAge:        12 * time.Hour,
		}))
	}

	srv := &Server{
		engine:  router,
		manager: m,
		logger:  logger,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

var collections = []struct {
	path string
	kind models.Kind
}{
	{path: "/tasks", kind: models.KindTask},
	{path: "/epics", kind: models.KindEpic},
	{path: "/subtasks", kind: models.KindSubtask},
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/history", s.handleHistory)
		api.GET("/prioritized", s.handlePrioritized)

		for _, col := range collections {
			group := api.Group(col.path)
			group.GET("", s.handleList(col.kind))
			group.POST("", s.handleSave(col.kind))
			group.DELETE("", s.handleClear(col.kind))
			group.GET(":id", s.handleGet(col.kind))
			group.PUT(":id", s.handleReplace(col.kind))
			group.DELETE(":id", s.handleDelete(col.kind))
			if col.kind == models.KindEpic {
				group.GET(":id/subtasks", s.handleEpicSubtasks)
			}
		}
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrOverlap):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrEpicNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the error and returns a JSON payload. Server side
// failures are reported with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	attrs := []any{
		slog.String("path", c.FullPath()),
		slog.String("request_id", c.GetString(ctxRequestID)),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
		message = "internal server error"
	} else {
		s.logger.Warn("request rejected", attrs...)
	}
	c.JSON(status, gin.H{"error": message})
}

// respondSuccess writes payload, or only the status when payload is nil.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
