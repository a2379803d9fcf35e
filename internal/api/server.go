// Package api exposes story sessions over HTTP and streams their events over websockets.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vampirenirmal/chapterforge/internal/session"
)

// Server routes HTTP requests to the session manager.
type Server struct {
	manager *session.Manager
	hub     *Hub
	engine  *gin.Engine
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "api")
		}
	}
}

// WithClock overrides the clock used for export file names.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer builds the router. hub may be nil when no event stream is wanted.
func NewServer(manager *session.Manager, hub *Hub, opts ...Option) *Server {
	s := &Server{
		manager: manager,
		hub:     hub,
		now:     time.Now,
		logger:  slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.routes(r)
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.hub != nil {
		r.GET("/ws", s.events)
	}

	api := r.Group("/api")
	api.GET("/stories", s.listStories)
	api.POST("/stories", s.createStory)
	api.POST("/stories/import", s.importStory)

	st := api.Group("/stories/:id")
	st.GET("", s.getStory)
	st.DELETE("", s.deleteStory)
	st.GET("/export", s.exportStory)
	st.PUT("/system-prompt", s.setSystemPrompt)

	st.POST("/outline", s.generateOutline)
	st.POST("/next", s.generateNext)
	st.POST("/write-all", s.writeAll)

	st.POST("/chapters", s.addChapter)
	st.GET("/chapters/:num", s.getChapter)
	st.PATCH("/chapters/:num", s.updateChapter)
	st.DELETE("/chapters/:num", s.removeChapter)
	st.GET("/chapters/:num/prompt", s.previewPrompt)
	st.POST("/chapters/:num/regenerate", s.regenerate)
	st.POST("/chapters/:num/undo", s.undo)
	st.PUT("/chapters/:num/content", s.editContent)
	st.POST("/chapters/:num/validation/accept", s.acceptValidation)
	st.POST("/chapters/:num/validation/retry", s.retryValidation)

	st.GET("/outcomes", s.listOutcomes)
	st.POST("/outcomes/refresh", s.refreshOutcomes)
	st.POST("/outcomes/:index/choose", s.chooseOutcome)

	st.GET("/foreshadowing", s.listNotes)
	st.POST("/foreshadowing", s.addNote)
	st.PATCH("/foreshadowing/:note", s.updateNote)
	st.DELETE("/foreshadowing/:note", s.deleteNote)

	st.POST("/characters", s.addCharacter)
	st.PATCH("/characters/:character", s.updateCharacter)
	st.DELETE("/characters/:character", s.removeCharacter)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)

		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request.Context(), level, "request",
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) events(c *gin.Context) {
	if err := s.hub.Serve(c.Writer, c.Request, c.Query("story")); err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
	}
}
