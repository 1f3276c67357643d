// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to session service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/application/service"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/internal/interfaces/websocket"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AllowOrigins []string
	Debug        bool
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		AllowOrigins: []string{"http://localhost:3000"},
	}
}

// Dependencies are the application components the server exposes
type Dependencies struct {
	Sessions    service.SessionService
	Submissions port.SubmissionRepository
	Roster      *entity.Roster
	Hub         *websocket.Hub
	Health      HealthFunc
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		deps:   deps,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	corsCfg := cors.DefaultConfig()
	if len(s.config.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.config.AllowOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", ownerHeader}
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	s.router.Use(cors.New(corsCfg))
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.deps.Sessions, s.deps.Submissions, s.deps.Roster, s.deps.Health, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api/v1", ownerMiddleware())
	{
		api.GET("/flows", handlers.ListFlows)
		api.POST("/flows/:flow/sessions", handlers.StartSession)

		sessions := api.Group("/sessions/:id")
		sessions.GET("", handlers.GetSession)
		sessions.PATCH("/fields", handlers.SetFields)
		sessions.POST("/next", handlers.Next)
		sessions.POST("/previous", handlers.Previous)
		sessions.POST("/jump", handlers.JumpTo)
		sessions.POST("/save", handlers.SaveDraft)
		sessions.POST("/submit", handlers.Submit)
		sessions.POST("/discard", handlers.Discard)
		sessions.POST("/documents", handlers.AddDocuments)
		sessions.POST("/documents/progress", handlers.UploadProgress)
		sessions.DELETE("/documents/:index", handlers.RemoveDocument)

		api.GET("/rosters", handlers.ListDepartments)
		api.GET("/rosters/:department", handlers.ListManagers)

		api.GET("/submissions", handlers.ListSubmissions)
		api.GET("/submissions/:trackingId", handlers.GetSubmission)
	}

	if s.deps.Hub != nil {
		// browsers cannot set headers on a websocket handshake
		s.router.GET("/ws", func(c *gin.Context) {
			owner := c.Query("user")
			if owner == "" {
				owner = anonymousOwner
			}
			s.deps.Hub.Serve(c, owner)
		})
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
