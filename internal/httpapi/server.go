// Package httpapi exposes the browser state and intents over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/petstore-browser/pkg/app"
	"github.com/Sternrassler/petstore-browser/pkg/catalog"
	"github.com/Sternrassler/petstore-browser/pkg/filter"
	"github.com/Sternrassler/petstore-browser/pkg/logging"
	"github.com/Sternrassler/petstore-browser/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Browser is the contract the API drives.
type Browser interface {
	Snapshot() app.Snapshot
	ChangeStatus(status catalog.Status) error
	ChangeItemsPerPage(n filter.ItemsPerPage) error
	ChangePage(page int) (bool, error)
	Retry() error
}

// Server serves the presentation boundary.
type Server struct {
	addr      string
	browser   Browser
	logger    zerolog.Logger
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a server listening on addr once started.
func NewServer(addr string, browser Browser) *Server {
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		browser: browser,
		logger:  logging.NewLogger("http-api"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/state", s.handleState)
	api.POST("/status", s.handleStatus)
	api.POST("/items-per-page", s.handleItemsPerPage)
	api.POST("/page", s.handlePage)
	api.POST("/retry", s.handleRetry)

	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("HTTP API listening")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.browser.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).String(),
		"isOnline": snap.IsOnline,
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.browser.Snapshot())
}

func (s *Server) handleStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing status field"})
		return
	}

	status, err := catalog.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.accepted(c, s.browser.ChangeStatus(status))
}

func (s *Server) handleItemsPerPage(c *gin.Context) {
	var req struct {
		ItemsPerPage int `json:"itemsPerPage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing itemsPerPage field"})
		return
	}

	n, err := filter.ParseItemsPerPage(req.ItemsPerPage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.accepted(c, s.browser.ChangeItemsPerPage(n))
}

func (s *Server) handlePage(c *gin.Context) {
	var req struct {
		Page int `json:"page" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing page field"})
		return
	}

	ok, err := s.browser.ChangePage(req.Page)
	if err != nil {
		s.accepted(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "page change rejected"})
		return
	}
	s.accepted(c, nil)
}

func (s *Server) handleRetry(c *gin.Context) {
	s.accepted(c, s.browser.Retry())
}

// accepted answers an intent: 202 with the resulting snapshot, or 503 when
// the browser cannot take intents.
func (s *Server) accepted(c *gin.Context, err error) {
	if err != nil {
		s.logger.Warn().Err(err).Str("path", c.FullPath()).Msg("Intent refused")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, s.browser.Snapshot())
}
