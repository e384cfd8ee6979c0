package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	app "github.com/kode4food/buildprops"
	"github.com/kode4food/buildprops/internal/archive"
	"github.com/kode4food/buildprops/internal/runs"
	"github.com/kode4food/buildprops/internal/steps"
	"github.com/kode4food/buildprops/internal/wait"
	"github.com/kode4food/buildprops/pkg/api"
	"github.com/kode4food/buildprops/pkg/util"
)

type (
	// Server implements the HTTP API server for build properties
	Server struct {
		steps    *steps.Steps
		runs     *runs.Registry
		waits    *wait.Manager
		feed     *Feed
		archive  ArchiveReader
		health   HealthChecker
		upgrader websocket.Upgrader
		sockets  util.Set[*Client]
		mu       sync.Mutex
	}

	// Dependencies are the collaborators a Server routes requests to.
	// Archive and Health are optional
	Dependencies struct {
		Steps    *steps.Steps
		Runs     *runs.Registry
		Waits    *wait.Manager
		Feed     *Feed
		Archive  ArchiveReader
		Health   HealthChecker
		WSBuffer int
	}

	// ArchiveReader reads completed runs back from the archive
	ArchiveReader interface {
		Get(ctx context.Context, job string, id api.RunID) (
			*runs.Snapshot, error,
		)
	}

	// HealthChecker reports whether a backing service is reachable
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

const defaultWSBuffer = 1024

var (
	ErrInvalidJSON      = errors.New("invalid JSON request")
	ErrValueRequired    = errors.New("value is required")
	ErrUnsupportedValue = errors.New("unsupported property value")
	ErrArchiveDisabled  = errors.New("archiving is not configured")
	ErrUnhealthy        = errors.New("backing store unavailable")
)

// NewServer creates a new HTTP API server
func NewServer(deps Dependencies) *Server {
	buf := deps.WSBuffer
	if buf <= 0 {
		buf = defaultWSBuffer
	}
	return &Server{
		steps:   deps.Steps,
		runs:    deps.Runs,
		waits:   deps.Waits,
		feed:    deps.Feed,
		archive: deps.Archive,
		health:  deps.Health,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  buf,
			WriteBufferSize: buf,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sockets: util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	router.GET("/health", s.handleHealth)

	r := router.Group("/runs")
	{
		r.GET("", s.listRuns)
		r.POST("", s.createRun)
		r.GET("/:runID", s.getRun)
		r.POST("/:runID/complete", s.completeRun)

		r.GET("/:runID/properties", s.listProperties)
		r.PUT("/:runID/properties/:key", s.putProperty)
		r.GET("/:runID/properties/:key", s.getProperty)
		r.GET("/:runID/ancestors/:key", s.getAncestorProperty)

		r.GET("/:runID/get", s.getText)
		r.POST("/:runID/set", s.setText)

		r.POST("/:runID/test-counts", s.setTestCounts)
		r.GET("/:runID/tables", s.getTables)
		r.POST("/:runID/waits", s.startWait)
	}

	w := router.Group("/waits")
	{
		w.GET("/:waitID", s.getWait)
		w.DELETE("/:waitID", s.cancelWait)
	}

	router.GET("/archive/:job/:runID", s.getArchivedRun)
	router.GET("/ws", s.handleWebSocket)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	res := api.HealthResponse{
		Service: app.Name,
		Version: app.Version,
		Status:  "healthy",
	}
	if s.health != nil {
		if err := s.health.Ping(c.Request.Context()); err != nil {
			res.Status = "unhealthy"
			slog.Warn("Health check failed",
				slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, res)
			return
		}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := s.sockets.Items()
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

func writeBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, api.ErrorResponse{
		Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
		Status: http.StatusBadRequest,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, runs.ErrRunNotFound),
		errors.Is(err, wait.ErrWaitNotFound),
		errors.Is(err, steps.ErrPropertyNotFound),
		errors.Is(err, archive.ErrArchiveNotFound),
		errors.Is(err, ErrArchiveDisabled):
		return http.StatusNotFound
	case errors.Is(err, runs.ErrRunCompleted):
		return http.StatusConflict
	case errors.Is(err, runs.ErrJobRequired),
		errors.Is(err, steps.ErrKeyRequired),
		errors.Is(err, steps.ErrInvalidPattern),
		errors.Is(err, api.ErrUnknownKind),
		errors.Is(err, api.ErrInvalidValue),
		errors.Is(err, api.ErrUnknownTimeUnit),
		errors.Is(err, ErrInvalidJSON),
		errors.Is(err, ErrValueRequired),
		errors.Is(err, ErrUnsupportedValue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
