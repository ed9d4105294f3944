// Package api provides the HTTP control surface for the engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/growth-engine/internal/engine"
	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/scheduler"
	"github.com/growth-engine/internal/storage"
)

// EngineController defines the engine operations exposed over HTTP
type EngineController interface {
	Start(ctx context.Context) (*models.EngineState, error)
	Stop(ctx context.Context) (*models.EngineState, error)
	Status(ctx context.Context) (*engine.Report, error)
	QueueStats(ctx context.Context) (models.QueueStats, error)
}

// AlarmController lists and fires scheduler alarms
type AlarmController interface {
	Alarms() []scheduler.AlarmInfo
	Fire(ctx context.Context, name string) error
}

// AnalyticsReader serves per-day action summaries
type AnalyticsReader interface {
	DailySummary(ctx context.Context, from, to time.Time) ([]storage.ActionDailySummary, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	engine     EngineController
	alarms     AlarmController
	actions    storage.ActionLogStore
	analytics  AnalyticsReader
	config     *ServerConfig
	logger     *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// RequestsPerSecond caps each client address. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// Dependencies are the collaborators the routes read from. Alarms and
// Analytics are optional; their routes answer 503 when unset.
type Dependencies struct {
	Engine    EngineController
	Alarms    AlarmController
	Actions   storage.ActionLogStore
	Analytics AnalyticsReader
	Logger    *logging.Logger
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Dependencies) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if deps.Actions == nil {
		return nil, fmt.Errorf("action log store cannot be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		router:    mux.NewRouter(),
		engine:    deps.Engine,
		alarms:    deps.Alarms,
		actions:   deps.Actions,
		analytics: deps.Analytics,
		config:    config,
		logger:    logger.Named("api"),
	}

	s.setupRouter()

	return s, nil
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// order matters
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	if s.config.RequestsPerSecond > 0 {
		s.router.Use(RateLimitMiddleware(NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)))
	}
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/engine/start", s.handleStart).Methods("POST")
	api.HandleFunc("/engine/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/queue/stats", s.handleQueueStats).Methods("GET")

	api.HandleFunc("/actions", s.handleListActions).Methods("GET")
	api.HandleFunc("/analytics/daily", s.handleDailyAnalytics).Methods("GET")

	api.HandleFunc("/alarms", s.handleListAlarms).Methods("GET")
	api.HandleFunc("/alarms/{name}/fire", s.handleFireAlarm).Methods("POST")
}

// Handler exposes the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "growth-engine",
	})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}
