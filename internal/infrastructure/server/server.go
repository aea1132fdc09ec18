package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	bolt "go.etcd.io/bbolt"

	apihttp "github.com/codehaven/backend/internal/api/http"
	"github.com/codehaven/backend/internal/api/middleware"
	"github.com/codehaven/backend/internal/api/ws"
	"github.com/codehaven/backend/internal/infrastructure/config"
	"github.com/codehaven/backend/internal/infrastructure/logging"
	"github.com/codehaven/backend/internal/infrastructure/monitoring"
	"github.com/codehaven/backend/internal/storage"
	"github.com/codehaven/backend/internal/workspace"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router     *gin.Engine
	workspaces *workspace.Manager
	db         *bolt.DB
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing CodeHaven workspace service",
		zap.String("port", cfg.Server.Port),
		zap.Bool("in_memory", cfg.Storage.InMemory),
	)

	metrics := monitoring.NewMetrics()

	// Pick the durable store: bbolt on disk, or memory for ephemeral runs.
	var (
		store storage.Store
		db    *bolt.DB
	)
	if cfg.Storage.InMemory {
		store = storage.NewMemory()
		logger.Info("Using in-memory store; workspaces will not survive restarts")
	} else {
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create storage directory: %w", err)
			}
		}
		handle, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		boltStore, err := storage.NewBolt(handle)
		if err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		db = handle
		store = boltStore
		logger.Info("Opened durable store", zap.String("path", cfg.Storage.Path))
	}

	workspaces := workspace.NewManager(store, logger).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(workspaces, logger)
	wsHandler := ws.NewHandler(workspaces, logger).WithMetrics(metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Workspace lifecycle
	router.POST("/workspaces", handlers.CreateWorkspace)
	router.GET("/workspaces", handlers.ListWorkspaces)
	router.POST("/workspaces/:id/close", handlers.CloseWorkspace)
	router.DELETE("/workspaces/:id", handlers.TeardownWorkspace)
	router.POST("/workspaces/:id/flush", handlers.Flush)

	// Filesystem operations
	router.GET("/workspaces/:id/entries", handlers.ListEntries)
	router.GET("/workspaces/:id/file", handlers.ReadFile)
	router.GET("/workspaces/:id/file/raw", handlers.DownloadFile)
	router.PUT("/workspaces/:id/file", handlers.WriteFile)
	router.POST("/workspaces/:id/directories", handlers.CreateDirectory)
	router.DELETE("/workspaces/:id/entries", handlers.DeleteEntry)
	router.POST("/workspaces/:id/copy", handlers.CopyEntry)
	router.GET("/workspaces/:id/search", handlers.Search)
	router.PUT("/workspaces/:id/cwd", handlers.SetCurrentDirectory)

	// Archive transfer
	router.GET("/workspaces/:id/export", handlers.Export)
	router.POST("/workspaces/:id/import", handlers.Import)

	// WebSocket change stream
	router.GET("/workspaces/:id/stream", wsHandler.Stream)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		metrics.Registry(),
		promhttp.HandlerOpts{},
	)))

	logger.Info("Server initialized successfully")

	return &Server{
		router:     router,
		workspaces: workspaces,
		db:         db,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
	}, nil
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Close flushes every open workspace and releases the store.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if err := s.workspaces.FlushAll(context.Background()); err != nil {
		s.logger.Error("Failed to flush workspaces on shutdown", zap.Error(err))
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close storage", zap.Error(err))
			return fmt.Errorf("failed to close storage: %w", err)
		}
		s.logger.Info("Closed durable store")
	}

	s.logger.Sync()
	return nil
}
