package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/VisualEditor/backend/internal/api/http"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/api/middleware"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/api/ws"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/editor"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/reconcile"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/session"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/importer"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/storage"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	store    *storage.Store
	sessions *session.Manager
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing Visual Editor server",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("site_origin", cfg.Importer.SiteOrigin),
	)

	mode, err := reconcile.ParseMode(cfg.Editor.ReconcileMode)
	if err != nil {
		return nil, err
	}

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	store, err := openStore(cfg.Storage, logger, metrics)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(store, editor.Options{
		Debounce:     cfg.Editor.DebounceWindow,
		SaveTimeout:  cfg.Editor.SaveTimeout,
		FlushOnClose: cfg.Editor.FlushOnClose,
		Logger:       logger.Named("editor"),
		Metrics:      metrics,
	})

	// The importer is optional: a bad origin only disables it.
	var pageImporter apihttp.PageImporter
	imp, err := importer.New(importer.Options{
		SiteOrigin:    cfg.Importer.SiteOrigin,
		Timeout:       cfg.Importer.Timeout,
		MaxRetries:    cfg.Importer.MaxRetries,
		BlockSelector: cfg.Importer.BlockSelector,
		BlockXPath:    cfg.Importer.BlockXPath,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		logger.Warn("Importer disabled", zap.Error(err))
	} else {
		pageImporter = imp
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Frame.AllowedOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(apihttp.Deps{
		Sessions:    sessions,
		Documents:   store,
		Importer:    pageImporter,
		Metrics:     metrics,
		Logger:      logger,
		DefaultSlug: cfg.Editor.DefaultSlug,
		Mode:        mode,
	})
	handlers.Register(router)

	frames := ws.NewHandler(sessions, ws.Options{
		AllowedOrigins:    cfg.Frame.AllowedOrigins,
		MessagesPerSecond: cfg.Frame.MessagesPerSecond,
		MessageBurst:      cfg.Frame.MessageBurst,
		OutboxSize:        cfg.Frame.OutboxSize,
		MaxMessageBytes:   cfg.Frame.MaxMessageBytes,
		DefaultSlug:       cfg.Editor.DefaultSlug,
		Mode:              mode,
		Logger:            logger,
		Metrics:           metrics,
	})
	router.GET("/frame", frames.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		store:    store,
		sessions: sessions,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

func openStore(cfg config.StorageConfig, logger *logging.Logger, metrics *monitoring.Metrics) (*storage.Store, error) {
	backend, err := storage.OpenBackend(cfg.Backend, cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	opts := storage.Options{Logger: logger.Named("storage"), Metrics: metrics}
	if cfg.TemplatePath != "" {
		tmpl, err := storage.LoadTemplate(cfg.TemplatePath)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to load template: %w", err)
		}
		opts.Template = tmpl
	}

	logger.Info("Storage opened",
		zap.String("backend", cfg.Backend),
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress),
	)
	return storage.New(backend, opts), nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Close(shutdownCtx)
}

// Close stops accepting requests, flushes every session and releases the
// storage backend.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := s.sessions.CloseAll(ctx); err != nil {
		s.logger.Error("Failed to close sessions", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close storage", zap.Error(err))
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
