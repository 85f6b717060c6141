package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/mzainuddin51/vscode/internal/api/http"
	"github.com/mzainuddin51/vscode/internal/api/middleware"
	"github.com/mzainuddin51/vscode/internal/api/ws"
	"github.com/mzainuddin51/vscode/internal/infrastructure/config"
	"github.com/mzainuddin51/vscode/internal/infrastructure/logging"
	"github.com/mzainuddin51/vscode/internal/infrastructure/monitoring"
	"github.com/mzainuddin51/vscode/internal/proxy"
	"github.com/mzainuddin51/vscode/internal/proxy/cache"
	"github.com/mzainuddin51/vscode/internal/proxy/probe"
	"github.com/mzainuddin51/vscode/internal/proxy/static"
	"github.com/mzainuddin51/vscode/internal/shared/utils"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	registry *proxy.Registry
	cache    *cache.Cache
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing webview proxy",
		zap.String("port", cfg.Server.Port),
		zap.Duration("resolve_timeout", cfg.Proxy.ResolveTimeout()),
		zap.Duration("fetch_timeout", cfg.Proxy.FetchTimeout()),
	)

	metrics := monitoring.NewMetrics()

	allowlist, err := utils.NewAllowlist(cfg.Proxy.AllowedPaths)
	if err != nil {
		return nil, fmt.Errorf("invalid allowlist: %w", err)
	}

	fallback, err := static.New(cfg.Proxy.FallbackRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to index fallback assets: %w", err)
	}
	if fallback.Len() > 0 {
		logger.Info("Fallback assets indexed",
			zap.String("root", cfg.Proxy.FallbackRoot),
			zap.Int("assets", fallback.Len()),
		)
	}

	contentCache := cache.New(cfg.Cache.TTL())
	registry := proxy.NewRegistry()

	var prober *probe.Prober
	if cfg.Proxy.LocalhostProbe {
		prober = probe.New(logger)
		logger.Info("Localhost origin probing enabled")
	}

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
			zap.Bool("global", cfg.RateLimit.Global),
		)
		rl := middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}
		if cfg.RateLimit.Global {
			router.Use(middleware.GlobalRateLimit(rl))
		} else {
			router.Use(middleware.RateLimit(rl))
		}
	}

	handlers := apihttp.NewHandlers(registry, fallback, prober, metrics, logger, cfg.Proxy.FetchTimeout())
	wsHandler := ws.NewHandler(ws.Config{
		Registry:       registry,
		Cache:          contentCache,
		Allowlist:      allowlist,
		ResolveTimeout: cfg.Proxy.ResolveTimeout(),
		Logger:         logger,
		Metrics:        metrics,
	})

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/stats", handlers.Stats)

	// Webview-facing surface
	router.GET("/vscode-resource/:channel/*path", handlers.Resource)
	router.GET("/localhost/:authority/*path", handlers.Localhost)

	// Host channel
	router.GET("/channel", wsHandler.HandleConnection)

	// Prometheus
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		registry: registry,
		cache:    contentCache,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Run starts the HTTP server and blocks until shutdown
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
		}
	}

	// Drop per-channel bookkeeping before the cache goes away.
	for _, id := range s.registry.IDs() {
		if ch, ok := s.registry.Get(id); ok {
			s.registry.Unregister(ch)
		}
	}
	s.cache.Close()

	s.logger.Sync()
	return nil
}
