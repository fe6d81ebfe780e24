package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/concierge-ai/concierge/config"
	"github.com/concierge-ai/concierge/internal/engine"
)

// QAService is the core boundary the HTTP layer routes into.
type QAService interface {
	Train(ctx context.Context, req engine.TrainRequest) (engine.TrainResult, error)
	Chat(ctx context.Context, tenantID, sessionID, question string) (engine.Answer, error)
	Config(tenantID string) (engine.TenantConfig, error)
	SetConfig(tenantID string, cfg engine.TenantConfig)
}

// Server is the thin gin HTTP surface over the QA engine.
type Server struct {
	cfg     *config.Config
	service QAService
	log     *slog.Logger
	engine  *gin.Engine
	server  *http.Server
}

func New(cfg *config.Config, service QAService, log *slog.Logger) *Server {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = slog.Default()
	}

	router := gin.New()
	s := &Server{
		cfg:     cfg,
		service: service,
		log:     log,
		engine:  router,
	}

	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())
	router.Use(s.corsMiddleware())
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.POST("/train", s.handleTrain)
	s.engine.POST("/chat", s.handleChat)
	s.engine.GET("/config/:key", s.handleGetConfig)
	s.engine.POST("/config/:key", s.handleSetConfig)
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.cfg.Server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.server.Shutdown(shutdownCtx)
}
