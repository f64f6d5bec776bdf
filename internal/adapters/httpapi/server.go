package httpapi

// server.go: API REST sobre el mismo pipeline que usa la CLI.
//
// Las series llegan inline en el request, así que el servidor no necesita un
// PriceProvider: alinea las patas y llama a Pipeline.Analyze directamente.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/alejandrodnm/statarb/internal/application/backtest"
	"github.com/alejandrodnm/statarb/internal/ports"
)

// Defaults se aplican a los campos que el request deja vacíos.
type Defaults struct {
	Windows   []int
	NumStd    float64
	Fee       float64
	Intercept bool
	MaxPValue float64
	Runner    backtest.RunnerConfig
}

// Config del servidor HTTP.
type Config struct {
	Port        int
	ReleaseMode bool
	Defaults    Defaults
}

// Server expone el backtest por HTTP. storage puede ser nil: en ese caso los
// endpoints de historial responden 503 y save se ignora.
type Server struct {
	cfg     Config
	storage ports.Storage
	router  *gin.Engine
}

// NewServer arma el router con sus rutas y middlewares.
func NewServer(storage ports.Storage, cfg Config) *Server {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	s := &Server{cfg: cfg, storage: storage, router: gin.New()}
	s.router.Use(recovery(), requestLogger())

	s.router.GET("/health", s.health)
	api := s.router.Group("/api/v1")
	{
		api.POST("/backtest", s.runBacktest)
		api.GET("/runs", s.listRuns)
		api.GET("/runs/:id", s.getRun)
	}
	s.router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	return s
}

// Handler devuelve el router envuelto con CORS.
func (s *Server) Handler() http.Handler {
	return cors.Default().Handler(s.router)
}

// ListenAndServe bloquea hasta que ctx se cancela o el servidor falla.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi.ListenAndServe: %w", err)
	case <-ctx.Done():
		slog.Info("api shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpapi.ListenAndServe: shutdown: %w", err)
		}
		return nil
	}
}
