// Package api exposes the ingestion and summary operations over HTTP.
package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ecomware/tx-summary-db/pkg/ingest"
	"github.com/ecomware/tx-summary-db/pkg/logging"
	"github.com/ecomware/tx-summary-db/pkg/store"
)

const shutdownTimeout = 10 * time.Second

// Server serves uploads and summary queries against one store handle. The
// store is opened once at process start and closed at shutdown; handlers
// never own its lifecycle.
type Server struct {
	echo      *echo.Echo
	store     *store.Store
	chunkSize int
}

// New creates a server around the given store. chunkSize <= 0 uses the
// default ingestion batch size.
func New(st *store.Store, chunkSize int) *Server {
	if chunkSize <= 0 {
		chunkSize = ingest.DefaultChunkSize
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, store: st, chunkSize: chunkSize}
	e.POST("/upload", s.handleUpload)
	e.GET("/summary/:user_id", s.handleSummary)
	e.GET("/healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start(addr string) error {
	log := logging.WithComponent("api")

	go func() {
		log.Info().Str("addr", addr).Msg("starting HTTP server")
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	if _, err := s.store.CountRows(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
