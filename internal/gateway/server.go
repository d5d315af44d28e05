// Package gateway exposes the procurement pipeline over HTTP: request
// submission, per-request SSE event streams, and the data-serving
// endpoints for the catalog and compute simulator.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"procura/internal/computesim"
	"procura/internal/correlation"
	"procura/internal/notify"
	"procura/internal/pipeline"
	"procura/internal/types"
)

// Catalog is the slice of the catalog store the gateway serves directly.
type Catalog interface {
	All(ctx context.Context) ([]types.Candidate, error)
}

// Deps wires the gateway's collaborators.
type Deps struct {
	Driver   *pipeline.Driver
	Store    *correlation.Store
	Notifier *notify.Notifier
	Catalog  Catalog
	Compute  *computesim.Simulator
	Logger   *zap.Logger
}

// Server is the HTTP front for the pipeline.
type Server struct {
	driver   *pipeline.Driver
	store    *correlation.Store
	notifier *notify.Notifier
	catalog  Catalog
	compute  *computesim.Simulator
	logger   *zap.Logger

	httpSrv         *http.Server
	shutdownTimeout time.Duration
}

// NewServer builds the server and its route table.
func NewServer(deps Deps, listenAddr string, shutdownTimeout time.Duration) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		driver:          deps.Driver,
		store:           deps.Store,
		notifier:        deps.Notifier,
		catalog:         deps.Catalog,
		compute:         deps.Compute,
		logger:          logger.Named("gateway"),
		shutdownTimeout: shutdownTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/procure", s.handleProcure)
	mux.HandleFunc("GET /api/stream/{id}", s.handleStream)
	mux.HandleFunc("GET /api/requests/{id}", s.handleRequestStatus)
	mux.HandleFunc("POST /api/notify", s.handleNotify)
	mux.HandleFunc("GET /api/laptops", s.handleLaptops)
	mux.HandleFunc("POST /api/score", s.handleScore)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests
// within the shutdown timeout. SSE streams are cut off by the drain.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
