package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexiswl/poreduck/internal/logging"
)

const gracefulShutdownTimeout = 5 * time.Second

// Server serves /metrics and /healthz for one Recorder.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewServer binds the listener immediately so callers learn about port
// conflicts before the run starts.
func NewServer(bind string, recorder *Recorder, logger *slog.Logger) (*Server, error) {
	if recorder == nil {
		return nil, errors.New("metrics server requires a recorder")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", bind, err)
	}
	return &Server{
		httpServer: &http.Server{
			Handler:           Router(recorder),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
		logger:   logger.With(logging.String(logging.FieldComponent, "metrics")),
	}, nil
}

// Router returns the HTTP handler tree for the recorder.
func Router(recorder *Recorder) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return router
}

// Addr reports the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		s.httpServer.SetKeepAlivesEnabled(false)
		_ = s.httpServer.Shutdown(shutdownCtx)
		s.logger.Debug("metrics server stopped")
	}()

	s.logger.Info("serving metrics", logging.String("address", s.Addr()))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
