// Package server is the HTTP control surface: the dashboard page, the filter
// and port controls, the persistence endpoint and the WebSocket stream.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/itohio/adcscope/pkg/acquire"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// Acquirer starts and reports the acquisition loop.
type Acquirer interface {
	Select(port string) error
	Port() string
	Running() bool
}

// Appender persists submitted values.
type Appender interface {
	Append(values []interface{}) error
}

// PortLister returns the selectable port identifiers.
type PortLister func() ([]string, error)

// Options wires the server to the rest of the process.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	Settings        *acquire.SettingsStore
	Acquirer        Acquirer
	Store           Appender
	Ports           PortLister
	// Stream serves /ws. Nil disables the route.
	Stream http.Handler
	// Gatherer serves /metrics. Nil disables the route.
	Gatherer   prometheus.Gatherer
	SampleRate float64
	Logger     *zap.Logger
}

// Server serves the control surface.
type Server struct {
	opts   Options
	logger *zap.Logger
	router *mux.Router
	server *http.Server
}

// New builds the router. Call Start to listen.
func New(opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Settings == nil {
		opts.Settings = acquire.NewSettingsStore(acquire.DefaultSettings())
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger,
	}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/list_ports", s.handleListPorts).Methods(http.MethodGet)
	r.HandleFunc("/update_filters", s.handleUpdateFilters).Methods(http.MethodPost)
	r.HandleFunc("/select_port", s.handleSelectPort).Methods(http.MethodPost)
	r.HandleFunc("/save_data", s.handleSaveData).Methods(http.MethodPost)
	r.HandleFunc("/settings", s.handleSettings).Methods(http.MethodGet)

	if s.opts.Stream != nil {
		r.Handle("/ws", s.opts.Stream).Methods(http.MethodGet)
	}
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errors.New("not found"), http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errors.New("method not allowed"), http.StatusMethodNotAllowed)
	})
	return r
}

// Start listens until ctx is cancelled, then shuts down gracefully.
// It returns early if the listener cannot be opened.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.opts.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	return s.Shutdown()
}

// Shutdown stops accepting requests and waits for in-flight ones. When the
// grace period runs out the remaining connections are closed.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		s.logger.Warn("graceful shutdown failed, closing connections", zap.Error(err))
		err = multierr.Append(err, s.server.Close())
	}
	return err
}
