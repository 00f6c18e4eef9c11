package frontend

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer is the secondary endpoint: the same processor served as
// JSON-over-HTTP, plus /metrics and /healthz.
type HTTPServer struct {
	logger zerolog.Logger
	server *http.Server
	addr   string
}

// NewHTTPServer builds the HTTP/JSON endpoint on port, dispatching request
// bodies through the shared worker pool.
func NewHTTPServer(logger zerolog.Logger, processor thrift.TProcessor, pool *Pool, port int) *HTTPServer {
	addr := fmt.Sprintf(":%d", port)
	httpLogger := logger.With().Str("component", "http-endpoint").Logger()

	jsonFactory := thrift.NewTJSONProtocolFactory()
	rpcHandler := thrift.NewThriftHandlerFunc(processor, jsonFactory, jsonFactory)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(httpLogger))
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		if err := pool.Do(req.Context(), "http", func() { rpcHandler(w, req) }); err != nil {
			http.Error(w, "server unavailable", http.StatusServiceUnavailable)
		}
	})

	return &HTTPServer{
		logger: httpLogger,
		addr:   addr,
		server: &http.Server{
			Addr:        addr,
			Handler:     r,
			ReadTimeout: 60 * time.Second,
			IdleTimeout: 120 * time.Second,
		},
	}
}

// Serve runs the endpoint until it fails or Stop is called. A clean close
// returns nil.
func (s *HTTPServer) Serve() error {
	s.logger.Info().Str("addr", s.addr).Msg("HTTP/JSON endpoint listening")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and all active connections. There is no graceful
// drain at this layer.
func (s *HTTPServer) Stop() {
	s.server.Close()
}
