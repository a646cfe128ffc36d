// Package api exposes the layout engine over HTTP.
//
// Endpoints:
//
//	GET  /healthz   liveness and version
//	POST /v1/layout compute a layout for a posted edge list
//	POST /v1/stats  structural statistics for a posted edge list
//
// A layout request without edges falls back to the configured edge source,
// so a small deployment can serve layouts straight from its store.
// Responses are cached by graph content hash plus the options that shape
// the result.
package api

import (
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/citegraph/layoutd/internal/config"
	"github.com/citegraph/layoutd/pkg/cache"
	"github.com/citegraph/layoutd/pkg/layout"
	"github.com/citegraph/layoutd/pkg/store"
)

// Server wires the layout engine, cache, and optional edge source into an
// HTTP handler.
type Server struct {
	engine      *layout.Engine
	source      store.EdgeSource
	cache       cache.Cache
	keyer       cache.Keyer
	defaultOpts layout.Options
	batchSize   int64
	logger      *log.Logger
}

// New creates a Server. source may be nil (requests must then carry
// edges); c may be nil (caching disabled); a nil logger disables logging.
func New(cfg *config.Config, source store.EdgeSource, c cache.Cache, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	var keyer cache.Keyer = cache.NewDefaultKeyer()
	if cfg.Redis.KeyPrefix != "" {
		keyer = cache.NewScopedKeyer(keyer, cfg.Redis.KeyPrefix)
	}
	return &Server{
		engine:      layout.NewEngine(logger),
		source:      source,
		cache:       c,
		keyer:       keyer,
		defaultOpts: cfg.LayoutOptions(),
		batchSize:   cfg.Pipeline.BatchSize,
		logger:      logger,
	}
}

// Routes builds the router with request-id, logging, and recovery
// middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/layout", s.handleLayout)
		r.Post("/stats", s.handleStats)
	})
	return r
}

// requestID assigns every request a UUID, echoed in the X-Request-ID
// header and attached to the request logger.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// requestLogger logs one line per request with status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", requestIDFrom(r.Context()),
			"duration", time.Since(start).Round(time.Millisecond))
	})
}
