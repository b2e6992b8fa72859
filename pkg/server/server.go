// Package server exposes the quote service over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/yfi-proxy/pkg/auth"
	"github.com/Sternrassler/yfi-proxy/pkg/cache"
	"github.com/Sternrassler/yfi-proxy/pkg/client"
	"github.com/Sternrassler/yfi-proxy/pkg/logging"
	"github.com/Sternrassler/yfi-proxy/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var httpRequestsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
	Name: "yfi_http_requests_total",
	Help: "Total HTTP requests served by route pattern and status",
}, []string{"route", "status"})

// QuoteService answers the quote endpoints.
type QuoteService interface {
	Quote(ctx context.Context, ticker string) (any, error)
	Info(ctx context.Context, ticker string) (client.Record, error)
	Quotes(ctx context.Context, tickers string) (map[string]*float64, error)
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Service  QuoteService
	Cache    *cache.Manager
	CacheTTL time.Duration
	Keys     auth.KeySet
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	svc    QuoteService
	cache  *cache.Manager
	ttl    time.Duration
	keys   auth.KeySet
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewManager()
	}

	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		svc:    cfg.Service,
		cache:  cfg.Cache,
		ttl:    cfg.CacheTTL,
		keys:   cfg.Keys,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Real IP before the access log so it records the client address
	s.router.Use(middleware.RealIP)

	// Access log with request IDs
	for _, mw := range logging.HTTPMiddleware(s.log) {
		s.router.Use(mw)
	}

	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	s.router.Use(metricsMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{cache.HeaderCache, logging.RequestIDHeader},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.keys, s.log))

		r.With(s.cached("quote", "ticker")).Get("/quote/{ticker}", s.handleQuote)
		r.With(s.cached("quotes", "tickers")).Get("/quotes/{tickers}", s.handleQuotes)
		r.With(s.cached("info", "ticker")).Get("/info/{ticker}", s.handleInfo)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
	})
}

// cached caches an endpoint's responses keyed by its path parameter.
// The token query parameter is never part of the key.
func (s *Server) cached(endpoint, param string) func(http.Handler) http.Handler {
	return cache.Middleware(s.cache, s.ttl, func(r *http.Request) cache.CacheKey {
		return cache.CacheKey{
			Endpoint:   endpoint,
			PathParams: map[string]string{param: chi.URLParam(r, param)},
		}
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info().Str("addr", l.Addr().String()).Msg("Starting HTTP server")
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// metricsMiddleware counts requests by matched route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
