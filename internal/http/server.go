package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"expenselog/internal/core"
	"expenselog/internal/log"
	"expenselog/internal/metrics"
	"expenselog/internal/middleware/ratelimit"
	"expenselog/internal/middleware/security"
	"expenselog/internal/middleware/trace"
	"expenselog/internal/services"
)

// RecordService is what the handlers need from the service layer.
type RecordService interface {
	Submit(ctx context.Context, req core.SubmitRequest) (services.SubmitResult, error)
	FetchAll(ctx context.Context) ([]core.Record, error)
	FetchByDate(ctx context.Context, req core.FetchRequest) (core.Record, error)
	Ping(ctx context.Context) error
}

// Options tunes the server. The zero value serves every origin with no rate
// limit and no metrics.
type Options struct {
	AllowedOrigins []string
	// RateLimitRPM is the per-client limit on the record routes; 0 disables it.
	RateLimitRPM int
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// forwarding headers identify the client.
	TrustedProxies []string
	Metrics        *metrics.Registry
	Logger         *log.Logger
}

type Server struct {
	http.Server
	router      *mux.Router
	records     RecordService
	metrics     *metrics.Registry
	rateLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, records RecordService, opts Options) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		records: records,
		metrics: opts.Metrics,
	}

	ipResolver := security.NewClientIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := ipResolver.AddTrustedProxy(cidr); err != nil {
			slog.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	// Record routes are rate limited; probes and metrics are not.
	recordRoute := func(h http.HandlerFunc) http.Handler { return h }
	if opts.RateLimitRPM > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM})
		limit := s.rateLimiter.Middleware(ipResolver.ExtractClientIP, s.handleRateLimited)
		recordRoute = func(h http.HandlerFunc) http.Handler { return limit(h) }
	}

	s.router.Handle("/add_data", recordRoute(s.handleAddData))
	s.router.Handle("/get_data", recordRoute(s.handleGetData))
	s.router.HandleFunc("/healthz", handleHealth)
	s.router.HandleFunc("/readyz", s.handleReady)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, msgRouteNotFound)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methodNotAllowed(w, allowProbe)
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{trace.HeaderRequestID},
	})

	var observe trace.Observer
	if s.metrics != nil {
		observe = func(r *http.Request, status int, d time.Duration) {
			s.metrics.ObserveRequest(s.routeLabel(r), r.Method, status, d)
		}
	}
	tracer := trace.NewMiddleware(ipResolver.ExtractClientIP, observe)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = s.router
	handler = corsHandler.Handler(handler)
	handler = headers.Middleware(handler)
	handler = tracer.Middleware(handler)
	if opts.Logger != nil {
		handler = log.Middleware(opts.Logger.WithComponent(log.ComponentHTTP))(handler)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// routeLabel keeps metric cardinality bounded by labelling with the route
// template rather than the raw path.
func (s *Server) routeLabel(r *http.Request) string {
	var match mux.RouteMatch
	if s.router.Match(r, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.RecordRateLimited()
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, msgRateLimited)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, allowProbe)
		return
	}
	NewJSONResponse().Body(statusBody{Status: "ok"}).Write(w)
}

// handleReady reports ready only when the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, allowProbe)
		return
	}
	if err := s.records.Ping(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, msgStoreNotReady)
		return
	}
	NewJSONResponse().Body(statusBody{Status: "ready"}).Write(w)
}
