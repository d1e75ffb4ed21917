package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"registro/internal/auth"
	"registro/internal/cache"
	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/log"
	"registro/internal/middleware/ratelimit"
	"registro/internal/middleware/security"
	"registro/internal/middleware/trace"
)

// Ledger is the service surface the API needs.
type Ledger interface {
	Record(ctx context.Context, draft core.Event) ([]core.Event, error)
	Remove(ctx context.Context, ownerID, id string) (ledger.RemoveResult, error)
	Recalculate(ctx context.Context, ownerID string) (core.Summary, error)
	Statement(ctx context.Context, ownerID string, seq core.Sequence) (core.Statement, error)
	Statements(ctx context.Context, ownerID string) ([]core.Statement, error)
	Summary(ctx context.Context, ownerID string) (core.Summary, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer. Zero values select defaults.
type Options struct {
	Logger             *log.Logger
	JWTSecret          string
	RateLimitPerMinute int
	BankNames          map[core.Bank]string
	SummaryTTL         time.Duration
	SummaryMaxOwners   int
	// Ready is pinged by /readyz; nil means always ready.
	Ready Pinger
}

type appMetrics struct {
	uptime         time.Time
	eventsRecorded int64
	eventsRemoved  int64
	recalculations int64
	exports        int64
}

type Server struct {
	http.Server
	ledger Ledger
	ready  Pinger
	logger *log.Logger
	drafts eventDraftParser
	banks  map[core.Bank]string

	auth             *auth.Authenticator
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	summaryCache *cache.SummaryCache
	cacheManager *cache.Manager
	appMetrics   *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentHTTP})
	}
	if opts.SummaryTTL <= 0 {
		opts.SummaryTTL = 5 * time.Minute
	}
	if opts.SummaryMaxOwners <= 0 {
		opts.SummaryMaxOwners = 1000
	}
	banks := opts.BankNames
	if banks == nil {
		banks = map[core.Bank]string{core.A: "Bank A", core.B: "Bank B"}
	}

	s := &Server{
		ledger:           svc,
		ready:            opts.Ready,
		logger:           logger,
		drafts:           eventDraftParser{banks: banks, now: time.Now},
		banks:            banks,
		auth:             auth.NewAuthenticator(opts.JWTSecret),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(false),
		summaryCache:     cache.NewSummaryCache(opts.SummaryMaxOwners, opts.SummaryTTL),
		cacheManager:     cache.NewManager(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	api := http.NewServeMux()
	api.HandleFunc("/api/events", s.handleEvents)
	api.HandleFunc("/api/events/{id}", s.handleEvent)
	api.HandleFunc("/api/recalculate", s.handleRecalculate)
	api.HandleFunc("/api/summary", s.handleSummary)
	api.HandleFunc("/api/export.xlsx", s.handleExport)
	api.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})

	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP,
		func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			TooManyRequestsError().Write(w)
		},
		http.MethodPost, http.MethodDelete)
	identify := s.auth.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Request rejected, owner not identified",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeError(w, r, err)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.Handle("/api/", limit(identify(api)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMiddleware.Middleware(headers.Middleware(s.securityDetector.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// ownerOf returns the owner stored by the auth middleware.
func ownerOf(r *http.Request) string {
	owner, _ := auth.OwnerFromContext(r.Context())
	return owner
}

// sequenceName is the display name of a sequence, using the configured bank names.
func (s *Server) sequenceName(seq core.Sequence) string {
	if b := seq.Bank(); b.IsValid() {
		if name := s.banks[b]; name != "" {
			return name
		}
	}
	if seq == core.Transactions {
		return "Transactions"
	}
	return string(seq)
}
