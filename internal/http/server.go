package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fareboard/internal/cache"
	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/metrics"
	"fareboard/internal/middleware/auth"
	"fareboard/internal/middleware/ratelimit"
	"fareboard/internal/middleware/security"
	"fareboard/internal/middleware/trace"
)

const (
	reportCacheSize     = 256
	defaultReportTTL    = 5 * time.Minute
	cacheSweepInterval  = 10 * time.Minute
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 60 * time.Second
)

// Deps are the collaborators a Server is built from. Records and Reports
// are required; a nil Auth resolves every request to the owner "default".
type Deps struct {
	Records RecordService
	Reports ReportService
	Auth    *auth.Authenticator
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Ready backs /readyz; nil always reports ready.
	Ready              func(ctx context.Context) error
	RateLimitPerMinute int
	ReportCacheTTL     time.Duration
	// Today overrides the clock used for default report ranges.
	Today func() core.Date
}

type Server struct {
	http.Server

	records  RecordService
	reporter ReportService
	reports  *reportCache
	metrics  *metrics.Metrics
	logger   *log.Logger
	ready    func(ctx context.Context) error
	today    func() core.Date

	limiter      *ratelimit.Limiter
	caches       *cache.Manager
	shutdownOnce sync.Once
}

// NewServer registers routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	ttl := deps.ReportCacheTTL
	if ttl <= 0 {
		ttl = defaultReportTTL
	}
	today := deps.Today
	if today == nil {
		today = core.Today
	}

	s := &Server{
		records:  deps.Records,
		reporter: deps.Reports,
		metrics:  deps.Metrics,
		logger:   logger.WithComponent(log.ComponentHTTP),
		ready:    deps.Ready,
		today:    today,
		caches:   cache.NewManager(logger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
			Methods:           []string{http.MethodPost},
		}),
	}

	var onLookup func(bool)
	if deps.Metrics != nil {
		onLookup = deps.Metrics.RecordCacheLookup
	}
	s.reports = newReportCache(reportCacheSize, ttl, onLookup)
	s.caches.Register(s.reports.lru)
	s.caches.StartCleanup(cacheSweepInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	mux.HandleFunc("GET /expense-types", s.handleExpenseTypes)
	mux.HandleFunc("POST /trips", s.handleCreateTrip)
	mux.HandleFunc("GET /journeys", s.handleListJourneys)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("GET /reports/metrics", s.handleMetrics())
	mux.HandleFunc("GET /reports/revenue", s.handleRevenue())
	mux.HandleFunc("GET /reports/performance", s.handlePerformance())
	mux.HandleFunc("GET /reports/expenses", s.handleExpenseBreakdown())
	mux.HandleFunc("GET /reports/summary.pdf", s.handleSummaryDocument("application/pdf", "pdf", renderPDF))
	mux.HandleFunc("GET /reports/summary.txt", s.handleSummaryDocument("text/plain; charset=utf-8", "txt", renderText))

	s.Server = http.Server{
		Addr:         addr,
		Handler:      s.middleware(mux, deps),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	return s
}

// middleware wraps h outermost-first: probe detection, tracing, request
// logger, metrics, security headers, POST rate limiting, then owner
// resolution.
func (s *Server) middleware(h http.Handler, deps Deps) http.Handler {
	detector := security.NewDetector(s.logger)
	if deps.Metrics != nil {
		detector.OnSuspicious(deps.Metrics.RecordSuspicious)
	}
	tracer := trace.NewMiddleware(detector.ExtractClientIP, s.logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	authn := deps.Auth
	if authn == nil {
		authn = auth.New("", "default", PublicPaths, s.logger)
	}

	h = authn.Middleware(h)
	h = s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})(h)
	h = headers.Middleware(h)
	if deps.Metrics != nil {
		h = deps.Metrics.InstrumentHandler(h)
	}
	h = log.Middleware(s.logger, trace.RequestID)(h)
	h = tracer.Middleware(h)
	return detector.Middleware(h)
}

// Shutdown stops background janitors and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
