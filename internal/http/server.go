package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"kaskelas/internal/cache"
	"kaskelas/internal/insights"
	"kaskelas/internal/log"
	"kaskelas/internal/middleware/ratelimit"
	"kaskelas/internal/middleware/security"
	"kaskelas/internal/middleware/trace"
	"kaskelas/internal/services"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	reportCacheSize  = 256
	cacheSweepPeriod = 10 * time.Minute
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr   string
	Logger *log.Logger

	Classes      *services.ClassService
	Transactions *services.TransactionService
	Ledger       *services.LedgerService
	// Advisor may be nil; insights then answer 503.
	Advisor *insights.Advisor
	Ready   Pinger

	CacheTTL  time.Duration
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server

	classes  *services.ClassService
	txs      *services.TransactionService
	ledger   *services.LedgerService
	advisor  *insights.Advisor
	ready    Pinger
	validate *validator.Validate
	now      func() time.Time

	reports  *cache.LRUCache[any]
	caches   *cache.Manager
	genMu    sync.Mutex
	gens     map[string]uint64
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and starts the cache sweeper.
// Writes through the given services drop the cached reports of their class.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	s := &Server{
		classes:  opts.Classes,
		txs:      opts.Transactions,
		ledger:   opts.Ledger,
		advisor:  opts.Advisor,
		ready:    opts.Ready,
		validate: newValidator(),
		now:      time.Now,
		reports:  cache.NewLRUCache[any](reportCacheSize, ttl),
		caches:   cache.NewManager(),
		gens:     map[string]uint64{},
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger.WithComponent(log.ComponentHTTP), s.detector.ExtractClientIP)

	s.caches.Register(s.reports)
	s.caches.StartCleanup(cacheSweepPeriod)
	s.classes.OnChange(s.invalidate)
	s.txs.OnChange(s.invalidate)

	mux := http.NewServeMux()
	s.routes(mux)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	}, http.MethodPost, http.MethodPut, http.MethodDelete)

	var h http.Handler = mux
	h = limited(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/categories", s.handleCategories)

	mux.HandleFunc("GET /api/classes", s.handleListClasses)
	mux.HandleFunc("POST /api/classes", s.handleCreateClass)
	mux.HandleFunc("GET /api/classes/{classID}", s.handleGetClass)
	mux.HandleFunc("PUT /api/classes/{classID}", s.handleUpdateClass)
	mux.HandleFunc("GET /api/classes/{classID}/balances", s.handleGetBalances)
	mux.HandleFunc("PUT /api/classes/{classID}/balances", s.handleSetBalances)

	mux.HandleFunc("GET /api/classes/{classID}/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/classes/{classID}/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/classes/{classID}/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/classes/{classID}/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/classes/{classID}/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/classes/{classID}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/classes/{classID}/ledger", s.handleLedger)
	mux.HandleFunc("GET /api/classes/{classID}/checklist", s.handleChecklist)
	mux.HandleFunc("GET /api/classes/{classID}/report", s.handleFundReport)
	mux.HandleFunc("GET /api/classes/{classID}/categories", s.handleCategoryTotals)
	mux.HandleFunc("POST /api/classes/{classID}/insights", s.handleInsights)
}

// invalidate bumps the class generation before dropping its reports, so a
// report computed before the write can no longer be stored.
func (s *Server) invalidate(classID string) {
	s.genMu.Lock()
	s.gens[classID]++
	s.genMu.Unlock()

	if n := s.reports.DeletePrefix(cache.ClassPrefix(classID)); n > 0 {
		slog.Debug("Report cache invalidated",
			log.FieldComponent, log.ComponentCache,
			log.FieldClassID, classID,
			"entries", n)
	}
}

func (s *Server) generation(classID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[classID]
}

// cachedReport returns the cached report of a class or computes it. The
// result is stored only if no write to the class happened while computing.
func cachedReport[T any](s *Server, classID, report string, load func() (T, error)) (T, error) {
	key := cache.Key(classID, report)
	if v, ok := s.reports.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	gen := s.generation(classID)
	v, err := load()
	if err != nil {
		return v, err
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[classID] == gen {
		s.reports.Set(key, v)
	}
	return v, nil
}

// Metrics exposes request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown stops background sweepers and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("storage unavailable").Write(w)
			return
		}
	}
	NewResponse().Data(map[string]string{"status": "ready"}).Write(w)
}
