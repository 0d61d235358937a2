// Package http exposes the JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"hamyon/internal/log"
	"hamyon/internal/middleware/auth"
	"hamyon/internal/middleware/ratelimit"
	"hamyon/internal/middleware/security"
	"hamyon/internal/middleware/trace"
	"hamyon/internal/services"
)

// Pinger is the database readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports whether the message broker connection is up.
type HealthChecker interface {
	Healthy() bool
}

// Services are the use cases the handlers call.
type Services struct {
	Ledger  *services.LedgerService
	Auth    *services.AuthService
	Reports *services.ReportService
}

type Options struct {
	DB Pinger
	// Broker is nil when event publishing is disabled.
	Broker             HealthChecker
	RateLimitPerMinute int
	Logger             *log.Logger
}

// publicPaths are reachable without a token.
var publicPaths = []string{"/users/signup", "/users/login", "/healthz", "/readyz", "/metrics"}

type Server struct {
	http.Server

	ledger  *services.LedgerService
	auth    *services.AuthService
	reports *services.ReportService

	db     Pinger
	broker HealthChecker
	logger *log.Logger

	trace    *trace.Middleware
	limiter  *ratelimit.Limiter
	detector *security.Detector

	started time.Time
	now     func() time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		ledger:   svc.Ledger,
		auth:     svc.Auth,
		reports:  svc.Reports,
		db:       opts.DB,
		broker:   opts.Broker,
		logger:   logger,
		detector: detector,
		trace:    trace.NewMiddleware(logger, detector.ExtractClientIP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		started:  time.Now(),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	authn := auth.New(svc.Auth, func(w http.ResponseWriter, _ *http.Request) {
		UnauthorizedError().Write(w)
	}, publicPaths...)

	var h http.Handler = mux
	h = authn.Middleware(h)
	h = s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimit)(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.trace.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	s.route(mux, "/healthz", methods{http.MethodGet: s.handleHealth})
	s.route(mux, "/readyz", methods{http.MethodGet: s.handleReady})
	s.route(mux, "/metrics", methods{http.MethodGet: s.handleMetrics})

	s.route(mux, "/users/signup", methods{http.MethodPost: s.handleSignUp})
	s.route(mux, "/users/login", methods{http.MethodPost: s.handleLogin})
	s.route(mux, "/users/logout", methods{http.MethodPost: s.handleLogout})
	s.route(mux, "/users/profile", methods{
		http.MethodGet:    s.handleProfile,
		http.MethodPut:    s.handleUpdateProfile,
		http.MethodDelete: s.handleDeleteAccount,
	})
	s.route(mux, "/users/password", methods{http.MethodPut: s.handleChangePassword})

	s.route(mux, "/wallets", methods{http.MethodGet: s.handleListWallets, http.MethodPost: s.handleCreateWallet})
	s.route(mux, "/wallets/{id}", methods{
		http.MethodGet:    s.handleGetWallet,
		http.MethodPut:    s.handleUpdateWallet,
		http.MethodDelete: s.handleDeleteWallet,
	})
	s.route(mux, "/wallets/{id}/transactions", methods{http.MethodGet: s.handleWalletTransactions})

	s.route(mux, "/categories", methods{http.MethodGet: s.handleListCategories, http.MethodPost: s.handleCreateCategory})
	s.route(mux, "/categories/{id}", methods{
		http.MethodGet:    s.handleGetCategory,
		http.MethodPut:    s.handleUpdateCategory,
		http.MethodDelete: s.handleDeleteCategory,
	})

	s.route(mux, "/transactions", methods{http.MethodGet: s.handleListTransactions, http.MethodPost: s.handleCreateTransaction})
	s.route(mux, "/transactions/{id}", methods{
		http.MethodGet:    s.handleGetTransaction,
		http.MethodPut:    s.handleUpdateTransaction,
		http.MethodDelete: s.handleDeleteTransaction,
	})

	s.route(mux, "/transfers", methods{http.MethodGet: s.handleListTransfers, http.MethodPost: s.handleCreateTransfer})
	s.route(mux, "/transfers/{id}", methods{http.MethodGet: s.handleGetTransfer, http.MethodDelete: s.handleDeleteTransfer})

	s.route(mux, "/dashboard", methods{http.MethodGet: s.handleDashboard})
	s.route(mux, "/statistics", methods{http.MethodGet: s.handleStatistics})
	s.route(mux, "/statistics/chart.png", methods{http.MethodGet: s.handleChart})

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("not found").Write(w)
	})
}

type methods map[string]http.HandlerFunc

// route registers one handler per method and a fallback answering 405 for
// the rest.
func (s *Server) route(mux *http.ServeMux, path string, m methods) {
	allowed := make([]string, 0, len(m))
	for method, h := range m {
		mux.HandleFunc(method+" "+path, h)
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")
	mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowedError(allow).Write(w)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown stops the rate limiter and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
