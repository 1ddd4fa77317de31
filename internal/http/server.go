package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"dotproduct/internal/auth"
	"dotproduct/internal/core"
	"dotproduct/internal/log"
	"dotproduct/internal/middleware/cors"
	"dotproduct/internal/middleware/ratelimit"
	"dotproduct/internal/middleware/security"
	"dotproduct/internal/middleware/trace"
)

// Authenticator is the auth surface the API needs.
type Authenticator interface {
	Register(ctx context.Context, req auth.RegisterRequest) (core.Profile, error)
	Login(ctx context.Context, username, password string) (auth.LoginResult, error)
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
	Logout(ctx context.Context, token string) error
}

// Finance is the owner-scoped CRUD and aggregation surface.
type Finance interface {
	ListCategories(ctx context.Context, userID int64, f core.CategoryFilter) ([]core.Category, error)
	GetCategory(ctx context.Context, userID, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, userID int64, in core.CategoryInput) (core.Category, error)
	UpdateCategory(ctx context.Context, userID, id int64, in core.CategoryInput, partial bool) (core.Category, error)
	DeleteCategory(ctx context.Context, userID, id int64) error

	ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, userID int64, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id int64, in core.TransactionInput, partial bool) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error

	ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
	GetBudget(ctx context.Context, userID, id int64) (core.Budget, error)
	CreateBudget(ctx context.Context, userID int64, in core.BudgetInput) (core.Budget, error)
	UpdateBudget(ctx context.Context, userID, id int64, in core.BudgetInput, partial bool) (core.Budget, error)
	DeleteBudget(ctx context.Context, userID, id int64) error

	FinancialSummary(ctx context.Context, userID int64) (core.FinancialSummary, error)
	CategorySummary(ctx context.Context, userID int64) ([]core.CategoryTotal, error)
	BudgetStatus(ctx context.Context, userID int64) ([]core.BudgetStatus, error)
}

// Options configures NewServer.
type Options struct {
	Addr    string
	Auth    Authenticator
	Finance Finance
	Logger  *log.Logger

	// Ping reports store health for /health/. Optional.
	Ping func(ctx context.Context) error

	SessionCookieName string
	CSRFCookieName    string
	CookieSecure      bool
	CSRFEnforce       bool

	CORSAllowedOrigins []string
	AuthRateLimit      int
}

type Server struct {
	http.Server
	auth     Authenticator
	finance  Finance
	ping     func(ctx context.Context) error
	logger   *log.Logger
	cookies  cookieConfig
	csrf     bool
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		auth:    opts.Auth,
		finance: opts.Finance,
		ping:    opts.Ping,
		logger:  logger,
		cookies: cookieConfig{
			session: opts.SessionCookieName,
			csrf:    opts.CSRFCookieName,
			secure:  opts.CookieSecure,
		},
		csrf:     opts.CSRFEnforce,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.AuthRateLimit}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
	}
	if s.cookies.session == "" {
		s.cookies.session = "sessionid"
	}
	if s.cookies.csrf == "" {
		s.cookies.csrf = "csrftoken"
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(writeNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(writeMethodNotAllowed)
	s.routes(router)

	var handler http.Handler = router
	handler = cors.New(opts.CORSAllowedOrigins).Handler(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(r *mux.Router) {
	throttled := s.limiter.Middleware(s.detector.ExtractClientIP, writeThrottled)

	r.HandleFunc("/health/", s.handleHealth).Methods(http.MethodGet)

	r.Handle("/auth/register/", throttled(http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	r.Handle("/auth/login/", throttled(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	r.Handle("/auth/logout/", s.authed(s.handleLogout)).Methods(http.MethodPost)
	r.Handle("/auth/user/", s.authed(s.handleCurrentUser)).Methods(http.MethodGet)

	r.Handle("/categories/", s.authed(s.handleListCategories)).Methods(http.MethodGet)
	r.Handle("/categories/", s.authed(s.handleCreateCategory)).Methods(http.MethodPost)
	r.Handle("/categories/{id:[0-9]+}/", s.authed(s.handleGetCategory)).Methods(http.MethodGet)
	r.Handle("/categories/{id:[0-9]+}/", s.authed(s.handleUpdateCategory)).Methods(http.MethodPut, http.MethodPatch)
	r.Handle("/categories/{id:[0-9]+}/", s.authed(s.handleDeleteCategory)).Methods(http.MethodDelete)

	r.Handle("/transactions/", s.authed(s.handleListTransactions)).Methods(http.MethodGet)
	r.Handle("/transactions/", s.authed(s.handleCreateTransaction)).Methods(http.MethodPost)
	r.Handle("/transactions/{id:[0-9]+}/", s.authed(s.handleGetTransaction)).Methods(http.MethodGet)
	r.Handle("/transactions/{id:[0-9]+}/", s.authed(s.handleUpdateTransaction)).Methods(http.MethodPut, http.MethodPatch)
	r.Handle("/transactions/{id:[0-9]+}/", s.authed(s.handleDeleteTransaction)).Methods(http.MethodDelete)

	r.Handle("/budgets/", s.authed(s.handleListBudgets)).Methods(http.MethodGet)
	r.Handle("/budgets/", s.authed(s.handleCreateBudget)).Methods(http.MethodPost)
	r.Handle("/budgets/{id:[0-9]+}/", s.authed(s.handleGetBudget)).Methods(http.MethodGet)
	r.Handle("/budgets/{id:[0-9]+}/", s.authed(s.handleUpdateBudget)).Methods(http.MethodPut, http.MethodPatch)
	r.Handle("/budgets/{id:[0-9]+}/", s.authed(s.handleDeleteBudget)).Methods(http.MethodDelete)

	r.Handle("/financial-summary/", s.authed(s.handleFinancialSummary)).Methods(http.MethodGet)
	r.Handle("/category-summary/", s.authed(s.handleCategorySummary)).Methods(http.MethodGet)
	r.Handle("/budget-status/", s.authed(s.handleBudgetStatus)).Methods(http.MethodGet)
}

// Shutdown drains in-flight requests and stops background helpers.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type healthBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Health check failed", log.FieldError, err.Error())
			NewJSONResponse().
				Status(http.StatusServiceUnavailable).
				Body(healthBody{Status: "unhealthy", Message: "Database unavailable"}).
				Write(w)
			return
		}
	}
	NewJSONResponse().
		Body(healthBody{Status: "healthy", Message: "DotProduct API is running successfully"}).
		Write(w)
}
