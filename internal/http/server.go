// Package http serves the bills API, the receipt files and the employee pages.
package http

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"billed/internal/config"
	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/metrics"
	"billed/internal/routes"
	appweb "billed/web"
)

type (
	// BillService is the bills API the handlers drive.
	BillService interface {
		Upload(ctx context.Context, viewer core.Session, email, fileName string, r io.Reader) (core.UploadResult, error)
		Submit(ctx context.Context, viewer core.Session, id string, in core.Bill) (core.Bill, error)
		Get(ctx context.Context, viewer core.Session, id string) (core.Bill, error)
		List(ctx context.Context, viewer core.Session) ([]core.Bill, error)
	}

	Authenticator interface {
		Authenticate(ctx context.Context, email, password string, userType core.UserType) (core.Session, error)
	}

	TokenManager interface {
		Generate(s core.Session) (string, error)
		Validate(token string) (core.Session, error)
	}

	FileStore interface {
		Open(key string) (io.ReadCloser, string, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Deps are the collaborators of the server.
type Deps struct {
	Config  *config.Config
	Bills   BillService
	Users   Authenticator
	Tokens  TokenManager
	Files   FileStore
	DB      Pinger
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

type Server struct {
	http.Server
	deps         Deps
	pages        map[string]*template.Template
	rateLimiter  *rateLimiter
	logger       *log.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	limit := 60
	if deps.Config != nil {
		limit = deps.Config.RateLimitPerMinute
	}

	s := &Server{
		deps:        deps,
		rateLimiter: newRateLimiter(limit),
		logger:      logger,
	}

	pages, err := parsePages()
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.pages = pages

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string { return middleware.GetReqID(r.Context()) }))
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(securityHeaders)
	r.Use(s.limitPosts)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Get("/static/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		})
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/bills", s.handleCreateBill)
		r.Get("/bills", s.handleListBills)
		r.Get("/bills/{id}", s.handleGetBill)
		r.Patch("/bills/{id}", s.handleUpdateBill)
	})
	r.Get("/files/{key}", s.handleFile)

	r.Get(routes.Login, s.handleLoginPage)
	r.Group(func(r chi.Router) {
		r.Use(s.requirePageSession)
		r.Get(routes.Bills, s.handleBillsPage)
		r.Get(routes.NewBill, s.handleNewBillPage)
		r.Post(routes.NewBill, s.handleNewBillForm)
	})

	return r
}

// accessLog logs every request and records it in the HTTP metrics.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := log.FromContext(ctx)
		clientIP := extractClientIP(r)

		if detectSuspiciousRequest(r) {
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, clientIP,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		route := ""
		if rctx := chi.RouteContext(ctx); rctx != nil {
			route = rctx.RoutePattern()
		}
		s.deps.Metrics.ObserveHTTP(r.Method, route, status, elapsed)

		logger.InfoContext(ctx, "Request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldRoute, route,
			log.FieldStatusCode, status,
			log.FieldDuration, elapsed.Milliseconds(),
			log.FieldClientIP, clientIP)
	})
}

// limitPosts applies the per-IP rate limit to POST requests.
func (s *Server) limitPosts(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			clientIP := extractClientIP(r)
			if !s.rateLimiter.allow(clientIP) {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, clientIP,
					log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
