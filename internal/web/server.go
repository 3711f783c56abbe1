// Package web provides the HTTP server, handlers and page components for
// sheetmark.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetmark/internal/config"
	"github.com/JonMunkholm/sheetmark/internal/core"
	mw "github.com/JonMunkholm/sheetmark/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed static
var staticFiles embed.FS

// errRateLimited is returned by the rate limiter; its text maps to RATE001.
var errRateLimited = errors.New("rate limit exceeded")

// Server is the HTTP front end of a core.Service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	// stop ends the rate limiters' cleanup goroutines.
	stop context.CancelFunc
}

// NewServer wires routes and middleware for service.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
		stop:    stop,
	}
	s.setupMiddleware(ctx)
	s.setupRoutes(ctx)
	return s
}

func (s *Server) setupMiddleware(ctx context.Context) {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(ctx, s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

func (s *Server) setupRoutes(ctx context.Context) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	uploadLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		uploadLimit = newRateLimiter(ctx, s.cfg.Rate.UploadLimit, time.Minute).middleware
	}

	// Pages
	s.router.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/", s.handleIndex)
		r.With(uploadLimit).Post("/upload", s.handlePageUpload)
		r.Post("/rows/{row}/used", s.handlePageAddUsed)
		r.Post("/rows/{row}/used/remove", s.handlePageRemoveUsed)
		r.Post("/clear", s.handlePageClear)
		r.Get("/"+core.ExportFileName, s.handleExport)
	})

	// JSON API
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(mw.APIKeyAuth(&s.cfg.Security))
			r.Use(s.withSession)

			r.Get("/table", s.handleGetTable)
			r.Delete("/table", s.handleClearTable)
			r.With(uploadLimit).Post("/upload", s.handleAPIUpload)
			r.Post("/rows/{row}/used", s.handleAPIAddUsed)
			r.Delete("/rows/{row}/used", s.handleAPIRemoveUsed)
			r.Get("/export", s.handleExport)
			r.Get("/activity", s.handleActivity)
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// Scripts and styles only come from /static.
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter allows rate requests per window per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter starts a cleanup goroutine that runs until ctx is done.
func newRateLimiter(ctx context.Context, rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup(ctx)
	return rl
}

// cleanup drops visitors idle for two windows.
func (rl *rateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// allow consumes a token for ip if one is left in the current window.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(mw.ClientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			respondError(w, r, errRateLimited, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON. Encoding errors are only logged since the
// status line is already out.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "path", r.URL.Path, "error", err)
	}
}
