// Package http exposes the calendar over a JSON API. Routing stays on
// the standard mux; cross-cutting concerns (security headers, request
// ids, rate limiting, response caching) live in middleware and the
// shared cache package.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"paycal/internal/cache"
	"paycal/internal/services"
	"paycal/internal/store"
)

const (
	matrixCacheSize = 100
	matrixCacheTTL  = 5 * time.Minute
	cleanupInterval = 10 * time.Minute
)

type Server struct {
	http.Server
	svc          *services.CalendarService
	snapshots    store.SnapshotRepository
	defaultScope string

	rateLimiter  *rateLimiter
	matrixCache  *cache.LRUCache[calendarResponse]
	cacheManager *cache.Manager

	// Each scope's writes bump its version; cached month responses are
	// keyed by version, so stale entries become unreachable and age out.
	versionMu     sync.Mutex
	scopeVersions map[string]uint64

	// now is swappable for tests; handlers derive "today" from it.
	now func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware around the calendar service.
// The snapshot repository may be nil; the balance endpoint then always
// computes fresh figures.
func NewServer(addr string, svc *services.CalendarService, snapshots store.SnapshotRepository, defaultScope string) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		svc:          svc,
		snapshots:    snapshots,
		defaultScope: defaultScope,
		rateLimiter:  newRateLimiter(),
		matrixCache:   cache.NewLRUCache[calendarResponse](matrixCacheSize, matrixCacheTTL),
		cacheManager:  cache.NewManager(),
		scopeVersions: make(map[string]uint64),
		now:           time.Now,
	}

	s.cacheManager.Register(s.matrixCache)
	s.cacheManager.StartCleanup(cleanupInterval)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/api/calendar", s.withMiddleware(s.handleGetCalendar))
	mux.HandleFunc("/api/calendar/day", s.withMiddleware(s.handleUpsertDay))
	mux.HandleFunc("/api/calendar/recurring", s.withMiddleware(s.handleCreateRecurring))
	mux.HandleFunc("/api/calendar/recurring/delete", s.withMiddleware(s.handleDeleteRecurring))
	mux.HandleFunc("/api/calendar/balance", s.withMiddleware(s.handleBalance))
	mux.HandleFunc("/api/calendar/projection", s.withMiddleware(s.handleProjection))

	return s
}

// Shutdown stops the HTTP server and the background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers, request ids, rate limiting on
// writes, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
