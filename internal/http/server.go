// Package http exposes the ledger over a JSON REST surface. Every
// /transactions route runs behind bearer-token authentication; handlers only
// ever see the resolved user id.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/service"
)

type Server struct {
	http.Server

	auth *service.AuthService
	txns *service.TransactionService

	rateLimiter *rateLimiter

	// Aggregation views are cached per owner and invalidated on writes.
	summaryCache   *cache.LRU[*core.Summary]
	analyticsCache *cache.LRU[*core.Analytics]
	caches         *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, auth *service.AuthService, txns *service.TransactionService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:           auth,
		txns:           txns,
		rateLimiter:    newRateLimiter(),
		summaryCache:   cache.NewLRU[*core.Summary](500, 5*time.Minute),
		analyticsCache: cache.NewLRU[*core.Analytics](500, 5*time.Minute),
		caches:         cache.NewManager(),
	}

	s.caches.Register(s.summaryCache)
	s.caches.Register(s.analyticsCache)
	s.caches.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /auth/register", s.withMiddleware(s.handleRegister))
	mux.HandleFunc("POST /auth/login", s.withMiddleware(s.handleLogin))

	mux.HandleFunc("POST /transactions", s.withMiddleware(s.requireUser(s.handleCreateTransaction)))
	mux.HandleFunc("GET /transactions", s.withMiddleware(s.requireUser(s.handleListTransactions)))
	mux.HandleFunc("GET /transactions/summary", s.withMiddleware(s.requireUser(s.handleSummary)))
	mux.HandleFunc("GET /transactions/analytics", s.withMiddleware(s.requireUser(s.handleAnalytics)))
	mux.HandleFunc("GET /transactions/{id}", s.withMiddleware(s.requireUser(s.handleGetTransaction)))
	mux.HandleFunc("PUT /transactions/{id}", s.withMiddleware(s.requireUser(s.handleUpdateTransaction)))
	mux.HandleFunc("DELETE /transactions/{id}", s.withMiddleware(s.requireUser(s.handleDeleteTransaction)))

	return s
}

// Shutdown stops the cache sweeper and rate limiter before draining the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type contextKey string

const userIDKey contextKey = "user_id"

// userID returns the authenticated caller id placed by requireUser.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// withMiddleware adds request tracing, structured logging, rate limiting on
// mutating methods and the baseline security headers.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := clientAddr(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), contextKey(log.FieldRequestID), requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

// requireUser resolves the bearer token to a stable user id or answers 401.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		id, err := s.auth.Resolve(r.Context(), token)
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err != nil {
			respondError(r.Context(), w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, id)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// invalidateAggregates drops the cached views after any write by owner.
func (s *Server) invalidateAggregates(ownerID string) {
	s.summaryCache.Delete(ownerID)
	s.analyticsCache.Delete(ownerID)
}
