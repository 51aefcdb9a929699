// Package http exposes the JSON API. The middleware chain follows the same
// order on every route: request id and logging, security headers, rate
// limiting on mutating methods, then bearer-token auth.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Amansingh0807/OptExAI/internal/ai"
	"github.com/Amansingh0807/OptExAI/internal/cache"
	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/services"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

// ReceiptScanner extracts transaction fields from a receipt image.
type ReceiptScanner interface {
	Scan(ctx context.Context, image []byte, mimeType string) (ai.ReceiptScan, error)
}

type Server struct {
	http.Server

	repo     *storage.Repository
	accounts *services.AccountService
	txs      *services.TransactionService
	budgets  *services.BudgetService
	scanner  ReceiptScanner
	logger   *log.Logger

	rateLimiter *rateLimiter

	// Read-path caches keyed by owner; writes drop the owner's entries.
	accountsCache *cache.LRU[[]services.AccountView]
	budgetCache   *cache.LRU[services.BudgetStatus]
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(
	addr string,
	repo *storage.Repository,
	accounts *services.AccountService,
	txs *services.TransactionService,
	budgets *services.BudgetService,
	scanner ReceiptScanner,
	requestsPerMinute int,
	logger *log.Logger,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		repo:          repo,
		accounts:      accounts,
		txs:           txs,
		budgets:       budgets,
		scanner:       scanner,
		logger:        logger.WithComponent(log.ComponentHTTP),
		rateLimiter:   newRateLimiter(requestsPerMinute),
		accountsCache: cache.NewLRU[[]services.AccountView](500, 5*time.Minute),
		budgetCache:   cache.NewLRU[services.BudgetStatus](500, time.Minute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/accounts", s.protected(s.handleCreateAccount))
	mux.HandleFunc("GET /api/accounts", s.protected(s.handleListAccounts))
	mux.HandleFunc("GET /api/accounts/{id}", s.protected(s.handleGetAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.protected(s.handleDeleteAccount))
	mux.HandleFunc("POST /api/accounts/{id}/default", s.protected(s.handleSetDefaultAccount))

	mux.HandleFunc("POST /api/transactions", s.protected(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", s.protected(s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.protected(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.protected(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.protected(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/budget", s.protected(s.handleGetBudget))
	mux.HandleFunc("PUT /api/budget", s.protected(s.handleUpsertBudget))

	mux.HandleFunc("POST /api/receipts/scan", s.protected(s.handleScanReceipt))

	mux.HandleFunc("GET /api/currency", s.protected(s.handleGetCurrency))
	mux.HandleFunc("PUT /api/currency", s.protected(s.handleUpdateCurrency))

	return s
}

// Close releases the server's background resources.
func (s *Server) Close() {
	s.rateLimiter.stop()
}

type contextKey string

const (
	ownerKey     contextKey = "owner"
	requestIDKey contextKey = "request_id"
)

// owner returns the authenticated user stored by the auth middleware.
func owner(ctx context.Context) core.User {
	u, _ := ctx.Value(ownerKey).(core.User)
	return u
}

// requestIDFrom extracts the request ID stored by the middleware chain.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// protected is the standard middleware chain for API routes.
func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()
		clientIP := extractClientIP(r)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		user, err := s.authenticate(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		r = r.WithContext(context.WithValue(ctx, ownerKey, user))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

// authenticate resolves the bearer token to its owner.
func (s *Server) authenticate(r *http.Request) (core.User, error) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return core.User{}, core.ErrUnauthorized
	}
	return s.repo.GetUserByToken(r.Context(), header[len(prefix):])
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// invalidateOwner drops every cached read for the owner after a write.
func (s *Server) invalidateOwner(ownerID string) {
	s.accountsCache.DeletePrefix(ownerID + ":")
	s.budgetCache.DeletePrefix(ownerID + ":")
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

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.repo.GetUserByToken(r.Context(), "readiness-probe"); err != nil && err != core.ErrUnauthorized {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
