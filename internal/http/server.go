// Package http provides the JSON API server: taxonomy browsing and editing,
// drag gestures, batched saves, confirmation dialogs and receipt capture.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ricevute/internal/cache"
	"ricevute/internal/core"
	"ricevute/internal/dialog"
	applog "ricevute/internal/log"
	"ricevute/internal/services"
)

// confirmAction is a deferred deletion waiting for its dialog to resolve.
type confirmAction struct {
	pending dialog.Pending
	run     func(context.Context) error
	created time.Time
}

type Server struct {
	http.Server

	session  *services.TaxonomySession
	receipts *services.ReceiptService
	dialogs  *dialog.Broker

	rateLimiter *rateLimiter
	metrics     securityMetrics
	accessLog   *applog.StructuredLogger

	// LRU caches for read-heavy receipt endpoints
	overviewCache *cache.LRUCache[core.MonthOverview]
	receiptsCache *cache.LRUCache[[]core.Receipt]
	cacheManager  *cache.Manager

	confirmMu      sync.Mutex
	pendingConfirm map[string]confirmAction
	dialogTTL      time.Duration

	stopSweep    chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, session *services.TaxonomySession, receipts *services.ReceiptService, dialogTTL time.Duration) *Server {
	mux := http.NewServeMux()
	baseLogger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(baseLogger)(mux),
		},
		session:        session,
		receipts:       receipts,
		dialogs:        dialog.NewBroker(dialogTTL),
		rateLimiter:    newRateLimiter(),
		accessLog:      applog.NewStructuredLogger(baseLogger),
		overviewCache:  cache.NewLRUCache[core.MonthOverview](100, 5*time.Minute),
		receiptsCache:  cache.NewLRUCache[[]core.Receipt](200, 5*time.Minute),
		cacheManager:   cache.NewManager(),
		pendingConfirm: make(map[string]confirmAction),
		dialogTTL:      dialogTTL,
		stopSweep:      make(chan struct{}),
	}

	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.Register(s.receiptsCache)
	s.cacheManager.StartCleanup(time.Minute)
	go s.sweepDialogs()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/taxonomy", s.withSecurityHeaders(s.handleTaxonomy))
	mux.HandleFunc("/api/taxonomy/save", s.withSecurityHeaders(s.handleSave))
	mux.HandleFunc("/api/taxonomy/discard", s.withSecurityHeaders(s.handleDiscard))

	mux.HandleFunc("/api/groups", s.withSecurityHeaders(s.handleCreateGroup))
	mux.HandleFunc("/api/groups/rename", s.withSecurityHeaders(s.handleRenameGroup))
	mux.HandleFunc("/api/groups/delete", s.withSecurityHeaders(s.handleDeleteGroup))

	mux.HandleFunc("/api/items", s.withSecurityHeaders(s.handleCreateItem))
	mux.HandleFunc("/api/items/rename", s.withSecurityHeaders(s.handleRenameItem))
	mux.HandleFunc("/api/items/delete", s.withSecurityHeaders(s.handleDeleteItem))

	mux.HandleFunc("/api/drag/start", s.withSecurityHeaders(s.handleDragStart))
	mux.HandleFunc("/api/drag/hover", s.withSecurityHeaders(s.handleDragHover))
	mux.HandleFunc("/api/drag/drop", s.withSecurityHeaders(s.handleDragDrop))
	mux.HandleFunc("/api/drag/cancel", s.withSecurityHeaders(s.handleDragCancel))

	mux.HandleFunc("/api/confirm", s.withSecurityHeaders(s.handleConfirm))

	mux.HandleFunc("/api/receipts", s.withSecurityHeaders(s.handleReceipts))
	mux.HandleFunc("/api/receipts/delete", s.withSecurityHeaders(s.handleDeleteReceipt))
	mux.HandleFunc("/api/receipts/overview", s.withSecurityHeaders(s.handleMonthOverview))

	return s
}

// sweepDialogs periodically declines expired dialogs and drops their pending
// actions.
func (s *Server) sweepDialogs() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			swept := s.dialogs.Sweep()
			if swept > 0 {
				slog.Info("Swept expired confirmation dialogs", "count", swept)
			}
			cutoff := time.Now().Add(-s.dialogTTL)
			s.confirmMu.Lock()
			for token, action := range s.pendingConfirm {
				if action.created.Before(cutoff) {
					delete(s.pendingConfirm, token)
				}
			}
			s.confirmMu.Unlock()
		case <-s.stopSweep:
			return
		}
	}
}

// Stop releases background goroutines. Safe to call more than once.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.stopSweep)
		s.cacheManager.Stop()
		s.rateLimiter.stop()
	})
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, &s.metrics) {
			slog.WarnContext(ctx, "Suspicious request blocked",
				applog.FieldRequestID, requestID,
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}

		// Rate limit mutations; reads stay unthrottled
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, &s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.accessLog.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
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
