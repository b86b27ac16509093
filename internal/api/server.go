// Package api exposes the HTTP interface for the price discovery service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pricehound/pricehound/internal/crawler"
	"github.com/pricehound/pricehound/internal/ledger"
	"github.com/pricehound/pricehound/internal/metrics"
)

// Discoverer runs a product search across every configured merchant.
type Discoverer interface {
	Discover(ctx context.Context, productName string) (map[string]crawler.Observation, error)
}

// DealReader serves stored deals without triggering a crawl.
type DealReader interface {
	GetDeal(ctx context.Context, productName string) (ledger.Deal, error)
	History(ctx context.Context, dealID uuid.UUID) ([]ledger.PriceHistory, error)
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the discoverer and the ledger.
type Server struct {
	router     chi.Router
	discoverer Discoverer
	deals      DealReader
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(discoverer Discoverer, deals DealReader, logger *zap.Logger) *Server {
	s := &Server{
		discoverer: discoverer,
		deals:      deals,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(120 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/browser/{product_name}", s.browse)
		r.Get("/dealz/{product_name}", s.getDeal)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.deals.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// merchantResult is the per-merchant entry of the browse response.
type merchantResult struct {
	URL          string         `json:"url"`
	Price        *int64         `json:"price"`
	Error        string         `json:"error,omitempty"`
	PriceHistory []historyPoint `json:"priceHistory"`
}

type historyPoint struct {
	Price     *int64    `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

type browseResponse struct {
	ProductName string                    `json:"productName"`
	LowestPrice *int64                    `json:"lowestPrice"`
	Results     map[string]merchantResult `json:"results"`
}

// browse triggers a live discovery run across every merchant, then folds
// in the stored deal so the client gets the lowest price and per-merchant
// history alongside the fresh observations.
func (s *Server) browse(w http.ResponseWriter, r *http.Request) {
	productName := chi.URLParam(r, "product_name")
	if productName == "" {
		s.writeError(w, http.StatusBadRequest, "product name is required")
		return
	}

	observations, err := s.discoverer.Discover(r.Context(), productName)
	if err != nil {
		var storeErr *crawler.StoreError
		if errors.As(err, &storeErr) {
			s.writeError(w, http.StatusServiceUnavailable, "error connecting to the price store")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := browseResponse{
		ProductName: productName,
		Results:     make(map[string]merchantResult, len(observations)),
	}
	for name, obs := range observations {
		resp.Results[name] = merchantResult{
			URL:          obs.URL,
			Price:        obs.Price,
			Error:        obs.Error,
			PriceHistory: []historyPoint{},
		}
	}

	s.enrichFromLedger(r.Context(), productName, &resp)
	s.writeJSON(w, http.StatusOK, resp)
}

// enrichFromLedger adds the stored lowest price and per-merchant history.
// A read failure here degrades the response rather than failing the run;
// the observations were already persisted.
func (s *Server) enrichFromLedger(ctx context.Context, productName string, resp *browseResponse) {
	deal, err := s.deals.GetDeal(ctx, productName)
	if err != nil {
		if !errors.Is(err, ledger.ErrDealNotFound) {
			s.logger.Warn("deal lookup failed", zap.String("product", productName), zap.Error(err))
		}
		return
	}
	resp.LowestPrice = deal.LowestPrice

	history, err := s.deals.History(ctx, deal.ID)
	if err != nil {
		s.logger.Warn("history lookup failed", zap.String("product", productName), zap.Error(err))
		return
	}
	for _, h := range history {
		entry, ok := resp.Results[h.Merchant]
		if !ok {
			continue
		}
		entry.PriceHistory = append(entry.PriceHistory, historyPoint{
			Price:     h.PriceInCents,
			Timestamp: h.CreatedAt,
		})
		resp.Results[h.Merchant] = entry
	}
}

type dealResponse struct {
	Deal    ledger.Deal           `json:"deal"`
	History []ledger.PriceHistory `json:"history"`
}

// getDeal serves the stored deal and its full history without crawling.
func (s *Server) getDeal(w http.ResponseWriter, r *http.Request) {
	productName := chi.URLParam(r, "product_name")
	if productName == "" {
		s.writeError(w, http.StatusBadRequest, "product name is required")
		return
	}

	deal, err := s.deals.GetDeal(r.Context(), productName)
	if err != nil {
		if errors.Is(err, ledger.ErrDealNotFound) {
			s.writeError(w, http.StatusNotFound, "deal not found")
			return
		}
		var storeErr *crawler.StoreError
		if errors.As(err, &storeErr) {
			s.writeError(w, http.StatusServiceUnavailable, "error connecting to the price store")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	history, err := s.deals.History(r.Context(), deal.ID)
	if err != nil {
		var storeErr *crawler.StoreError
		if errors.As(err, &storeErr) {
			s.writeError(w, http.StatusServiceUnavailable, "error connecting to the price store")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to fetch price history")
		return
	}
	if history == nil {
		history = []ledger.PriceHistory{}
	}
	s.writeJSON(w, http.StatusOK, dealResponse{Deal: deal, History: history})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
