package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricehound/pricehound/internal/crawler"
	"github.com/pricehound/pricehound/internal/ledger"
)

type stubDiscoverer struct {
	observations map[string]crawler.Observation
	err          error
}

func (s *stubDiscoverer) Discover(context.Context, string) (map[string]crawler.Observation, error) {
	return s.observations, s.err
}

type stubDeals struct {
	deal    ledger.Deal
	dealErr error
	history []ledger.PriceHistory
	histErr error
	pingErr error
}

func (s *stubDeals) GetDeal(context.Context, string) (ledger.Deal, error) {
	return s.deal, s.dealErr
}

func (s *stubDeals) History(context.Context, uuid.UUID) ([]ledger.PriceHistory, error) {
	return s.history, s.histErr
}

func (s *stubDeals) Ping(context.Context) error {
	return s.pingErr
}

func ptr(v int64) *int64 { return &v }

func doRequest(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestBrowseReturnsResultsWithHistory(t *testing.T) {
	t.Parallel()

	dealID := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	discoverer := &stubDiscoverer{
		observations: map[string]crawler.Observation{
			"AMAZON": {URL: "https://www.amazon.de/s?k=ssd", Price: ptr(2990)},
			"OTTO":   {URL: "https://www.otto.de", Error: "Not allowed by robots.txt"},
		},
	}
	deals := &stubDeals{
		deal: ledger.Deal{ID: dealID, ProductName: "ssd", LowestPrice: ptr(2990)},
		history: []ledger.PriceHistory{
			{DealID: dealID, PriceInCents: ptr(3190), Merchant: "AMAZON", CreatedAt: now.Add(-time.Hour)},
			{DealID: dealID, PriceInCents: ptr(2990), Merchant: "AMAZON", CreatedAt: now},
		},
	}
	srv := NewServer(discoverer, deals, zap.NewNop())

	rec := doRequest(t, srv, "/api/v1/browser/ssd")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp browseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ssd", resp.ProductName)
	require.NotNil(t, resp.LowestPrice)
	require.Equal(t, int64(2990), *resp.LowestPrice)
	require.Len(t, resp.Results, 2)

	amazon := resp.Results["AMAZON"]
	require.NotNil(t, amazon.Price)
	require.Equal(t, int64(2990), *amazon.Price)
	require.Len(t, amazon.PriceHistory, 2)

	otto := resp.Results["OTTO"]
	require.Nil(t, otto.Price)
	require.Equal(t, "Not allowed by robots.txt", otto.Error)
	require.Empty(t, otto.PriceHistory)
}

func TestBrowseUntrackedProductHasNoLowestPrice(t *testing.T) {
	t.Parallel()

	discoverer := &stubDiscoverer{
		observations: map[string]crawler.Observation{
			"AMAZON": {URL: "https://www.amazon.de/s?k=x", Price: nil},
		},
	}
	deals := &stubDeals{dealErr: ledger.ErrDealNotFound}
	srv := NewServer(discoverer, deals, zap.NewNop())

	rec := doRequest(t, srv, "/api/v1/browser/x")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp browseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.LowestPrice)
}

func TestBrowseStoreFailureReturns503(t *testing.T) {
	t.Parallel()

	discoverer := &stubDiscoverer{
		err: &crawler.StoreError{Op: "record", Err: errors.New("connection refused")},
	}
	srv := NewServer(discoverer, &stubDeals{}, zap.NewNop())

	rec := doRequest(t, srv, "/api/v1/browser/ssd")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Contains(t, payload["error"], "connecting")
	require.NotContains(t, payload["error"], "goroutine")
}

func TestBrowseUnexpectedFailureReturns500(t *testing.T) {
	t.Parallel()

	discoverer := &stubDiscoverer{err: errors.New("boom")}
	srv := NewServer(discoverer, &stubDeals{}, zap.NewNop())

	rec := doRequest(t, srv, "/api/v1/browser/ssd")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetDealNotFound(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubDiscoverer{}, &stubDeals{dealErr: ledger.ErrDealNotFound}, zap.NewNop())

	rec := doRequest(t, srv, "/api/v1/dealz/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDealReturnsDealAndHistory(t *testing.T) {
	t.Parallel()

	dealID := uuid.New()
	deals := &stubDeals{
		deal: ledger.Deal{ID: dealID, ProductName: "ssd", LowestPrice: ptr(4950), Currency: "EUR"},
		history: []ledger.PriceHistory{
			{DealID: dealID, PriceInCents: ptr(4950), Merchant: "OTTO"},
		},
	}
	srv := NewServer(&stubDiscoverer{}, deals, zap.NewNop())

	rec := doRequest(t, srv, "/api/v1/dealz/ssd")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dealResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ssd", resp.Deal.ProductName)
	require.Len(t, resp.History, 1)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubDiscoverer{}, &stubDeals{}, zap.NewNop())

	rec := doRequest(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReflectsDatabasePing(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubDiscoverer{}, &stubDeals{pingErr: errors.New("down")}, zap.NewNop())
	rec := doRequest(t, srv, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv = NewServer(&stubDiscoverer{}, &stubDeals{}, zap.NewNop())
	rec = doRequest(t, srv, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubDiscoverer{}, &stubDeals{}, zap.NewNop())
	rec := doRequest(t, srv, "/healthz")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestGetDealHistoryStoreFailureReturns503(t *testing.T) {
	t.Parallel()

	deals := &stubDeals{
		deal:    ledger.Deal{ID: uuid.New(), ProductName: "ssd"},
		histErr: &crawler.StoreError{Op: "select history", Err: errors.New("connection refused")},
	}
	srv := NewServer(&stubDiscoverer{}, deals, zap.NewNop())

	rec := doRequest(t, srv, "/api/v1/dealz/ssd")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Contains(t, payload["error"], "connecting")
}
