package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeReturnsStatusOK(t *testing.T) {
	t.Parallel()

	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	p := NewCollyProber("pricehound-bot/0.1", 0)
	status, err := p.Probe(context.Background(), srv.URL+"/search?q=ssd")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "pricehound-bot/0.1", gotAgent)
}

func TestProbeSurfacesServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	p := NewCollyProber("pricehound-bot/0.1", 0)
	status, err := p.Probe(context.Background(), srv.URL+"/search")
	require.Error(t, err)
	require.Equal(t, http.StatusServiceUnavailable, status)
}

func TestProbeUnreachableHost(t *testing.T) {
	t.Parallel()

	p := NewCollyProber("pricehound-bot/0.1", 0)
	_, err := p.Probe(context.Background(), "http://127.0.0.1:1/")
	require.Error(t, err)
}
