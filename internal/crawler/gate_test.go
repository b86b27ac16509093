package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func robotsServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAllowedRespectsDisallowRules(t *testing.T) {
	t.Parallel()

	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n", nil)
	gate := NewRobotsGate("pricehound-bot/0.1", zap.NewNop())

	require.True(t, gate.Allowed(context.Background(), srv.URL+"/search?q=ssd"))
	require.False(t, gate.Allowed(context.Background(), srv.URL+"/private/page"))
}

func TestAllowedMatchesSpecificUserAgent(t *testing.T) {
	t.Parallel()

	srv := robotsServer(t, http.StatusOK,
		"User-agent: pricehound-bot\nDisallow: /\n\nUser-agent: *\nDisallow:\n", nil)
	gate := NewRobotsGate("pricehound-bot/0.1", zap.NewNop())

	require.False(t, gate.Allowed(context.Background(), srv.URL+"/anything"))
}

func TestAllowedDeniesOnServerError(t *testing.T) {
	t.Parallel()

	srv := robotsServer(t, http.StatusInternalServerError, "", nil)
	gate := NewRobotsGate("pricehound-bot/0.1", zap.NewNop())

	require.False(t, gate.Allowed(context.Background(), srv.URL+"/search"))
}

func TestAllowedDeniesWhenHostUnreachable(t *testing.T) {
	t.Parallel()

	gate := NewRobotsGate("pricehound-bot/0.1", zap.NewNop())
	require.False(t, gate.Allowed(context.Background(), "http://127.0.0.1:1/search"))
}

func TestAllowedTreatsMissingRobotsAsOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	gate := NewRobotsGate("pricehound-bot/0.1", zap.NewNop())
	require.True(t, gate.Allowed(context.Background(), srv.URL+"/search"))
}

func TestAllowedCachesPerHost(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow:\n", &hits)
	gate := NewRobotsGate("pricehound-bot/0.1", zap.NewNop())

	for range 3 {
		require.True(t, gate.Allowed(context.Background(), srv.URL+"/search"))
	}
	require.Equal(t, int32(1), hits.Load())
}
