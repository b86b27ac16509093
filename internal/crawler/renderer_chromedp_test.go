package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestRendererConfigDefaults(t *testing.T) {
	t.Parallel()

	r := newRenderer(RendererConfig{}, zap.NewNop())
	require.Equal(t, 1, cap(r.sem))
	require.Equal(t, 10*time.Second, r.timeout)

	r = newRenderer(RendererConfig{MaxParallel: 4, WaitTimeout: 3 * time.Second}, zap.NewNop())
	require.Equal(t, 4, cap(r.sem))
	require.Equal(t, 3*time.Second, r.timeout)
}

func TestAcquireSlotBlocksAtCapacity(t *testing.T) {
	t.Parallel()

	r := newRenderer(RendererConfig{MaxParallel: 1}, zap.NewNop())

	release, err := r.acquireSlot(context.Background())
	require.NoError(t, err)

	// The only slot is taken: a second acquire must fail once its context
	// expires instead of waiting forever.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.acquireSlot(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := r.acquireSlot(context.Background())
	require.NoError(t, err)
	release2()
}

func TestWaitDomainBudgetDisabledWithoutQPS(t *testing.T) {
	t.Parallel()

	r := newRenderer(RendererConfig{}, zap.NewNop())
	require.NoError(t, r.waitDomainBudget(context.Background(), "https://www.amazon.de/s?k=ssd"))

	var limiters int
	r.domainLimiters.Range(func(_, _ any) bool {
		limiters++
		return true
	})
	require.Zero(t, limiters)
}

func TestWaitDomainBudgetReusesPerHostLimiter(t *testing.T) {
	t.Parallel()

	r := newRenderer(RendererConfig{DomainQPS: 1000}, zap.NewNop())

	require.NoError(t, r.waitDomainBudget(context.Background(), "https://www.amazon.de/s?k=a"))
	require.NoError(t, r.waitDomainBudget(context.Background(), "https://www.Amazon.de/s?k=b"))
	require.NoError(t, r.waitDomainBudget(context.Background(), "https://www.otto.de/suche/a"))

	hosts := map[any]*rate.Limiter{}
	r.domainLimiters.Range(func(k, v any) bool {
		hosts[k] = v.(*rate.Limiter)
		return true
	})
	// Case differences collapse onto one host entry.
	require.Len(t, hosts, 2)
	require.Contains(t, hosts, "www.amazon.de")
	require.Contains(t, hosts, "www.otto.de")
}

func TestWaitDomainBudgetHonorsContext(t *testing.T) {
	t.Parallel()

	// One request per hour with the burst spent: the second wait can only
	// end via the context.
	r := newRenderer(RendererConfig{DomainQPS: 1.0 / 3600}, zap.NewNop())
	require.NoError(t, r.waitDomainBudget(context.Background(), "https://www.otto.de/suche/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.waitDomainBudget(ctx, "https://www.otto.de/suche/b")
	require.Error(t, err)
}

func TestForwardCancelPropagates(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()

	cancelParent()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not cancelled")
	}
}

func TestForwardCancelStopDetaches(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	stop()
	cancelParent()

	select {
	case <-child.Done():
		t.Fatal("child context cancelled after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseWithoutBrowserIsSafe(t *testing.T) {
	t.Parallel()

	r := newRenderer(RendererConfig{}, zap.NewNop())
	r.Close()

	var nilRenderer *ChromedpRenderer
	nilRenderer.Close()
}
