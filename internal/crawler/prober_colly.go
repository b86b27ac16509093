package crawler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyProber performs the plain-HTTP preflight of a search URL before the
// browser is spent on it. Robots handling is left off: the gate has
// already ruled on the URL by the time a probe runs.
type CollyProber struct {
	userAgent     string
	timeout       time.Duration
	baseCollector *colly.Collector
}

// NewCollyProber builds a prober with a pooled transport.
func NewCollyProber(userAgent string, timeout time.Duration) *CollyProber {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	})
	return &CollyProber{
		userAgent:     userAgent,
		timeout:       timeout,
		baseCollector: c,
	}
}

// Probe implements Prober. It GETs rawURL once and returns the observed
// status code.
func (p *CollyProber) Probe(ctx context.Context, rawURL string) (int, error) {
	collector := p.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if p.userAgent != "" {
		collector.UserAgent = p.userAgent
	}
	collector.SetRequestTimeout(p.timeout)

	var (
		status   int
		probeErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		probeErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return status, fmt.Errorf("probe visit: %w", err)
		}
		if probeErr != nil {
			return status, fmt.Errorf("probe response: %w", probeErr)
		}
		return status, nil
	}
}
