package crawler

import (
	"context"
	"time"
)

// PolicyGate decides whether a URL may be crawled at all.
type PolicyGate interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Renderer loads a URL in a browser, waits for waitSelector to appear, and
// returns the rendered DOM.
type Renderer interface {
	Render(ctx context.Context, rawURL, waitSelector string) (Page, error)
}

// Prober performs the optional plain-HTTP preflight of a search URL and
// reports the status code it saw.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (int, error)
}

// Ledger owns all writes of deals and price history. Implementations must
// be transactional per Record call.
type Ledger interface {
	Record(ctx context.Context, rec PriceRecord) (RecordOutcome, error)
}

// Publisher pushes price-drop events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces entity IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
