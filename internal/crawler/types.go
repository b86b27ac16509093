// Package crawler contains the price-discovery core: the robots gate, the
// page renderer, and the orchestrator that turns one product name into a
// per-merchant set of price observations.
package crawler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PolicyDeniedMessage is the per-merchant marker surfaced when robots
// exclusion blocks a crawl.
const PolicyDeniedMessage = "Not allowed by robots.txt"

// Page is a rendered DOM snapshot of a merchant search page.
type Page struct {
	URL      string
	Body     []byte
	Duration time.Duration
}

// Observation is one merchant's entry in a discovery result set. Price is
// nil when the merchant was checked and no price was found, or when the
// pipeline failed; Error carries the policy/fault marker in those cases.
type Observation struct {
	URL   string `json:"url"`
	Price *int64 `json:"price"`
	Error string `json:"error,omitempty"`
}

// PriceRecord is what the orchestrator hands to the ledger after one
// merchant pipeline finishes. A nil price still produces a history row.
type PriceRecord struct {
	ProductName  string
	PriceInCents *int64
	SourceURL    string
	Merchant     string
}

// RecordOutcome reports what the ledger did with a record.
type RecordOutcome struct {
	DealID      uuid.UUID
	NewLowest   bool
	LowestPrice *int64
}

// StoreError marks persistence connectivity or transaction failures so the
// HTTP boundary can surface them distinctly from per-merchant faults.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PriceDropEvent is published when a discovery run sets a new lowest price.
type PriceDropEvent struct {
	DealID       string `json:"deal_id"`
	ProductName  string `json:"product_name"`
	Merchant     string `json:"merchant"`
	PriceInCents int64  `json:"price_in_cents"`
	SourceURL    string `json:"source_url"`
	ObservedAt   int64  `json:"observed_at"`
}
