// Package ledger owns all writes of deals and price history. Every
// observation lands as an immutable history row; the deal row carries the
// denormalized lowest observed price.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDealNotFound is returned by read methods for untracked products.
var ErrDealNotFound = errors.New("deal not found")

// Deal is one tracked product. LowestPrice is nil until a successful
// observation exists.
type Deal struct {
	ID          uuid.UUID `json:"id"`
	ProductName string    `json:"product_name"`
	LowestPrice *int64    `json:"lowest_price"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PriceHistory is one immutable observation. A nil price means the
// merchant was checked and no price was found.
type PriceHistory struct {
	ID           uuid.UUID `json:"id"`
	DealID       uuid.UUID `json:"deal_id"`
	PriceInCents *int64    `json:"price_in_cents"`
	URL          string    `json:"url"`
	Merchant     string    `json:"merchant"`
	CreatedAt    time.Time `json:"created_at"`
}
