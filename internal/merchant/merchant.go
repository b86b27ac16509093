// Package merchant defines the closed set of supported retailer sites and
// their per-site price extraction rules.
package merchant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehound/pricehound/internal/price"
)

// ErrNoListing signals that a search page rendered fine but carried no
// listing matching the product, or the matching listing had no price
// element. It is a normal outcome, not a fault.
var ErrNoListing = errors.New("no matching listing with a price")

// ErrUnsupported signals a base URL outside the supported merchant set.
// Hitting it means a configuration or programming defect.
var ErrUnsupported = errors.New("unsupported merchant base url")

// Extractor locates the listing matching productName in a rendered search
// page and returns its raw price, or ErrNoListing.
type Extractor func(doc *goquery.Document, productName string) (price.RawPrice, error)

// Merchant binds one retailer to its URLs, render wait selector, and
// extractor. The set of values is closed: only the package-level variables
// below exist, so an unknown merchant cannot be constructed at runtime.
type Merchant struct {
	name         string
	baseURL      string
	searchPath   string
	waitSelector string
	extract      Extractor
}

// Supported merchants.
var (
	Amazon = Merchant{
		name:         "AMAZON",
		baseURL:      "https://www.amazon.de",
		searchPath:   "/s?k=%s",
		waitSelector: `div[data-component-type="s-search-result"]`,
		extract:      extractAmazon,
	}
	Otto = Merchant{
		name:         "OTTO",
		baseURL:      "https://www.otto.de",
		searchPath:   "/suche/%s",
		waitSelector: `#reptile-tilelist article`,
		extract:      extractOtto,
	}
)

// All returns the supported merchants in a stable order.
func All() []Merchant {
	return []Merchant{Amazon, Otto}
}

// FromBaseURL resolves a configured base URL to its merchant.
func FromBaseURL(baseURL string) (Merchant, error) {
	for _, m := range All() {
		if m.baseURL == baseURL {
			return m, nil
		}
	}
	return Merchant{}, fmt.Errorf("%w: %q", ErrUnsupported, baseURL)
}

// Name returns the merchant's result-map key.
func (m Merchant) Name() string { return m.name }

// BaseURL returns the merchant's site root.
func (m Merchant) BaseURL() string { return m.baseURL }

// WaitSelector returns the CSS selector the renderer waits on before the
// page counts as rendered.
func (m Merchant) WaitSelector() string { return m.waitSelector }

// SearchURL builds the canonical product-search URL, encoding spaces with
// the merchant's query convention.
func (m Merchant) SearchURL(productName string) string {
	q := strings.ReplaceAll(strings.TrimSpace(productName), " ", "+")
	return m.baseURL + fmt.Sprintf(m.searchPath, q)
}

// ExtractPrice runs the merchant's extractor over a rendered document.
func (m Merchant) ExtractPrice(doc *goquery.Document, productName string) (price.RawPrice, error) {
	if m.extract == nil {
		return price.RawPrice{}, fmt.Errorf("%w: %q", ErrUnsupported, m.name)
	}
	return m.extract(doc, productName)
}
