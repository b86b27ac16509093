package merchant

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehound/pricehound/internal/price"
)

// Amazon-style search results: each result card carries the product title
// in its heading and the displayed price split across two adjacent spans
// for the whole and fractional parts.
const (
	amazonResultSelector   = `div[data-component-type="s-search-result"]`
	amazonTitleSelector    = "h2 span"
	amazonWholeSelector    = ".a-price-whole"
	amazonFractionSelector = ".a-price-fraction"
)

func extractAmazon(doc *goquery.Document, productName string) (price.RawPrice, error) {
	query := strings.ToLower(strings.TrimSpace(productName))

	var (
		raw   price.RawPrice
		found bool
	)
	doc.Find(amazonResultSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.ToLower(strings.TrimSpace(s.Find(amazonTitleSelector).First().Text()))
		if title == "" || !strings.Contains(title, query) {
			return true
		}

		// First matching title wins, with or without a price.
		whole := s.Find(amazonWholeSelector).First()
		fraction := s.Find(amazonFractionSelector).First()
		if whole.Length() == 0 {
			return false
		}
		raw = price.RawPrice{
			Whole:    strings.TrimSpace(whole.Text()),
			Fraction: strings.TrimSpace(fraction.Text()),
		}
		found = true
		return false
	})

	if !found {
		return price.RawPrice{}, ErrNoListing
	}
	return raw, nil
}
