package merchant

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehound/pricehound/internal/price"
)

// Otto-style product tiles: one tile per listing with a single price
// element that merges whole and fractional parts into a display string
// such as "ab 279,99 €".
const (
	ottoTileSelector  = "#reptile-tilelist article"
	ottoTitleSelector = ".find_tile__name"
	ottoPriceSelector = "span.find_tile__retailPrice"
)

// foldTitle lower-cases and strips everything non-alphanumeric so that
// punctuation and whitespace differences between the query and the tile
// title do not break the match.
func foldTitle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func extractOtto(doc *goquery.Document, productName string) (price.RawPrice, error) {
	query := foldTitle(productName)

	var (
		raw   price.RawPrice
		found bool
	)
	doc.Find(ottoTileSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := foldTitle(s.Find(ottoTitleSelector).First().Text())
		if title == "" || !strings.Contains(title, query) {
			return true
		}

		priceEl := s.Find(ottoPriceSelector).First()
		if priceEl.Length() == 0 {
			return false
		}
		raw = price.SplitDecimal(strings.TrimSpace(priceEl.Text()))
		found = true
		return false
	})

	if !found {
		return price.RawPrice{}, ErrNoListing
	}
	return raw, nil
}
