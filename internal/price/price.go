// Package price converts merchant-formatted price strings into minor
// currency units.
package price

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var nonDigit = regexp.MustCompile(`[^\d]`)

// RawPrice is the unparsed price an extractor pulls off a listing page,
// split into the whole-unit and fractional portions as displayed.
type RawPrice struct {
	Whole    string
	Fraction string
}

// Normalize converts a raw whole/fraction pair into an integer count of
// cents. The whole part may carry thousands separators, currency symbols,
// non-breaking spaces, or promotional prefixes such as "ab"; everything
// that is not a digit is stripped. The fraction is truncated to its first
// two digits and right-padded with zeros, an empty fraction meaning "00".
func Normalize(whole, fraction string) (int64, error) {
	wholeDigits := nonDigit.ReplaceAllString(whole, "")
	if wholeDigits == "" {
		return 0, fmt.Errorf("no digits in whole part %q", whole)
	}

	fracDigits := nonDigit.ReplaceAllString(fraction, "")
	if len(fracDigits) > 2 {
		// Truncation, not rounding.
		fracDigits = fracDigits[:2]
	}
	for len(fracDigits) < 2 {
		fracDigits += "0"
	}

	cents, err := strconv.ParseInt(wholeDigits+fracDigits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q.%q: %w", whole, fraction, err)
	}
	return cents, nil
}

// SplitDecimal splits a single displayed price string on its decimal
// separator. German-locale merchants use "," with "." as the thousands
// separator, so a comma wins over a dot when both appear. A string with
// no separator has an empty fraction.
func SplitDecimal(text string) RawPrice {
	if i := strings.Index(text, ","); i >= 0 {
		return RawPrice{Whole: text[:i], Fraction: text[i+1:]}
	}
	if i := strings.Index(text, "."); i >= 0 {
		return RawPrice{Whole: text[:i], Fraction: text[i+1:]}
	}
	return RawPrice{Whole: text}
}
