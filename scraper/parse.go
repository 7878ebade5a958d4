package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonPriceChars = regexp.MustCompile(`[^0-9.,]`)
	ratingPattern = regexp.MustCompile(`[0-9]+(?:[.,][0-9]+)?`)
	digitsPattern = regexp.MustCompile(`[0-9]+`)
	slugPattern   = regexp.MustCompile(`[^a-z0-9]+`)
)

// ParsePrice turns retailer price text into a non-negative decimal. Currency
// glyphs and grouping separators are stripped; the remaining digits are read
// as a decimal in the retailer's locale. Anything unparseable yields 0, which
// callers treat as "no valid price".
func ParsePrice(text string, decimalComma bool) float64 {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	if cleaned == "" {
		return 0
	}

	if decimalComma {
		// 1.234,56 -> 1234.56
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		// 1,234.56 -> 1234.56
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	// Several remaining dots means they were grouping separators after all
	// (e.g. 1.234.567 on a comma-free page): keep only the last as decimal.
	if strings.Count(cleaned, ".") > 1 {
		last := strings.LastIndex(cleaned, ".")
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// ParseRating extracts the first decimal number from rating text, clamped to
// [0,5]. The second return is false when the text contains no number at all.
func ParseRating(text string) (float64, bool) {
	match := ratingPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	if value < 0 {
		value = 0
	}
	if value > 5 {
		value = 5
	}
	return value, true
}

// ParseCount reads review-count text like "(1,024 reviews)" down to the bare
// integer. Missing or non-numeric text yields 0.
func ParseCount(text string) int {
	joined := strings.Join(digitsPattern.FindAllString(text, -1), "")
	if joined == "" {
		return 0
	}
	n, err := strconv.Atoi(joined)
	if err != nil {
		return 0
	}
	return n
}

// Slugify lowercases a product name into a URL-safe slug.
func Slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
