package config

import (
	"strings"
)

// SelectorRules is the declarative extraction table for one retailer family.
// A single rules-driven extractor interprets these; a retailer only gets its
// own concrete code when control flow genuinely diverges.
type SelectorRules struct {
	Title          string
	LocalizedTitle string
	Price          string
	OriginalPrice  string
	Image          string
	Rating         string
	ReviewCount    string
	Brand          string
	Description    string
	Barcode        string   // element carrying the barcode
	BarcodeAttr    string   // attribute on that element, e.g. "data-gtin"
	AddToCart      string   // presence of this control implies purchasable
	OutOfStockText []string // explicit unavailability phrases, lowercase

	SearchPath string // printf template, %s = url-escaped query
	SearchItem string // container selector for one search result
	ItemLink   string // anchor inside a search result

	DecimalComma bool   // locale writes 1.234,56
	Charset      string // "" means UTF-8; otherwise e.g. "iso-8859-1"
	Render       bool   // fetch through the headless browser
}

// Retailer is one construction-time retailer configuration. Family variants
// (same chain, different country site) share selector rules and differ only in
// domain, locale and currency.
type Retailer struct {
	ID       string
	Name     string
	Domain   string
	Country  string
	Locale   string
	Currency string
	Active   bool
	Rules    SelectorRules
}

// souqRules covers the souq-style storefronts (noon-like markup, Arabic
// localized titles, SAR/AED pricing).
func souqRules() SelectorRules {
	return SelectorRules{
		Title:          "h1.product-title",
		LocalizedTitle: "h1.product-title-ar",
		Price:          "div.price-box span.now",
		OriginalPrice:  "div.price-box span.was",
		Image:          "div.gallery img.main",
		Rating:         "div.rating span.value",
		ReviewCount:    "div.rating span.count",
		Brand:          "a.brand-link",
		Description:    "div.product-description",
		Barcode:        "div.product-meta",
		BarcodeAttr:    "data-gtin",
		AddToCart:      "button.add-to-cart",
		OutOfStockText: []string{"out of stock", "currently unavailable", "غير متوفر"},
		SearchPath:     "/search?q=%s",
		SearchItem:     "div.search-results div.product-card",
		ItemLink:       "a.product-link",
	}
}

// euroShopRules covers the central-European storefronts: comma decimals and
// legacy latin-1 encoded pages.
func euroShopRules() SelectorRules {
	return SelectorRules{
		Title:          "h1[itemprop=name]",
		Price:          "span[itemprop=price]",
		OriginalPrice:  "span.strike-price",
		Image:          "img[itemprop=image]",
		Rating:         "span.stars-label",
		ReviewCount:    "span.review-count",
		Brand:          "span[itemprop=brand]",
		Description:    "div[itemprop=description]",
		Barcode:        "span[itemprop=gtin13]",
		BarcodeAttr:    "content",
		AddToCart:      "button#buy-now",
		OutOfStockText: []string{"nicht verfügbar", "ausverkauft", "out of stock"},
		SearchPath:     "/suche?begriff=%s",
		SearchItem:     "ul.result-list li.result",
		ItemLink:       "a.result-title",
		DecimalComma:   true,
		Charset:        "iso-8859-1",
	}
}

// megaStoreRules covers the US storefront family; product pages are rendered
// client-side, so the fetch goes through the browser when rendering is enabled.
func megaStoreRules() SelectorRules {
	return SelectorRules{
		Title:          "h1[data-testid=product-name]",
		Price:          "span[data-testid=price-current]",
		OriginalPrice:  "span[data-testid=price-was]",
		Image:          "img[data-testid=hero-image]",
		Rating:         "span[data-testid=rating-value]",
		ReviewCount:    "a[data-testid=review-count]",
		Brand:          "a[data-testid=brand]",
		Description:    "div[data-testid=description]",
		Barcode:        "div[data-testid=product-root]",
		BarcodeAttr:    "data-upc",
		AddToCart:      "button[data-testid=add-to-cart]",
		OutOfStockText: []string{"sold out", "out of stock"},
		SearchPath:     "/s?k=%s",
		SearchItem:     "div[data-testid=search-result]",
		ItemLink:       "a[data-testid=result-link]",
		Render:         true,
	}
}

// Retailers returns the full retailer table. IDs are stable and referenced by
// listings, so entries are only ever deactivated, never removed.
func Retailers() []Retailer {
	return []Retailer{
		{
			ID: "souqdirect-sa", Name: "SouqDirect KSA", Domain: "souqdirect-sa.example.com",
			Country: "SA", Locale: "ar-SA", Currency: "SAR", Active: true, Rules: souqRules(),
		},
		{
			ID: "souqdirect-ae", Name: "SouqDirect UAE", Domain: "souqdirect-ae.example.com",
			Country: "AE", Locale: "ar-AE", Currency: "AED", Active: true, Rules: souqRules(),
		},
		{
			ID: "souqdirect-eg", Name: "SouqDirect Egypt", Domain: "souqdirect-eg.example.com",
			Country: "EG", Locale: "ar-EG", Currency: "EGP", Active: false, Rules: souqRules(),
		},
		{
			ID: "warenhaus-de", Name: "Warenhaus", Domain: "warenhaus-de.example.com",
			Country: "DE", Locale: "de-DE", Currency: "EUR", Active: true, Rules: euroShopRules(),
		},
		{
			ID: "megastore-us", Name: "MegaStore US", Domain: "megastore-us.example.com",
			Country: "US", Locale: "en-US", Currency: "USD", Active: true, Rules: megaStoreRules(),
		},
	}
}

// RetailerByID looks a retailer up by its stable id.
func RetailerByID(id string) (Retailer, bool) {
	for _, r := range Retailers() {
		if r.ID == id {
			return r, true
		}
	}
	return Retailer{}, false
}

// RetailerByDomain resolves the retailer owning a hostname. This doubles as
// the outbound allow-list: hosts that resolve to no retailer must never be
// fetched.
func RetailerByDomain(host string) (Retailer, bool) {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, r := range Retailers() {
		if host == r.Domain {
			return r, true
		}
	}
	return Retailer{}, false
}

// ActiveRetailers returns the active retailer set, optionally filtered by
// country code. An empty country means all active retailers globally.
func ActiveRetailers(country string) []Retailer {
	country = strings.ToUpper(strings.TrimSpace(country))
	var out []Retailer
	for _, r := range Retailers() {
		if !r.Active {
			continue
		}
		if country != "" && r.Country != country {
			continue
		}
		out = append(out, r)
	}
	return out
}
