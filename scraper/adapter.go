package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"priceradar/config"
	"priceradar/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// ErrNotFound means the page was reached but no valid product could be
// extracted (missing title or no parseable price). It is a "no result", not
// a failure.
var ErrNotFound = errors.New("no product found on page")

// SourceAdapter extracts normalized records from one retailer.
type SourceAdapter interface {
	// ExtractOne extracts a single product page. Returns ErrNotFound when the
	// page holds no usable product.
	ExtractOne(ctx context.Context, pageURL string) (*models.ExtractedRecord, error)

	// ExtractMany runs a search and extracts a bounded number of results.
	ExtractMany(ctx context.Context, query string) ([]models.ExtractedRecord, error)
}

// rulesAdapter is the single data-driven extractor: all retailer families
// share it, parametrized by their declarative selector rules.
type rulesAdapter struct {
	retailer   config.Retailer
	fetcher    *Fetcher
	renderer   *Renderer // nil unless rendering is enabled
	itemGap    *rate.Limiter
	maxResults int
}

func newRulesAdapter(r config.Retailer, fetcher *Fetcher, renderer *Renderer, maxResults int) *rulesAdapter {
	if maxResults <= 0 {
		maxResults = 20
	}
	return &rulesAdapter{
		retailer: r,
		fetcher:  fetcher,
		renderer: renderer,
		// Fixed gap between successive items of one search extraction only;
		// single-URL extraction never waits.
		itemGap:    rate.NewLimiter(rate.Every(750*time.Millisecond), 1),
		maxResults: maxResults,
	}
}

// document fetches and parses a page, going through the headless browser when
// the rules require rendering and a renderer is available.
func (a *rulesAdapter) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if a.retailer.Rules.Render && a.renderer != nil {
		html, err := a.renderer.HTML(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		return goquery.NewDocumentFromReader(strings.NewReader(html))
	}

	body, err := a.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	body, err = decodeCharset(body, a.retailer.Rules.Charset)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func (a *rulesAdapter) ExtractOne(ctx context.Context, pageURL string) (*models.ExtractedRecord, error) {
	doc, err := a.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return a.extract(doc, pageURL)
}

// extract applies the retailer's selector rules to a parsed document. Only a
// missing title or a zero price fail extraction; every other field is
// optional.
func (a *rulesAdapter) extract(doc *goquery.Document, pageURL string) (*models.ExtractedRecord, error) {
	rules := a.retailer.Rules

	title := text(doc, rules.Title)
	if title == "" {
		return nil, ErrNotFound
	}

	price := ParsePrice(text(doc, rules.Price), rules.DecimalComma)
	if price == 0 {
		return nil, ErrNotFound
	}

	rec := &models.ExtractedRecord{
		Name:          title,
		LocalizedName: text(doc, rules.LocalizedTitle),
		Price:         price,
		OriginalPrice: ParsePrice(text(doc, rules.OriginalPrice), rules.DecimalComma),
		Currency:      a.retailer.Currency,
		URL:           pageURL,
		ImageURL:      a.resolveRef(attrOrText(doc, rules.Image, "src"), pageURL),
		InStock:       a.detectStock(doc),
		ReviewCount:   ParseCount(text(doc, rules.ReviewCount)),
		Barcode:       a.deriveBarcode(doc),
		Brand:         text(doc, rules.Brand),
		Description:   text(doc, rules.Description),
	}

	if rating, ok := ParseRating(text(doc, rules.Rating)); ok {
		rec.Rating = rating
		rec.HasRating = true
	}

	return rec, nil
}

func (a *rulesAdapter) ExtractMany(ctx context.Context, query string) ([]models.ExtractedRecord, error) {
	rules := a.retailer.Rules
	searchURL := fmt.Sprintf("https://%s"+rules.SearchPath, a.retailer.Domain, url.QueryEscape(query))

	doc, err := a.document(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var links []string
	doc.Find(rules.SearchItem).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Find(rules.ItemLink).First().Attr("href")
		if ok && strings.TrimSpace(href) != "" {
			links = append(links, a.resolveRef(href, searchURL))
		}
		return len(links) < a.maxResults
	})

	var records []models.ExtractedRecord
	for i, link := range links {
		// Politeness gap between successive items; anti-bot systems key on
		// burst patterns, not the first request.
		if i > 0 {
			if err := a.itemGap.Wait(ctx); err != nil {
				return records, err
			}
		}

		rec, err := a.ExtractOne(ctx, link)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			// A broken item page shouldn't sink the whole search result.
			continue
		}
		records = append(records, *rec)
	}

	return records, nil
}

// detectStock applies the retailer's availability signals. The default is
// in-stock: only an explicit out-of-stock phrase or a disabled add-to-cart
// control marks a product unavailable.
func (a *rulesAdapter) detectStock(doc *goquery.Document) bool {
	rules := a.retailer.Rules

	pageText := strings.ToLower(doc.Text())
	for _, phrase := range rules.OutOfStockText {
		if strings.Contains(pageText, phrase) {
			return false
		}
	}

	if rules.AddToCart != "" {
		cart := doc.Find(rules.AddToCart).First()
		if cart.Length() > 0 {
			if _, disabled := cart.Attr("disabled"); disabled {
				return false
			}
			return true
		}
	}

	return true
}

// deriveBarcode pulls the barcode from the configured element/attribute and
// keeps only a plausible digit string.
func (a *rulesAdapter) deriveBarcode(doc *goquery.Document) string {
	rules := a.retailer.Rules
	if rules.Barcode == "" {
		return ""
	}

	var raw string
	sel := doc.Find(rules.Barcode).First()
	if rules.BarcodeAttr != "" {
		raw, _ = sel.Attr(rules.BarcodeAttr)
	} else {
		raw = sel.Text()
	}

	digits := strings.Join(digitsPattern.FindAllString(raw, -1), "")
	// EAN-8 through GTIN-14.
	if len(digits) < 8 || len(digits) > 14 {
		return ""
	}
	return digits
}

// resolveRef absolutizes a possibly-relative href against the page it came from.
func (a *rulesAdapter) resolveRef(ref, pageURL string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return resolved.String()
}

func text(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func attrOrText(doc *goquery.Document, selector, attr string) string {
	if selector == "" {
		return ""
	}
	sel := doc.Find(selector).First()
	if v, ok := sel.Attr(attr); ok {
		return v
	}
	return strings.TrimSpace(sel.Text())
}
