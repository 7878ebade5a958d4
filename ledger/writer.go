// Package ledger turns resolved extractions into listing state and the
// append-only price history.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"priceradar/currency"
	"priceradar/models"
)

// ListingStore is the persistence surface for listings and their history.
type ListingStore interface {
	// UpsertListing creates the (product, retailer) listing on first sight and
	// overwrites its mutable fields afterwards. Returns the listing id.
	UpsertListing(ctx context.Context, listing *models.RetailerListing) (int, error)

	// AddHistoryPoint appends one immutable observation.
	AddHistoryPoint(ctx context.Context, point *models.PriceHistoryPoint) error
}

// Writer currency-normalizes extracted prices, computes the discount, upserts
// the listing and appends exactly one history point per successful write.
// Repeating an identical extraction leaves the listing unchanged but still
// records a fresh observation: history tracks when we looked, not only when
// the price moved.
type Writer struct {
	store   ListingStore
	rates   *currency.Source
	refCurr string // normalized reference currency
}

// NewWriter builds a Writer normalizing into refCurrency.
func NewWriter(store ListingStore, rates *currency.Source, refCurrency string) *Writer {
	if refCurrency == "" {
		refCurrency = "USD"
	}
	return &Writer{store: store, rates: rates, refCurr: refCurrency}
}

// Write persists one extraction for an already-reconciled product.
func (w *Writer) Write(ctx context.Context, productID int, retailerID string, rec *models.ExtractedRecord) error {
	rate := w.rates.Rate(rec.Currency, w.refCurr)
	normalized := currency.Convert(rec.Price, rate)
	now := time.Now()

	listing := &models.RetailerListing{
		ProductID:       productID,
		RetailerID:      retailerID,
		URL:             rec.URL,
		Price:           rec.Price,
		Currency:        rec.Currency,
		NormalizedPrice: normalized,
		InStock:         rec.InStock,
		LastFetchedAt:   now,
	}

	if rec.OriginalPrice > 0 {
		listing.OriginalPrice = sql.NullFloat64{Float64: rec.OriginalPrice, Valid: true}
	}
	if d, ok := Discount(rec.OriginalPrice, rec.Price); ok {
		listing.DiscountPercent = sql.NullFloat64{Float64: d, Valid: true}
	}
	if rec.HasRating {
		listing.Rating = sql.NullFloat64{Float64: rec.Rating, Valid: true}
	}
	if rec.ReviewCount > 0 {
		listing.ReviewCount = sql.NullInt64{Int64: int64(rec.ReviewCount), Valid: true}
	}

	listingID, err := w.store.UpsertListing(ctx, listing)
	if err != nil {
		return fmt.Errorf("upsert listing product=%d retailer=%s: %w", productID, retailerID, err)
	}

	point := &models.PriceHistoryPoint{
		ListingID:       listingID,
		Price:           rec.Price,
		NormalizedPrice: normalized,
		Currency:        rec.Currency,
		CheckedAt:       now,
	}
	if err := w.store.AddHistoryPoint(ctx, point); err != nil {
		return fmt.Errorf("append history listing=%d: %w", listingID, err)
	}

	return nil
}

// Discount computes the whole-percent discount when the original price is
// actually higher than the current one; otherwise there is no discount.
func Discount(original, current float64) (float64, bool) {
	if original <= current || original <= 0 {
		return 0, false
	}
	return math.Round((original - current) / original * 100), true
}
