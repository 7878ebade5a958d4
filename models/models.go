package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// CanonicalProduct is a de-duplicated, retailer-independent catalog entry.
// Created by the reconciler when no match is found; the pipeline only ever
// backfills missing fields, it never deletes.
type CanonicalProduct struct {
	ID            int            `json:"id" db:"id"`
	Name          string         `json:"name" db:"name"`
	LocalizedName sql.NullString `json:"localized_name" db:"localized_name"`
	Barcode       sql.NullString `json:"barcode" db:"barcode"`
	Brand         sql.NullString `json:"brand" db:"brand"`
	Category      sql.NullString `json:"category" db:"category"`
	ImageURL      sql.NullString `json:"image_url" db:"image_url"`
	Description   sql.NullString `json:"description" db:"description"`
	Slug          string         `json:"slug" db:"slug"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// HasBarcode returns true if the product carries a globally-unique barcode.
func (p *CanonicalProduct) HasBarcode() bool {
	return p.Barcode.Valid && p.Barcode.String != ""
}

// MarshalJSON flattens the sql.Null* columns to plain nullable JSON fields.
func (p *CanonicalProduct) MarshalJSON() ([]byte, error) {
	type Alias CanonicalProduct
	return json.Marshal(&struct {
		*Alias
		LocalizedName *string `json:"localized_name"`
		Barcode       *string `json:"barcode"`
		Brand         *string `json:"brand"`
		Category      *string `json:"category"`
		ImageURL      *string `json:"image_url"`
		Description   *string `json:"description"`
	}{
		Alias:         (*Alias)(p),
		LocalizedName: nullStringPtr(p.LocalizedName),
		Barcode:       nullStringPtr(p.Barcode),
		Brand:         nullStringPtr(p.Brand),
		Category:      nullStringPtr(p.Category),
		ImageURL:      nullStringPtr(p.ImageURL),
		Description:   nullStringPtr(p.Description),
	})
}

func nullStringPtr(s sql.NullString) *string {
	if s.Valid {
		v := s.String
		return &v
	}
	return nil
}

// RetailerListing is one retailer's offer for a canonical product. Exactly one
// row exists per (product, retailer) pair; the upsert overwrites mutable fields.
type RetailerListing struct {
	ID              int             `json:"id" db:"id"`
	ProductID       int             `json:"product_id" db:"product_id"`
	RetailerID      string          `json:"retailer_id" db:"retailer_id"`
	URL             string          `json:"url" db:"url"`
	Price           float64         `json:"price" db:"price"`
	Currency        string          `json:"currency" db:"currency"`
	NormalizedPrice float64         `json:"normalized_price" db:"normalized_price"`
	OriginalPrice   sql.NullFloat64 `json:"original_price" db:"original_price"`
	DiscountPercent sql.NullFloat64 `json:"discount_percent" db:"discount_percent"`
	InStock         bool            `json:"in_stock" db:"in_stock"`
	Rating          sql.NullFloat64 `json:"rating" db:"rating"`
	ReviewCount     sql.NullInt64   `json:"review_count" db:"review_count"`
	LastFetchedAt   time.Time       `json:"last_fetched_at" db:"last_fetched_at"`
	LastFailedAt    *time.Time      `json:"last_failed_at" db:"last_failed_at"`
	FailCount       int             `json:"fail_count" db:"fail_count"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// PriceHistoryPoint is an append-only observation of a listing's price. One
// point is written per successful fetch whether or not the price changed.
type PriceHistoryPoint struct {
	ID              int       `json:"id" db:"id"`
	ListingID       int       `json:"listing_id" db:"listing_id"`
	Price           float64   `json:"price" db:"price"`
	NormalizedPrice float64   `json:"normalized_price" db:"normalized_price"`
	Currency        string    `json:"currency" db:"currency"`
	CheckedAt       time.Time `json:"checked_at" db:"checked_at"`
}

// ExtractedRecord is the transient output of a source adapter. It is never
// persisted as-is; the reconciler and ledger writer turn it into canonical
// product, listing and history rows.
type ExtractedRecord struct {
	Name          string  `json:"name"`
	LocalizedName string  `json:"localized_name,omitempty"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price,omitempty"`
	Currency      string  `json:"currency"`
	URL           string  `json:"url"`
	ImageURL      string  `json:"image_url,omitempty"`
	InStock       bool    `json:"in_stock"`
	Rating        float64 `json:"rating,omitempty"`
	HasRating     bool    `json:"-"`
	ReviewCount   int     `json:"review_count,omitempty"`
	Barcode       string  `json:"barcode,omitempty"`
	Brand         string  `json:"brand,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// PriceAlert is a stored price threshold checked after scheduled refreshes.
// Delivery of triggered alerts is handed to an external dispatcher.
type PriceAlert struct {
	ID          int        `json:"id" db:"id"`
	ProductID   int        `json:"product_id" db:"product_id"`
	TargetPrice float64    `json:"target_price" db:"target_price"`
	AlertType   string     `json:"alert_type" db:"alert_type"` // "price_drop", "percentage_drop"
	Percentage  float64    `json:"percentage" db:"percentage"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	TriggeredAt *time.Time `json:"triggered_at" db:"triggered_at"`
}
