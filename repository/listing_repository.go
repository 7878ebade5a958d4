package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"priceradar/database"
	"priceradar/models"
)

type ListingRepository struct{}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{}
}

// UpsertListing creates the listing for a (product, retailer) pair on first
// sight and overwrites the mutable fields afterwards. A successful fetch also
// clears the failure bookkeeping.
func (r *ListingRepository) UpsertListing(ctx context.Context, l *models.RetailerListing) (int, error) {
	query := `
		INSERT INTO retailer_listings
			(product_id, retailer_id, url, price, currency, normalized_price,
			 original_price, discount_percent, in_stock, rating, review_count, last_fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (product_id, retailer_id) DO UPDATE SET
			url = EXCLUDED.url,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			normalized_price = EXCLUDED.normalized_price,
			original_price = EXCLUDED.original_price,
			discount_percent = EXCLUDED.discount_percent,
			in_stock = EXCLUDED.in_stock,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			last_fetched_at = EXCLUDED.last_fetched_at,
			last_failed_at = NULL,
			fail_count = 0,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int
	err := database.DB.QueryRowContext(ctx, query,
		l.ProductID, l.RetailerID, l.URL, l.Price, l.Currency, l.NormalizedPrice,
		l.OriginalPrice, l.DiscountPercent, l.InStock, l.Rating, l.ReviewCount, l.LastFetchedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert listing: %v", err)
	}
	return id, nil
}

// AddHistoryPoint appends one price observation. History rows are never
// updated or deleted.
func (r *ListingRepository) AddHistoryPoint(ctx context.Context, p *models.PriceHistoryPoint) error {
	query := `
		INSERT INTO price_history (listing_id, price, normalized_price, currency, checked_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := database.DB.ExecContext(ctx, query,
		p.ListingID, p.Price, p.NormalizedPrice, p.Currency, p.CheckedAt)
	if err != nil {
		return fmt.Errorf("failed to add price history: %v", err)
	}
	return nil
}

// GetHistory returns the most recent history points for a listing in
// oldest-first order, the shape the trend engine consumes.
func (r *ListingRepository) GetHistory(ctx context.Context, listingID, limit int) ([]models.PriceHistoryPoint, error) {
	if limit <= 0 {
		limit = 90
	}

	query := `
		SELECT id, listing_id, price, normalized_price, currency, checked_at
		FROM price_history
		WHERE listing_id = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`

	rows, err := database.DB.QueryContext(ctx, query, listingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %v", err)
	}
	defer rows.Close()

	var history []models.PriceHistoryPoint
	for rows.Next() {
		var p models.PriceHistoryPoint
		err := rows.Scan(&p.ID, &p.ListingID, &p.Price, &p.NormalizedPrice, &p.Currency, &p.CheckedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price history: %v", err)
		}
		history = append(history, p)
	}

	// Newest-first from the index scan; the engine wants oldest-first.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	return history, nil
}

// GetStaleListings returns listings not fetched since the cutoff, oldest
// first, for the refresh sweep.
func (r *ListingRepository) GetStaleListings(ctx context.Context, cutoff time.Time, limit int) ([]models.RetailerListing, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, product_id, retailer_id, url, price, currency, normalized_price,
			original_price, discount_percent, in_stock, rating, review_count,
			last_fetched_at, last_failed_at, fail_count, created_at, updated_at
		FROM retailer_listings
		WHERE last_fetched_at < $1 AND fail_count < 5
		ORDER BY last_fetched_at ASC
		LIMIT $2
	`

	rows, err := database.DB.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale listings: %v", err)
	}
	defer rows.Close()

	var listings []models.RetailerListing
	for rows.Next() {
		var l models.RetailerListing
		err := rows.Scan(
			&l.ID, &l.ProductID, &l.RetailerID, &l.URL, &l.Price, &l.Currency,
			&l.NormalizedPrice, &l.OriginalPrice, &l.DiscountPercent, &l.InStock,
			&l.Rating, &l.ReviewCount, &l.LastFetchedAt, &l.LastFailedAt,
			&l.FailCount, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %v", err)
		}
		listings = append(listings, l)
	}

	return listings, nil
}

// GetListingByID returns one listing, or (nil, nil) when it does not exist.
func (r *ListingRepository) GetListingByID(ctx context.Context, listingID int) (*models.RetailerListing, error) {
	query := `
		SELECT id, product_id, retailer_id, url, price, currency, normalized_price,
			original_price, discount_percent, in_stock, rating, review_count,
			last_fetched_at, last_failed_at, fail_count, created_at, updated_at
		FROM retailer_listings
		WHERE id = $1
	`

	var l models.RetailerListing
	err := database.DB.QueryRowContext(ctx, query, listingID).Scan(
		&l.ID, &l.ProductID, &l.RetailerID, &l.URL, &l.Price, &l.Currency,
		&l.NormalizedPrice, &l.OriginalPrice, &l.DiscountPercent, &l.InStock,
		&l.Rating, &l.ReviewCount, &l.LastFetchedAt, &l.LastFailedAt,
		&l.FailCount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %v", err)
	}
	return &l, nil
}

// MarkRefreshFailed records a failed refresh attempt for a listing.
func (r *ListingRepository) MarkRefreshFailed(ctx context.Context, listingID int) error {
	query := `
		UPDATE retailer_listings
		SET last_failed_at = $1, fail_count = fail_count + 1, updated_at = $1
		WHERE id = $2
	`

	_, err := database.DB.ExecContext(ctx, query, time.Now(), listingID)
	if err != nil {
		return fmt.Errorf("failed to mark refresh failed: %v", err)
	}
	return nil
}

// CountListings returns the listing count, for the status endpoint.
func (r *ListingRepository) CountListings(ctx context.Context) (int, error) {
	var n int
	err := database.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM retailer_listings`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %v", err)
	}
	return n, nil
}
