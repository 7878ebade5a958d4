package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

var DB *sql.DB

// InitDatabase initializes the database connection
func InitDatabase() error {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	var err error
	DB, err = sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %v", err)
	}

	log.Println("Successfully connected to database")
	return nil
}

// CreateTables creates the necessary tables if they don't exist
func CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			localized_name TEXT,
			barcode TEXT,
			brand TEXT,
			category TEXT,
			image_url TEXT,
			description TEXT,
			slug TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS retailer_listings (
			id SERIAL PRIMARY KEY,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			retailer_id VARCHAR(50) NOT NULL,
			url TEXT NOT NULL,
			price DECIMAL(12,2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			normalized_price DECIMAL(12,2) NOT NULL,
			original_price DECIMAL(12,2),
			discount_percent DECIMAL(5,2),
			in_stock BOOLEAN DEFAULT TRUE,
			rating DECIMAL(3,2),
			review_count INTEGER,
			last_fetched_at TIMESTAMP NOT NULL,
			last_failed_at TIMESTAMP,
			fail_count INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (product_id, retailer_id)
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id SERIAL PRIMARY KEY,
			listing_id INTEGER NOT NULL REFERENCES retailer_listings(id) ON DELETE CASCADE,
			price DECIMAL(12,2) NOT NULL,
			normalized_price DECIMAL(12,2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			checked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS fetch_jobs (
			id VARCHAR(36) PRIMARY KEY,
			job_type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			scope TEXT,
			items_processed INTEGER DEFAULT 0,
			error_text TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS price_alerts (
			id SERIAL PRIMARY KEY,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			target_price DECIMAL(12,2) NOT NULL,
			alert_type VARCHAR(20) NOT NULL CHECK (alert_type IN ('price_drop', 'percentage_drop')),
			percentage DECIMAL(5,2),
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			triggered_at TIMESTAMP
		)`,

		// Barcode uniqueness backs the reconciler: concurrent creations for one
		// barcode must collapse onto a single product row.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_barcode ON products (barcode)
		WHERE barcode IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_products_name_lower ON products (LOWER(name))`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_listing ON price_history (listing_id, checked_at)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_stale ON retailer_listings (last_fetched_at)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_jobs_created ON fetch_jobs (created_at)`,
	}

	for _, query := range queries {
		_, err := DB.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}

	return nil
}

// CloseDatabase closes the database connection
func CloseDatabase() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
