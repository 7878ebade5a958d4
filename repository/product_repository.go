package repository

import (
	"context"
	"database/sql"
	"fmt"

	"priceradar/database"
	"priceradar/models"
)

type ProductRepository struct{}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{}
}

const productColumns = `id, name, localized_name, barcode, brand, category, image_url, description, slug, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*models.CanonicalProduct, error) {
	var p models.CanonicalProduct
	err := row.Scan(
		&p.ID, &p.Name, &p.LocalizedName, &p.Barcode, &p.Brand,
		&p.Category, &p.ImageURL, &p.Description, &p.Slug,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByBarcode returns the product carrying a barcode, or (nil, nil).
func (r *ProductRepository) FindByBarcode(ctx context.Context, barcode string) (*models.CanonicalProduct, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE barcode = $1`

	p, err := scanProduct(database.DB.QueryRowContext(ctx, query, barcode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by barcode: %v", err)
	}
	return p, nil
}

// FindByName matches case-insensitively against the display or localized
// name; returns (nil, nil) when nothing matches.
func (r *ProductRepository) FindByName(ctx context.Context, name string) (*models.CanonicalProduct, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE LOWER(name) = LOWER($1) OR LOWER(localized_name) = LOWER($1)
		ORDER BY id
		LIMIT 1
	`

	p, err := scanProduct(database.DB.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by name: %v", err)
	}
	return p, nil
}

// Create inserts a new canonical product. A concurrent insert of the same
// barcode is absorbed: the existing row comes back with created=false, so a
// barcode is never shared by two products.
func (r *ProductRepository) Create(ctx context.Context, p *models.CanonicalProduct) (*models.CanonicalProduct, bool, error) {
	query := `
		INSERT INTO products (name, localized_name, barcode, brand, category, image_url, description, slug)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (barcode) WHERE barcode IS NOT NULL DO NOTHING
		RETURNING ` + productColumns

	created, err := scanProduct(database.DB.QueryRowContext(ctx, query,
		p.Name, p.LocalizedName, p.Barcode, p.Brand, p.Category,
		p.ImageURL, p.Description, p.Slug,
	))
	if err == nil {
		return created, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to create product: %v", err)
	}

	// Lost the barcode race; hand back the winner.
	existing, err := r.FindByBarcode(ctx, p.Barcode.String)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("product vanished after barcode conflict on %s", p.Barcode.String)
	}
	return existing, false, nil
}

// Backfill fills missing optional fields on an existing product without
// touching populated ones. The barcode only lands when no other product
// already owns it.
func (r *ProductRepository) Backfill(ctx context.Context, productID int, rec *models.ExtractedRecord) error {
	query := `
		UPDATE products
		SET localized_name = COALESCE(localized_name, NULLIF($2, '')),
			brand = COALESCE(brand, NULLIF($3, '')),
			image_url = COALESCE(image_url, NULLIF($4, '')),
			description = COALESCE(description, NULLIF($5, '')),
			barcode = CASE
				WHEN barcode IS NULL AND NULLIF($6, '') IS NOT NULL
					AND NOT EXISTS (SELECT 1 FROM products other WHERE other.barcode = $6)
				THEN $6
				ELSE barcode
			END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	_, err := database.DB.ExecContext(ctx, query, productID,
		rec.LocalizedName, rec.Brand, rec.ImageURL, rec.Description, rec.Barcode)
	if err != nil {
		return fmt.Errorf("failed to backfill product: %v", err)
	}
	return nil
}

// GetByID returns a product by id.
func (r *ProductRepository) GetByID(ctx context.Context, id int) (*models.CanonicalProduct, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(database.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %v", err)
	}
	return p, nil
}

// CountProducts returns the catalog size, for the status endpoint.
func (r *ProductRepository) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := database.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %v", err)
	}
	return n, nil
}
