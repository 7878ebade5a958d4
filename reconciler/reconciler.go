// Package reconciler resolves extracted records to canonical products.
package reconciler

import (
	"context"
	"database/sql"
	"hash/fnv"
	"log"
	"strings"
	"sync"

	"priceradar/models"
	"priceradar/scraper"

	"github.com/google/uuid"
)

// ProductStore is the persistence surface the reconciler needs. Find methods
// return (nil, nil) when nothing matches.
type ProductStore interface {
	FindByBarcode(ctx context.Context, barcode string) (*models.CanonicalProduct, error)

	// FindByName matches case-insensitively on the display or localized name.
	FindByName(ctx context.Context, name string) (*models.CanonicalProduct, error)

	// Create inserts a product. When the barcode already exists the insert is
	// absorbed into the existing row and created is false.
	Create(ctx context.Context, p *models.CanonicalProduct) (product *models.CanonicalProduct, created bool, err error)

	// Backfill fills missing optional fields on an existing product; it never
	// overwrites populated ones.
	Backfill(ctx context.Context, productID int, rec *models.ExtractedRecord) error
}

// Reconciler matches extracted records to canonical products: barcode first
// (authoritative), then case-insensitive exact name (an accepted heuristic
// that can both under- and over-merge), else a fresh product. Same-key
// resolutions within the process are serialized by a striped lock; cross-run
// barcode races collapse in the store's unique constraint.
type Reconciler struct {
	store ProductStore
	locks [64]sync.Mutex
}

// New builds a Reconciler over a product store.
func New(store ProductStore) *Reconciler {
	return &Reconciler{store: store}
}

// Resolve returns the canonical product for a record and whether it was newly
// created.
func (r *Reconciler) Resolve(ctx context.Context, rec *models.ExtractedRecord) (*models.CanonicalProduct, bool, error) {
	unlock := r.lockKey(resolutionKey(rec))
	defer unlock()

	if rec.Barcode != "" {
		product, err := r.store.FindByBarcode(ctx, rec.Barcode)
		if err != nil {
			return nil, false, err
		}
		if product != nil {
			r.backfill(ctx, product.ID, rec)
			return product, false, nil
		}
	}

	for _, name := range []string{rec.Name, rec.LocalizedName} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		product, err := r.store.FindByName(ctx, name)
		if err != nil {
			return nil, false, err
		}
		if product != nil {
			r.backfill(ctx, product.ID, rec)
			return product, false, nil
		}
	}

	product, created, err := r.store.Create(ctx, newProduct(rec))
	if err != nil {
		return nil, false, err
	}
	if !created {
		// Barcode collision with a concurrent run: absorbed, never duplicated.
		r.backfill(ctx, product.ID, rec)
	}
	return product, created, nil
}

// backfill failures don't fail resolution; the product is already resolved.
func (r *Reconciler) backfill(ctx context.Context, productID int, rec *models.ExtractedRecord) {
	if err := r.store.Backfill(ctx, productID, rec); err != nil {
		log.Printf("backfill product %d failed: %v", productID, err)
	}
}

// resolutionKey picks the identity a record resolves under: barcode when
// present, else the normalized name.
func resolutionKey(rec *models.ExtractedRecord) string {
	if rec.Barcode != "" {
		return "bc:" + rec.Barcode
	}
	return "nm:" + strings.ToLower(strings.TrimSpace(rec.Name))
}

func (r *Reconciler) lockKey(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &r.locks[h.Sum32()%uint32(len(r.locks))]
	m.Lock()
	return m.Unlock
}

func newProduct(rec *models.ExtractedRecord) *models.CanonicalProduct {
	p := &models.CanonicalProduct{
		Name: rec.Name,
		Slug: scraper.Slugify(rec.Name) + "-" + uuid.NewString()[:8],
	}
	setNullString(&p.LocalizedName, rec.LocalizedName)
	setNullString(&p.Barcode, rec.Barcode)
	setNullString(&p.Brand, rec.Brand)
	setNullString(&p.ImageURL, rec.ImageURL)
	setNullString(&p.Description, rec.Description)
	return p
}

func setNullString(dst *sql.NullString, v string) {
	if strings.TrimSpace(v) != "" {
		dst.String = v
		dst.Valid = true
	}
}
