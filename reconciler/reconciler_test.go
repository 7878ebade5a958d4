package reconciler

import (
	"context"
	"strings"
	"sync"
	"testing"

	"priceradar/models"
)

// fakeProductStore mimics the barcode unique constraint and case-insensitive
// name lookup of the real store.
type fakeProductStore struct {
	mu       sync.Mutex
	nextID   int
	products []*models.CanonicalProduct
	creates  int
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{nextID: 1}
}

func (s *fakeProductStore) FindByBarcode(_ context.Context, barcode string) (*models.CanonicalProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Barcode.Valid && p.Barcode.String == barcode {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeProductStore) FindByName(_ context.Context, name string) (*models.CanonicalProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(name)
	for _, p := range s.products {
		if strings.ToLower(p.Name) == lower {
			return p, nil
		}
		if p.LocalizedName.Valid && strings.ToLower(p.LocalizedName.String) == lower {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeProductStore) Create(_ context.Context, p *models.CanonicalProduct) (*models.CanonicalProduct, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if p.Barcode.Valid {
		for _, existing := range s.products {
			if existing.Barcode.Valid && existing.Barcode.String == p.Barcode.String {
				return existing, false, nil
			}
		}
	}
	p.ID = s.nextID
	s.nextID++
	s.products = append(s.products, p)
	return p, true, nil
}

func (s *fakeProductStore) Backfill(_ context.Context, productID int, rec *models.ExtractedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID != productID {
			continue
		}
		if !p.Barcode.Valid && rec.Barcode != "" {
			p.Barcode.String = rec.Barcode
			p.Barcode.Valid = true
		}
		if !p.Brand.Valid && rec.Brand != "" {
			p.Brand.String = rec.Brand
			p.Brand.Valid = true
		}
	}
	return nil
}

func TestResolveBarcodeIsAuthoritative(t *testing.T) {
	store := newFakeProductStore()
	r := New(store)
	ctx := context.Background()

	first, created, err := r.Resolve(ctx, &models.ExtractedRecord{
		Name: "Sony WH-1000XM5", Barcode: "4548736141181",
	})
	if err != nil || !created {
		t.Fatalf("first resolve = (created=%v, err=%v); want new product", created, err)
	}

	// Different display name, same barcode: must land on the same product.
	second, created, err := r.Resolve(ctx, &models.ExtractedRecord{
		Name: "WH1000XM5 Wireless Headphones", Barcode: "4548736141181",
	})
	if err != nil {
		t.Fatalf("second resolve returned error: %v", err)
	}
	if created {
		t.Error("same barcode must not create a second product")
	}
	if second.ID != first.ID {
		t.Errorf("resolved to product %d; want %d", second.ID, first.ID)
	}
}

func TestResolveNameMatchIsCaseInsensitive(t *testing.T) {
	store := newFakeProductStore()
	r := New(store)
	ctx := context.Background()

	first, _, err := r.Resolve(ctx, &models.ExtractedRecord{Name: "Logitech MX Master 3S"})
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}

	second, created, err := r.Resolve(ctx, &models.ExtractedRecord{Name: "LOGITECH mx MASTER 3s"})
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if created || second.ID != first.ID {
		t.Errorf("case variant resolved to (id=%d, created=%v); want (id=%d, false)", second.ID, created, first.ID)
	}
}

func TestResolveMatchesLocalizedName(t *testing.T) {
	store := newFakeProductStore()
	r := New(store)
	ctx := context.Background()

	first, _, err := r.Resolve(ctx, &models.ExtractedRecord{
		Name: "Galaxy S24", LocalizedName: "جالاكسي S24",
	})
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}

	second, created, err := r.Resolve(ctx, &models.ExtractedRecord{Name: "جالاكسي S24"})
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if created || second.ID != first.ID {
		t.Errorf("localized name resolved to (id=%d, created=%v); want (id=%d, false)", second.ID, created, first.ID)
	}
}

func TestResolveCreatesDistinctProducts(t *testing.T) {
	store := newFakeProductStore()
	r := New(store)
	ctx := context.Background()

	a, _, _ := r.Resolve(ctx, &models.ExtractedRecord{Name: "Product A"})
	b, _, _ := r.Resolve(ctx, &models.ExtractedRecord{Name: "Product B"})
	if a.ID == b.ID {
		t.Error("distinct names should create distinct products")
	}
	if a.Slug == b.Slug {
		t.Error("slugs must be unique")
	}
}

// blindStore hides barcode lookups to mimic the window where another run
// inserts the row between our read and our insert; Create still enforces the
// unique constraint.
type blindStore struct{ *fakeProductStore }

func (s *blindStore) FindByBarcode(context.Context, string) (*models.CanonicalProduct, error) {
	return nil, nil
}

func TestResolveAbsorbsBarcodeConflict(t *testing.T) {
	store := newFakeProductStore()
	r := New(&blindStore{store})
	ctx := context.Background()

	existing, _, _ := store.Create(ctx, newProduct(&models.ExtractedRecord{
		Name: "Original Listing Name", Barcode: "5901234123457",
	}))

	resolved, created, err := r.Resolve(ctx, &models.ExtractedRecord{
		Name: "Renamed Listing", Barcode: "5901234123457",
	})
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if created {
		t.Error("conflicting create must be absorbed, not treated as new")
	}
	if resolved.ID != existing.ID {
		t.Errorf("resolved to product %d; want %d", resolved.ID, existing.ID)
	}
}

func TestResolveConcurrentSameBarcode(t *testing.T) {
	store := newFakeProductStore()
	r := New(store)

	var wg sync.WaitGroup
	ids := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := r.Resolve(context.Background(), &models.ExtractedRecord{
				Name: "Racy Product", Barcode: "4006381333931",
			})
			if err != nil {
				t.Errorf("resolve returned error: %v", err)
				return
			}
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent resolves produced different products: %v", ids)
		}
	}
	if len(store.products) != 1 {
		t.Errorf("expected exactly 1 product, got %d", len(store.products))
	}
}

func TestNewProductPopulatesOptionals(t *testing.T) {
	p := newProduct(&models.ExtractedRecord{
		Name:    "Thing",
		Brand:   "Acme",
		Barcode: "4006381333931",
	})

	if !p.Brand.Valid || p.Brand.String != "Acme" {
		t.Errorf("Brand = %+v", p.Brand)
	}
	if !p.Barcode.Valid {
		t.Error("expected barcode set")
	}
	if p.LocalizedName.Valid {
		t.Error("empty localized name must stay NULL")
	}
	if !strings.HasPrefix(p.Slug, "thing-") {
		t.Errorf("Slug = %q", p.Slug)
	}
}
