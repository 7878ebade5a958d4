package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"priceradar/models"
)

type fakeListings struct {
	mu     sync.Mutex
	stale  []models.RetailerListing
	byID   map[int]*models.RetailerListing
	failed []int
}

func (s *fakeListings) GetStaleListings(_ context.Context, cutoff time.Time, limit int) ([]models.RetailerListing, error) {
	return s.stale, nil
}

func (s *fakeListings) GetListingByID(_ context.Context, id int) (*models.RetailerListing, error) {
	return s.byID[id], nil
}

func (s *fakeListings) MarkRefreshFailed(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

type fakeAlerts struct {
	triggered []models.PriceAlert
	checked   []float64
	err       error
}

func (a *fakeAlerts) CheckAlerts(_ context.Context, productID int, currentPrice, originalPrice float64) ([]models.PriceAlert, error) {
	a.checked = append(a.checked, currentPrice)
	return a.triggered, a.err
}

type fakeFetcher struct {
	failFor map[string]bool
	fetched []string
}

func (f *fakeFetcher) FetchOneFromURL(_ context.Context, rawURL string) *models.SingleFetchResult {
	f.fetched = append(f.fetched, rawURL)
	if f.failFor[rawURL] {
		return &models.SingleFetchResult{Error: "no product found on page"}
	}
	return &models.SingleFetchResult{ProductID: 1}
}

type captureDispatcher struct {
	alerts []models.PriceAlert
	prices []float64
}

func (d *captureDispatcher) Dispatch(_ context.Context, alert models.PriceAlert, currentPrice float64) error {
	d.alerts = append(d.alerts, alert)
	d.prices = append(d.prices, currentPrice)
	return nil
}

func listing(id int, url string, price float64) models.RetailerListing {
	return models.RetailerListing{ID: id, ProductID: id, URL: url, Price: price}
}

func TestRefreshStaleMarksFailures(t *testing.T) {
	listings := &fakeListings{
		stale: []models.RetailerListing{
			listing(1, "https://a.example.com/p/1", 10),
			listing(2, "https://a.example.com/p/2", 20),
		},
		byID: map[int]*models.RetailerListing{
			1: {ID: 1, ProductID: 1, Price: 9.5},
			2: {ID: 2, ProductID: 2, Price: 20},
		},
	}
	fetcher := &fakeFetcher{failFor: map[string]bool{"https://a.example.com/p/2": true}}
	alerts := &fakeAlerts{}

	r := NewRefresher(listings, alerts, fetcher, nil, "0 0 */6 * * *", 6*time.Hour)
	r.RefreshStale()

	if len(fetcher.fetched) != 2 {
		t.Errorf("fetched %d listings; want 2", len(fetcher.fetched))
	}
	if len(listings.failed) != 1 || listings.failed[0] != 2 {
		t.Errorf("failed marks = %v; want [2]", listings.failed)
	}
	// Only the successful refresh gets an alert sweep, against the reloaded price.
	if len(alerts.checked) != 1 || alerts.checked[0] != 9.5 {
		t.Errorf("alert checks = %v; want [9.5]", alerts.checked)
	}
}

func TestRefreshStaleDispatchesTriggeredAlerts(t *testing.T) {
	triggered := models.PriceAlert{ID: 7, ProductID: 1, AlertType: "price_drop", TargetPrice: 10}
	listings := &fakeListings{
		stale: []models.RetailerListing{listing(1, "https://a.example.com/p/1", 12)},
		byID:  map[int]*models.RetailerListing{1: {ID: 1, ProductID: 1, Price: 9}},
	}
	dispatcher := &captureDispatcher{}

	r := NewRefresher(listings, &fakeAlerts{triggered: []models.PriceAlert{triggered}},
		&fakeFetcher{}, dispatcher, "0 0 */6 * * *", 6*time.Hour)
	r.RefreshStale()

	if len(dispatcher.alerts) != 1 || dispatcher.alerts[0].ID != 7 {
		t.Fatalf("dispatched alerts = %+v; want alert 7", dispatcher.alerts)
	}
	if dispatcher.prices[0] != 9 {
		t.Errorf("dispatched price = %v; want refreshed 9", dispatcher.prices[0])
	}
}

func TestRefreshStaleSurvivesAlertCheckError(t *testing.T) {
	listings := &fakeListings{
		stale: []models.RetailerListing{
			listing(1, "https://a.example.com/p/1", 10),
			listing(2, "https://a.example.com/p/2", 20),
		},
		byID: map[int]*models.RetailerListing{
			1: {ID: 1, ProductID: 1, Price: 10},
			2: {ID: 2, ProductID: 2, Price: 20},
		},
	}
	fetcher := &fakeFetcher{}

	r := NewRefresher(listings, &fakeAlerts{err: errors.New("db down")}, fetcher, nil, "0 0 */6 * * *", 6*time.Hour)
	r.RefreshStale()

	if len(fetcher.fetched) != 2 {
		t.Errorf("fetched %d listings; want 2 despite alert errors", len(fetcher.fetched))
	}
}

func TestSweepAlertsPassesOriginalPrice(t *testing.T) {
	alerts := &fakeAlerts{}
	listings := &fakeListings{
		byID: map[int]*models.RetailerListing{
			1: {
				ID: 1, ProductID: 1, Price: 80,
				OriginalPrice: sql.NullFloat64{Float64: 100, Valid: true},
			},
		},
	}

	r := NewRefresher(listings, alerts, &fakeFetcher{}, nil, "0 0 */6 * * *", 6*time.Hour)
	r.sweepAlerts(context.Background(), 1)

	if len(alerts.checked) != 1 || alerts.checked[0] != 80 {
		t.Errorf("alert checks = %v; want [80]", alerts.checked)
	}
}
