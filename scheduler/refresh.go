// Package scheduler periodically re-fetches stale listings through the
// pipeline and sweeps price alerts afterwards.
package scheduler

import (
	"context"
	"log"
	"time"

	"priceradar/models"

	"github.com/robfig/cron/v3"
)

// ListingSource is the listing persistence the refresher needs.
type ListingSource interface {
	GetStaleListings(ctx context.Context, cutoff time.Time, limit int) ([]models.RetailerListing, error)
	GetListingByID(ctx context.Context, listingID int) (*models.RetailerListing, error)
	MarkRefreshFailed(ctx context.Context, listingID int) error
}

// AlertChecker evaluates stored alerts against a fresh price.
type AlertChecker interface {
	CheckAlerts(ctx context.Context, productID int, currentPrice, originalPrice float64) ([]models.PriceAlert, error)
}

// URLFetcher runs one listing URL back through the acquisition pipeline.
type URLFetcher interface {
	FetchOneFromURL(ctx context.Context, rawURL string) *models.SingleFetchResult
}

// Dispatcher receives triggered alerts. Actual delivery (email, push,
// Telegram) lives outside this service.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert models.PriceAlert, currentPrice float64) error
}

// LogDispatcher is the in-process default: it only logs.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, alert models.PriceAlert, currentPrice float64) error {
	log.Printf("🚨 ALERT TRIGGERED: product=%d type=%s target=%.2f current=%.2f",
		alert.ProductID, alert.AlertType, alert.TargetPrice, currentPrice)
	return nil
}

// Refresher drives the scheduled refresh sweep.
type Refresher struct {
	cron       *cron.Cron
	listings   ListingSource
	alerts     AlertChecker
	fetcher    URLFetcher
	dispatcher Dispatcher
	spec       string
	maxAge     time.Duration
	batchSize  int
}

// NewRefresher builds a Refresher; spec is a cron expression with seconds.
func NewRefresher(listings ListingSource, alerts AlertChecker, fetcher URLFetcher, dispatcher Dispatcher, spec string, maxAge time.Duration) *Refresher {
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}
	return &Refresher{
		cron:       cron.New(cron.WithSeconds()),
		listings:   listings,
		alerts:     alerts,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		spec:       spec,
		maxAge:     maxAge,
		batchSize:  100,
	}
}

// Start schedules the refresh sweep and runs one immediately.
func (r *Refresher) Start() {
	_, err := r.cron.AddFunc(r.spec, r.RefreshStale)
	if err != nil {
		log.Printf("Failed to schedule listing refresh: %v", err)
		return
	}

	go r.RefreshStale()

	r.cron.Start()
	log.Printf("Listing refresh scheduled (%s)", r.spec)
}

// Stop stops the scheduler.
func (r *Refresher) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// RefreshStale re-fetches every listing past its freshness window. Each
// listing is refreshed independently: one failure marks that listing and
// moves on.
func (r *Refresher) RefreshStale() {
	ctx := context.Background()
	cutoff := time.Now().Add(-r.maxAge)

	listings, err := r.listings.GetStaleListings(ctx, cutoff, r.batchSize)
	if err != nil {
		log.Printf("Failed to get stale listings: %v", err)
		return
	}
	if len(listings) == 0 {
		return
	}

	log.Printf("Refreshing %d stale listings", len(listings))

	refreshed := 0
	for _, listing := range listings {
		result := r.fetcher.FetchOneFromURL(ctx, listing.URL)
		if result.Error != "" {
			log.Printf("Refresh failed for listing %d (%s): %s", listing.ID, listing.URL, result.Error)
			if err := r.listings.MarkRefreshFailed(ctx, listing.ID); err != nil {
				log.Printf("Failed to mark listing %d failed: %v", listing.ID, err)
			}
			continue
		}
		refreshed++
		r.sweepAlerts(ctx, listing.ID)
	}

	log.Printf("Refresh sweep done: %d/%d listings refreshed", refreshed, len(listings))
}

// sweepAlerts re-reads the listing so the check sees the refreshed price,
// evaluates the product's alerts and hands anything triggered to the
// dispatcher.
func (r *Refresher) sweepAlerts(ctx context.Context, listingID int) {
	if r.alerts == nil {
		return
	}

	listing, err := r.listings.GetListingByID(ctx, listingID)
	if err != nil {
		log.Printf("Failed to reload listing %d: %v", listingID, err)
		return
	}
	if listing == nil {
		return
	}

	original := 0.0
	if listing.OriginalPrice.Valid {
		original = listing.OriginalPrice.Float64
	}

	triggered, err := r.alerts.CheckAlerts(ctx, listing.ProductID, listing.Price, original)
	if err != nil {
		log.Printf("Failed to check alerts for product %d: %v", listing.ProductID, err)
		return
	}

	for _, alert := range triggered {
		if err := r.dispatcher.Dispatch(ctx, alert, listing.Price); err != nil {
			log.Printf("Failed to dispatch alert %d: %v", alert.ID, err)
		}
	}
}
