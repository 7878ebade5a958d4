// Package orchestrator fans queries out across retailer adapters and runs
// extracted records through reconciliation and the price ledger.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"priceradar/config"
	"priceradar/ledger"
	"priceradar/models"
	"priceradar/reconciler"
	"priceradar/scraper"

	"github.com/google/uuid"
)

// AdapterSource hands out retailer adapters and resolves direct URLs against
// the retailer allow-list. Satisfied by *scraper.Registry.
type AdapterSource interface {
	Adapter(retailerID string) (scraper.SourceAdapter, error)
	ResolveURL(rawURL string) (config.Retailer, error)
}

// JobStore records fetch-job audit rows. Failures here are logged and never
// abort a run.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.FetchJob) error
	MarkJobRunning(ctx context.Context, id string) error
	FinishJob(ctx context.Context, id string, status models.JobStatus, items int, errText string) error
}

// Options scopes one orchestration run.
type Options struct {
	Country   string        // all active retailers for a country; empty = global
	Retailers []string      // explicit retailer ids, overrides Country
	Timeout   time.Duration // shared wall-clock budget, default 30s
}

// Orchestrator coordinates concurrent per-retailer extraction under a shared
// timeout and aggregates per-retailer outcomes. Each invocation's counters
// and job record are independent, so concurrent runs are safe.
type Orchestrator struct {
	registry       AdapterSource
	resolver       *reconciler.Reconciler
	writer         *ledger.Writer
	jobs           JobStore
	defaultTimeout time.Duration
}

// New wires an Orchestrator from its collaborators.
func New(registry AdapterSource, resolver *reconciler.Reconciler, writer *ledger.Writer, jobs JobStore, defaultTimeout time.Duration) *Orchestrator {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Orchestrator{
		registry:       registry,
		resolver:       resolver,
		writer:         writer,
		jobs:           jobs,
		defaultTimeout: defaultTimeout,
	}
}

type fetchOutcome struct {
	records []models.ExtractedRecord
	err     error
}

// FetchAndSave runs a text query against every target retailer concurrently,
// reconciles and persists the results, and returns the aggregate summary.
// One retailer timing out or failing never blocks or aborts its siblings; the
// job only fails when every retailer came back empty.
func (o *Orchestrator) FetchAndSave(ctx context.Context, query string, opts Options) (*models.FetchSummary, error) {
	targets := o.targetRetailers(opts)
	if len(targets) == 0 {
		return nil, errors.New("no target retailers for scope")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.defaultTimeout
	}

	jobID := o.startJob(ctx, "search", fmt.Sprintf("query=%q retailers=%s", query, strings.Join(targets, ",")))

	start := time.Now()
	summary := &models.FetchSummary{
		JobID:       jobID,
		Query:       query,
		PerRetailer: make(map[string]models.RetailerResult, len(targets)),
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, retailerID := range targets {
		wg.Add(1)
		go func(retailerID string) {
			defer wg.Done()

			result := models.RetailerResult{RetailerID: retailerID}

			// The extraction races the shared deadline through a 1-buffered
			// channel: a straggler finishing after timeout completes into the
			// buffer and is discarded, never awaited. In-flight HTTP gets the
			// context cancel, but abandonment is best-effort.
			outCh := make(chan fetchOutcome, 1)
			go func() {
				adapter, err := o.registry.Adapter(retailerID)
				if err != nil {
					outCh <- fetchOutcome{err: err}
					return
				}
				records, err := adapter.ExtractMany(runCtx, query)
				outCh <- fetchOutcome{records: records, err: err}
			}()

			var out fetchOutcome
			select {
			case out = <-outCh:
			case <-runCtx.Done():
				out = fetchOutcome{err: fmt.Errorf("timed out after %v", timeout)}
			}

			if out.err != nil && len(out.records) == 0 {
				result.Error = out.err.Error()
				log.Printf("retailer %s failed: %v", retailerID, out.err)
				mu.Lock()
				summary.PerRetailer[retailerID] = result
				mu.Unlock()
				return
			}

			result.Success = true
			for i := range out.records {
				// Persistence runs under the caller's context, not the fetch
				// deadline: results already in hand deserve to be written.
				saved, isNew := o.saveRecord(ctx, retailerID, &out.records[i])
				if !saved {
					continue
				}
				result.ItemCount++
				mu.Lock()
				summary.TotalScraped++
				if isNew {
					summary.NewProducts++
				} else {
					summary.UpdatedProducts++
				}
				mu.Unlock()
			}

			mu.Lock()
			summary.PerRetailer[retailerID] = result
			mu.Unlock()
		}(retailerID)
	}

	wg.Wait()
	summary.Duration = time.Since(start)

	status := models.JobStatusCompleted
	var errText string
	if summary.TotalScraped == 0 {
		status = models.JobStatusFailed
		errText = collectErrors(summary.PerRetailer)
	}
	o.finishJob(ctx, jobID, status, summary.TotalScraped, errText)

	log.Printf("run %s: scraped=%d new=%d updated=%d in %v",
		jobID, summary.TotalScraped, summary.NewProducts, summary.UpdatedProducts, summary.Duration)
	return summary, nil
}

// FetchOneFromURL extracts a single product page. The URL is resolved against
// the retailer allow-list before any network call; unknown domains fail
// closed.
func (o *Orchestrator) FetchOneFromURL(ctx context.Context, rawURL string) *models.SingleFetchResult {
	retailer, err := o.registry.ResolveURL(rawURL)
	if err != nil {
		return &models.SingleFetchResult{Error: err.Error()}
	}

	jobID := o.startJob(ctx, "url", rawURL)

	adapter, err := o.registry.Adapter(retailer.ID)
	if err != nil {
		o.finishJob(ctx, jobID, models.JobStatusFailed, 0, err.Error())
		return &models.SingleFetchResult{Error: err.Error()}
	}

	runCtx, cancel := context.WithTimeout(ctx, o.defaultTimeout)
	defer cancel()

	rec, err := adapter.ExtractOne(runCtx, rawURL)
	if err != nil {
		o.finishJob(ctx, jobID, models.JobStatusFailed, 0, err.Error())
		return &models.SingleFetchResult{Error: err.Error()}
	}

	product, isNew, err := o.resolver.Resolve(ctx, rec)
	if err != nil {
		o.finishJob(ctx, jobID, models.JobStatusFailed, 0, err.Error())
		return &models.SingleFetchResult{Error: err.Error()}
	}
	if err := o.writer.Write(ctx, product.ID, retailer.ID, rec); err != nil {
		o.finishJob(ctx, jobID, models.JobStatusFailed, 0, err.Error())
		return &models.SingleFetchResult{ProductID: product.ID, IsNew: isNew, Error: err.Error()}
	}

	o.finishJob(ctx, jobID, models.JobStatusCompleted, 1, "")
	return &models.SingleFetchResult{ProductID: product.ID, IsNew: isNew}
}

// saveRecord reconciles and persists one record. A failure is logged and the
// record excluded from totals; siblings in the run keep going.
func (o *Orchestrator) saveRecord(ctx context.Context, retailerID string, rec *models.ExtractedRecord) (saved, isNew bool) {
	product, isNew, err := o.resolver.Resolve(ctx, rec)
	if err != nil {
		log.Printf("reconcile %q from %s failed: %v", rec.Name, retailerID, err)
		return false, false
	}
	if err := o.writer.Write(ctx, product.ID, retailerID, rec); err != nil {
		log.Printf("persist %q from %s failed: %v", rec.Name, retailerID, err)
		return false, false
	}
	return true, isNew
}

// targetRetailers resolves the run scope to retailer ids. Unknown explicit
// ids stay in the target list so they surface as soft per-retailer failures.
func (o *Orchestrator) targetRetailers(opts Options) []string {
	if len(opts.Retailers) > 0 {
		return opts.Retailers
	}
	var ids []string
	for _, r := range config.ActiveRetailers(opts.Country) {
		ids = append(ids, r.ID)
	}
	return ids
}

func (o *Orchestrator) startJob(ctx context.Context, jobType, scope string) string {
	job := &models.FetchJob{
		ID:        uuid.NewString(),
		JobType:   jobType,
		Status:    models.JobStatusPending,
		Scope:     scope,
		CreatedAt: time.Now(),
	}
	if o.jobs == nil {
		return job.ID
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		log.Printf("create job record failed: %v", err)
		return job.ID
	}
	if err := o.jobs.MarkJobRunning(ctx, job.ID); err != nil {
		log.Printf("mark job running failed: %v", err)
	}
	return job.ID
}

func (o *Orchestrator) finishJob(ctx context.Context, id string, status models.JobStatus, items int, errText string) {
	if o.jobs == nil {
		return
	}
	if err := o.jobs.FinishJob(ctx, id, status, items, errText); err != nil {
		log.Printf("finish job record failed: %v", err)
	}
}

func collectErrors(results map[string]models.RetailerResult) string {
	var parts []string
	for _, r := range results {
		if r.Error != "" {
			parts = append(parts, r.RetailerID+": "+r.Error)
		}
	}
	if len(parts) == 0 {
		return "no items scraped"
	}
	return strings.Join(parts, "; ")
}
