package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"priceradar/config"
	"priceradar/currency"
	"priceradar/database"
	"priceradar/ledger"
	"priceradar/middleware"
	"priceradar/orchestrator"
	"priceradar/reconciler"
	"priceradar/repository"
	"priceradar/scheduler"
	"priceradar/scraper"
	"priceradar/trend"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

var startTime = time.Now()

// Metrics is the payload of the /metrics endpoint.
type Metrics struct {
	Timestamp   time.Time `json:"timestamp"`
	Uptime      string    `json:"uptime"`
	Goroutines  int       `json:"goroutines"`
	MemoryUsage string    `json:"memory_usage"`
	Products    int       `json:"products"`
	Listings    int       `json:"listings"`
}

// fetchRequest is the body of POST /internal/fetch. Either query or url must
// be set.
type fetchRequest struct {
	Query     string   `json:"query"`
	URL       string   `json:"url"`
	Country   string   `json:"country"`
	Retailers []string `json:"retailers"`
}

// alertRequest is the body of POST /internal/alerts.
type alertRequest struct {
	ProductID   int     `json:"product_id"`
	TargetPrice float64 `json:"target_price"`
	AlertType   string  `json:"alert_type"`
	Percentage  float64 `json:"percentage"`
}

type app struct {
	cfg          *config.AppConfig
	orchestrator *orchestrator.Orchestrator
	products     *repository.ProductRepository
	listings     *repository.ListingRepository
	jobs         *repository.JobRepository
	alerts       *repository.AlertRepository
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDatabase()

	if err := database.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository()
	listingRepo := repository.NewListingRepository()
	jobRepo := repository.NewJobRepository()
	alertRepo := repository.NewAlertRepository()

	// Initialize the acquisition pipeline
	registry := scraper.NewRegistry(scraper.RegistryOptions{
		FetchTimeout:  cfg.FetchTimeout,
		MaxResults:    cfg.MaxSearchResults,
		RenderEnabled: cfg.RenderEnabled,
	})
	defer registry.Close()

	rates := currency.NewSource(nil)
	resolver := reconciler.New(productRepo)
	writer := ledger.NewWriter(listingRepo, rates, cfg.NormalizedCurrency)
	orch := orchestrator.New(registry, resolver, writer, jobRepo, cfg.FetchTimeout)

	// Initialize and start the refresh scheduler
	refresher := scheduler.NewRefresher(listingRepo, alertRepo, orch, nil, cfg.RefreshCronSpec, cfg.RefreshMaxAge)
	refresher.Start()
	defer refresher.Stop()

	a := &app{
		cfg:          cfg,
		orchestrator: orch,
		products:     productRepo,
		listings:     listingRepo,
		jobs:         jobRepo,
		alerts:       alertRepo,
	}

	// Setup router
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.RateLimit(10))

	r.HandleFunc("/health", a.healthCheck).Methods("GET")
	r.HandleFunc("/metrics", a.getMetrics).Methods("GET")
	r.HandleFunc("/status", a.getStatus).Methods("GET")

	// Internal triggers, not a public API.
	r.HandleFunc("/internal/fetch", a.triggerFetch).Methods("POST")
	r.HandleFunc("/internal/forecast/{listingId}", a.getForecast).Methods("GET")
	r.HandleFunc("/internal/alerts", a.createAlert).Methods("POST")
	r.HandleFunc("/internal/alerts/{productId}", a.getAlerts).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	log.Printf("🌐 Server starting on port %s", cfg.Port)
	log.Printf("   GET  /health - Health check")
	log.Printf("   GET  /metrics - System metrics")
	log.Printf("   GET  /status - Recent fetch jobs")
	log.Printf("   POST /internal/fetch - Trigger a fetch run")
	log.Printf("   GET  /internal/forecast/{listingId} - Price forecast")
	log.Printf("   POST /internal/alerts - Create a price alert")
	log.Printf("   GET  /internal/alerts/{productId} - Active alerts for a product")

	log.Fatal(http.ListenAndServe(cfg.Host+":"+cfg.Port, c.Handler(r)))
}

func (a *app) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "priceradar",
		"status":    "healthy",
		"timestamp": time.Now(),
		"currency":  a.cfg.NormalizedCurrency,
	})
}

func (a *app) getMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	products, _ := a.products.CountProducts(r.Context())
	listings, _ := a.listings.CountListings(r.Context())

	writeJSON(w, http.StatusOK, Metrics{
		Timestamp:   time.Now(),
		Uptime:      time.Since(startTime).String(),
		Goroutines:  runtime.NumGoroutine(),
		MemoryUsage: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
		Products:    products,
		Listings:    listings,
	})
}

func (a *app) getStatus(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.jobs.RecentJobs(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get recent jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp":   time.Now(),
		"uptime":      time.Since(startTime).String(),
		"recent_jobs": jobs,
	})
}

func (a *app) triggerFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch {
	case req.URL != "":
		result := a.orchestrator.FetchOneFromURL(r.Context(), req.URL)
		writeJSON(w, http.StatusOK, result)
	case req.Query != "":
		summary, err := a.orchestrator.FetchAndSave(r.Context(), req.Query, orchestrator.Options{
			Country:   req.Country,
			Retailers: req.Retailers,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, summary)
	default:
		writeError(w, http.StatusBadRequest, "Either query or url is required")
	}
}

func (a *app) getForecast(w http.ResponseWriter, r *http.Request) {
	listingID, err := strconv.Atoi(mux.Vars(r)["listingId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid listing id")
		return
	}

	daysAhead := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil && d > 0 {
			daysAhead = d
		}
	}

	history, err := a.listings.GetHistory(r.Context(), listingID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load price history")
		return
	}

	writeJSON(w, http.StatusOK, trend.PredictPrice(history, daysAhead))
}

func (a *app) createAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID <= 0 {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.AlertType != "price_drop" && req.AlertType != "percentage_drop" {
		writeError(w, http.StatusBadRequest, "alert_type must be price_drop or percentage_drop")
		return
	}

	product, err := a.products.GetByID(r.Context(), req.ProductID)
	if err != nil || product == nil {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	alert, err := a.alerts.SetPriceAlert(r.Context(), req.ProductID, req.TargetPrice, req.AlertType, req.Percentage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (a *app) getAlerts(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(mux.Vars(r)["productId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	alerts, err := a.alerts.GetActiveAlerts(r.Context(), productID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get alerts")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
