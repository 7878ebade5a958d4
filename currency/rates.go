// Package currency provides exchange-rate lookup with caching and a static
// fallback, plus price conversion for the ledger writer.
package currency

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RateProvider is the external exchange-rate collaborator. Implementations
// refresh from a third-party feed; this pipeline only consumes the lookup.
type RateProvider interface {
	Rate(from, to string) (float64, error)
}

// staticUSDRates is the last-resort rate table, expressed as units of USD per
// one unit of currency. Stale but always available: a write must never fail
// just because the rate feed is down.
var staticUSDRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"SAR": 0.2666,
	"AED": 0.2723,
	"EGP": 0.0206,
	"KWD": 3.25,
	"QAR": 0.2747,
}

type cachedRate struct {
	value     float64
	fetchedAt time.Time
}

// Source resolves exchange rates through a provider with an hourly cache,
// falling back to the static table when the provider is missing or failing.
type Source struct {
	provider RateProvider
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]cachedRate
}

// NewSource wraps a provider; provider may be nil, in which case only the
// static table is used.
func NewSource(provider RateProvider) *Source {
	return &Source{
		provider: provider,
		ttl:      time.Hour,
		cache:    make(map[string]cachedRate),
	}
}

// Rate returns the conversion factor from one currency to another. It never
// fails: unknown pairs resolve through the static table, and a completely
// unknown currency falls back to 1 with a log line rather than blocking the
// ledger write.
func (s *Source) Rate(from, to string) float64 {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to || from == "" || to == "" {
		return 1
	}

	key := from + "/" + to

	s.mu.Lock()
	if c, ok := s.cache[key]; ok && time.Since(c.fetchedAt) < s.ttl {
		s.mu.Unlock()
		return c.value
	}
	s.mu.Unlock()

	if s.provider != nil {
		if rate, err := s.provider.Rate(from, to); err == nil && rate > 0 {
			s.mu.Lock()
			s.cache[key] = cachedRate{value: rate, fetchedAt: time.Now()}
			s.mu.Unlock()
			return rate
		} else if err != nil {
			log.Printf("rate provider failed for %s: %v, using static table", key, err)
		}
	}

	rate, err := staticRate(from, to)
	if err != nil {
		log.Printf("no static rate for %s: %v", key, err)
		return 1
	}
	return rate
}

func staticRate(from, to string) (float64, error) {
	fromUSD, ok := staticUSDRates[from]
	if !ok {
		return 0, fmt.Errorf("unknown currency %s", from)
	}
	toUSD, ok := staticUSDRates[to]
	if !ok {
		return 0, fmt.Errorf("unknown currency %s", to)
	}
	rate, _ := decimal.NewFromFloat(fromUSD).
		Div(decimal.NewFromFloat(toUSD)).
		Round(6).
		Float64()
	return rate, nil
}

// Convert applies a rate to an amount, rounded to cents. Decimal arithmetic
// keeps 19.99 * 3.75 from drifting the way float math does.
func Convert(amount, rate float64) float64 {
	v, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(rate)).
		Round(2).
		Float64()
	return v
}
