package trend

import (
	"strings"
	"testing"
	"time"

	"priceradar/models"
)

// dailyPoints turns a price series into one observation per day, oldest first.
func dailyPoints(prices []float64) []models.PriceHistoryPoint {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	points := make([]models.PriceHistoryPoint, len(prices))
	for i, p := range prices {
		points[i] = models.PriceHistoryPoint{
			Price:     p,
			CheckedAt: start.Add(time.Duration(i) * 24 * time.Hour),
		}
	}
	return points
}

func repeatPrices(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestPredictPriceInsufficientHistory(t *testing.T) {
	p := PredictPrice(dailyPoints([]float64{100, 101, 99}), 7)

	if p.Confidence != 0.3 {
		t.Errorf("Confidence = %v; want 0.3", p.Confidence)
	}
	if p.Direction != "stable" || p.Trend != "stable" {
		t.Errorf("Direction/Trend = %s/%s; want stable/stable", p.Direction, p.Trend)
	}
	if p.Recommendation != "neutral" {
		t.Errorf("Recommendation = %s; want neutral", p.Recommendation)
	}
	if p.PredictedPrice != 99 {
		t.Errorf("PredictedPrice = %v; want current price 99", p.PredictedPrice)
	}
	if !strings.Contains(p.Reasoning, "insufficient history") {
		t.Errorf("Reasoning = %q", p.Reasoning)
	}
	if p.PointsUsed != 3 {
		t.Errorf("PointsUsed = %d; want 3", p.PointsUsed)
	}
}

func TestPredictPriceEmptyHistory(t *testing.T) {
	p := PredictPrice(nil, 7)
	if p.CurrentPrice != 0 || p.Confidence != 0.3 || p.Recommendation != "neutral" {
		t.Errorf("empty history prediction = %+v", p)
	}
}

func TestClassifyTrendBoundary(t *testing.T) {
	// 16 preceding points at 100, then 14 recent points at the test value:
	// the recent-vs-preceding change lands exactly on or just past the
	// 5% split.
	build := func(recent float64) []float64 {
		return append(repeatPrices(100, 16), repeatPrices(recent, 14)...)
	}

	tests := []struct {
		recent float64
		want   string
	}{
		{105.00, "stable"}, // exactly +5% stays stable
		{105.01, "rising"},
		{95.00, "stable"}, // exactly -5% stays stable
		{94.99, "falling"},
		{100.00, "stable"},
	}

	for _, tt := range tests {
		if got := classifyTrend(build(tt.recent), 0.01); got != tt.want {
			t.Errorf("classifyTrend(recent=%.2f) = %s; want %s", tt.recent, got, tt.want)
		}
	}
}

func TestClassifyTrendVolatilityOverride(t *testing.T) {
	prices := append(repeatPrices(100, 16), repeatPrices(110, 14)...)
	if got := classifyTrend(prices, 0.2); got != "volatile" {
		t.Errorf("classifyTrend with volatility 0.2 = %s; want volatile", got)
	}
}

func TestComputeVolatility(t *testing.T) {
	if got := computeVolatility(repeatPrices(100, 10)); got != 0 {
		t.Errorf("flat series volatility = %v; want 0", got)
	}

	// Alternating 100/200: mean 150, population stddev 50.
	alternating := make([]float64, 14)
	for i := range alternating {
		if i%2 == 0 {
			alternating[i] = 100
		} else {
			alternating[i] = 200
		}
	}
	got := computeVolatility(alternating)
	if got < 0.33 || got > 0.34 {
		t.Errorf("alternating volatility = %v; want ~0.333", got)
	}
}

func TestPredictPriceRisingSeries(t *testing.T) {
	// Perfect +1/day line over 30 days.
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	p := PredictPrice(dailyPoints(prices), 7)

	if p.Trend != "rising" {
		t.Errorf("Trend = %s; want rising", p.Trend)
	}
	if p.Direction != "up" {
		t.Errorf("Direction = %s; want up", p.Direction)
	}
	if p.PredictedPrice <= p.CurrentPrice {
		t.Errorf("PredictedPrice %v should exceed current %v", p.PredictedPrice, p.CurrentPrice)
	}
	// Damping must keep the forecast below the raw OLS projection of 136.
	if p.PredictedPrice >= 136 {
		t.Errorf("PredictedPrice %v not damped below raw projection", p.PredictedPrice)
	}
	if p.Recommendation != "buy_now" {
		t.Errorf("Recommendation = %s; want buy_now", p.Recommendation)
	}
	if p.Confidence < 0.2 || p.Confidence > 0.95 {
		t.Errorf("Confidence %v outside [0.2, 0.95]", p.Confidence)
	}
}

func TestPredictPriceFallingSeriesRecommendsWait(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 200 - 2*float64(i)
	}

	p := PredictPrice(dailyPoints(prices), 7)

	if p.Trend != "falling" {
		t.Errorf("Trend = %s; want falling", p.Trend)
	}
	if p.Direction != "down" {
		t.Errorf("Direction = %s; want down", p.Direction)
	}
	if p.Recommendation != "wait" {
		t.Errorf("Recommendation = %s; want wait", p.Recommendation)
	}
}

func TestPredictPriceNeverNegative(t *testing.T) {
	// Steep collapse toward zero; the floor must hold.
	prices := []float64{70, 60, 50, 40, 30, 20, 10, 2}
	p := PredictPrice(dailyPoints(prices), 30)
	if p.PredictedPrice < 0 {
		t.Errorf("PredictedPrice = %v; want >= 0", p.PredictedPrice)
	}
}

func TestPredictPriceSortsUnorderedInput(t *testing.T) {
	points := dailyPoints([]float64{100, 101, 102, 103, 104, 105, 120})
	// Shuffle: the newest observation (120) must still be "current".
	points[0], points[6] = points[6], points[0]
	points[2], points[4] = points[4], points[2]

	p := PredictPrice(points, 7)
	if p.CurrentPrice != 120 {
		t.Errorf("CurrentPrice = %v; want newest observation 120", p.CurrentPrice)
	}
}

func TestPredictPriceCapsHistoryWindow(t *testing.T) {
	prices := repeatPrices(100, 120)
	p := PredictPrice(dailyPoints(prices), 7)
	if p.PointsUsed != maxHistoryPoints {
		t.Errorf("PointsUsed = %d; want %d", p.PointsUsed, maxHistoryPoints)
	}
}

func TestComputeConfidence(t *testing.T) {
	tests := []struct {
		n       int
		r2, vol float64
		want    float64
	}{
		{30, 1, 0, 0.85},   // 0.5 + 0.15 + 0.20
		{14, 0.5, 0, 0.70}, // 0.5 + 0.10 + 0.10
		{7, 0, 0, 0.5},
		{7, 0, 1.0, 0.2}, // clamped at the floor
	}

	for _, tt := range tests {
		if got := computeConfidence(tt.n, tt.r2, tt.vol); got != tt.want {
			t.Errorf("computeConfidence(%d, %v, %v) = %v; want %v", tt.n, tt.r2, tt.vol, got, tt.want)
		}
	}
}

func TestSeasonalHint(t *testing.T) {
	// Four weeks of daily points, consistently cheaper on one weekday.
	start := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC) // a Monday
	var points []models.PriceHistoryPoint
	for i := 0; i < 28; i++ {
		day := start.Add(time.Duration(i) * 24 * time.Hour)
		price := 100.0
		if day.Weekday() == time.Monday {
			price = 85.0
		}
		points = append(points, models.PriceHistoryPoint{Price: price, CheckedAt: day})
	}

	hint := seasonalHint(points)
	if !strings.Contains(hint, "Monday") {
		t.Errorf("seasonalHint = %q; want Monday mentioned", hint)
	}

	flat := seasonalHint(dailyPoints(repeatPrices(100, 28)))
	if flat != "" {
		t.Errorf("flat series hint = %q; want empty", flat)
	}
}

func TestLinearRegression(t *testing.T) {
	slope, intercept, r2 := linearRegression([]float64{10, 12, 14, 16, 18})
	if slope != 2 || intercept != 10 {
		t.Errorf("fit = (%v, %v); want (2, 10)", slope, intercept)
	}
	if r2 != 1 {
		t.Errorf("R² = %v; want 1 for a perfect line", r2)
	}

	_, _, noisy := linearRegression([]float64{10, 30, 10, 30, 10, 30})
	if noisy < 0 || noisy > 0.5 {
		t.Errorf("noisy R² = %v; want low and non-negative", noisy)
	}
}
