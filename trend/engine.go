// Package trend computes volatility, trend classification, seasonality and a
// short-horizon price forecast over a listing's history.
package trend

import (
	"fmt"
	"math"
	"sort"
	"time"

	"priceradar/models"
)

const (
	// maxHistoryPoints caps how far back the engine looks.
	maxHistoryPoints = 90
	// minHistoryPoints is the floor below which no regression is attempted.
	minHistoryPoints = 7

	volatileThreshold = 0.15
	trendThreshold    = 5.0 // percent split between rising/falling and stable
)

// Prediction is the forecast for one listing.
type Prediction struct {
	CurrentPrice   float64 `json:"current_price"`
	PredictedPrice float64 `json:"predicted_price"`
	ChangePercent  float64 `json:"change_percent"`
	Direction      string  `json:"direction"` // "up", "down", "stable"
	Confidence     float64 `json:"confidence"`
	Recommendation string  `json:"recommendation"` // "buy_now", "wait", "neutral"
	Reasoning      string  `json:"reasoning"`
	Volatility     float64 `json:"volatility"`
	Trend          string  `json:"trend"` // "rising", "falling", "stable", "volatile"
	SeasonalHint   string  `json:"seasonal_hint,omitempty"`
	DaysAhead      int     `json:"days_ahead"`
	PointsUsed     int     `json:"points_used"`
}

// PredictPrice forecasts a listing's price daysAhead days out from its
// history. Points may arrive in any order; only the most recent 90 are used.
func PredictPrice(points []models.PriceHistoryPoint, daysAhead int) *Prediction {
	if daysAhead <= 0 {
		daysAhead = 7
	}

	sorted := make([]models.PriceHistoryPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CheckedAt.Before(sorted[j].CheckedAt) })
	if len(sorted) > maxHistoryPoints {
		sorted = sorted[len(sorted)-maxHistoryPoints:]
	}

	n := len(sorted)
	var current float64
	if n > 0 {
		current = sorted[n-1].Price
	}

	if n < minHistoryPoints {
		return &Prediction{
			CurrentPrice:   current,
			PredictedPrice: current,
			Direction:      "stable",
			Confidence:     0.3,
			Recommendation: "neutral",
			Reasoning:      fmt.Sprintf("insufficient history (%d points, need %d)", n, minHistoryPoints),
			Trend:          "stable",
			DaysAhead:      daysAhead,
			PointsUsed:     n,
		}
	}

	prices := make([]float64, n)
	for i, p := range sorted {
		prices[i] = p.Price
	}

	volatility := computeVolatility(prices)
	trendLabel := classifyTrend(prices, volatility)
	hint := seasonalHint(sorted)

	slope, intercept, r2 := linearRegression(prices)

	// Raw OLS projection at index N+daysAhead, then reverted toward the
	// current price: high volatility means the fitted line deserves little
	// trust, and a forecast fighting the classified trend even less.
	raw := slope*float64(n-1+daysAhead) + intercept
	delta := raw - current
	delta *= 1 - math.Min(0.8, volatility*1.5)
	if (trendLabel == "rising" && delta < 0) || (trendLabel == "falling" && delta > 0) {
		delta *= 0.5
	}
	predicted := current + delta
	if predicted < 0 {
		predicted = 0
	}

	var changePct float64
	if current > 0 {
		changePct = (predicted - current) / current * 100
	}

	direction := "stable"
	if changePct > 1 {
		direction = "up"
	} else if changePct < -1 {
		direction = "down"
	}

	confidence := computeConfidence(n, r2, volatility)
	recommendation := recommend(direction, trendLabel, changePct, confidence)

	return &Prediction{
		CurrentPrice:   current,
		PredictedPrice: round2(predicted),
		ChangePercent:  round2(changePct),
		Direction:      direction,
		Confidence:     confidence,
		Recommendation: recommendation,
		Reasoning:      reasoning(trendLabel, changePct, volatility, daysAhead),
		Volatility:     round4(volatility),
		Trend:          trendLabel,
		SeasonalHint:   hint,
		DaysAhead:      daysAhead,
		PointsUsed:     n,
	}
}

// computeVolatility is population stddev over mean.
func computeVolatility(prices []float64) float64 {
	mean := meanOf(prices)
	if mean <= 0 {
		return 0
	}
	var sumSq float64
	for _, p := range prices {
		d := p - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq/float64(len(prices))) / mean
}

// classifyTrend compares the most-recent window (up to 14 points) against the
// window preceding it (up to 16). High volatility overrides the label.
func classifyTrend(prices []float64, volatility float64) string {
	if volatility > volatileThreshold {
		return "volatile"
	}

	n := len(prices)
	recentLen := 14
	if recentLen > n {
		recentLen = n
	}
	recent := prices[n-recentLen:]

	prevStart := n - recentLen - 16
	if prevStart < 0 {
		prevStart = 0
	}
	preceding := prices[prevStart : n-recentLen]
	if len(preceding) == 0 {
		return "stable"
	}

	prevMean := meanOf(preceding)
	if prevMean <= 0 {
		return "stable"
	}
	change := (meanOf(recent) - prevMean) / prevMean * 100
	if change > trendThreshold {
		return "rising"
	}
	if change < -trendThreshold {
		return "falling"
	}
	return "stable"
}

// seasonalHint buckets observations by day of week and surfaces the cheapest
// day when any bucket deviates more than 5% from the overall mean.
func seasonalHint(points []models.PriceHistoryPoint) string {
	var overall, count float64
	sums := make(map[time.Weekday]float64)
	counts := make(map[time.Weekday]float64)
	for _, p := range points {
		overall += p.Price
		count++
		sums[p.CheckedAt.Weekday()] += p.Price
		counts[p.CheckedAt.Weekday()]++
	}
	if count == 0 {
		return ""
	}
	overallMean := overall / count

	significant := false
	cheapestDay := time.Sunday
	cheapestMean := math.MaxFloat64
	for day := time.Sunday; day <= time.Saturday; day++ {
		if counts[day] == 0 {
			continue
		}
		mean := sums[day] / counts[day]
		if overallMean > 0 && math.Abs(mean-overallMean)/overallMean > 0.05 {
			significant = true
		}
		if mean < cheapestMean {
			cheapestMean = mean
			cheapestDay = day
		}
	}
	if !significant {
		return ""
	}
	return fmt.Sprintf("prices tend to be lowest on %s", cheapestDay)
}

// linearRegression fits price against a 0..N-1 index and returns slope,
// intercept and R².
func linearRegression(prices []float64) (slope, intercept, r2 float64) {
	n := float64(len(prices))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range prices {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, meanOf(prices), 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	mean := sumY / n
	var ssTot, ssRes float64
	for i, y := range prices {
		fit := slope*float64(i) + intercept
		ssTot += (y - mean) * (y - mean)
		ssRes += (y - fit) * (y - fit)
	}
	if ssTot == 0 {
		return slope, intercept, 0
	}
	r2 = 1 - ssRes/ssTot
	if r2 < 0 {
		r2 = 0
	}
	return slope, intercept, r2
}

// computeConfidence starts at 0.5, rewards history depth and fit quality,
// penalizes volatility, and clamps to [0.2, 0.95].
func computeConfidence(n int, r2, volatility float64) float64 {
	c := 0.5
	if n >= 30 {
		c += 0.15
	} else if n >= 14 {
		c += 0.10
	}
	c += 0.20 * r2
	if volatility > 0 {
		c -= volatility
	}
	if c < 0.2 {
		c = 0.2
	}
	if c > 0.95 {
		c = 0.95
	}
	return round4(c)
}

func recommend(direction, trendLabel string, changePct, confidence float64) string {
	switch {
	case direction == "up" && changePct > 3 && confidence > 0.6:
		return "buy_now"
	case trendLabel == "rising" && confidence > 0.5:
		return "buy_now"
	case direction == "down" && changePct < -3 && confidence > 0.6:
		return "wait"
	case trendLabel == "falling" && confidence > 0.5:
		return "wait"
	default:
		return "neutral"
	}
}

func reasoning(trendLabel string, changePct, volatility float64, daysAhead int) string {
	return fmt.Sprintf("trend %s, forecast %+.1f%% over %d days, volatility %.2f",
		trendLabel, changePct, daysAhead, volatility)
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
