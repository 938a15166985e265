package usecase

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

// Confidence factors
const (
	// dataQualitySaturation is the comp count at which more data stops
	// raising confidence
	dataQualitySaturation = 5

	// recencyWindow bounds "recent" sales for the recency factor
	recencyWindow = 90 * 24 * time.Hour

	// recencyFloor keeps old-but-valid data from zeroing confidence
	recencyFloor = 0.5
)

// modeBucketWidth is the fixed dollar width of the price buckets used by the
// mode logic
const modeBucketWidth = 20.0

// noDataMethodology is the methodology label for the zero-comp terminal outcome
const noDataMethodology = "No data available"

// ValuationService applies the caller-selected aggregation policy to the
// matcher's chosen tier.
type ValuationService struct {
	enableDebugLogging bool
	now                func() time.Time
}

// NewValuationService creates a valuation service. The clock is injectable
// for tests.
func NewValuationService(enableDebugLogging bool) *ValuationService {
	return &ValuationService{
		enableDebugLogging: enableDebugLogging,
		now:                time.Now,
	}
}

// Calculate produces the estimate, confidence, methodology, and price range
// for the given comps under the given logic. Unrecognized logic falls back to
// the mean of all prices. Zero comps is a defined outcome, not an error.
func (s *ValuationService) Calculate(comps []domain.NormalizedComp, logic domain.CompLogic) domain.CompingResult {
	if len(comps) == 0 {
		return domain.CompingResult{
			EstimatedValue: 0,
			LogicUsed:      logic,
			Confidence:     0,
			Methodology:    noDataMethodology,
		}
	}

	byDate := make([]domain.NormalizedComp, len(comps))
	copy(byDate, comps)
	sortByDateDesc(byDate)

	var value float64
	var methodology string

	switch logic {
	case domain.LogicLastSale:
		value = byDate[0].Price
		methodology = "Most recent sale price"
	case domain.LogicAverage3:
		n := minInt(3, len(byDate))
		value = meanPrice(byDate[:n])
		methodology = fmt.Sprintf("Average of the %d most recent sales", n)
	case domain.LogicAverage5:
		n := minInt(5, len(byDate))
		value = meanPrice(byDate[:n])
		methodology = fmt.Sprintf("Average of the %d most recent sales", n)
	case domain.LogicMedian:
		value = medianPrice(byDate)
		methodology = fmt.Sprintf("Median of %d sales", len(byDate))
	case domain.LogicConservative:
		value = percentile25(byDate)
		methodology = fmt.Sprintf("25th percentile of %d sales", len(byDate))
	case domain.LogicMode:
		value, methodology = modePrice(byDate)
	default:
		value = meanPrice(byDate)
		methodology = fmt.Sprintf("Average of all %d sales", len(byDate))
	}

	result := domain.CompingResult{
		EstimatedValue: roundCents(value),
		LogicUsed:      logic,
		Confidence:     s.confidence(byDate),
		Methodology:    methodology,
		PriceRange:     priceRange(byDate),
	}

	if s.enableDebugLogging {
		log.Printf("[VALUE] logic=%s value=%.2f confidence=%.2f (%d comps)",
			logic, result.EstimatedValue, result.Confidence, len(byDate))
	}

	return result
}

// confidence combines how much data we have, how well it matched, and how
// fresh it is. Each factor is in [0,1]; recency never drops below its floor.
func (s *ValuationService) confidence(comps []domain.NormalizedComp) float64 {
	dataQuality := math.Min(1, float64(len(comps))/dataQualitySaturation)

	var scoreSum float64
	recent := 0
	cutoff := s.now().Add(-recencyWindow)
	for _, comp := range comps {
		scoreSum += comp.MatchScore
		if comp.Date.After(cutoff) {
			recent++
		}
	}
	matchQuality := scoreSum / float64(len(comps))
	recency := recencyFloor + recencyFloor*float64(recent)/float64(len(comps))

	return dataQuality * matchQuality * recency
}

func meanPrice(comps []domain.NormalizedComp) float64 {
	var total float64
	for _, comp := range comps {
		total += comp.Price
	}
	return total / float64(len(comps))
}

func medianPrice(comps []domain.NormalizedComp) float64 {
	prices := ascendingPrices(comps)
	n := len(prices)
	if n%2 == 1 {
		return prices[n/2]
	}
	return (prices[n/2-1] + prices[n/2]) / 2
}

// percentile25 returns the price at the 25th-percentile index of the
// ascending-sorted prices.
func percentile25(comps []domain.NormalizedComp) float64 {
	prices := ascendingPrices(comps)
	idx := int(float64(len(prices)) * 0.25)
	if idx >= len(prices) {
		idx = len(prices) - 1
	}
	return prices[idx]
}

// modePrice buckets prices into fixed-width ranges and returns the mean of
// the most populated bucket. Ties go to the lower bucket for determinism.
func modePrice(comps []domain.NormalizedComp) (float64, string) {
	buckets := make(map[int][]float64)
	for _, comp := range comps {
		b := int(comp.Price / modeBucketWidth)
		buckets[b] = append(buckets[b], comp.Price)
	}

	winner := -1
	for b, prices := range buckets {
		if winner == -1 || len(prices) > len(buckets[winner]) ||
			(len(prices) == len(buckets[winner]) && b < winner) {
			winner = b
		}
	}

	var total float64
	for _, p := range buckets[winner] {
		total += p
	}
	value := total / float64(len(buckets[winner]))
	methodology := fmt.Sprintf("Most common $%.0f price range (%d of %d sales)",
		modeBucketWidth, len(buckets[winner]), len(comps))
	return value, methodology
}

func priceRange(comps []domain.NormalizedComp) domain.PriceRange {
	low, high := comps[0].Price, comps[0].Price
	for _, comp := range comps[1:] {
		if comp.Price < low {
			low = comp.Price
		}
		if comp.Price > high {
			high = comp.Price
		}
	}
	return domain.PriceRange{Low: roundCents(low), High: roundCents(high)}
}

func ascendingPrices(comps []domain.NormalizedComp) []float64 {
	prices := make([]float64, len(comps))
	for i, comp := range comps {
		prices[i] = comp.Price
	}
	sort.Float64s(prices)
	return prices
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
