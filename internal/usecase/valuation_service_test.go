package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

var valuationNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func compPriced(price float64, daysAgo int, matchScore float64) domain.NormalizedComp {
	return domain.NormalizedComp{
		Title:      "2023 Topps Chrome Mike Trout #1",
		Price:      price,
		Date:       valuationNow.AddDate(0, 0, -daysAgo),
		Source:     domain.SourceEBay,
		URL:        "https://www.ebay.com/itm/1",
		MatchScore: matchScore,
	}
}

func newTestValuationService() *ValuationService {
	svc := NewValuationService(false)
	svc.now = func() time.Time { return valuationNow }
	return svc
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestCalculateNoData(t *testing.T) {
	svc := newTestValuationService()
	result := svc.Calculate(nil, domain.LogicAverage3)

	if result.EstimatedValue != 0 {
		t.Errorf("EstimatedValue = %v, want 0", result.EstimatedValue)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", result.Confidence)
	}
	if result.Methodology != "No data available" {
		t.Errorf("Methodology = %q, want %q", result.Methodology, "No data available")
	}
	if result.LogicUsed != domain.LogicAverage3 {
		t.Errorf("LogicUsed = %v, want %v", result.LogicUsed, domain.LogicAverage3)
	}
}

func TestCalculateLogics(t *testing.T) {
	svc := newTestValuationService()

	// Four sales, newest first by construction.
	comps := []domain.NormalizedComp{
		compPriced(100, 1, 0.9),
		compPriced(120, 2, 0.9),
		compPriced(140, 3, 0.9),
		compPriced(200, 30, 0.9),
	}

	tests := []struct {
		name  string
		logic domain.CompLogic
		want  float64
	}{
		{"last sale uses the most recent price", domain.LogicLastSale, 100},
		{"average3 uses the three most recent", domain.LogicAverage3, 120},
		{"average5 uses what it has", domain.LogicAverage5, 140},
		{"median of an even count averages the middle pair", domain.LogicMedian, 130},
		{"conservative takes the 25th percentile", domain.LogicConservative, 120},
		{"unrecognized logic falls back to the overall mean", domain.CompLogic("nonsense"), 140},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := svc.Calculate(comps, tt.logic)
			if !almostEqual(result.EstimatedValue, tt.want) {
				t.Errorf("EstimatedValue = %.2f, want %.2f", result.EstimatedValue, tt.want)
			}
			if result.LogicUsed != tt.logic {
				t.Errorf("LogicUsed = %v, want %v", result.LogicUsed, tt.logic)
			}
			if result.Methodology == "" {
				t.Error("Methodology empty")
			}
		})
	}

	t.Run("date order beats input order for recency logics", func(t *testing.T) {
		shuffled := []domain.NormalizedComp{comps[3], comps[1], comps[0], comps[2]}
		result := svc.Calculate(shuffled, domain.LogicLastSale)
		if !almostEqual(result.EstimatedValue, 100) {
			t.Errorf("EstimatedValue = %.2f, want 100 (most recent)", result.EstimatedValue)
		}
	})

	t.Run("median of an odd count takes the middle", func(t *testing.T) {
		result := svc.Calculate(comps[:3], domain.LogicMedian)
		if !almostEqual(result.EstimatedValue, 120) {
			t.Errorf("EstimatedValue = %.2f, want 120", result.EstimatedValue)
		}
	})
}

func TestCalculateMode(t *testing.T) {
	svc := newTestValuationService()

	t.Run("picks the most populated price bucket", func(t *testing.T) {
		comps := []domain.NormalizedComp{
			compPriced(95, 1, 0.9),
			compPriced(98, 2, 0.9),
			compPriced(99, 3, 0.9),
			compPriced(300, 4, 0.9),
		}
		result := svc.Calculate(comps, domain.LogicMode)
		if !almostEqual(result.EstimatedValue, 97.33) {
			t.Errorf("EstimatedValue = %.2f, want 97.33", result.EstimatedValue)
		}
	})

	t.Run("ties go to the lower bucket", func(t *testing.T) {
		comps := []domain.NormalizedComp{
			compPriced(10, 1, 0.9),
			compPriced(15, 2, 0.9),
			compPriced(50, 3, 0.9),
			compPriced(55, 4, 0.9),
		}
		result := svc.Calculate(comps, domain.LogicMode)
		if !almostEqual(result.EstimatedValue, 12.5) {
			t.Errorf("EstimatedValue = %.2f, want 12.50", result.EstimatedValue)
		}
	})
}

func TestConfidence(t *testing.T) {
	svc := newTestValuationService()

	t.Run("saturates with plenty of fresh, exact data", func(t *testing.T) {
		var comps []domain.NormalizedComp
		for i := 0; i < 5; i++ {
			comps = append(comps, compPriced(100, i+1, 1.0))
		}
		result := svc.Calculate(comps, domain.LogicMedian)
		if !almostEqual(result.Confidence, 1.0) {
			t.Errorf("Confidence = %.2f, want 1.0", result.Confidence)
		}
	})

	t.Run("scales down with fewer comps", func(t *testing.T) {
		one := svc.Calculate([]domain.NormalizedComp{compPriced(100, 1, 1.0)}, domain.LogicMedian)
		if !almostEqual(one.Confidence, 0.2) {
			t.Errorf("Confidence = %.2f, want 0.2 for a single comp", one.Confidence)
		}
	})

	t.Run("scales down with weaker matches", func(t *testing.T) {
		strong := svc.Calculate([]domain.NormalizedComp{compPriced(100, 1, 1.0)}, domain.LogicMedian)
		weak := svc.Calculate([]domain.NormalizedComp{compPriced(100, 1, 0.5)}, domain.LogicMedian)
		if weak.Confidence >= strong.Confidence {
			t.Errorf("weak-match confidence %.2f should be below strong-match %.2f",
				weak.Confidence, strong.Confidence)
		}
	})

	t.Run("stale data is floored, not zeroed", func(t *testing.T) {
		stale := svc.Calculate([]domain.NormalizedComp{compPriced(100, 400, 1.0)}, domain.LogicMedian)
		if !almostEqual(stale.Confidence, 0.1) {
			t.Errorf("Confidence = %.2f, want 0.1 (0.2 data quality halved by recency floor)", stale.Confidence)
		}
	})
}

func TestPriceRange(t *testing.T) {
	svc := newTestValuationService()
	comps := []domain.NormalizedComp{
		compPriced(140, 1, 0.9),
		compPriced(99.994, 2, 0.9),
		compPriced(200, 3, 0.9),
	}
	result := svc.Calculate(comps, domain.LogicMedian)
	if !almostEqual(result.PriceRange.Low, 99.99) {
		t.Errorf("PriceRange.Low = %.2f, want 99.99", result.PriceRange.Low)
	}
	if !almostEqual(result.PriceRange.High, 200) {
		t.Errorf("PriceRange.High = %.2f, want 200.00", result.PriceRange.High)
	}
}
