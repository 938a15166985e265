package usecase

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

// Field weights for scoring a comp title against the query. The player
// dominates: a listing that never names the right player is worthless no
// matter what else lines up.
const (
	weightPlayer     = 0.35
	weightYear       = 0.25
	weightSet        = 0.20
	weightCardNumber = 0.10
	weightGrade      = 0.05
)

// Partial-credit factors within a field
const (
	lastNameCredit     = 0.7 // last name alone, inside the player weight
	firstNameCredit    = 0.3
	adjacentYearCredit = 0.5 // ±1 year, rookie-year ambiguity
	setSynonymCredit   = 0.7
	setOverlapCredit   = 0.5 // scaled by word-overlap fraction
)

// Additive bonuses and penalties applied to the normalized score
const (
	rookieBonus          = 0.03
	variantBonus         = 0.02
	missingPlayerPenalty = 0.35 // last name absent from title
	lotPenalty           = 0.30 // multi-card lot / case break title
)

// Tier thresholds. The fallback floor comes from the caller.
const (
	exactTierThreshold   = 0.80
	strongTierThreshold  = 0.60
	partialTierThreshold = 0.40
)

// maxCompsPerTier caps every tier to bound valuation input
const maxCompsPerTier = 20

// rookieIndicators mark rookie cards in listing titles
var rookieIndicators = []string{"rookie", " rc ", "(rc)", " rc"}

// variantKeywords mark parallel/insert variants commonly called out in titles
var variantKeywords = []string{
	"refractor", "prizm", "holo", "parallel", "auto", "autograph",
	"patch", "insert", "sp ", "ssp", "numbered",
}

// lotIndicators mark listings that are not single-card comps
var lotIndicators = []string{
	"lot", "break", "bundle", "mystery pack", "repack",
	"pick your", "choose", "complete set",
}

// setSynonyms maps set names to colorway/shorthand variants sellers use
// instead of the canonical name.
var setSynonyms = map[string][]string{
	"topps chrome":  {"chrome"},
	"panini prizm":  {"prizm", "silver prizm"},
	"bowman chrome": {"bowman", "1st bowman"},
	"select":        {"panini select"},
	"donruss optic": {"optic"},
	"upper deck":    {"ud"},
	"fleer ultra":   {"ultra"},
	"stadium club":  {"tsc"},
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	MinScore           float64 // fallback tier floor in [0,1)
	EnableDebugLogging bool
}

// MatchingService scores normalized comps against the original query and
// partitions them into relevance tiers.
type MatchingService struct {
	minScore           float64
	enableDebugLogging bool
}

// NewMatchingService creates a matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	minScore := config.MinScore
	if minScore <= 0 {
		minScore = 0.25
	}
	return &MatchingService{
		minScore:           minScore,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Match scores every comp, attaches the score, and returns the highest
// non-empty tier. No comp clearing even the fallback floor is a valid
// terminal outcome, not an error.
func (s *MatchingService) Match(comps []domain.NormalizedComp, query domain.SearchQuery) domain.MatchResult {
	scored := make([]domain.NormalizedComp, 0, len(comps))
	for _, comp := range comps {
		comp.MatchScore = s.scoreComp(comp.Title, query)
		if s.enableDebugLogging {
			log.Printf("[MATCH] %.2f %q", comp.MatchScore, comp.Title)
		}
		scored = append(scored, comp)
	}

	// Higher score first; equal scores prefer the more recent sale.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].MatchScore != scored[j].MatchScore {
			return scored[i].MatchScore > scored[j].MatchScore
		}
		return scored[i].Date.After(scored[j].Date)
	})

	tiers := []struct {
		threshold float64
		quality   domain.MatchQuality
		message   string
	}{
		{exactTierThreshold, domain.MatchExact, ""},
		{strongTierThreshold, domain.MatchPartial, "No exact match found; using strong partial matches."},
		{partialTierThreshold, domain.MatchFuzzy, "Only partial matches found; estimate is approximate."},
		{s.minScore, domain.MatchFallback, "Only loosely related sales found; treat the estimate as a rough guide."},
	}

	for _, tier := range tiers {
		picked := takeAbove(scored, tier.threshold)
		if len(picked) == 0 {
			continue
		}
		return domain.MatchResult{
			ExactMatchFound: tier.quality == domain.MatchExact,
			RelevantComps:   picked,
			MatchQuality:    tier.quality,
			MatchMessage:    tier.message,
		}
	}

	return domain.MatchResult{
		MatchQuality: domain.MatchFallback,
		MatchMessage: fmt.Sprintf("No sales scored above the %.2f relevance floor for this card.", s.minScore),
	}
}

// scoreComp computes the weighted relevance of one title in [0,1].
func (s *MatchingService) scoreComp(title string, query domain.SearchQuery) float64 {
	titleLower := strings.ToLower(title)
	score := 0.0

	playerCredit := 0.0
	lastNamePresent := false
	if domain.IsKnown(query.Player) {
		playerLower := strings.ToLower(strings.TrimSpace(query.Player))
		first, last := splitName(playerLower)
		lastNamePresent = last == "" || strings.Contains(titleLower, last)

		if strings.Contains(titleLower, playerLower) {
			playerCredit = 1.0
		} else {
			if last != "" && strings.Contains(titleLower, last) {
				playerCredit += lastNameCredit
			}
			if first != "" && strings.Contains(titleLower, first) {
				playerCredit += firstNameCredit
			}
		}
		score += weightPlayer * playerCredit
	}

	if domain.IsKnown(query.Year) {
		score += weightYear * yearCredit(titleLower, strings.TrimSpace(query.Year))
	}

	setMatched := false
	if domain.IsKnown(query.Set) {
		credit := setCredit(titleLower, strings.ToLower(strings.TrimSpace(query.Set)))
		setMatched = credit > 0
		score += weightSet * credit
	}

	if domain.IsKnown(query.CardNumber) {
		num := strings.TrimPrefix(strings.TrimSpace(query.CardNumber), "#")
		if strings.Contains(titleLower, "#"+num) || containsToken(titleLower, num) {
			score += weightCardNumber
		}
	}

	if domain.IsKnown(query.Grade) {
		if strings.Contains(titleLower, strings.ToLower(strings.TrimSpace(query.Grade))) {
			score += weightGrade
		}
	}

	// Small additive bonuses for corroborating signals
	if playerCredit > 0 && containsAny(titleLower, rookieIndicators) {
		score += rookieBonus
	}
	if setMatched && containsAny(titleLower, variantKeywords) {
		score += variantBonus
	}

	// A listing that never names the player cannot be relevant, and a lot or
	// case break is not a single-card comp.
	if domain.IsKnown(query.Player) && !lastNamePresent {
		score -= missingPlayerPenalty
	}
	if containsAny(titleLower, lotIndicators) {
		score -= lotPenalty
	}

	return clamp01(score)
}

// yearCredit gives full credit for the exact year and partial credit for the
// adjacent years; sellers often title a card by its rookie season.
func yearCredit(titleLower, year string) float64 {
	if strings.Contains(titleLower, year) {
		return 1.0
	}
	for _, adjacent := range adjacentYears(year) {
		if strings.Contains(titleLower, adjacent) {
			return adjacentYearCredit
		}
	}
	return 0
}

func adjacentYears(year string) []string {
	var adjacent []string
	var y int
	if _, err := fmt.Sscanf(year, "%d", &y); err == nil && y > 1900 {
		adjacent = append(adjacent, fmt.Sprintf("%d", y-1), fmt.Sprintf("%d", y+1))
	}
	return adjacent
}

// setCredit scores the set name: exact substring, then known synonyms, then
// individual word overlap.
func setCredit(titleLower, setLower string) float64 {
	if strings.Contains(titleLower, setLower) {
		return 1.0
	}
	for _, synonym := range setSynonyms[setLower] {
		if strings.Contains(titleLower, synonym) {
			return setSynonymCredit
		}
	}
	words := strings.Fields(setLower)
	if len(words) == 0 {
		return 0
	}
	matched := 0
	for _, word := range words {
		if len(word) > 2 && strings.Contains(titleLower, word) {
			matched++
		}
	}
	return setOverlapCredit * float64(matched) / float64(len(words))
}

// takeAbove returns the comps scoring at or above threshold, capped per tier.
// Input must already be sorted score-descending.
func takeAbove(scored []domain.NormalizedComp, threshold float64) []domain.NormalizedComp {
	var picked []domain.NormalizedComp
	for _, comp := range scored {
		if comp.MatchScore < threshold {
			break
		}
		picked = append(picked, comp)
		if len(picked) >= maxCompsPerTier {
			break
		}
	}
	return picked
}

func splitName(fullLower string) (first, last string) {
	parts := strings.Fields(fullLower)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[0], parts[len(parts)-1]
	}
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func containsToken(s, token string) bool {
	for _, field := range strings.Fields(s) {
		if strings.Trim(field, ".,()#") == token {
			return true
		}
	}
	return false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
