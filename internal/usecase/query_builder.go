package usecase

import (
	"log"
	"regexp"
	"strings"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

// Compiled regex patterns for search string cleanup
var (
	multiSpacePattern  = regexp.MustCompile(`\s+`)
	unsafeQueryPattern = regexp.MustCompile(`[^\w\s#/'-]`)
)

const (
	// minSearchLength drops degenerate search strings that would match everything
	minSearchLength = 8

	// defaultMaxQueries bounds the downstream scrape fan-out
	defaultMaxQueries = 5
)

// QueryBuilder turns structured card attributes into a ranked list of search
// strings, most specific first. Player identity is mandatory; every other
// attribute is optional context.
type QueryBuilder struct {
	maxQueries         int
	enableDebugLogging bool
}

// NewQueryBuilder creates a query builder. maxQueries <= 0 selects the default cap.
func NewQueryBuilder(maxQueries int, enableDebugLogging bool) *QueryBuilder {
	if maxQueries <= 0 {
		maxQueries = defaultMaxQueries
	}
	return &QueryBuilder{
		maxQueries:         maxQueries,
		enableDebugLogging: enableDebugLogging,
	}
}

// Build composes search strings in decreasing specificity:
//
//	year + set + player + #number
//	year + set + player + "rookie"
//	player + year
//	player
//
// Strings containing an unknown field are skipped, exact repeats are
// deduplicated, and the list is capped at maxQueries. Returns an empty list
// when the player is unknown.
func (b *QueryBuilder) Build(query domain.SearchQuery) []string {
	player := cleanField(query.Player)
	if !domain.IsKnown(player) {
		if b.enableDebugLogging {
			log.Printf("[QUERY] player unknown, no search strings built")
		}
		return nil
	}

	year := cleanField(query.Year)
	set := cleanField(query.Set)
	number := cleanField(query.CardNumber)

	var candidates []string

	if domain.IsKnown(year) && domain.IsKnown(set) && domain.IsKnown(number) {
		candidates = append(candidates, joinTerms(year, set, player, "#"+number))
	}
	if domain.IsKnown(year) && domain.IsKnown(set) {
		candidates = append(candidates, joinTerms(year, set, player, "rookie"))
	}
	if domain.IsKnown(year) {
		candidates = append(candidates, joinTerms(player, year))
	}
	candidates = append(candidates, player)

	seen := make(map[string]bool)
	var searches []string
	for _, c := range candidates {
		if len(c) < minSearchLength || seen[c] {
			continue
		}
		seen[c] = true
		searches = append(searches, c)
		if len(searches) >= b.maxQueries {
			break
		}
	}

	if b.enableDebugLogging {
		log.Printf("[QUERY] built %d search strings: %v", len(searches), searches)
	}

	return searches
}

// cleanField strips characters that break remote search endpoints and
// collapses whitespace.
func cleanField(s string) string {
	s = unsafeQueryPattern.ReplaceAllString(s, " ")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func joinTerms(terms ...string) string {
	return strings.TrimSpace(strings.Join(terms, " "))
}
