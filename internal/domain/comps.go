package domain

import "time"

// RawListing is a sale listing exactly as it came off a third-party page or
// API. Price and date stay strings here because the remote markup frequently
// mangles both; the normalizer owns coercion and rejection.
type RawListing struct {
	Title  string `json:"title"`
	Price  string `json:"price"`
	Date   string `json:"date"`
	URL    string `json:"url"`
	Image  string `json:"image,omitempty"`
	ItemID string `json:"itemId,omitempty"`
	Source Source `json:"source"`
}

// NormalizedComp is a sanitized, validated comparable sale. Instances only
// exist after passing every normalizer invariant: title at least 10 safe
// characters, 0 < price <= 50000 rounded to cents, sale date inside the
// plausible window, absolute http(s) URL.
type NormalizedComp struct {
	Title      string    `json:"title"`
	Price      float64   `json:"price"`
	Date       time.Time `json:"date"`
	Source     Source    `json:"source"`
	Image      string    `json:"image,omitempty"`
	URL        string    `json:"url"`
	MatchScore float64   `json:"matchScore,omitempty"`
}

// ScrapingError records a single source's failure. It is diagnostic data,
// accumulated and returned to the caller, never raised past the orchestrator.
type ScrapingError struct {
	Source  Source `json:"source"`
	Message string `json:"message"`
}

// ScrapeResult is what every scraper returns: listings plus an optional
// error entry. A scraper never returns a Go error; transport and parse
// failures are folded into Err with zero results.
type ScrapeResult struct {
	Source   Source
	Listings []RawListing
	Err      *ScrapingError
}

// MatchQuality labels the relevance tier the returned comps fell into.
type MatchQuality string

const (
	MatchExact    MatchQuality = "exact"
	MatchPartial  MatchQuality = "partial"
	MatchFuzzy    MatchQuality = "fuzzy"
	MatchFallback MatchQuality = "fallback"
)

// MatchResult is the matcher's output: the highest non-empty relevance tier.
type MatchResult struct {
	ExactMatchFound bool             `json:"exactMatchFound"`
	RelevantComps   []NormalizedComp `json:"relevantComps"`
	MatchQuality    MatchQuality     `json:"matchQuality"`
	MatchMessage    string           `json:"matchMessage,omitempty"`
}

// PriceRange is the min/max spread of the comps behind an estimate.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// CompingResult is the valuator's output for one aggregation run.
type CompingResult struct {
	EstimatedValue float64    `json:"estimatedValue"`
	LogicUsed      CompLogic  `json:"logicUsed"`
	Confidence     float64    `json:"confidence"`
	Methodology    string     `json:"methodology"`
	PriceRange     PriceRange `json:"priceRange"`
}

// DebugInfo carries per-request pipeline diagnostics back to the caller.
type DebugInfo struct {
	RequestID           string         `json:"requestId,omitempty"`
	AttemptedQueries    []string       `json:"attemptedQueries"`
	RawResultCounts     map[string]int `json:"rawResultCounts"`
	TotalProcessingTime int64          `json:"totalProcessingTime"` // milliseconds
}

// CompingResponse is the wire shape handed to the presentation layer.
// EstimatedValue is pre-formatted currency ("$124.99") because the consumer
// renders it verbatim.
type CompingResponse struct {
	EstimatedValue  string           `json:"estimatedValue"`
	LogicUsed       CompLogic        `json:"logicUsed"`
	ExactMatchFound bool             `json:"exactMatchFound"`
	Confidence      float64          `json:"confidence"`
	Methodology     string           `json:"methodology"`
	MatchMessage    string           `json:"matchMessage,omitempty"`
	Comps           []NormalizedComp `json:"comps"`
	Errors          []ScrapingError  `json:"errors"`
	Debug           *DebugInfo       `json:"debug,omitempty"`
}
