package domain

import "strings"

// UnknownField is the sentinel the upstream attribute extractor emits when it
// could not determine a card attribute.
const UnknownField = "unknown"

// SearchQuery holds the structured card attributes the pipeline searches for.
// It is produced by the upstream image/description extraction step and is
// immutable once handed to the pipeline.
type SearchQuery struct {
	Player     string `json:"player" binding:"required"`
	Year       string `json:"year"`
	Set        string `json:"set"`
	CardNumber string `json:"cardNumber"`
	Grade      string `json:"grade,omitempty"`
	Sport      string `json:"sport"`
}

// IsKnown reports whether a query field carries a usable value.
func IsKnown(field string) bool {
	f := strings.TrimSpace(field)
	return f != "" && !strings.EqualFold(f, UnknownField)
}

// Source identifies an external sale-listing provider.
type Source string

const (
	SourceEBay    Source = "ebay"
	SourcePoint   Source = "130point"
	SourceEBayAPI Source = "ebay_api"
)

// AllSources lists every source the pipeline knows how to scrape.
var AllSources = []Source{SourceEBay, SourcePoint, SourceEBayAPI}

// NormalizeSource maps free-form source labels found on scraped pages to the
// fixed enumeration. Returns "" when the label is unrecognized.
func NormalizeSource(label string) Source {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "ebay", "e-bay", "ebay.com":
		return SourceEBay
	case "130point", "130 point", "130point.com":
		return SourcePoint
	case "ebay_api", "ebay api", "ebay browse":
		return SourceEBayAPI
	}
	return ""
}

// CompLogic selects how comp prices are aggregated into an estimate.
type CompLogic string

const (
	LogicLastSale     CompLogic = "lastSale"
	LogicAverage3     CompLogic = "average3"
	LogicAverage5     CompLogic = "average5"
	LogicMedian       CompLogic = "median"
	LogicConservative CompLogic = "conservative"
	LogicMode         CompLogic = "mode"
)

// ValidLogic reports whether the caller-supplied comp logic is recognized.
func ValidLogic(logic CompLogic) bool {
	switch logic {
	case LogicLastSale, LogicAverage3, LogicAverage5, LogicMedian, LogicConservative, LogicMode:
		return true
	}
	return false
}
