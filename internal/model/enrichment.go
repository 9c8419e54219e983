package model

import (
	"strings"
	"time"
)

// EnrichmentKind tags an enrichment result.
type EnrichmentKind string

const (
	EnrichmentFounder EnrichmentKind = "founder"
	EnrichmentCompany EnrichmentKind = "company"
)

// EnrichmentResult is implemented by each kind of enrichment output so that
// downstream scorers can switch on the concrete type.
type EnrichmentResult interface {
	Kind() EnrichmentKind
}

// FounderEnrichment is the parsed result of a founder profile search.
type FounderEnrichment struct {
	FounderID   string         `json:"founder_id"`
	ProfileURL  string         `json:"profile_url,omitempty"`
	Headline    string         `json:"headline,omitempty"`
	Location    string         `json:"location,omitempty"`
	Education   []Education    `json:"education,omitempty"`
	Experience  []Experience   `json:"experience,omitempty"`
	Signals     FounderSignals `json:"signals"`
	Email       string         `json:"email,omitempty"`
	EmailSource string         `json:"email_source,omitempty"`
	CodeProfile *CodeProfile   `json:"code_profile,omitempty"`
}

// Kind implements EnrichmentResult.
func (FounderEnrichment) Kind() EnrichmentKind { return EnrichmentFounder }

// NewsItem is a press mention of a company.
type NewsItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Source    string `json:"source,omitempty"`
	Published string `json:"published,omitempty"`
}

// FundingRound is a funding mention extracted from search text.
type FundingRound struct {
	Round     string   `json:"round,omitempty"`
	Amount    float64  `json:"amount,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Year      int      `json:"year,omitempty"`
	Investors []string `json:"investors,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
}

// CompanyEnrichment is the aggregated result of company searches.
type CompanyEnrichment struct {
	Description        string         `json:"description,omitempty"`
	Website            string         `json:"website,omitempty"`
	ProductDescription string         `json:"product_description,omitempty"`
	TechStack          []string       `json:"tech_stack,omitempty"`
	BusinessModel      string         `json:"business_model,omitempty"`
	TeamSize           string         `json:"team_size,omitempty"`
	News               []NewsItem     `json:"news,omitempty"`
	Funding            []FundingRound `json:"funding,omitempty"`
	TractionScore      int            `json:"traction_score"`
	EnrichedAt         time.Time      `json:"enriched_at"`
}

// Kind implements EnrichmentResult.
func (CompanyEnrichment) Kind() EnrichmentKind { return EnrichmentCompany }

// DefaultFundingStage is assumed when no funding round is known.
const DefaultFundingStage = "pre-seed"

// NormalizeFundingStage lowercases a round label and joins words with a
// hyphen, so "Series A" and "series-a" compare equal. Angel rounds count
// as pre-seed.
func NormalizeFundingStage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "-")
	switch s {
	case "angel", "preseed":
		return "pre-seed"
	}
	return s
}
