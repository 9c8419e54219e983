// Package model defines the records the deal-sourcing pipeline reads and writes.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Stage is a company's position in the sourcing lifecycle.
type Stage string

const (
	StageDiscovered  Stage = "discovered"
	StageResearching Stage = "researching"
	StageQualified   Stage = "qualified"
	StageContacted   Stage = "contacted"
	StageMeeting     Stage = "meeting"
	StageIntroduced  Stage = "introduced"
	StagePassed      Stage = "passed"
)

// transitions lists the stages each stage may advance to. Moves outside this
// graph only happen through operator edits, which bypass Advance.
var transitions = map[Stage][]Stage{
	StageDiscovered:  {StageResearching, StagePassed},
	StageResearching: {StageQualified, StagePassed},
	StageQualified:   {StageContacted},
	StageContacted:   {StageMeeting},
	StageMeeting:     {StageIntroduced},
}

// ErrInvalidTransition is returned when a stage change is not in the lifecycle graph.
var ErrInvalidTransition = eris.New("model: invalid stage transition")

// CanTransition reports whether a company may move from one stage to another.
func CanTransition(from, to Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StageDiscovered, StageResearching, StageQualified, StageContacted,
		StageMeeting, StageIntroduced, StagePassed:
		return st, nil
	}
	return "", eris.Errorf("model: unknown stage %q", s)
}

// AtLeastQualified reports whether the stage is qualified or any later
// non-terminal stage.
func (s Stage) AtLeastQualified() bool {
	switch s {
	case StageQualified, StageContacted, StageMeeting, StageIntroduced:
		return true
	}
	return false
}

// Tier is the four-bucket company priority.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// CompanyScores holds the weighted company score components.
type CompanyScores struct {
	Overall  int `json:"overall"`
	Team     int `json:"team"`
	Market   int `json:"market"`
	Traction int `json:"traction"`
	Bonus    int `json:"bonus"`
}

// Company is a newly incorporated startup discovered from the registry.
type Company struct {
	ID                    string             `json:"id"`
	UserID                string             `json:"user_id"`
	RegistryID            string             `json:"registry_id"`
	Name                  string             `json:"name"`
	IncorporatedOn        time.Time          `json:"incorporated_on"`
	Status                string             `json:"status"`
	Type                  string             `json:"type"`
	IndustryCodes         []string           `json:"industry_codes"`
	Locality              string             `json:"locality,omitempty"`
	PostalCode            string             `json:"postal_code,omitempty"`
	Stage                 Stage              `json:"stage"`
	IsStealth             bool               `json:"is_stealth"`
	RecentlyAnnounced     bool               `json:"recently_announced"`
	Scores                CompanyScores      `json:"scores"`
	Tier                  Tier               `json:"tier,omitempty"`
	Watchlist             bool               `json:"watchlist"`
	FundingStage          string             `json:"funding_stage,omitempty"`
	Enrichment            *CompanyEnrichment `json:"enrichment,omitempty"`
	EnrichmentAttemptedAt *time.Time         `json:"enrichment_attempted_at,omitempty"`
	QualifiedAt           *time.Time         `json:"qualified_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// Advance moves the company to the given stage if the lifecycle allows it.
// Advancing to the current stage is a no-op.
func (c *Company) Advance(to Stage) error {
	if c.Stage == to {
		return nil
	}
	if !CanTransition(c.Stage, to) {
		return eris.Wrapf(ErrInvalidTransition, "%s -> %s", c.Stage, to)
	}
	c.Stage = to
	return nil
}

// AgeDays returns whole days since incorporation.
func (c *Company) AgeDays(now time.Time) int {
	if c.IncorporatedOn.IsZero() {
		return -1
	}
	return int(now.Sub(c.IncorporatedOn).Hours() / 24)
}
