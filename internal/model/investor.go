package model

import (
	"strings"
	"time"
)

// Relationship is how well the user knows an investor.
type Relationship string

const (
	RelationshipWeak     Relationship = "weak"
	RelationshipModerate Relationship = "moderate"
	RelationshipStrong   Relationship = "strong"
)

// ParseRelationship normalizes free text to a Relationship, defaulting to weak.
func ParseRelationship(s string) Relationship {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strong":
		return RelationshipStrong
	case "moderate", "medium":
		return RelationshipModerate
	default:
		return RelationshipWeak
	}
}

// Investor is an investor connection in the user's network.
type Investor struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	ExternalID       string       `json:"external_id"`
	Firm             string       `json:"firm"`
	ContactName      string       `json:"contact_name,omitempty"`
	Email            string       `json:"email,omitempty"`
	Stages           []string     `json:"stages,omitempty"`
	Sectors          []string     `json:"sectors,omitempty"`
	CheckSizeMin     float64      `json:"check_size_min,omitempty"`
	CheckSizeMax     float64      `json:"check_size_max,omitempty"`
	Relationship     Relationship `json:"relationship"`
	LastContactAt    *time.Time   `json:"last_contact_at,omitempty"`
	IntroCount       int          `json:"intro_count"`
	LastIntroducedAt *time.Time   `json:"last_introduced_at,omitempty"`
	Source           string       `json:"source,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// IntroductionStatus tracks an introduction through its own lifecycle.
type IntroductionStatus string

const (
	IntroConsidering      IntroductionStatus = "considering"
	IntroPreparing        IntroductionStatus = "preparing"
	IntroSent             IntroductionStatus = "sent"
	IntroAccepted         IntroductionStatus = "accepted"
	IntroMeetingScheduled IntroductionStatus = "meeting_scheduled"
	IntroPassed           IntroductionStatus = "passed"
	IntroInvested         IntroductionStatus = "invested"
)

// Introduction links a company to an investor, optionally through a founder.
type Introduction struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	CompanyID  string             `json:"company_id"`
	InvestorID string             `json:"investor_id"`
	FounderID  string             `json:"founder_id,omitempty"`
	Status     IntroductionStatus `json:"status"`
	MatchScore int                `json:"match_score"`
	Reasons    []string           `json:"reasons,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
