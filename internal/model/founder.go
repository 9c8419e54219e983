package model

import "time"

// FounderTier is the coarse founder quality bucket.
type FounderTier string

const (
	FounderExceptional FounderTier = "exceptional"
	FounderStrong      FounderTier = "strong"
	FounderPromising   FounderTier = "promising"
	FounderStandard    FounderTier = "standard"
)

// Confidence is how much profile evidence the parser found.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Education is one parsed education line.
type Education struct {
	Institution string `json:"institution"`
	DegreeType  string `json:"degree_type,omitempty"` // PhD, MBA, Masters, Bachelors
	Field       string `json:"field,omitempty"`
	IsTopTier   bool   `json:"is_top_tier"`
}

// Experience is one parsed employer mention.
type Experience struct {
	Company      string `json:"company"`
	Title        string `json:"title,omitempty"`
	IsHighGrowth bool   `json:"is_high_growth"`
}

// FounderSignals are booleans and tags derived from profile text.
type FounderSignals struct {
	IsRepeatFounder      bool       `json:"is_repeat_founder"`
	IsTechnical          bool       `json:"is_technical"`
	HasLeadershipTitle   bool       `json:"has_leadership_title"`
	PriorExits           int        `json:"prior_exits"`
	YearsExperience      int        `json:"years_experience"`
	DomainExpertise      []string   `json:"domain_expertise,omitempty"`
	IsStealth            bool       `json:"is_stealth"`
	StealthKeywords      []string   `json:"stealth_keywords,omitempty"`
	RecentlyAnnounced    bool       `json:"recently_announced"`
	AnnouncementKeywords []string   `json:"announcement_keywords,omitempty"`
	Confidence           Confidence `json:"confidence,omitempty"`
}

// FounderScores are always recomputed from Education and Experience.
type FounderScores struct {
	Education  int         `json:"education"`
	Experience int         `json:"experience"`
	Overall    int         `json:"overall"`
	Tier       FounderTier `json:"tier,omitempty"`
}

// CodeProfile summarises a founder's public code-hosting account.
type CodeProfile struct {
	Login       string   `json:"login"`
	URL         string   `json:"url"`
	Bio         string   `json:"bio,omitempty"`
	PublicRepos int      `json:"public_repos"`
	Followers   int      `json:"followers"`
	TotalStars  int      `json:"total_stars"`
	Languages   []string `json:"languages,omitempty"`
	Orgs        []string `json:"orgs,omitempty"`
}

// OutreachRecord is a denormalized copy of a sent message.
type OutreachRecord struct {
	OutreachID string    `json:"outreach_id"`
	Channel    Channel   `json:"channel"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

// Founder is a company officer and the person the pipeline profiles.
type Founder struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	CompanyID       string           `json:"company_id,omitempty"`
	OfficerRole     string           `json:"officer_role,omitempty"`
	FirstName       string           `json:"first_name"`
	LastName        string           `json:"last_name"`
	Email           string           `json:"email,omitempty"`
	LinkedInURL     string           `json:"linkedin_url,omitempty"`
	GitHubURL       string           `json:"github_url,omitempty"`
	TwitterURL      string           `json:"twitter_url,omitempty"`
	Headline        string           `json:"headline,omitempty"`
	Location        string           `json:"location,omitempty"`
	Education       []Education      `json:"education,omitempty"`
	Experience      []Experience     `json:"experience,omitempty"`
	Signals         FounderSignals   `json:"signals"`
	Scores          FounderScores    `json:"scores"`
	Scored          bool             `json:"scored"`
	CodeProfile     *CodeProfile     `json:"code_profile,omitempty"`
	OutreachHistory []OutreachRecord `json:"outreach_history,omitempty"`
	EnrichedAt      *time.Time       `json:"enriched_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// FullName joins first and last name.
func (f *Founder) FullName() string {
	switch {
	case f.FirstName == "":
		return f.LastName
	case f.LastName == "":
		return f.FirstName
	}
	return f.FirstName + " " + f.LastName
}

// NeedsEnrichment reports whether the founder lacks a profile URL or scores.
func (f *Founder) NeedsEnrichment() bool {
	return f.LinkedInURL == "" || !f.Scored
}

// HasTopTierEducation reports whether any education entry is top tier.
func (f *Founder) HasTopTierEducation() bool {
	for _, e := range f.Education {
		if e.IsTopTier {
			return true
		}
	}
	return false
}

// HighGrowthCount returns the number of high-growth employer entries.
func (f *Founder) HighGrowthCount() int {
	n := 0
	for _, e := range f.Experience {
		if e.IsHighGrowth {
			n++
		}
	}
	return n
}
