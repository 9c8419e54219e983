package model

import "time"

// Settings is a user's per-tick configuration: API keys, sender identity and
// discovery overrides. Stages receive it explicitly rather than reading
// global state.
type Settings struct {
	UserID            string    `json:"user_id" yaml:"user_id"`
	CompaniesHouseKey string    `json:"companies_house_key,omitempty" yaml:"companies_house_key"`
	ExaKey            string    `json:"exa_key,omitempty" yaml:"exa_key"`
	ApolloKey         string    `json:"apollo_key,omitempty" yaml:"apollo_key"`
	HunterKey         string    `json:"hunter_key,omitempty" yaml:"hunter_key"`
	GitHubToken       string    `json:"github_token,omitempty" yaml:"github_token"`
	ResendKey         string    `json:"resend_key,omitempty" yaml:"resend_key"`
	AnthropicKey      string    `json:"anthropic_key,omitempty" yaml:"anthropic_key"`
	NotionToken       string    `json:"notion_token,omitempty" yaml:"notion_token"`
	NotionInvestorDB  string    `json:"notion_investor_db,omitempty" yaml:"notion_investor_db"`
	SenderName        string    `json:"sender_name,omitempty" yaml:"sender_name"`
	SenderEmail       string    `json:"sender_email,omitempty" yaml:"sender_email"`
	SenderCompany     string    `json:"sender_company,omitempty" yaml:"sender_company"`
	AutoOutreach      bool      `json:"auto_outreach" yaml:"auto_outreach"`
	DiscoveryCodes    []string  `json:"discovery_codes,omitempty" yaml:"discovery_codes"`
	DiscoveryProfile  string    `json:"discovery_profile,omitempty" yaml:"discovery_profile"`
	LookbackDays      int       `json:"lookback_days,omitempty" yaml:"lookback_days"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}
