package enrich

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/ratelimit"
	"github.com/sells-group/dealflow-cli/pkg/exa"
)

const (
	profileDomain  = "linkedin.com"
	profileResults = 5
)

// FounderQuery builds the profile search query for a founder.
func FounderQuery(f *model.Founder, companyName string) string {
	parts := []string{f.FirstName, f.LastName}
	if name := CleanCompanyName(companyName); name != "" {
		parts = append(parts, name)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ") + " site:" + profileDomain
}

// EnrichFounder searches for the founder's professional profile and parses
// it. It returns nil when no profile result was found.
func (e *Enricher) EnrichFounder(ctx context.Context, userID string, f *model.Founder, companyName string) (*model.FounderEnrichment, error) {
	if err := e.admit(ctx, userID, ratelimit.APIExa); err != nil {
		return nil, err
	}
	resp, err := e.search.Search(ctx, exa.SearchRequest{
		Query:          FounderQuery(f, companyName),
		NumResults:     profileResults,
		IncludeDomains: []string{profileDomain},
		Contents:       &exa.ContentsOptions{Text: true},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: search founder %s", f.ID)
	}

	best := PickProfile(resp.Results, f.FirstName, f.LastName)
	if best == nil {
		return nil, nil
	}

	text := best.Text
	if best.Title != "" {
		text = best.Title + "\n" + text
	}
	prof := e.parser.Parse(text, e.nowFunc().Year())
	return &model.FounderEnrichment{
		FounderID:  f.ID,
		ProfileURL: best.URL,
		Headline:   prof.Headline,
		Location:   prof.Location,
		Education:  prof.Education,
		Experience: prof.Experience,
		Signals:    prof.Signals,
	}, nil
}

// PickProfile returns the first profile-domain result whose title or text
// mentions both names, falling back to the first profile-domain result.
func PickProfile(results []exa.Result, first, last string) *exa.Result {
	first, last = strings.ToLower(first), strings.ToLower(last)
	var fallback *exa.Result
	for i := range results {
		r := &results[i]
		if !onProfileDomain(r.URL) {
			continue
		}
		if fallback == nil {
			fallback = r
		}
		hay := strings.ToLower(r.Title + "\n" + r.Text)
		if first != "" && last != "" && strings.Contains(hay, first) && strings.Contains(hay, last) {
			return r
		}
	}
	return fallback
}

func onProfileDomain(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return hostMatches(u.Hostname(), profileDomain)
}

// ApplyFounderEnrichment copies parsed profile fields onto the founder.
// Empty headline or location never overwrite known values.
func ApplyFounderEnrichment(f *model.Founder, en *model.FounderEnrichment) {
	if en.ProfileURL != "" {
		f.LinkedInURL = en.ProfileURL
	}
	if en.Headline != "" {
		f.Headline = en.Headline
	}
	if en.Location != "" {
		f.Location = en.Location
	}
	f.Education = en.Education
	f.Experience = en.Experience
	f.Signals = en.Signals
	if en.Email != "" && f.Email == "" {
		f.Email = en.Email
	}
	if en.CodeProfile != nil {
		f.CodeProfile = en.CodeProfile
	}
}

// applyCodeSignals marks the founder technical when the code profile shows
// real engineering activity.
func applyCodeSignals(f *model.Founder) {
	if f.CodeProfile != nil && IsTechnicalProfile(f.CodeProfile) {
		f.Signals.IsTechnical = true
	}
}
