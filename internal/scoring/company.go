package scoring

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// NeutralTeamScore is used when no founder has been scored yet.
const NeutralTeamScore = 50

// Qualification thresholds for the background policy.
const (
	MinMarketScore = 65
	MinTeamScore   = 35
)

// Policy names a qualification rule set.
type Policy string

const (
	// PolicyBackground qualifies on a market-score floor plus a team or
	// signal check, and leaves companies researching until a founder is
	// scored.
	PolicyBackground Policy = "background"
	// PolicyManual buckets companies into tiers A-D and maps tiers to
	// stages.
	PolicyManual Policy = "manual"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyBackground, PolicyManual:
		return Policy(s), nil
	case "":
		return PolicyBackground, nil
	}
	return "", eris.Errorf("scoring: unknown qualification policy %q", s)
}

// Decision is the outcome of a qualification pass.
type Decision string

const (
	DecisionQualify Decision = "qualify"
	DecisionPass    Decision = "pass"
	DecisionPending Decision = "pending"
)

// Flags are the company-level signals behind bonuses and the qualification
// shortcut.
type Flags struct {
	Stealth           bool `json:"stealth"`
	RecentlyAnnounced bool `json:"recently_announced"`
	TopTierEducation  bool `json:"top_tier_education"`
	HighGrowth        bool `json:"high_growth"`
	RepeatFounder     bool `json:"repeat_founder"`
	Technical         bool `json:"technical"`
	Exceptional       bool `json:"exceptional"`
}

// Bonus returns the bonus points for the flags.
func (f Flags) Bonus() int {
	b := 0
	if f.Stealth {
		b += 5
	}
	if f.RecentlyAnnounced {
		b += 3
	}
	if f.TopTierEducation {
		b += 3
	}
	if f.RepeatFounder {
		b += 5
	}
	if f.Technical {
		b += 2
	}
	if f.Exceptional {
		b += 5
	}
	return b
}

func (f Flags) any() bool {
	return f.Stealth || f.RecentlyAnnounced || f.TopTierEducation ||
		f.HighGrowth || f.RepeatFounder || f.Exceptional
}

// Assessment is the scored view of one company.
type Assessment struct {
	Scores         model.CompanyScores `json:"scores"`
	Flags          Flags               `json:"flags"`
	FoundersScored int                 `json:"founders_scored"`
	TierScore      int                 `json:"tier_score"`
	Tier           model.Tier          `json:"tier"`
	Decision       Decision            `json:"decision"`
	Watchlist      bool                `json:"watchlist"`
}

// Assess scores a company from its founders and enrichment and decides
// qualification under the given policy.
func Assess(c *model.Company, founders []model.Founder, policy Policy) Assessment {
	var a Assessment

	a.Flags.Stealth = c.IsStealth
	a.Flags.RecentlyAnnounced = c.RecentlyAnnounced
	total := 0
	for i := range founders {
		f := &founders[i]
		if f.HasTopTierEducation() {
			a.Flags.TopTierEducation = true
		}
		if f.HighGrowthCount() > 0 {
			a.Flags.HighGrowth = true
		}
		if f.Signals.IsRepeatFounder {
			a.Flags.RepeatFounder = true
		}
		if f.Signals.IsTechnical {
			a.Flags.Technical = true
		}
		if !f.Scored {
			continue
		}
		a.FoundersScored++
		total += f.Scores.Overall
		if f.Scores.Tier == model.FounderExceptional {
			a.Flags.Exceptional = true
		}
	}

	team := NeutralTeamScore
	if a.FoundersScored > 0 {
		team = int(math.Round(float64(total) / float64(a.FoundersScored)))
	}
	market := MarketScore(c.IndustryCodes)
	traction := TractionScore(c.Enrichment)
	bonus := a.Flags.Bonus()
	overall := math.Round(0.40*float64(team) + 0.25*float64(market) + 0.15*float64(traction) + float64(bonus))

	a.Scores = model.CompanyScores{
		Overall:  clamp(int(overall)),
		Team:     team,
		Market:   market,
		Traction: traction,
		Bonus:    bonus,
	}
	a.TierScore = TierScore(team, market, bonus, a.FoundersScored > 0)
	a.Tier = TierFor(a.TierScore)

	switch policy {
	case PolicyManual:
		switch a.Tier {
		case model.TierA, model.TierB:
			a.Decision = DecisionQualify
		case model.TierC:
			a.Decision = DecisionQualify
			a.Watchlist = true
		default:
			a.Decision = DecisionPass
		}
	default:
		a.Decision = backgroundDecision(a)
	}
	return a
}

func backgroundDecision(a Assessment) Decision {
	if a.FoundersScored == 0 {
		return DecisionPending
	}
	if a.Scores.Market < MinMarketScore {
		return DecisionPass
	}
	if a.Scores.Team >= MinTeamScore || a.Flags.any() {
		return DecisionQualify
	}
	return DecisionPending
}

// TierScore weights team, market and bonus 50/40/10 when founders are
// enriched and 30/60/10 when not. The bonus component is 5 per bonus point,
// capped at 100.
func TierScore(team, market, bonus int, foundersEnriched bool) int {
	bonusComponent := math.Min(100, float64(5*bonus))
	wTeam, wMarket := 0.30, 0.60
	if foundersEnriched {
		wTeam, wMarket = 0.50, 0.40
	}
	return clamp(int(math.Round(wTeam*float64(team) + wMarket*float64(market) + 0.10*bonusComponent)))
}

// TierFor buckets a tier score: A>=80, B>=65, C>=50, else D.
func TierFor(score int) model.Tier {
	switch {
	case score >= 80:
		return model.TierA
	case score >= 65:
		return model.TierB
	case score >= 50:
		return model.TierC
	default:
		return model.TierD
	}
}

// Apply writes the assessment onto the company and advances its stage. A
// company still in discovered passes through researching first. It reports
// whether the stage changed.
func Apply(c *model.Company, a Assessment, now time.Time) (bool, error) {
	c.Scores = a.Scores
	c.Tier = a.Tier
	before := c.Stage

	var target model.Stage
	switch a.Decision {
	case DecisionQualify:
		target = model.StageQualified
	case DecisionPass:
		target = model.StagePassed
	default:
		return false, nil
	}

	if c.Stage == model.StageDiscovered && target == model.StageQualified {
		if err := c.Advance(model.StageResearching); err != nil {
			return false, err
		}
	}
	if err := c.Advance(target); err != nil {
		c.Stage = before
		return false, err
	}
	if target == model.StageQualified {
		c.Watchlist = a.Watchlist
		if c.QualifiedAt == nil {
			t := now
			c.QualifiedAt = &t
		}
	}
	return c.Stage != before, nil
}
