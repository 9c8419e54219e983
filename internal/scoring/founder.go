// Package scoring computes founder and company scores and decides
// qualification.
package scoring

import (
	"math"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// EducationScore scores a founder's education entries.
func EducationScore(edu []model.Education) int {
	if len(edu) == 0 {
		return 0
	}

	topTier := 0
	phd, mba := false, false
	for _, e := range edu {
		if e.IsTopTier {
			topTier++
		}
		switch e.DegreeType {
		case "PhD":
			phd = true
		case "MBA":
			mba = true
		}
	}

	score := 30
	if topTier > 0 {
		score = 50 + 25*topTier
	}
	if phd {
		score += 15
	}
	if mba {
		score += 10
	}
	return clamp(score)
}

// ExperienceScore scores employer history plus career signals.
func ExperienceScore(exp []model.Experience, s model.FounderSignals) int {
	highGrowth := 0
	for _, e := range exp {
		if e.IsHighGrowth {
			highGrowth++
		}
	}

	var score int
	switch {
	case highGrowth >= 3:
		score = 100
	case highGrowth == 2:
		score = 80
	case highGrowth == 1:
		score = 60
	case len(exp) > 0:
		score = 30
	}

	if s.HasLeadershipTitle {
		score += 15
	}
	if s.IsRepeatFounder {
		score += 15
	}
	if s.PriorExits > 0 {
		score += 10
	}
	if s.YearsExperience >= 10 {
		score += 5
	}
	return clamp(score)
}

// FounderTier buckets a founder by overall score and signals.
func FounderTier(overall int, edu []model.Education, exp []model.Experience, s model.FounderSignals) model.FounderTier {
	highGrowth := 0
	for _, e := range exp {
		if e.IsHighGrowth {
			highGrowth++
		}
	}
	topTier := false
	for _, e := range edu {
		if e.IsTopTier {
			topTier = true
		}
	}

	switch {
	case overall >= 80 || (s.IsRepeatFounder && s.PriorExits > 0):
		return model.FounderExceptional
	case overall >= 65 || (s.IsRepeatFounder && highGrowth >= 1):
		return model.FounderStrong
	case overall >= 45 || highGrowth >= 1 || topTier:
		return model.FounderPromising
	default:
		return model.FounderStandard
	}
}

// ScoreFounder recomputes all founder scores from education, experience and
// signals. Overall is always round(0.4*education + 0.6*experience).
func ScoreFounder(f *model.Founder) model.FounderScores {
	edu := EducationScore(f.Education)
	exp := ExperienceScore(f.Experience, f.Signals)
	overall := int(math.Round(0.4*float64(edu) + 0.6*float64(exp)))
	return model.FounderScores{
		Education:  edu,
		Experience: exp,
		Overall:    overall,
		Tier:       FounderTier(overall, f.Education, f.Experience, f.Signals),
	}
}

// ApplyFounder stores fresh scores on the founder and marks it scored.
func ApplyFounder(f *model.Founder) {
	f.Scores = ScoreFounder(f)
	f.Scored = true
}

func clamp(v int) int {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
