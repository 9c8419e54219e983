package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageDiscovered, StageResearching, true},
		{StageDiscovered, StagePassed, true},
		{StageResearching, StageQualified, true},
		{StageResearching, StagePassed, true},
		{StageQualified, StageContacted, true},
		{StageContacted, StageMeeting, true},
		{StageMeeting, StageIntroduced, true},
		{StageDiscovered, StageQualified, false},
		{StageQualified, StagePassed, false},
		{StageContacted, StageQualified, false},
		{StagePassed, StageResearching, false},
		{StageIntroduced, StageMeeting, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCompanyAdvance(t *testing.T) {
	t.Parallel()

	c := &Company{Stage: StageDiscovered}
	require.NoError(t, c.Advance(StageResearching))
	assert.Equal(t, StageResearching, c.Stage)

	require.NoError(t, c.Advance(StageResearching), "same stage is a no-op")

	err := c.Advance(StageContacted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StageResearching, c.Stage)
}

func TestStageAtLeastQualified(t *testing.T) {
	t.Parallel()

	assert.False(t, StageDiscovered.AtLeastQualified())
	assert.False(t, StageResearching.AtLeastQualified())
	assert.False(t, StagePassed.AtLeastQualified())
	assert.True(t, StageQualified.AtLeastQualified())
	assert.True(t, StageContacted.AtLeastQualified())
	assert.True(t, StageIntroduced.AtLeastQualified())
}

func TestParseStage(t *testing.T) {
	t.Parallel()

	st, err := ParseStage("meeting")
	require.NoError(t, err)
	assert.Equal(t, StageMeeting, st)

	_, err = ParseStage("Qualified")
	assert.Error(t, err)
}

func TestCompanyAgeDays(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Company{IncorporatedOn: now.AddDate(0, 0, -10)}
	assert.Equal(t, 10, c.AgeDays(now))

	assert.Equal(t, -1, (&Company{}).AgeDays(now))
}

func TestOutreachItemDueAt(t *testing.T) {
	t.Parallel()

	sched := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	item := &OutreachItem{ScheduledFor: sched}
	assert.Equal(t, sched, item.DueAt())

	next := sched.Add(4 * time.Minute)
	item.NextAttemptAt = &next
	assert.Equal(t, next, item.DueAt())

	earlier := sched.Add(-time.Hour)
	item.NextAttemptAt = &earlier
	assert.Equal(t, sched, item.DueAt())
}

func TestFounderHelpers(t *testing.T) {
	t.Parallel()

	f := &Founder{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", f.FullName())
	assert.True(t, f.NeedsEnrichment())

	f.LinkedInURL = "https://linkedin.com/in/ada"
	f.Scored = true
	assert.False(t, f.NeedsEnrichment())

	f.Education = []Education{{Institution: "University of Cambridge", IsTopTier: true}}
	f.Experience = []Experience{{Company: "Stripe", IsHighGrowth: true}, {Company: "Acme"}}
	assert.True(t, f.HasTopTierEducation())
	assert.Equal(t, 1, f.HighGrowthCount())

	assert.Equal(t, RelationshipStrong, ParseRelationship(" Strong "))
	assert.Equal(t, RelationshipModerate, ParseRelationship("medium"))
	assert.Equal(t, RelationshipWeak, ParseRelationship(""))
}

func TestNormalizeFundingStage(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Series A":  "series-a",
		"series-b ": "series-b",
		"Seed":      "seed",
		"Pre Seed":  "pre-seed",
		"pre_seed":  "pre-seed",
		"Angel":     "pre-seed",
		"":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeFundingStage(in), in)
	}
}
