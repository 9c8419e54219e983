package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/model"
)

const janeProfile = `Jane Doe
Co-Founder & CTO at Acme Robotics
London, United Kingdom
Stealth mode. Building something new in fintech payments.
Experience
Senior Software Engineer at Stripe 2018 - 2021
Software Engineer at Google 2014 - 2018
Founder at Widgetly
Education
University of Cambridge - PhD Computer Science 2010 - 2014
Stanford University MBA
`

func TestParse_FullProfile(t *testing.T) {
	p := Parse(janeProfile, Options{Year: 2026})

	assert.Equal(t, "Co-Founder & CTO at Acme Robotics", p.Headline)
	assert.Equal(t, "London, United Kingdom", p.Location)

	require.Len(t, p.Education, 2)
	assert.Equal(t, model.Education{
		Institution: "University of Cambridge - PhD Computer Science 2010 - 2014",
		DegreeType:  "PhD",
		Field:       "computer science",
		IsTopTier:   true,
	}, p.Education[0])
	assert.Equal(t, "MBA", p.Education[1].DegreeType)
	assert.True(t, p.Education[1].IsTopTier)

	assert.Equal(t, []model.Experience{
		{Company: "Acme Robotics", Title: "Co-Founder & CTO"},
		{Company: "Stripe", Title: "Senior Software Engineer", IsHighGrowth: true},
		{Company: "Google", Title: "Software Engineer", IsHighGrowth: true},
		{Company: "Widgetly", Title: "Founder"},
	}, p.Experience)

	s := p.Signals
	assert.True(t, s.IsStealth)
	assert.Contains(t, s.StealthKeywords, "stealth")
	assert.Contains(t, s.StealthKeywords, "stealth mode")
	assert.False(t, s.RecentlyAnnounced)
	assert.True(t, s.IsRepeatFounder)
	assert.True(t, s.IsTechnical)
	assert.True(t, s.HasLeadershipTitle)
	assert.Equal(t, 0, s.PriorExits)
	assert.Equal(t, 16, s.YearsExperience)
	assert.Equal(t, []string{"fintech"}, s.DomainExpertise)
	assert.Equal(t, model.ConfidenceHigh, s.Confidence)
}

func TestParse_Deterministic(t *testing.T) {
	parser := NewParser(nil)
	first := parser.Parse(janeProfile, 2026)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, parser.Parse(janeProfile, 2026))
		assert.Equal(t, first, Parse(janeProfile, Options{Year: 2026}))
	}
}

func TestParse_Announcement(t *testing.T) {
	p := Parse("Excited to announce we just launched!", Options{Year: 2026})
	assert.True(t, p.Signals.RecentlyAnnounced)
	assert.Equal(t, []string{"just launched", "excited to announce"}, p.Signals.AnnouncementKeywords)
	assert.False(t, p.Signals.IsStealth)
}

func TestParse_ExitsCappedWithoutFounderRole(t *testing.T) {
	text := "Engineer at Acme\nAcme was acquired by BigCo. Another acquisition followed. IPO in 2020."
	p := Parse(text, Options{Year: 2026})
	assert.Equal(t, 1, p.Signals.PriorExits)
	assert.False(t, p.Signals.IsRepeatFounder)
	assert.True(t, p.Signals.IsTechnical, "engineer title")
	assert.Equal(t, 0, p.Signals.YearsExperience, "single year is not enough")
}

func TestParse_ExitsCappedAtFive(t *testing.T) {
	text := `Co-founder at Alpha
Co-founder at Beta
Alpha acquired by X. Beta acquired by Y. Gamma acquired by Z.
Delta acquired by W. Epsilon acquired by V. Zeta acquired by U.`
	p := Parse(text, Options{Year: 2026})
	assert.True(t, p.Signals.IsRepeatFounder)
	assert.Equal(t, 5, p.Signals.PriorExits)
}

func TestParse_NonTopTierEducation(t *testing.T) {
	p := Parse("University of Leeds BSc Mathematics", Options{Year: 2026})
	require.Len(t, p.Education, 1)
	assert.False(t, p.Education[0].IsTopTier)
	assert.Equal(t, "Bachelors", p.Education[0].DegreeType)
	assert.Equal(t, "mathematics", p.Education[0].Field)
	assert.Empty(t, p.Location, "education lines are not locations")
	assert.Empty(t, p.Experience)
}

func TestParse_Empty(t *testing.T) {
	p := Parse("hello world", Options{Year: 2026})
	assert.Empty(t, p.Headline)
	assert.Empty(t, p.Education)
	assert.Empty(t, p.Experience)
	assert.Equal(t, model.ConfidenceLow, p.Signals.Confidence)
}

func TestParse_HeadlineOnlyInFirstLines(t *testing.T) {
	text := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\nFounder at Late"
	p := Parse(text, Options{Year: 2026})
	assert.Empty(t, p.Headline)
	require.Len(t, p.Experience, 1)
	assert.Equal(t, "Late", p.Experience[0].Company)
}

func TestParse_LongLineKeepsKeywordsAndRunes(t *testing.T) {
	long := strings.Repeat("é", 190) + " University of Oxford PhD Computer Science"
	p := Parse("Jane Doe\n"+long, Options{Year: 2026})

	require.Len(t, p.Education, 1)
	edu := p.Education[0]
	assert.True(t, edu.IsTopTier, "keyword past the clip point still matches")
	assert.Equal(t, "PhD", edu.DegreeType)
	assert.Equal(t, "computer science", edu.Field)
	assert.True(t, utf8.ValidString(edu.Institution))
	assert.Equal(t, maxLineLen, utf8.RuneCountInString(edu.Institution))
}

func TestWordPattern(t *testing.T) {
	m := newMatcher([]string{"ipo", "ph.d", "head of"})
	assert.False(t, m.match("a tripod"))
	assert.True(t, m.match("IPO in 2020"))
	assert.True(t, m.match("Ph.D. in physics"))
	assert.True(t, m.match("Head  of Growth"))
	assert.Equal(t, 2, m.count("ipo then another IPO"))
}

func TestLoadLists_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lists.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lists:\n  stealth_keywords: [skunkworks]\n"), 0o644))

	lists, err := LoadLists(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"skunkworks"}, lists.StealthKeywords)
	assert.NotEmpty(t, lists.TopUniversities, "unset keys keep defaults")

	p := Parse("Skunkworks project. stealth", Options{Year: 2026, Lists: lists})
	assert.Equal(t, []string{"skunkworks"}, p.Signals.StealthKeywords)
}

func TestLoadLists_Missing(t *testing.T) {
	_, err := LoadLists(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
