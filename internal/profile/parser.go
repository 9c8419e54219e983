// Package profile turns free profile text into structured founder signals.
// Parsing is pure: the same text, year and lists always give the same
// Profile.
package profile

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sells-group/dealflow-cli/internal/model"
)

const (
	headlineScanLines = 10
	maxLineLen        = 200
	maxPriorExits     = 5
	earliestYear      = 1980
)

var (
	employerRe = regexp.MustCompile(`(?:\bat|@)\s+([A-Z0-9][\w&.'\-]*(?:\s+[A-Z0-9][\w&.'\-]*){0,3})`)
	yearRe     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	titleTrim  = " \t-–|,:·•"
)

// Options control a parse.
type Options struct {
	// Year is the current year for years-of-experience. Zero means the
	// year of time.Now.
	Year  int
	Lists *Lists
}

// Profile is the structured result of parsing one profile text.
type Profile struct {
	Headline   string               `json:"headline,omitempty"`
	Location   string               `json:"location,omitempty"`
	Education  []model.Education    `json:"education,omitempty"`
	Experience []model.Experience   `json:"experience,omitempty"`
	Signals    model.FounderSignals `json:"signals"`
}

// Parser holds compiled lists. It is safe for concurrent use.
type Parser struct {
	stealth      *matcher
	announcement *matcher
	roles        *matcher
	founder      *matcher
	leadership   *matcher
	technical    *matcher
	education    *matcher
	topTier      *matcher
	fields       *matcher
	highGrowth   *matcher
	exits        *matcher
	locations    *matcher
	domains      []domainMatcher
}

// NewParser compiles lists. A nil lists uses DefaultLists.
func NewParser(lists *Lists) *Parser {
	if lists == nil {
		lists = DefaultLists()
	}
	return &Parser{
		stealth:      newMatcher(lists.StealthKeywords),
		announcement: newMatcher(lists.AnnouncementKeywords),
		roles:        newMatcher(lists.RoleTitles),
		founder:      newMatcher(lists.FounderTitles),
		leadership:   newMatcher(lists.LeadershipTitles),
		technical:    newMatcher(lists.TechnicalTitles),
		education:    newMatcher(lists.EducationKeywords),
		topTier:      newMatcher(lists.TopUniversities),
		fields:       newMatcher(lists.TechnicalFields),
		highGrowth:   newMatcher(lists.HighGrowthCompanies),
		exits:        newMatcher(lists.ExitKeywords),
		locations:    newMatcher(lists.Locations),
		domains:      newDomainMatchers(lists.Domains),
	}
}

// Parse is a convenience wrapper that compiles opts.Lists and parses text.
func Parse(text string, opts Options) Profile {
	return NewParser(opts.Lists).Parse(text, opts.Year)
}

// Parse extracts a Profile from text.
func (p *Parser) Parse(text string, year int) Profile {
	if year == 0 {
		year = time.Now().Year()
	}
	lines := splitLines(text)

	var prof Profile
	prof.Signals.StealthKeywords = p.stealth.all(text)
	prof.Signals.IsStealth = len(prof.Signals.StealthKeywords) > 0
	prof.Signals.AnnouncementKeywords = p.announcement.all(text)
	prof.Signals.RecentlyAnnounced = len(prof.Signals.AnnouncementKeywords) > 0

	prof.Headline = p.headline(lines)

	eduLines := make(map[int]bool)
	for i, line := range lines {
		if p.education.match(line) {
			eduLines[i] = true
		}
	}
	prof.Location = p.location(lines, eduLines)
	prof.Education = p.parseEducation(lines, eduLines)
	prof.Experience = p.parseExperience(lines, eduLines)

	p.deriveSignals(&prof, text, year)
	prof.Signals.Confidence = confidence(&prof)
	return prof
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// clip shortens a stored line to maxLineLen runes. Matching always sees the
// whole line.
func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxLineLen {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:maxLineLen]))
}

func (p *Parser) headline(lines []string) string {
	for i, line := range lines {
		if i >= headlineScanLines {
			break
		}
		if p.roles.match(line) {
			return clip(line)
		}
	}
	return ""
}

func (p *Parser) location(lines []string, eduLines map[int]bool) string {
	for i, line := range lines {
		if eduLines[i] {
			continue
		}
		if p.locations.match(line) {
			return clip(line)
		}
	}
	return ""
}

func (p *Parser) parseEducation(lines []string, eduLines map[int]bool) []model.Education {
	var out []model.Education
	seen := make(map[string]bool)
	for i, line := range lines {
		if !eduLines[i] {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true

		field, _ := p.fields.first(line)
		out = append(out, model.Education{
			Institution: clip(line),
			DegreeType:  degreeType(line),
			Field:       field,
			IsTopTier:   p.topTier.match(line),
		})
	}
	return out
}

var degreePatterns = []struct {
	degree string
	re     *regexp.Regexp
}{
	{"PhD", regexp.MustCompile(`(?i)\b(?:phd|ph\.d|doctorate|dphil)\b`)},
	{"MBA", regexp.MustCompile(`(?i)\bmba\b`)},
	{"Masters", regexp.MustCompile(`(?i)\b(?:masters?|msc|m\.sc|meng|mphil|ma|ms)\b`)},
	{"Bachelors", regexp.MustCompile(`(?i)\b(?:bachelors?|bsc|b\.sc|beng|ba|bs|ba\s*\(hons\))\b`)},
}

func degreeType(line string) string {
	for _, d := range degreePatterns {
		if d.re.MatchString(line) {
			return d.degree
		}
	}
	return ""
}

func (p *Parser) parseExperience(lines []string, eduLines map[int]bool) []model.Experience {
	var out []model.Experience
	seen := make(map[string]bool)
	add := func(company, title string, highGrowth bool) {
		key := strings.ToLower(strings.TrimSpace(company))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, model.Experience{Company: company, Title: title, IsHighGrowth: highGrowth})
	}

	for i, line := range lines {
		title := clip(lineTitle(line))
		for _, name := range p.highGrowth.all(line) {
			add(displayName(name), title, true)
		}
		if eduLines[i] {
			continue
		}
		for _, m := range employerRe.FindAllStringSubmatch(line, -1) {
			company := strings.TrimRight(m[1], ".,")
			if p.highGrowth.match(company) || p.locations.match(company) {
				continue
			}
			add(company, title, false)
		}
	}
	return out
}

// lineTitle returns the text before the first " at " or "@".
func lineTitle(line string) string {
	idx := len(line)
	if i := strings.Index(line, " at "); i >= 0 && i < idx {
		idx = i
	}
	if i := strings.Index(line, "@"); i >= 0 && i < idx {
		idx = i
	}
	if idx == len(line) {
		return ""
	}
	return strings.Trim(line[:idx], titleTrim)
}

func displayName(keyword string) string {
	parts := strings.Fields(keyword)
	for i, w := range parts {
		parts[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(parts, " ")
}

func (p *Parser) deriveSignals(prof *Profile, text string, year int) {
	s := &prof.Signals

	founderRoles := 0
	for _, e := range prof.Experience {
		if p.founder.match(e.Title) {
			founderRoles++
		}
		if p.leadership.match(e.Title) {
			s.HasLeadershipTitle = true
		}
	}
	if p.leadership.match(prof.Headline) {
		s.HasLeadershipTitle = true
	}
	s.IsRepeatFounder = founderRoles >= 2

	for _, e := range prof.Education {
		if e.Field != "" {
			s.IsTechnical = true
		}
	}
	if p.technical.match(prof.Headline) {
		s.IsTechnical = true
	}
	for _, e := range prof.Experience {
		if p.technical.match(e.Title) {
			s.IsTechnical = true
		}
	}

	exits := p.exits.count(text)
	if exits > maxPriorExits {
		exits = maxPriorExits
	}
	if founderRoles == 0 && exits > 1 {
		exits = 1
	}
	s.PriorExits = exits

	s.YearsExperience = yearsExperience(text, year)

	for _, d := range p.domains {
		if d.m.count(text) >= 2 {
			s.DomainExpertise = append(s.DomainExpertise, d.name)
		}
	}
}

// yearsExperience is year minus the earliest plausible year in text, when at
// least two distinct plausible years appear.
func yearsExperience(text string, year int) int {
	distinct := make(map[int]bool)
	earliest := 0
	for _, m := range yearRe.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err != nil || y < earliestYear || y > year {
			continue
		}
		distinct[y] = true
		if earliest == 0 || y < earliest {
			earliest = y
		}
	}
	if len(distinct) < 2 {
		return 0
	}
	return year - earliest
}

func confidence(prof *Profile) model.Confidence {
	score := 0
	if prof.Headline != "" {
		score++
	}
	if prof.Location != "" {
		score++
	}
	if len(prof.Education) >= 1 {
		score += 2
	}
	if len(prof.Experience) >= 1 {
		score += 2
	}
	if len(prof.Experience) >= 3 {
		score++
	}
	for _, e := range prof.Education {
		if e.DegreeType != "" {
			score++
			break
		}
	}
	switch {
	case score >= 6:
		return model.ConfidenceHigh
	case score >= 3:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
