package profile

import (
	_ "embed"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed lists.yaml
var defaultListsYAML []byte

// Lists holds the keyword data the parser matches against.
type Lists struct {
	StealthKeywords      []string            `yaml:"stealth_keywords"`
	AnnouncementKeywords []string            `yaml:"announcement_keywords"`
	RoleTitles           []string            `yaml:"role_titles"`
	FounderTitles        []string            `yaml:"founder_titles"`
	LeadershipTitles     []string            `yaml:"leadership_titles"`
	TechnicalTitles      []string            `yaml:"technical_titles"`
	EducationKeywords    []string            `yaml:"education_keywords"`
	TopUniversities      []string            `yaml:"top_universities"`
	TechnicalFields      []string            `yaml:"technical_fields"`
	HighGrowthCompanies  []string            `yaml:"high_growth_companies"`
	ExitKeywords         []string            `yaml:"exit_keywords"`
	Domains              map[string][]string `yaml:"domains"`
	Locations            []string            `yaml:"locations"`
}

// DefaultLists returns the embedded lists.
func DefaultLists() *Lists {
	l, err := parseLists(defaultListsYAML)
	if err != nil {
		panic(err)
	}
	return l
}

// LoadLists reads lists from a YAML file with the same layout as the
// embedded default. Keys missing from the file keep their default values.
func LoadLists(path string) (*Lists, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read lists %s", path)
	}
	override, err := parseLists(data)
	if err != nil {
		return nil, err
	}
	return DefaultLists().merge(override), nil
}

func parseLists(data []byte) (*Lists, error) {
	var wrapper struct {
		Lists Lists `yaml:"lists"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "profile: parse lists")
	}
	return &wrapper.Lists, nil
}

func (l *Lists) merge(o *Lists) *Lists {
	pick := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	pick(&l.StealthKeywords, o.StealthKeywords)
	pick(&l.AnnouncementKeywords, o.AnnouncementKeywords)
	pick(&l.RoleTitles, o.RoleTitles)
	pick(&l.FounderTitles, o.FounderTitles)
	pick(&l.LeadershipTitles, o.LeadershipTitles)
	pick(&l.TechnicalTitles, o.TechnicalTitles)
	pick(&l.EducationKeywords, o.EducationKeywords)
	pick(&l.TopUniversities, o.TopUniversities)
	pick(&l.TechnicalFields, o.TechnicalFields)
	pick(&l.HighGrowthCompanies, o.HighGrowthCompanies)
	pick(&l.ExitKeywords, o.ExitKeywords)
	pick(&l.Locations, o.Locations)
	if len(o.Domains) > 0 {
		l.Domains = o.Domains
	}
	return l
}

// matcher is a compiled keyword list. Patterns keep the list order so that
// every lookup is deterministic.
type matcher struct {
	words    []string
	patterns []*regexp.Regexp
	any      *regexp.Regexp
}

func newMatcher(words []string) *matcher {
	m := &matcher{}
	var alts []string
	for _, w := range words {
		w = strings.TrimSpace(strings.ToLower(w))
		if w == "" {
			continue
		}
		p := wordPattern(w)
		m.words = append(m.words, w)
		m.patterns = append(m.patterns, regexp.MustCompile("(?i)"+p))
		alts = append(alts, p)
	}
	if len(alts) > 0 {
		m.any = regexp.MustCompile("(?i)(?:" + strings.Join(alts, "|") + ")")
	}
	return m
}

// wordPattern anchors a keyword on word boundaries where its edges are word
// characters, so "ipo" does not match "tripod" but "ph.d" still matches.
func wordPattern(w string) string {
	p := regexp.QuoteMeta(w)
	p = strings.ReplaceAll(p, " ", `\s+`)
	if isWordByte(w[0]) {
		p = `\b` + p
	}
	if isWordByte(w[len(w)-1]) {
		p += `\b`
	}
	return p
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// match reports whether s contains any keyword.
func (m *matcher) match(s string) bool {
	return m.any != nil && m.any.MatchString(s)
}

// first returns the first keyword in list order found in s.
func (m *matcher) first(s string) (string, bool) {
	for i, p := range m.patterns {
		if p.MatchString(s) {
			return m.words[i], true
		}
	}
	return "", false
}

// all returns every keyword found in s, in list order.
func (m *matcher) all(s string) []string {
	var out []string
	for i, p := range m.patterns {
		if p.MatchString(s) {
			out = append(out, m.words[i])
		}
	}
	return out
}

// count returns the total number of keyword occurrences in s.
func (m *matcher) count(s string) int {
	n := 0
	for _, p := range m.patterns {
		n += len(p.FindAllStringIndex(s, -1))
	}
	return n
}

type domainMatcher struct {
	name string
	m    *matcher
}

func newDomainMatchers(domains map[string][]string) []domainMatcher {
	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domainMatcher, 0, len(names))
	for _, name := range names {
		out = append(out, domainMatcher{name: name, m: newMatcher(domains[name])})
	}
	return out
}
