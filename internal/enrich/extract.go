package enrich

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/pkg/exa"
)

const (
	maxNewsItems     = 5
	maxFundingRounds = 5

	// minFundingAmount ignores prices and other small sums.
	minFundingAmount = 10_000
)

// nonCompanyDomains never count as a company's own website.
var nonCompanyDomains = append([]string{
	"linkedin.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"instagram.com",
	"youtube.com",
	"tiktok.com",
	"medium.com",
	"github.com",
	"wikipedia.org",
	"crunchbase.com",
	"pitchbook.com",
	"dealroom.co",
	"beauhurst.com",
	"glassdoor.com",
	"glassdoor.co.uk",
	"indeed.com",
	"bloomberg.com",
	"reuters.com",
	"company-information.service.gov.uk",
	"companieshouse.gov.uk",
	"opencorporates.com",
	"endole.co.uk",
	"companycheck.co.uk",
	"dnb.com",
	"zoominfo.com",
}, NewsOutlets...)

type keywordSet struct {
	name string
	re   *regexp.Regexp
}

func newKeywordSet(name string, terms ...string) keywordSet {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return keywordSet{name: name, re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

var techKeywords = []keywordSet{
	newKeywordSet("Python", "python", "django", "fastapi"),
	newKeywordSet("Go", "golang"),
	newKeywordSet("Rust", "rust"),
	newKeywordSet("TypeScript", "typescript"),
	newKeywordSet("JavaScript", "javascript"),
	newKeywordSet("React", "react.js", "reactjs", "react native"),
	newKeywordSet("Node.js", "node.js", "nodejs"),
	newKeywordSet("Kubernetes", "kubernetes", "k8s"),
	newKeywordSet("AWS", "aws", "amazon web services"),
	newKeywordSet("Google Cloud", "gcp", "google cloud"),
	newKeywordSet("Azure", "azure"),
	newKeywordSet("PostgreSQL", "postgres", "postgresql"),
	newKeywordSet("Machine Learning", "machine learning", "deep learning"),
	newKeywordSet("AI", "ai", "artificial intelligence", "generative ai"),
	newKeywordSet("LLM", "llm", "llms", "large language model", "large language models"),
	newKeywordSet("Computer Vision", "computer vision"),
	newKeywordSet("Blockchain", "blockchain", "web3"),
	newKeywordSet("Open Banking", "open banking"),
	newKeywordSet("Mobile", "ios", "android"),
}

// businessModels are checked in tie-break order.
var businessModels = []keywordSet{
	newKeywordSet("Marketplace", "marketplace", "two-sided", "buyers and sellers"),
	newKeywordSet("DTC", "direct-to-consumer", "direct to consumer", "d2c", "dtc"),
	newKeywordSet("B2B", "b2b", "enterprise", "enterprises", "saas", "businesses", "smes", "smbs"),
	newKeywordSet("B2C", "b2c", "consumers", "consumer app", "shoppers", "households"),
}

var (
	teamSizeRe = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+)\+?\s+(?:employees|staff)\b`)
	amountRe   = regexp.MustCompile(`(?i)([£$€]|\b(?:gbp|usd|eur)\s?)(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s?(k|m|mn|million|bn|billion)?\b`)
	roundRe    = regexp.MustCompile(`(?i)\b(pre-seed|pre seed|seed|series [a-f]|angel|bridge)\b`)
	yearRe     = regexp.MustCompile(`\b(20[0-4]\d)\b`)
	investorRe = regexp.MustCompile(`\b(?:[Ll]ed by|[Ff]rom|[Bb]acked by)\s+((?:[A-Z][\w&'.-]*\s+){0,4}(?:Capital|Ventures|Partners|VC|Fund))\b`)
)

var stageRank = map[string]int{
	"pre-seed": 0,
	"seed":     1,
	"series-a": 2,
	"series-b": 3,
	"series-c": 4,
	"series-d": 5,
	"series-e": 6,
	"series-f": 7,
}

// Description returns the first line of result text longer than minLen
// characters, whitespace-collapsed.
func Description(results []exa.Result, minLen int) string {
	for _, r := range results {
		for _, line := range strings.Split(r.Text, "\n") {
			line = collapse(line)
			if utf8.RuneCountInString(line) > minLen {
				return truncateRunes(line, maxDescriptionRune)
			}
		}
	}
	return ""
}

// Website returns the scheme and host of the first result that is not on a
// known non-company domain.
func Website(results []exa.Result) string {
	for _, r := range results {
		u, err := url.Parse(r.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if nonCompanyHost(host) {
			continue
		}
		return u.Scheme + "://" + host
	}
	return ""
}

func nonCompanyHost(host string) bool {
	for _, d := range nonCompanyDomains {
		if hostMatches(host, d) {
			return true
		}
	}
	return false
}

// TechStack returns the technologies mentioned in text, in list order.
func TechStack(text string) []string {
	var out []string
	for _, k := range techKeywords {
		if k.re.MatchString(text) {
			out = append(out, k.name)
		}
	}
	return out
}

// BusinessModel returns the model with the most keyword hits, or "" when
// none match.
func BusinessModel(text string) string {
	best, bestHits := "", 0
	for _, m := range businessModels {
		if hits := len(m.re.FindAllStringIndex(text, -1)); hits > bestHits {
			best, bestHits = m.name, hits
		}
	}
	return best
}

// TeamSize buckets the first "<N> employees" mention.
func TeamSize(text string) string {
	m := teamSizeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n <= 0 {
		return ""
	}
	switch {
	case n <= 10:
		return "1-10"
	case n <= 50:
		return "11-50"
	case n <= 200:
		return "51-200"
	case n <= 500:
		return "201-500"
	case n <= 1000:
		return "501-1000"
	default:
		return "1000+"
	}
}

// News returns up to max items, skipping repeats of a URL or title.
func News(results []exa.Result, max int) []model.NewsItem {
	var out []model.NewsItem
	seen := make(map[string]bool)
	for _, r := range results {
		if len(out) >= max {
			break
		}
		title := collapse(r.Title)
		u, err := url.Parse(r.URL)
		if err != nil || title == "" || u.Hostname() == "" {
			continue
		}
		urlKey := "u:" + strings.ToLower(u.Hostname()) + strings.TrimRight(u.EscapedPath(), "/")
		titleKey := "t:" + strings.ToLower(title)
		if seen[urlKey] || seen[titleKey] {
			continue
		}
		seen[urlKey], seen[titleKey] = true, true

		item := model.NewsItem{
			Title:  title,
			URL:    r.URL,
			Source: strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."),
		}
		if len(r.PublishedDate) >= 10 {
			item.Published = r.PublishedDate[:10]
		}
		out = append(out, item)
	}
	return out
}

// Funding extracts up to max funding rounds, one per result at most, and
// skips repeats of the same round label and amount.
func Funding(results []exa.Result, max int) []model.FundingRound {
	var out []model.FundingRound
	seen := make(map[string]bool)
	for _, r := range results {
		if len(out) >= max {
			break
		}
		fr, ok := fundingRound(r)
		if !ok {
			continue
		}
		key := fr.Round + "|" + strconv.FormatFloat(fr.Amount, 'f', 0, 64) + fr.Currency
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, fr)
	}
	return out
}

func fundingRound(r exa.Result) (model.FundingRound, bool) {
	text := collapse(r.Title + ". " + r.Text)
	fr := model.FundingRound{SourceURL: r.URL}

	anchor := -1
	for _, m := range amountRe.FindAllStringSubmatchIndex(text, -1) {
		amount := parseAmount(text[m[4]:m[5]], submatch(text, m, 3))
		if amount < minFundingAmount {
			continue
		}
		fr.Currency = currencyCode(text[m[2]:m[3]])
		fr.Amount = amount
		anchor = m[0]
		break
	}
	if m := roundRe.FindStringSubmatchIndex(text); m != nil {
		fr.Round = model.NormalizeFundingStage(text[m[2]:m[3]])
		if anchor < 0 {
			anchor = m[0]
		}
	}
	if anchor < 0 {
		return fr, false
	}

	y := yearRe.FindString(sentenceAround(text, anchor))
	if y == "" {
		y = yearRe.FindString(text)
	}
	if y != "" {
		fr.Year, _ = strconv.Atoi(y)
	} else if len(r.PublishedDate) >= 4 {
		fr.Year, _ = strconv.Atoi(r.PublishedDate[:4])
	}

	seen := make(map[string]bool)
	for _, m := range investorRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if !seen[name] {
			seen[name] = true
			fr.Investors = append(fr.Investors, name)
		}
	}
	return fr, true
}

// FundingStage returns the label of the latest ranked round, by year then
// stage, or the default stage when no round is labelled.
func FundingStage(rounds []model.FundingRound) string {
	best, bestYear, bestRank := "", -1, -1
	for _, r := range rounds {
		rank, ok := stageRank[r.Round]
		if !ok {
			continue
		}
		if r.Year > bestYear || (r.Year == bestYear && rank > bestRank) {
			best, bestYear, bestRank = r.Round, r.Year, rank
		}
	}
	if best == "" {
		return model.DefaultFundingStage
	}
	return best
}

func currencyCode(sym string) string {
	switch strings.ToUpper(strings.TrimSpace(sym)) {
	case "£", "GBP":
		return "GBP"
	case "$", "USD":
		return "USD"
	case "€", "EUR":
		return "EUR"
	}
	return ""
}

func parseAmount(num, unit string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(unit) {
	case "k":
		v *= 1e3
	case "m", "mn", "million":
		v *= 1e6
	case "bn", "billion":
		v *= 1e9
	}
	return v
}

func submatch(s string, idx []int, n int) string {
	if 2*n+1 >= len(idx) || idx[2*n] < 0 {
		return ""
	}
	return s[idx[2*n]:idx[2*n+1]]
}

// sentenceAround returns the sentence of text containing byte offset i.
func sentenceAround(text string, i int) string {
	start, end := 0, len(text)
	for j := i - 1; j >= 0; j-- {
		if sentenceEnd(text, j) {
			start = j + 1
			break
		}
	}
	for j := i; j < len(text); j++ {
		if sentenceEnd(text, j) {
			end = j
			break
		}
	}
	return text[start:end]
}

// sentenceEnd reports whether text[j] ends a sentence. A period only counts
// when followed by a space or the end of text, so 2.5m stays whole.
func sentenceEnd(text string, j int) bool {
	switch text[j] {
	case '!', '?':
		return true
	case '.':
		return j+1 == len(text) || text[j+1] == ' '
	}
	return false
}

func hostMatches(host, domain string) bool {
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func joinText(results []exa.Result) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Title)
		b.WriteByte('\n')
		b.WriteString(r.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
