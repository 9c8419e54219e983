package scoring

// DefaultMarketScore applies when no industry code has a table entry.
const DefaultMarketScore = 45

// marketExact scores specific SIC codes by scalability.
var marketExact = map[string]int{
	"62011": 90, // ready-made interactive leisure and entertainment software
	"62012": 90, // business and domestic software development
	"62020": 70, // IT consultancy
	"62090": 75, // other IT service activities
	"63110": 85, // data processing, hosting
	"63120": 80, // web portals
	"58290": 90, // other software publishing
	"72190": 80, // other R&D on natural sciences and engineering
	"72110": 75, // R&D on biotechnology
	"64999": 80, // financial intermediation n.e.c.
	"66190": 75, // activities auxiliary to financial services
	"47910": 70, // retail via mail order or internet
	"14190": 55, // other wearing apparel
	"47710": 50, // retail of clothing
	"70229": 40, // management consultancy
}

// marketPrefix scores SIC divisions when no exact entry exists.
var marketPrefix = map[string]int{
	"62": 80,
	"63": 75,
	"58": 70,
	"72": 70,
	"64": 60,
	"66": 60,
	"47": 45,
	"14": 45,
}

// MarketScore returns the best scalability score across codes. Each code is
// matched exactly first, then by its longest known prefix.
func MarketScore(codes []string) int {
	best, found := 0, false
	for _, code := range codes {
		s, ok := codeScore(code)
		if !ok {
			continue
		}
		if !found || s > best {
			best, found = s, true
		}
	}
	if !found {
		return DefaultMarketScore
	}
	return best
}

func codeScore(code string) (int, bool) {
	if s, ok := marketExact[code]; ok {
		return s, true
	}
	for n := len(code) - 1; n > 0; n-- {
		if s, ok := marketPrefix[code[:n]]; ok {
			return s, true
		}
	}
	return 0, false
}
