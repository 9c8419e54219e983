package matching

import (
	"sort"
	"strings"
)

// Sector tags inferred from industry codes.
const (
	SectorSoftware    = "software"
	SectorAI          = "ai"
	SectorData        = "data"
	SectorDeepTech    = "deeptech"
	SectorFintech     = "fintech"
	SectorInsurtech   = "insurtech"
	SectorFashion     = "fashion"
	SectorEcommerce   = "ecommerce"
	SectorBiotech     = "biotech"
	SectorHealthtech  = "healthtech"
	SectorFashionTech = "fashion-tech"
)

var sectorExact = map[string][]string{
	"62011": {SectorSoftware},
	"62012": {SectorSoftware, SectorAI},
	"58290": {SectorSoftware},
	"63110": {SectorData},
	"63120": {SectorSoftware},
	"72190": {SectorDeepTech},
	"72110": {SectorBiotech},
	"64999": {SectorFintech},
	"66190": {SectorFintech},
	"65120": {SectorInsurtech},
	"47910": {SectorEcommerce},
	"47710": {SectorFashion},
	"47721": {SectorFashion},
}

var sectorPrefix = map[string][]string{
	"62": {SectorSoftware},
	"63": {SectorData},
	"58": {SectorSoftware},
	"72": {SectorDeepTech},
	"64": {SectorFintech},
	"66": {SectorFintech},
	"65": {SectorInsurtech},
	"86": {SectorHealthtech},
	"13": {SectorFashion},
	"14": {SectorFashion},
	"15": {SectorFashion},
}

var techSectors = map[string]bool{
	SectorSoftware: true,
	SectorAI:       true,
	SectorData:     true,
	SectorDeepTech: true,
}

// Sectors infers sector tags from industry codes, exact code first then the
// longest known prefix. A company coded as both fashion and tech also gets
// the fashion-tech composite. The result is sorted.
func Sectors(codes []string) []string {
	seen := make(map[string]bool)
	for _, code := range codes {
		for _, s := range codeSectors(strings.TrimSpace(code)) {
			seen[s] = true
		}
	}
	if seen[SectorFashion] {
		for s := range seen {
			if techSectors[s] {
				seen[SectorFashionTech] = true
				break
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func codeSectors(code string) []string {
	if s, ok := sectorExact[code]; ok {
		return s
	}
	for n := len(code) - 1; n > 0; n-- {
		if s, ok := sectorPrefix[code[:n]]; ok {
			return s
		}
	}
	return nil
}

// sectorOverlap returns the first company sector that matches an investor
// sector by case-insensitive substring in either direction.
func sectorOverlap(company, investor []string) (string, bool) {
	for _, c := range company {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		for _, i := range investor {
			i = strings.ToLower(strings.TrimSpace(i))
			if i == "" {
				continue
			}
			if strings.Contains(c, i) || strings.Contains(i, c) {
				return c, true
			}
		}
	}
	return "", false
}
