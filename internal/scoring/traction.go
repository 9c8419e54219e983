package scoring

import (
	"math"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// TractionScore derives traction from company enrichment: 40 for the first
// funding round plus 15 per extra round (funding capped at 70), plus 6 per
// news item (news capped at 30).
func TractionScore(e *model.CompanyEnrichment) int {
	if e == nil {
		return 0
	}

	funding := 0
	if n := len(e.Funding); n > 0 {
		funding = int(math.Min(70, float64(40+15*(n-1))))
	}
	news := int(math.Min(30, float64(6*len(e.News))))
	return clamp(funding + news)
}
