package enrich

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/ratelimit"
	"github.com/sells-group/dealflow-cli/pkg/apollo"
	"github.com/sells-group/dealflow-cli/pkg/hunter"
)

// Email sources recorded on a found address.
const (
	EmailSourceApollo = "apollo"
	EmailSourceHunter = "hunter"
)

// FindEmail looks the founder up in Apollo first and Hunter second. A
// provider without a client is skipped. Provider errors other than rate
// limits are logged and fall through to the next provider.
func (e *Enricher) FindEmail(ctx context.Context, userID string, f *model.Founder, c *model.Company) (email, source string, err error) {
	if f.FirstName == "" || f.LastName == "" {
		return "", "", nil
	}
	company := CleanCompanyName(c.Name)
	domain := companyDomain(c)
	log := zap.L().With(zap.String("user", userID), zap.String("founder_id", f.ID))

	if e.apollo != nil {
		if err := e.admit(ctx, userID, ratelimit.APIApollo); err != nil {
			return "", "", err
		}
		resp, err := e.apollo.PeopleMatch(ctx, apollo.MatchRequest{
			FirstName:        f.FirstName,
			LastName:         f.LastName,
			OrganizationName: company,
			Domain:           domain,
			LinkedInURL:      f.LinkedInURL,
		})
		switch {
		case err != nil && isRateLimit(err):
			return "", "", err
		case err != nil:
			log.Warn("enrich: apollo match failed", zap.Error(err))
		case resp.Person != nil && usableEmail(resp.Person.Email):
			return strings.ToLower(resp.Person.Email), EmailSourceApollo, nil
		}
	}

	if e.hunter != nil {
		if err := e.admit(ctx, userID, ratelimit.APIHunter); err != nil {
			return "", "", err
		}
		res, err := e.hunter.EmailFinder(ctx, hunter.FindRequest{
			FirstName: f.FirstName,
			LastName:  f.LastName,
			Company:   company,
			Domain:    domain,
		})
		switch {
		case err != nil && isRateLimit(err):
			return "", "", err
		case err != nil:
			log.Warn("enrich: hunter lookup failed", zap.Error(err))
		case usableEmail(res.Email):
			return strings.ToLower(res.Email), EmailSourceHunter, nil
		}
	}
	return "", "", nil
}

// usableEmail rejects empty and placeholder addresses such as Apollo's
// locked-email marker.
func usableEmail(email string) bool {
	return strings.Contains(email, "@") && !strings.Contains(email, "not_unlocked")
}

// companyDomain returns the host of the enriched website without www.
func companyDomain(c *model.Company) string {
	if c.Enrichment == nil || c.Enrichment.Website == "" {
		return ""
	}
	u, err := url.Parse(c.Enrichment.Website)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
