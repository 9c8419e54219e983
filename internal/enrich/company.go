package enrich

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/ratelimit"
	"github.com/sells-group/dealflow-cli/internal/scoring"
	"github.com/sells-group/dealflow-cli/pkg/exa"
)

const (
	companyResults     = 10
	productParagraph   = 40
	descriptionMinLen  = 50
	maxDescriptionRune = 500
)

// NewsOutlets are the domains the news search is restricted to.
var NewsOutlets = []string{
	"techcrunch.com",
	"sifted.eu",
	"uktech.news",
	"uktn.co.uk",
	"businesscloud.co.uk",
	"cityam.com",
	"ft.com",
	"theguardian.com",
	"bbc.co.uk",
	"forbes.com",
	"businessinsider.com",
	"venturebeat.com",
	"wired.co.uk",
	"eu-startups.com",
	"tech.eu",
}

// EnrichCompany runs the general, news and funding searches in parallel
// and extracts a company profile from the results. A failed general search
// fails the enrichment; news and funding failures other than rate limits
// leave those sections empty.
func (e *Enricher) EnrichCompany(ctx context.Context, userID string, c *model.Company) (*model.CompanyEnrichment, error) {
	name := CleanCompanyName(c.Name)
	log := zap.L().With(zap.String("user", userID), zap.String("company_id", c.ID))

	var general, news, funding []exa.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := e.companySearch(gctx, userID, exa.SearchRequest{
			Query: fmt.Sprintf("%q company UK", name),
		})
		if err != nil {
			return eris.Wrap(err, "general search")
		}
		general = res
		return nil
	})
	g.Go(func() error {
		res, err := e.companySearch(gctx, userID, exa.SearchRequest{
			Query:          fmt.Sprintf("%q startup", name),
			Category:       "news",
			IncludeDomains: NewsOutlets,
		})
		if err != nil {
			if isRateLimit(err) {
				return eris.Wrap(err, "news search")
			}
			log.Warn("enrich: news search failed", zap.Error(err))
			return nil
		}
		news = res
		return nil
	})
	g.Go(func() error {
		res, err := e.companySearch(gctx, userID, exa.SearchRequest{
			Query: fmt.Sprintf("%q raises funding round investors", name),
		})
		if err != nil {
			if isRateLimit(err) {
				return eris.Wrap(err, "funding search")
			}
			log.Warn("enrich: funding search failed", zap.Error(err))
			return nil
		}
		funding = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "enrich: company %s", c.ID)
	}

	all := make([]exa.Result, 0, len(general)+len(news)+len(funding))
	all = append(all, general...)
	all = append(all, news...)
	all = append(all, funding...)
	text := joinText(all)

	enr := &model.CompanyEnrichment{
		Description:   Description(general, descriptionMinLen),
		Website:       Website(general),
		TechStack:     TechStack(text),
		BusinessModel: BusinessModel(text),
		TeamSize:      TeamSize(text),
		News:          News(news, maxNewsItems),
		Funding:       Funding(append(append([]exa.Result{}, funding...), news...), maxFundingRounds),
		EnrichedAt:    e.nowFunc().UTC(),
	}
	if enr.Website != "" {
		enr.ProductDescription = e.productDescription(ctx, userID, enr.Website)
	}
	enr.TractionScore = scoring.TractionScore(enr)
	return enr, nil
}

func (e *Enricher) companySearch(ctx context.Context, userID string, req exa.SearchRequest) ([]exa.Result, error) {
	if err := e.admit(ctx, userID, ratelimit.APIExa); err != nil {
		return nil, err
	}
	req.NumResults = companyResults
	req.Contents = &exa.ContentsOptions{Text: true}
	resp, err := e.search.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// productDescription fetches the website and returns its first substantial
// paragraph. Failures are logged and yield an empty description.
func (e *Enricher) productDescription(ctx context.Context, userID, website string) string {
	if e.web == nil {
		return ""
	}
	if err := e.admit(ctx, userID, ratelimit.APIWebsite); err != nil {
		zap.L().Debug("enrich: website fetch skipped", zap.String("url", website), zap.Error(err))
		return ""
	}
	page, err := e.web.FetchPage(ctx, website)
	if err != nil {
		zap.L().Warn("enrich: website fetch failed", zap.String("url", website), zap.Error(err))
		return ""
	}
	return truncateRunes(page.FirstParagraph(productParagraph), maxDescriptionRune)
}
