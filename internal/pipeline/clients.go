package pipeline

import (
	"net/http"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sells-group/dealflow-cli/internal/config"
	"github.com/sells-group/dealflow-cli/internal/enrich"
	"github.com/sells-group/dealflow-cli/internal/fetcher"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/resilience"
	"github.com/sells-group/dealflow-cli/pkg/anthropic"
	"github.com/sells-group/dealflow-cli/pkg/apollo"
	"github.com/sells-group/dealflow-cli/pkg/companieshouse"
	"github.com/sells-group/dealflow-cli/pkg/exa"
	"github.com/sells-group/dealflow-cli/pkg/hunter"
	"github.com/sells-group/dealflow-cli/pkg/notion"
	"github.com/sells-group/dealflow-cli/pkg/resend"
)

// Clients builds the external API clients for one user's settings. Each
// constructor returns nil when the user has not configured the key it
// needs.
type Clients interface {
	Registry(s *model.Settings) companieshouse.Client
	Search(s *model.Settings) exa.Client
	Apollo(s *model.Settings) apollo.Client
	Hunter(s *model.Settings) hunter.Client
	CodeHost(s *model.Settings, gate enrich.Gate) (enrich.CodeHost, error)
	Mailer(s *model.Settings) resend.Client
	Anthropic(s *model.Settings) anthropic.Client
	Notion(s *model.Settings) notion.Client
	Fetcher() fetcher.Fetcher
}

// ConfigClients builds clients from the API sections of the config.
type ConfigClients struct {
	cfg *config.Config
	web fetcher.Fetcher
}

// NewClients creates a ConfigClients. The website fetcher is shared across
// users so its per-host limiters persist between runs.
func NewClients(cfg *config.Config) *ConfigClients {
	return &ConfigClients{
		cfg: cfg,
		web: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout: cfg.Website.Timeout(),
			Retry:   resilience.ForService("website", "fetch"),
		}),
	}
}

func httpClient(api config.APIConfig) *http.Client {
	return &http.Client{Timeout: api.Timeout()}
}

// Registry returns the company registry client.
func (c *ConfigClients) Registry(s *model.Settings) companieshouse.Client {
	if s.CompaniesHouseKey == "" {
		return nil
	}
	opts := []companieshouse.Option{companieshouse.WithHTTPClient(httpClient(c.cfg.Registry))}
	if c.cfg.Registry.BaseURL != "" {
		opts = append(opts, companieshouse.WithBaseURL(c.cfg.Registry.BaseURL))
	}
	return companieshouse.NewClient(s.CompaniesHouseKey, opts...)
}

// Search returns the semantic search client.
func (c *ConfigClients) Search(s *model.Settings) exa.Client {
	if s.ExaKey == "" {
		return nil
	}
	opts := []exa.Option{exa.WithHTTPClient(httpClient(c.cfg.Search))}
	if c.cfg.Search.BaseURL != "" {
		opts = append(opts, exa.WithBaseURL(c.cfg.Search.BaseURL))
	}
	return exa.NewClient(s.ExaKey, opts...)
}

// Apollo returns the primary email-discovery client.
func (c *ConfigClients) Apollo(s *model.Settings) apollo.Client {
	if s.ApolloKey == "" {
		return nil
	}
	opts := []apollo.Option{apollo.WithHTTPClient(httpClient(c.cfg.Apollo))}
	if c.cfg.Apollo.BaseURL != "" {
		opts = append(opts, apollo.WithBaseURL(c.cfg.Apollo.BaseURL))
	}
	return apollo.NewClient(s.ApolloKey, opts...)
}

// Hunter returns the fallback email-discovery client.
func (c *ConfigClients) Hunter(s *model.Settings) hunter.Client {
	if s.HunterKey == "" {
		return nil
	}
	opts := []hunter.Option{hunter.WithHTTPClient(httpClient(c.cfg.Hunter))}
	if c.cfg.Hunter.BaseURL != "" {
		opts = append(opts, hunter.WithBaseURL(c.cfg.Hunter.BaseURL))
	}
	return hunter.NewClient(s.HunterKey, opts...)
}

// CodeHost returns the GitHub lookup, or nil when code-hosting enrichment
// is disabled. A missing token makes anonymous calls.
func (c *ConfigClients) CodeHost(s *model.Settings, gate enrich.Gate) (enrich.CodeHost, error) {
	if !c.cfg.Enrichment.CodeHost {
		return nil, nil
	}
	gh, err := enrich.NewGitHubClient(s.GitHubToken, c.cfg.GitHub.BaseURL)
	if err != nil {
		return nil, err
	}
	return enrich.NewGitHubHost(gh, gate), nil
}

// Mailer returns the email delivery client.
func (c *ConfigClients) Mailer(s *model.Settings) resend.Client {
	if s.ResendKey == "" {
		return nil
	}
	opts := []resend.Option{resend.WithHTTPClient(httpClient(c.cfg.Resend))}
	if c.cfg.Resend.BaseURL != "" {
		opts = append(opts, resend.WithBaseURL(c.cfg.Resend.BaseURL))
	}
	return resend.NewClient(s.ResendKey, opts...)
}

// Anthropic returns the opener model client.
func (c *ConfigClients) Anthropic(s *model.Settings) anthropic.Client {
	if s.AnthropicKey == "" {
		return nil
	}
	return anthropic.NewClient(s.AnthropicKey, option.WithMaxRetries(2))
}

// Notion returns the investor database client.
func (c *ConfigClients) Notion(s *model.Settings) notion.Client {
	if s.NotionToken == "" {
		return nil
	}
	return notion.NewClient(s.NotionToken)
}

// Fetcher returns the shared website fetcher.
func (c *ConfigClients) Fetcher() fetcher.Fetcher {
	return c.web
}
