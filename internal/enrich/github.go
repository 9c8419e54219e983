package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/go-github/v71/github"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/ratelimit"
	"github.com/sells-group/dealflow-cli/internal/resilience"
)

const (
	codeCandidates   = 3
	maxLanguages     = 5
	technicalRepos   = 5
	technicalStars   = 50
	codeReposPerPage = 100
)

// CodeHost finds a person's public code-hosting profile.
type CodeHost interface {
	// FindProfile returns nil when no account plausibly belongs to the
	// named person.
	FindProfile(ctx context.Context, userID, first, last string) (*model.CodeProfile, error)
}

// NewGitHubClient builds a go-github client. An empty token makes
// anonymous calls; baseURL overrides the public API endpoint.
func NewGitHubClient(token, baseURL string) (*github.Client, error) {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, eris.Wrap(err, "enrich: parse github base url")
		}
		gh.BaseURL = u
	}
	return gh, nil
}

// GitHubHost looks founders up on GitHub.
type GitHubHost struct {
	client *github.Client
	gate   Gate
}

// NewGitHubHost wraps a go-github client. Each API call passes through
// gate when it is non-nil.
func NewGitHubHost(client *github.Client, gate Gate) *GitHubHost {
	return &GitHubHost{client: client, gate: gate}
}

// FindProfile searches users by full name and returns the first candidate
// whose display name contains both names.
func (h *GitHubHost) FindProfile(ctx context.Context, userID, first, last string) (*model.CodeProfile, error) {
	if first == "" || last == "" {
		return nil, nil
	}
	if err := h.admit(ctx, userID); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("%q in:name type:user", first+" "+last)
	found, _, err := h.client.Search.Users(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: codeCandidates},
	})
	if err != nil {
		return nil, githubError(err, "search users")
	}

	for i, cand := range found.Users {
		if i >= codeCandidates {
			break
		}
		if err := h.admit(ctx, userID); err != nil {
			return nil, err
		}
		user, _, err := h.client.Users.Get(ctx, cand.GetLogin())
		if err != nil {
			return nil, githubError(err, "get user")
		}
		if !nameMatches(user.GetName(), first, last) {
			continue
		}
		return h.profile(ctx, userID, user)
	}
	return nil, nil
}

func (h *GitHubHost) profile(ctx context.Context, userID string, user *github.User) (*model.CodeProfile, error) {
	login := user.GetLogin()
	cp := &model.CodeProfile{
		Login:       login,
		URL:         user.GetHTMLURL(),
		Bio:         strings.TrimSpace(user.GetBio()),
		PublicRepos: user.GetPublicRepos(),
		Followers:   user.GetFollowers(),
	}

	if err := h.admit(ctx, userID); err != nil {
		return nil, err
	}
	repos, _, err := h.client.Repositories.ListByUser(ctx, login, &github.RepositoryListByUserOptions{
		Type:        "owner",
		Sort:        "pushed",
		ListOptions: github.ListOptions{PerPage: codeReposPerPage},
	})
	if err != nil {
		return nil, githubError(err, "list repos")
	}
	langs := make(map[string]int)
	for _, r := range repos {
		if r.GetFork() {
			continue
		}
		cp.TotalStars += r.GetStargazersCount()
		if lang := r.GetLanguage(); lang != "" {
			langs[lang]++
		}
	}
	cp.Languages = topLanguages(langs, maxLanguages)

	if err := h.admit(ctx, userID); err != nil {
		return nil, err
	}
	orgs, _, err := h.client.Organizations.List(ctx, login, &github.ListOptions{PerPage: codeReposPerPage})
	if err != nil {
		return nil, githubError(err, "list orgs")
	}
	for _, o := range orgs {
		cp.Orgs = append(cp.Orgs, o.GetLogin())
	}
	return cp, nil
}

func (h *GitHubHost) admit(ctx context.Context, userID string) error {
	if h.gate == nil {
		return nil
	}
	return h.gate.Gate(ctx, userID, ratelimit.APIGitHub)
}

// IsTechnicalProfile reports whether a code profile shows real engineering
// activity: original work in some language and either several public repos
// or a meaningful star count.
func IsTechnicalProfile(cp *model.CodeProfile) bool {
	if cp == nil || len(cp.Languages) == 0 {
		return false
	}
	return cp.PublicRepos >= technicalRepos || cp.TotalStars >= technicalStars
}

func (e *Enricher) lookupCode(ctx context.Context, userID string, f *model.Founder) (*model.CodeProfile, error) {
	cp, err := e.code.FindProfile(ctx, userID, f.FirstName, f.LastName)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: code profile for founder %s", f.ID)
	}
	return cp, nil
}

// topLanguages returns up to n languages by repo count, ties by name.
func topLanguages(counts map[string]int, n int) []string {
	out := make([]string, 0, len(counts))
	for lang := range counts {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nameMatches(display, first, last string) bool {
	display = strings.ToLower(display)
	return strings.Contains(display, strings.ToLower(first)) && strings.Contains(display, strings.ToLower(last))
}

// githubError maps GitHub rate-limit responses to a 429 transient error so
// callers stop the run the same way as for other providers.
func githubError(err error, action string) error {
	var rle *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &rle) || errors.As(err, &abuse) {
		return resilience.NewTransientError(eris.Wrapf(err, "github: %s", action), http.StatusTooManyRequests)
	}
	return eris.Wrapf(err, "github: %s", action)
}
