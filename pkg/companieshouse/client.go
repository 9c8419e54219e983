// Package companieshouse provides a client for the UK Companies House
// public data API.
package companieshouse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/resilience"
)

const defaultBaseURL = "https://api.company-information.service.gov.uk"

// MaxPageSize is the largest page the advanced search accepts.
const MaxPageSize = 100

// ErrRateLimited is returned on HTTP 429. It is not retried; callers stop
// enumerating and keep what they have.
var ErrRateLimited = eris.New("companieshouse: rate limited")

// Client defines the registry operations used by discovery.
type Client interface {
	// AdvancedSearch returns one page of companies matching params. A 416
	// (start index past the end) yields an empty page.
	AdvancedSearch(ctx context.Context, params SearchParams) (*SearchPage, error)
	// Officers lists the officers of a company.
	Officers(ctx context.Context, companyNumber string) (*OfficerList, error)
}

// SearchParams filters the advanced company search.
type SearchParams struct {
	IncorporatedFrom time.Time
	IncorporatedTo   time.Time
	SICCodes         []string
	Status           string
	Size             int
	StartIndex       int
}

// SearchPage is one page of advanced search results.
type SearchPage struct {
	Hits  int              `json:"hits"`
	Items []CompanySummary `json:"items"`
}

// CompanySummary is a company as returned by the advanced search.
type CompanySummary struct {
	CompanyNumber  string   `json:"company_number"`
	CompanyName    string   `json:"company_name"`
	CompanyStatus  string   `json:"company_status"`
	CompanyType    string   `json:"company_type"`
	DateOfCreation string   `json:"date_of_creation"`
	SICCodes       []string `json:"sic_codes"`
	Address        Address  `json:"registered_office_address"`
}

// IncorporatedOn parses DateOfCreation. It returns the zero time when the
// date is missing or malformed.
func (c CompanySummary) IncorporatedOn() time.Time {
	t, err := time.Parse(time.DateOnly, c.DateOfCreation)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Address is a registered office address.
type Address struct {
	AddressLine1 string `json:"address_line_1"`
	Locality     string `json:"locality"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// OfficerList is the officers endpoint response.
type OfficerList struct {
	TotalResults int       `json:"total_results"`
	Items        []Officer `json:"items"`
}

// Officer is a company director, secretary or similar.
type Officer struct {
	Name        string `json:"name"`
	OfficerRole string `json:"officer_role"`
	AppointedOn string `json:"appointed_on"`
	ResignedOn  string `json:"resigned_on"`
	Occupation  string `json:"occupation"`
	Nationality string `json:"nationality"`
}

// Resigned reports whether the officer has left.
func (o Officer) Resigned() bool { return o.ResignedOn != "" }

// Corporate reports whether the officer is a company rather than a person.
func (o Officer) Corporate() bool { return strings.Contains(o.OfficerRole, "corporate") }

// Names splits the registry's "SURNAME, Forenames" format into first and
// last name, title-cased. Only the first forename is kept.
func (o Officer) Names() (first, last string) {
	surname, forenames, found := strings.Cut(o.Name, ",")
	if !found {
		parts := strings.Fields(o.Name)
		if len(parts) == 0 {
			return "", ""
		}
		return titleCase(parts[0]), titleCase(strings.Join(parts[1:], " "))
	}
	fields := strings.Fields(forenames)
	if len(fields) > 0 {
		first = titleCase(fields[0])
	}
	return first, titleCase(strings.TrimSpace(surname))
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRetry overrides the retry policy for reads.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a Companies House client. The API key is sent as the
// basic-auth username.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.ForService("companieshouse", "get"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) AdvancedSearch(ctx context.Context, params SearchParams) (*SearchPage, error) {
	size := params.Size
	if size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}
	q := url.Values{}
	if !params.IncorporatedFrom.IsZero() {
		q.Set("incorporated_from", params.IncorporatedFrom.Format(time.DateOnly))
	}
	if !params.IncorporatedTo.IsZero() {
		q.Set("incorporated_to", params.IncorporatedTo.Format(time.DateOnly))
	}
	if len(params.SICCodes) > 0 {
		q.Set("sic_codes", strings.Join(params.SICCodes, ","))
	}
	if params.Status != "" {
		q.Set("company_status", params.Status)
	}
	q.Set("size", strconv.Itoa(size))
	q.Set("start_index", strconv.Itoa(params.StartIndex))

	var page SearchPage
	status, err := c.get(ctx, "/advanced-search/companies?"+q.Encode(), &page)
	if err != nil {
		return nil, eris.Wrap(err, "companieshouse: advanced search")
	}
	if status == http.StatusRequestedRangeNotSatisfiable {
		return &SearchPage{}, nil
	}
	return &page, nil
}

func (c *httpClient) Officers(ctx context.Context, companyNumber string) (*OfficerList, error) {
	path := "/company/" + url.PathEscape(companyNumber) + "/officers?items_per_page=100"
	var list OfficerList
	status, err := c.get(ctx, path, &list)
	if err != nil {
		return nil, eris.Wrapf(err, "companieshouse: officers %s", companyNumber)
	}
	if status == http.StatusNotFound || status == http.StatusRequestedRangeNotSatisfiable {
		return &OfficerList{}, nil
	}
	return &list, nil
}

// get issues a GET with retries on transient failures. 404 and 416 return
// their status with out untouched; 429 returns ErrRateLimited.
func (c *httpClient) get(ctx context.Context, path string, out any) (int, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return 0, eris.Wrap(err, "create request")
		}
		req.SetBasicAuth(c.apiKey, "")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return 0, resilience.NewTransientError(eris.Wrap(err, "request failed"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return resp.StatusCode, ErrRateLimited
		case http.StatusNotFound, http.StatusRequestedRangeNotSatisfiable:
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
		if err := resilience.CheckResponse("companieshouse", resp); err != nil {
			return resp.StatusCode, err
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, eris.Wrap(err, "decode response")
		}
		return resp.StatusCode, nil
	})
}
