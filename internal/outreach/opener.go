package outreach

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/pkg/anthropic"
)

const (
	// DefaultOpenerModel is the model used for openers.
	DefaultOpenerModel = "claude-haiku-4-5-20251001"

	defaultOpenerTokens = 200
	maxOpenerRunes      = 300
)

const openerPrompt = `Write one short, warm opening sentence for a cold email to a startup founder.
Mention something specific from their background or what their company does.
Do not greet them by name and do not pitch anything.

Founder headline: %s
Company: %s
Company description: %s

Reply with the sentence only.`

// Opener writes a personalized first sentence for a founder.
type Opener interface {
	Opener(ctx context.Context, f *model.Founder, c *model.Company) (string, error)
}

// AIOpener writes openers with the Anthropic messages API.
type AIOpener struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAIOpener creates an AIOpener. Empty model and zero maxTokens use the
// defaults.
func NewAIOpener(client anthropic.Client, model string, maxTokens int64) *AIOpener {
	if model == "" {
		model = DefaultOpenerModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultOpenerTokens
	}
	return &AIOpener{client: client, model: model, maxTokens: maxTokens}
}

// Opener asks the model for a single sentence built from the founder's
// headline and the company description.
func (o *AIOpener) Opener(ctx context.Context, f *model.Founder, c *model.Company) (string, error) {
	company, description := "", ""
	if c != nil {
		company = c.Name
		if c.Enrichment != nil {
			description = c.Enrichment.Description
			if c.Enrichment.ProductDescription != "" {
				description = c.Enrichment.ProductDescription
			}
		}
	}
	if f.Headline == "" && description == "" {
		return "", nil
	}

	resp, err := o.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(openerPrompt, orUnknown(f.Headline), orUnknown(company), orUnknown(description))},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "outreach: generate opener")
	}
	resp.Usage.LogCost(o.model, "outreach_opener")
	return cleanOpener(resp.Text()), nil
}

// cleanOpener keeps the first line, strips wrapping quotes and caps length.
func cleanOpener(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'“” ")
	if utf8.RuneCountInString(s) > maxOpenerRunes {
		s = string([]rune(s)[:maxOpenerRunes])
	}
	return strings.TrimSpace(s)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
