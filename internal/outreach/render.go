// Package outreach renders personalized messages for qualified companies,
// queues them, and dispatches due items through the email provider.
package outreach

import (
	"strings"

	"github.com/sells-group/dealflow-cli/internal/enrich"
	"github.com/sells-group/dealflow-cli/internal/model"
)

// Placeholder names understood by Render.
const (
	PlaceholderFirstName     = "{{first_name}}"
	PlaceholderLastName      = "{{last_name}}"
	PlaceholderName          = "{{name}}"
	PlaceholderCompany       = "{{company}}"
	PlaceholderHeadline      = "{{headline}}"
	PlaceholderSenderName    = "{{sender_name}}"
	PlaceholderSenderCompany = "{{sender_company}}"
	PlaceholderOpener        = "{{opener}}"
)

// Vars are the values substituted into a template.
type Vars struct {
	FirstName     string
	LastName      string
	Company       string
	Headline      string
	SenderName    string
	SenderCompany string
	Opener        string
}

// VarsFor builds template values for one founder. The company name has its
// legal suffix removed.
func VarsFor(f *model.Founder, c *model.Company, s *model.Settings, opener string) Vars {
	v := Vars{
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Headline:  f.Headline,
		Opener:    opener,
	}
	if c != nil {
		v.Company = enrich.CleanCompanyName(c.Name)
	}
	if s != nil {
		v.SenderName = s.SenderName
		v.SenderCompany = s.SenderCompany
	}
	return v
}

// Render substitutes placeholders in text. Unknown placeholders are left
// alone. Blank lines left by empty values collapse to a single blank line.
func Render(text string, v Vars) string {
	r := strings.NewReplacer(
		PlaceholderFirstName, v.FirstName,
		PlaceholderLastName, v.LastName,
		PlaceholderName, strings.TrimSpace(v.FirstName+" "+v.LastName),
		PlaceholderCompany, v.Company,
		PlaceholderHeadline, v.Headline,
		PlaceholderSenderName, v.SenderName,
		PlaceholderSenderCompany, v.SenderCompany,
		PlaceholderOpener, v.Opener,
	)
	out := r.Replace(text)

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) == "" {
			if blank {
				continue
			}
			blank = true
			kept = append(kept, "")
			continue
		}
		blank = false
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// UsesOpener reports whether a template references the opener.
func UsesOpener(t *model.Template) bool {
	return strings.Contains(t.Body, PlaceholderOpener) || strings.Contains(t.Subject, PlaceholderOpener)
}
