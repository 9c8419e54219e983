package notion

import (
	"context"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page of a database, following cursors until the
// API reports no more results.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	req := &notionapi.DatabaseQueryRequest{PageSize: 100}
	if filter != nil {
		req.Filter = filter.Filter
		req.Sorts = filter.Sorts
		if filter.PageSize > 0 {
			req.PageSize = filter.PageSize
		}
	}

	var all []notionapi.Page
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

// Text returns the plain text of a title, rich text, select, email, URL,
// phone or number property. Missing properties yield "".
func Text(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.TitleProperty:
		return joinRichText(p.Title)
	case *notionapi.RichTextProperty:
		return joinRichText(p.RichText)
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.EmailProperty:
		return p.Email
	case *notionapi.URLProperty:
		return p.URL
	case *notionapi.PhoneNumberProperty:
		return p.PhoneNumber
	case *notionapi.StatusProperty:
		return p.Status.Name
	}
	return ""
}

// Options returns the option names of a multi-select property. A select or
// comma-separated text property is accepted too.
func Options(props notionapi.Properties, name string) []string {
	if p, ok := props[name].(*notionapi.MultiSelectProperty); ok {
		out := make([]string, 0, len(p.MultiSelect))
		for _, o := range p.MultiSelect {
			out = append(out, o.Name)
		}
		return out
	}
	var out []string
	for _, part := range strings.Split(Text(props, name), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Number returns a number property, or 0.
func Number(props notionapi.Properties, name string) float64 {
	if p, ok := props[name].(*notionapi.NumberProperty); ok {
		return p.Number
	}
	return 0
}

// Date returns the start of a date property, or nil.
func Date(props notionapi.Properties, name string) *time.Time {
	p, ok := props[name].(*notionapi.DateProperty)
	if !ok || p.Date == nil || p.Date.Start == nil {
		return nil
	}
	t := time.Time(*p.Date.Start)
	return &t
}

func joinRichText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		b.WriteString(rt.PlainText)
	}
	return strings.TrimSpace(b.String())
}
