// Package investors imports the user's investor network from a spreadsheet
// or a Notion database.
package investors

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// Sources recorded on imported investors.
const (
	SourceSpreadsheet = "spreadsheet"
	SourceNotion      = "notion"
)

// Spreadsheet columns, after header normalization.
const (
	colID           = "id"
	colFirm         = "firm"
	colContact      = "contact"
	colEmail        = "email"
	colStages       = "stages"
	colSectors      = "sectors"
	colCheckMin     = "check_min"
	colCheckMax     = "check_max"
	colRelationship = "relationship"
	colLastContact  = "last_contact"
)

// ErrMissingFirm is returned for rows without a firm name.
var ErrMissingFirm = eris.New("investors: firm is required")

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
}

// excelEpoch is day zero of spreadsheet date serials.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// FromRecord converts one spreadsheet row to an investor. The external id
// is the id column when present, else derived from firm and email or
// contact so that re-imports update the same record.
func FromRecord(rec map[string]string) (*model.Investor, error) {
	firm := strings.TrimSpace(rec[colFirm])
	if firm == "" {
		return nil, ErrMissingFirm
	}
	inv := &model.Investor{
		Firm:         firm,
		ContactName:  strings.TrimSpace(rec[colContact]),
		Email:        strings.ToLower(strings.TrimSpace(rec[colEmail])),
		Stages:       normalizeStages(SplitList(rec[colStages])),
		Sectors:      SplitList(rec[colSectors]),
		Relationship: model.ParseRelationship(rec[colRelationship]),
		Source:       SourceSpreadsheet,
	}

	var err error
	if inv.CheckSizeMin, err = ParseAmount(rec[colCheckMin]); err != nil {
		return nil, eris.Wrapf(err, "investors: %s check_min", firm)
	}
	if inv.CheckSizeMax, err = ParseAmount(rec[colCheckMax]); err != nil {
		return nil, eris.Wrapf(err, "investors: %s check_max", firm)
	}
	if inv.LastContactAt, err = ParseDate(rec[colLastContact]); err != nil {
		return nil, eris.Wrapf(err, "investors: %s last_contact", firm)
	}

	inv.ExternalID = strings.TrimSpace(rec[colID])
	if inv.ExternalID == "" {
		key := inv.Email
		if key == "" {
			key = strings.ToLower(inv.ContactName)
		}
		inv.ExternalID = SourceSpreadsheet + ":" + strings.ToLower(firm) + "|" + key
	}
	return inv, nil
}

// SplitList splits a cell on commas, semicolons, pipes or newlines and
// drops blanks.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n'
	})
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeStages(stages []string) []string {
	out := stages[:0]
	for _, s := range stages {
		if n := model.NormalizeFundingStage(s); n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ParseAmount reads amounts like "250000", "£250k", "$1.5m" or "1,000,000".
// Blank input is zero.
func ParseAmount(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	s = strings.NewReplacer("£", "", "$", "", "€", "", ",", "", " ", "").Replace(s)
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "bn"):
		mult, s = 1e9, strings.TrimSuffix(s, "bn")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "investors: parse amount %q", s)
	}
	return v * mult, nil
}

// ParseDate reads a date in one of the common layouts or as a spreadsheet
// serial number. Blank input is nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t := excelEpoch.Add(time.Duration(serial * float64(24*time.Hour))).Truncate(24 * time.Hour)
		return &t, nil
	}
	return nil, eris.Errorf("investors: unrecognised date %q", s)
}
