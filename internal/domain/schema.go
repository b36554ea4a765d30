package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch is returned when a tab header does not match the schema.
var ErrSchemaMismatch = errors.New("header does not match schema")

// Column pairs a canonical field name with its header label.
type Column struct {
	Field string
	Label string
}

// Schema is the fixed, versioned column layout shared by every tab of a campaign.
type Schema struct {
	Version string
	Columns []Column
}

// SchemaV1 is the 20-column layout. The identifier column is always first.
var SchemaV1 = Schema{
	Version: "v1",
	Columns: []Column{
		{"ref", "Ref"},
		{"course_id", "Course ID"},
		{"course_name", "Course name"},
		{"name", "Name"},
		{"email", "Email"},
		{"phone", "Phone"},
		{"submitted_at", "Submitted on"},
		{"status", "Status"},
		{"referrer_site", "referal_site"},
		{"landing_url", "reg_utm_url"},
		{"first_page", "first_page"},
		{"last_page", "last_page(greferrer)"},
		{"utm_campaign", "utm_campaign"},
		{"utm_id", "utm_id"},
		{"utm_source", "utm_source"},
		{"utm_medium", "utm_medium"},
		{"utm_term", "utm_term"},
		{"utm_content", "utm_content"},
		{"ad_click_id", "fbclid"},
		{"registration_type", "reg_type"},
	},
}

// Header returns the header row labels.
func (s Schema) Header() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Label
	}
	return out
}

// Width is the number of columns.
func (s Schema) Width() int { return len(s.Columns) }

// LastColumn returns the A1 letter of the last column ("T" for 20 columns).
func (s Schema) LastColumn() string {
	return ColumnLetter(len(s.Columns) - 1)
}

// Index resolves a field name to its zero-based column index.
func (s Schema) Index(field string) (int, error) {
	for i, c := range s.Columns {
		if c.Field == field {
			return i, nil
		}
	}
	return -1, fmt.Errorf("schema %s: unknown field %q", s.Version, field)
}

// Lookup returns the cell for field in row. Short rows yield "".
func (s Schema) Lookup(row []string, field string) (string, error) {
	i, err := s.Index(field)
	if err != nil {
		return "", err
	}
	if i >= len(row) {
		return "", nil
	}
	return row[i], nil
}

// ValidateHeader checks header labels against the schema, ignoring case and
// surrounding whitespace.
func (s Schema) ValidateHeader(header []string) error {
	if len(header) != len(s.Columns) {
		return fmt.Errorf("%w: schema %s has %d columns, header has %d",
			ErrSchemaMismatch, s.Version, len(s.Columns), len(header))
	}
	for i, c := range s.Columns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), c.Label) {
			return fmt.Errorf("%w: column %s is %q, want %q",
				ErrSchemaMismatch, ColumnLetter(i), header[i], c.Label)
		}
	}
	return nil
}

// ColumnLetter converts a zero-based index to A1 column letters.
func ColumnLetter(i int) string {
	letters := ""
	for i >= 0 {
		letters = string(rune('A'+i%26)) + letters
		i = i/26 - 1
	}
	return letters
}
