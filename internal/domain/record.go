package domain

import "strconv"

// RegistrationType classifies how a registration reached conversion.
type RegistrationType string

const (
	RegDirect   RegistrationType = "Direct"
	RegIndirect RegistrationType = "Indirect"
	RegOther    RegistrationType = "Other"
	RegError    RegistrationType = "Error"
)

// Status text written into the Status column.
const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
	StatusError   = "Error"
)

// Record is one canonical synchronized row. Ref is assigned by the source
// system and is the dedup key inside a destination tab.
type Record struct {
	Ref              int64            `json:"ref"`
	CourseID         string           `json:"course_id"`
	CourseName       string           `json:"course_name"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	Phone            string           `json:"phone"`
	SubmittedAt      string           `json:"submitted_at"`
	Status           string           `json:"status"`
	ReferrerSite     string           `json:"referrer_site"`
	LandingURL       string           `json:"landing_url"`
	FirstPage        string           `json:"first_page"`
	LastPage         string           `json:"last_page"`
	UTMCampaign      string           `json:"utm_campaign"`
	UTMID            string           `json:"utm_id"`
	UTMSource        string           `json:"utm_source"`
	UTMMedium        string           `json:"utm_medium"`
	UTMTerm          string           `json:"utm_term"`
	UTMContent       string           `json:"utm_content"`
	AdClickID        string           `json:"ad_click_id"`
	RegistrationType RegistrationType `json:"registration_type"`
}

// Values renders the record in schema column order.
func (r Record) Values() []string {
	return []string{
		strconv.FormatInt(r.Ref, 10),
		r.CourseID,
		r.CourseName,
		r.Name,
		r.Email,
		r.Phone,
		r.SubmittedAt,
		r.Status,
		r.ReferrerSite,
		r.LandingURL,
		r.FirstPage,
		r.LastPage,
		r.UTMCampaign,
		r.UTMID,
		r.UTMSource,
		r.UTMMedium,
		r.UTMTerm,
		r.UTMContent,
		r.AdClickID,
		string(r.RegistrationType),
	}
}

// Rows renders a batch of records for a tab append.
func Rows(records []Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Values())
	}
	return rows
}
