// Package transform turns raw source rows into canonical records.
package transform

import (
	"fmt"
	"strings"

	"github.com/ignite/campaign-tracker/internal/domain"
	"github.com/ignite/campaign-tracker/internal/pkg/logger"
	"github.com/ignite/campaign-tracker/internal/source"
)

// Transformer converts rows for one campaign.
type Transformer struct {
	landingPages []string
}

// NewTransformer creates a transformer classifying against landingPages.
func NewTransformer(landingPages []string) *Transformer {
	return &Transformer{landingPages: landingPages}
}

// Transform converts one row. It never fails: a row missing required
// fields, or one that panics during enrichment, comes back degraded with
// Status and RegistrationType set to Error.
func (t *Transformer) Transform(raw source.RawRecord, status domain.SyncStatus) (rec domain.Record) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("row transform panicked", "ref", raw.ID, "panic", fmt.Sprint(r))
			rec = Degraded(raw)
		}
	}()

	if missing := missingFields(raw); len(missing) > 0 {
		logger.Error("row missing required fields", "ref", raw.ID, "fields", strings.Join(missing, ","))
		return Degraded(raw)
	}

	rec = base(raw)
	p := ExtractParams(rec.LandingURL, rec.ReferrerSite)
	rec.FirstPage = p.FirstPage
	rec.LastPage = p.LastPage
	rec.UTMCampaign = p.UTMCampaign
	rec.UTMID = p.UTMID
	rec.UTMSource = p.UTMSource
	rec.UTMMedium = p.UTMMedium
	rec.UTMTerm = p.UTMTerm
	rec.UTMContent = p.UTMContent
	rec.AdClickID = p.ClickID
	rec.Status = statusText(raw, status)
	rec.RegistrationType = Classify(p.FirstPage, p.LastPage, t.landingPages)
	return rec
}

// TransformAll converts a batch, preserving order. Degraded rows are kept.
func (t *Transformer) TransformAll(raws []source.RawRecord, status domain.SyncStatus) []domain.Record {
	out := make([]domain.Record, 0, len(raws))
	degraded := 0
	for _, raw := range raws {
		rec := t.Transform(raw, status)
		if rec.RegistrationType == domain.RegError {
			degraded++
		}
		out = append(out, rec)
	}
	if degraded > 0 {
		logger.Warn("batch contains degraded rows", "rows", len(raws), "degraded", degraded)
	}
	return out
}

// Degraded keeps the identifying fields of raw and blanks the enrichment.
// The referral site stands in for the last page.
func Degraded(raw source.RawRecord) domain.Record {
	rec := base(raw)
	rec.Status = domain.StatusError
	rec.LastPage = rec.ReferrerSite
	rec.RegistrationType = domain.RegError
	return rec
}

func base(raw source.RawRecord) domain.Record {
	return domain.Record{
		Ref:          raw.ID,
		CourseID:     raw.AccountingCourseID.String,
		CourseName:   raw.Title.String,
		Name:         strings.TrimSpace(raw.Name.String),
		Email:        raw.Email.String,
		Phone:        raw.Phone.String,
		SubmittedAt:  raw.SubmittedOn.String,
		ReferrerSite: raw.ReferralSite.String,
		LandingURL:   raw.RegUTMURL.String,
	}
}

func missingFields(raw source.RawRecord) []string {
	var missing []string
	if !raw.SubmittedOn.Valid || raw.SubmittedOn.String == "" {
		missing = append(missing, "submitted_on")
	}
	if !raw.Title.Valid || raw.Title.String == "" {
		missing = append(missing, "title")
	}
	return missing
}

func statusText(raw source.RawRecord, status domain.SyncStatus) string {
	if status == domain.SyncSuccess {
		return domain.StatusSuccess
	}
	msg := raw.PGResponseMessage.String
	if !raw.PGResponseMessage.Valid || msg == "" {
		return domain.StatusFailed
	}
	text := ""
	if code, ok := raw.GatewayCode(); ok {
		text = GatewayStatusText(code)
	}
	return fmt.Sprintf("%s: %s (%s)", domain.StatusFailed, msg, text)
}
