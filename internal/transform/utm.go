package transform

import (
	"net/url"
	"strings"
)

// Params is the decomposed landing URL.
type Params struct {
	FirstPage   string
	LastPage    string // greferrer
	UTMCampaign string
	UTMID       string
	UTMSource   string
	UTMMedium   string
	UTMTerm     string
	UTMContent  string
	ClickID     string // fbclid
}

// ExtractParams decomposes a registration URL. first_page falls back to the
// URL path, greferrer falls back to the referral site. The query is read
// from the raw text after the first '?', so a URL that url.Parse rejects
// still yields its query params; only the path fallback needs a clean parse.
func ExtractParams(rawURL, referralSite string) Params {
	var p Params
	if rawURL != "" {
		// ParseQuery keeps the pairs it could decode alongside the error.
		q, _ := url.ParseQuery(rawQuery(rawURL))
		p.FirstPage = q.Get("first_page")
		p.LastPage = q.Get("greferrer")
		p.UTMCampaign = q.Get("utm_campaign")
		p.UTMID = q.Get("utm_id")
		p.UTMSource = q.Get("utm_source")
		p.UTMMedium = q.Get("utm_medium")
		p.UTMTerm = q.Get("utm_term")
		p.UTMContent = q.Get("utm_content")
		p.ClickID = q.Get("fbclid")
		if p.FirstPage == "" {
			if u, err := url.Parse(rawURL); err == nil {
				p.FirstPage = strings.Trim(u.Path, "/")
			}
		}
	}
	if p.LastPage == "" {
		p.LastPage = referralSite
	}
	return p
}

// rawQuery returns the text between the first '?' and any '#'.
func rawQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = rawURL[:i]
	}
	_, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return ""
	}
	return query
}
