// Package source extracts registration records from the CiviCRM MySQL
// database. FilterBuilder composes the WHERE clause for one
// (campaign, class, status) segment and Extractor runs it.
package source

import (
	"database/sql"
	"strconv"
	"strings"
)

// RawRecord is one joined participant/payment row as read from the source.
// Nullable columns stay nullable here; the transformer coalesces them.
type RawRecord struct {
	ID                 int64
	EntityID           sql.NullInt64
	EventTypeID        sql.NullInt64
	EventID            sql.NullInt64
	Title              sql.NullString
	AccountingCourseID sql.NullString
	Name               sql.NullString
	Email              sql.NullString
	Phone              sql.NullString
	Pincode            sql.NullString
	SubmittedOn        sql.NullString
	ReferralSite       sql.NullString
	RegUTMURL          sql.NullString
	PGResponseMessage  sql.NullString
	PGResponseCode     sql.NullString
	PaymentID          sql.NullInt64
}

// GatewayCode parses the payment gateway response code. ok is false when the
// column is null or not an integer.
func (r RawRecord) GatewayCode() (code int, ok bool) {
	if !r.PGResponseCode.Valid {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(r.PGResponseCode.String))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r *RawRecord) scanTargets() []interface{} {
	return []interface{}{
		&r.ID,
		&r.EntityID,
		&r.EventTypeID,
		&r.EventID,
		&r.Title,
		&r.AccountingCourseID,
		&r.Name,
		&r.Email,
		&r.Phone,
		&r.Pincode,
		&r.SubmittedOn,
		&r.ReferralSite,
		&r.RegUTMURL,
		&r.PGResponseMessage,
		&r.PGResponseCode,
		&r.PaymentID,
	}
}
