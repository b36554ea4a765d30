package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ignite/campaign-tracker/internal/config"
	"github.com/ignite/campaign-tracker/internal/domain"
)

// ErrNoInclusionRule is returned when a campaign defines nothing that selects
// records for a class. Such a segment is skipped rather than run unfiltered.
var ErrNoInclusionRule = errors.New("no inclusion rule for class")

// participant_status codes per sync status.
var statusCodes = map[domain.SyncStatus][]int{
	domain.SyncSuccess: {5, 19},
	domain.SyncFailed:  {1},
}

// Predicate is a WHERE clause with its bind arguments.
type Predicate struct {
	Where string
	Args  []interface{}
}

// Query renders the full extraction SELECT for the predicate.
func (p Predicate) Query() string {
	return selectClause + "WHERE " + p.Where + "\n" + groupOrderClause
}

// FilterBuilder builds extraction predicates. The source stores local time
// while the database server runs on UTC, so the cutoff shifts NOW() by
// ClockOffsetMinutes and leaves the newest SettleMinutes for the next run.
type FilterBuilder struct {
	ClockOffsetMinutes int
	SettleMinutes      int
}

// NewFilterBuilder creates a builder from tracker settings.
func NewFilterBuilder(cfg config.TrackerConfig) *FilterBuilder {
	return &FilterBuilder{
		ClockOffsetMinutes: cfg.ClockOffsetMinutes,
		SettleMinutes:      cfg.SettleMinutes,
	}
}

// Build combines, conjunctively: the class inclusion rule, exclusion of
// known refs, the submitted-on lower bound, the status codes, the clock
// cutoff and, for the course class, the campaign's exclusion fragment.
func (b *FilterBuilder) Build(camp config.Campaign, class domain.RecordClass, status domain.SyncStatus, known domain.KeySet) (Predicate, error) {
	var clauses []string
	var args []interface{}

	switch class {
	case domain.ClassCourse:
		if !camp.HasCourseRule() {
			return Predicate{}, fmt.Errorf("%w: %s", ErrNoInclusionRule, class)
		}
		if len(camp.CourseTypes) > 0 {
			clauses = append(clauses, "ce.`event_type_id` IN ("+joinInts(camp.CourseTypes)+")")
		}
		if len(camp.CourseIDs) > 0 {
			clauses = append(clauses, "cpd.`entity_id` IN ("+joinInts(camp.CourseIDs)+")")
		}
	case domain.ClassAd:
		if len(camp.LandingPages) == 0 {
			return Predicate{}, fmt.Errorf("%w: %s", ErrNoInclusionRule, class)
		}
		var ors []string
		for _, lp := range camp.LandingPages {
			pattern := strings.ToLower(escapeLike(lp))
			ors = append(ors,
				"LOWER(cpd.`reg_utm_url`) LIKE ?",
				"LOWER(cpd.`referal_site`) LIKE ?",
				"LOWER(cpd.`reg_utm_url`) LIKE ?",
			)
			args = append(args, "%"+pattern+"%", "%"+pattern+"%", "%greferrer=%"+pattern+"%")
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	default:
		return Predicate{}, fmt.Errorf("%w: %s", ErrNoInclusionRule, class)
	}

	if known.Len() > 0 {
		clauses = append(clauses, "cpd.`id` NOT IN ("+joinInts(known.Sorted())+")")
	}

	if camp.SubmittedAfter != "" {
		clauses = append(clauses, "cpd.`submitted_on` > ?")
		args = append(args, camp.SubmittedAfter)
	}

	codes, ok := statusCodes[status]
	if !ok {
		return Predicate{}, fmt.Errorf("unknown status %q", status)
	}
	if len(codes) == 1 {
		clauses = append(clauses, "cpd.`participant_status` = "+strconv.Itoa(codes[0]))
	} else {
		parts := make([]string, len(codes))
		for i, c := range codes {
			parts[i] = strconv.Itoa(c)
		}
		clauses = append(clauses, "cpd.`participant_status` IN ("+strings.Join(parts, ", ")+")")
	}

	clauses = append(clauses, "cpd.`submitted_on` <= DATE_SUB(DATE_ADD(NOW(), INTERVAL ? MINUTE), INTERVAL ? MINUTE)")
	args = append(args, b.ClockOffsetMinutes, b.SettleMinutes)

	if class == domain.ClassCourse && strings.TrimSpace(camp.ExcludeFilter) != "" {
		clauses = append(clauses, "("+strings.TrimSpace(camp.ExcludeFilter)+")")
	}

	return Predicate{
		Where: strings.Join(clauses, "\n  AND "),
		Args:  args,
	}, nil
}

func joinInts(ns []int64) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.FormatInt(n, 10)
	}
	return strings.Join(parts, ",")
}

// escapeLike escapes LIKE wildcards so a landing page matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
