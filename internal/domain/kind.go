package domain

import "fmt"

// RecordClass is the extraction path a record came through.
type RecordClass string

const (
	ClassCourse RecordClass = "course"
	ClassAd     RecordClass = "ad"
	ClassMerge  RecordClass = "merge"
)

// SyncStatus is the participant outcome a tab holds.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// SyncStatuses lists statuses in processing order.
var SyncStatuses = []SyncStatus{SyncSuccess, SyncFailed}

// Kind identifies a destination tab role, e.g. "course_success".
type Kind string

const (
	KindCourseSuccess Kind = "course_success"
	KindCourseFailed  Kind = "course_failed"
	KindAdSuccess     Kind = "ad_success"
	KindAdFailed      Kind = "ad_failed"
	KindMergeSuccess  Kind = "merge_success"
	KindMergeFailed   Kind = "merge_failed"
)

// KindOf builds the kind for a class and status.
func KindOf(class RecordClass, status SyncStatus) Kind {
	return Kind(fmt.Sprintf("%s_%s", class, status))
}

// Kinds lists every tab kind the ledger tracks.
var Kinds = []Kind{KindCourseSuccess, KindCourseFailed, KindAdSuccess, KindAdFailed}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindCourseSuccess, KindCourseFailed, KindAdSuccess, KindAdFailed, KindMergeSuccess, KindMergeFailed:
		return true
	}
	return false
}
