// Package tracker is the sync engine. For each (record class, status)
// segment of a campaign it resolves the refs already present in the
// destination tab, extracts only newer source rows, transforms them, appends
// them with read-back verification and advances the counter ledger. The
// Merger then folds the course and ad tabs into the merge tabs.
//
// Destination tabs are append-only and keyed by the ref in column A. A
// segment whose existing refs cannot be read is skipped rather than treated
// as empty, so a flaky read never causes a full re-extraction.
package tracker
