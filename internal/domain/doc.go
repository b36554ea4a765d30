// Package domain defines the core types shared by the campaign tracker.
//
// Types in this package are pure value objects with no I/O. They are the
// shared language between the source extractor, the transformer, the
// destination client and the tracker.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - Validation and rendering methods are allowed (pure functions on the type)
//   - Constants and enums belong here
package domain
