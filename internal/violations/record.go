// Package violations defines the domain model for property code violation
// records and the pure sync logic that diffs upstream data against the
// local store.
package violations

import "time"

// Record is one investigation entry from the upstream source. Records are
// immutable once stored; a status change arrives as a new record sharing
// the same casefile number, never as a mutation of an old row.
type Record struct {
	// ID is the upstream-assigned identifier. It is globally unique, never
	// reused, and is the sole dedup key.
	ID int64

	// CasefileNumber groups records into a case over time. May be empty.
	CasefileNumber string

	Address  string
	ParcelID string

	// Status is the raw upstream status text, normalized via ParseStatus
	// at the store-read boundary.
	Status string

	// InvestigationDate orders records within a case and drives the
	// incremental fetch watermark.
	InvestigationDate time.Time

	Description      string
	CodeSection      string
	SpecInstructions string
	Outcome          string
	Findings         string
}
