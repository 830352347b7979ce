package violations

import "strings"

// Status is the closed set of case states recognized by the pipeline.
// Upstream status text is free-form with inconsistent casing, so it is
// normalized through ParseStatus at read boundaries.
type Status string

const (
	StatusInViolation  Status = "IN VIOLATION"
	StatusInCourt      Status = "IN COURT"
	StatusReadyToClose Status = "READY TO CLOSE"
	StatusClosed       Status = "CLOSED"
	StatusUnknown      Status = "UNKNOWN"
)

// ParseStatus normalizes upstream status text into a Status. Unrecognized
// values map to StatusUnknown rather than failing the record.
func ParseStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "IN VIOLATION":
		return StatusInViolation
	case "IN COURT":
		return StatusInCourt
	case "READY TO CLOSE":
		return StatusReadyToClose
	case "CLOSED":
		return StatusClosed
	default:
		return StatusUnknown
	}
}

// IsTerminal reports whether the status represents a case winding down.
// Terminal statuses win date ties in CaseStatus.
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusReadyToClose
}
