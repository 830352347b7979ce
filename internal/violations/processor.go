package violations

import "time"

// DiffResult partitions the genuinely new upstream records. NewCasefiles
// and NewForExistingCases are disjoint and their union, in upstream order,
// equals NewRecords.
type DiffResult struct {
	// NewRecords is every record not already known to the store, in
	// upstream order (newest first).
	NewRecords []Record

	// NewCasefiles are new records whose casefile number has never been
	// seen, including records with no casefile number at all.
	NewCasefiles []Record

	// NewForExistingCases are new records attached to an already-known
	// casefile.
	NewForExistingCases []Record
}

// HasNew reports whether the diff found anything at all.
func (d *DiffResult) HasNew() bool {
	return len(d.NewRecords) > 0
}

// FilterNew diffs upstream records against store state. It is pure and
// performs no I/O.
//
// Records whose ID is already stored are dropped first; ID identity is the
// correctness mechanism. When latestKnown is non-nil, surviving records
// dated on or before it are dropped too, guarding against the upstream
// query returning boundary-day rows out of ID order. Full-sync runs pass
// latestKnown as nil to bypass that filter.
func FilterNew(upstream []Record, existingIDs map[int64]struct{}, existingCasefiles map[string]struct{}, latestKnown *time.Time) DiffResult {
	var result DiffResult
	seen := make(map[int64]struct{}, len(upstream))

	for _, r := range upstream {
		if _, known := existingIDs[r.ID]; known {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		if latestKnown != nil && !r.InvestigationDate.After(*latestKnown) {
			continue
		}
		seen[r.ID] = struct{}{}

		_, caseKnown := existingCasefiles[r.CasefileNumber]
		if r.CasefileNumber == "" || !caseKnown {
			result.NewCasefiles = append(result.NewCasefiles, r)
		} else {
			result.NewForExistingCases = append(result.NewForExistingCases, r)
		}
		result.NewRecords = append(result.NewRecords, r)
	}

	return result
}
