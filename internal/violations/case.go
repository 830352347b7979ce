package violations

// CaseStatus derives the current status of a case from its records: the
// record with the latest investigation date wins, and when two records
// share that date the terminal status is preferred. Returns StatusUnknown
// for an empty record list.
func CaseStatus(records []Record) Status {
	if len(records) == 0 {
		return StatusUnknown
	}

	current := records[0]
	currentStatus := ParseStatus(current.Status)
	for _, r := range records[1:] {
		rs := ParseStatus(r.Status)
		switch {
		case r.InvestigationDate.After(current.InvestigationDate):
			current, currentStatus = r, rs
		case r.InvestigationDate.Equal(current.InvestigationDate) && rs.IsTerminal() && !currentStatus.IsTerminal():
			current, currentStatus = r, rs
		}
	}
	return currentStatus
}

// GroupByCasefile buckets records by casefile number, preserving input
// order within each bucket. Records without a casefile number are grouped
// under the empty key.
func GroupByCasefile(records []Record) map[string][]Record {
	cases := make(map[string][]Record)
	for _, r := range records {
		cases[r.CasefileNumber] = append(cases[r.CasefileNumber], r)
	}
	return cases
}

// CountByStatus tallies cases by their derived current status. Used by the
// no-news email summary.
func CountByStatus(records []Record) map[Status]int {
	counts := make(map[Status]int)
	for _, caseRecords := range GroupByCasefile(records) {
		counts[CaseStatus(caseRecords)]++
	}
	return counts
}
