package notify

import (
	"fmt"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/violations"
)

// Variant classifies a run's change set; message templates key off it.
type Variant int

const (
	VariantNoNews Variant = iota
	VariantNewOnly
	VariantUpdatesOnly
	VariantMixed
)

// Summary is the channel-independent view of one completed check that the
// senders format into channel-specific messages.
type Summary struct {
	Variant Variant
	Diff    violations.DiffResult

	// OpenCaseCounts tallies all known cases by current status; used by the
	// no-news email. Nil when the diff found new records.
	OpenCaseCounts map[violations.Status]int
}

// Summarize builds a Summary from a diff result. allKnown should contain
// every stored record (including this run's) so the no-news email can
// report current open-case counts.
func Summarize(diff violations.DiffResult, allKnown []violations.Record) Summary {
	s := Summary{Diff: diff}
	switch {
	case !diff.HasNew():
		s.Variant = VariantNoNews
		s.OpenCaseCounts = violations.CountByStatus(allKnown)
	case len(diff.NewForExistingCases) == 0:
		s.Variant = VariantNewOnly
	case len(diff.NewCasefiles) == 0:
		s.Variant = VariantUpdatesOnly
	default:
		s.Variant = VariantMixed
	}
	return s
}

// FirstAddress returns the address of the first affected record, or empty
// when the diff is empty.
func (s *Summary) FirstAddress() string {
	if len(s.Diff.NewRecords) == 0 {
		return ""
	}
	return s.Diff.NewRecords[0].Address
}

// Counts returns total, new-case and updated-case record counts.
func (s *Summary) Counts() (total, newCases, updates int) {
	return len(s.Diff.NewRecords), len(s.Diff.NewCasefiles), len(s.Diff.NewForExistingCases)
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, pluralForm)
}
