package history

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"seqtrack/pkg/lims"
)

// TieBreak decides between records sharing the same run date.
type TieBreak int

const (
	// TieFirstSeen keeps the record encountered first: catalog step order,
	// then LIMS response order.
	TieFirstSeen TieBreak = iota
	// TieExecutionID keeps the record whose execution ID sorts lowest.
	TieExecutionID
)

func (t TieBreak) String() string {
	switch t {
	case TieFirstSeen:
		return "first_seen"
	case TieExecutionID:
		return "execution_id"
	default:
		return fmt.Sprintf("tie_break(%d)", int(t))
	}
}

// ParseTieBreak parses the configuration spelling of a TieBreak.
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first_seen":
		return TieFirstSeen, nil
	case "execution_id":
		return TieExecutionID, nil
	}
	return TieFirstSeen, fmt.Errorf("unknown tie break %q", s)
}

// MostRecent returns the occurrence with the latest run date. Undated
// occurrences are skipped entirely; false is returned when none is dated.
func MostRecent(occs []Occurrence, tie TieBreak) (Occurrence, bool) {
	return pick(occs, occurrenceDate, occurrenceID, tie, true)
}

// Earliest returns the occurrence with the earliest run date. Undated
// occurrences are skipped entirely.
func Earliest(occs []Occurrence, tie TieBreak) (Occurrence, bool) {
	return pick(occs, occurrenceDate, occurrenceID, tie, false)
}

// MostRecentExecution is MostRecent over executions.
func MostRecentExecution(execs []lims.ProcessExecution, tie TieBreak) (lims.ProcessExecution, bool) {
	return pick(execs, executionDate, executionID, tie, true)
}

// EarliestExecution is Earliest over executions.
func EarliestExecution(execs []lims.ProcessExecution, tie TieBreak) (lims.ProcessExecution, bool) {
	return pick(execs, executionDate, executionID, tie, false)
}

// SortNewestFirst returns the dated occurrences ordered by run date
// descending. Equal dates keep the order imposed by tie.
func SortNewestFirst(occs []Occurrence, tie TieBreak) []Occurrence {
	dated := make([]Occurrence, 0, len(occs))
	for _, o := range occs {
		if _, ok := o.RunDate(); ok {
			dated = append(dated, o)
		}
	}
	slices.SortStableFunc(dated, func(a, b Occurrence) int {
		da, _ := a.RunDate()
		db, _ := b.RunDate()
		if c := db.Compare(da); c != 0 {
			return c
		}
		if tie == TieExecutionID {
			return strings.Compare(a.Execution.ID, b.Execution.ID)
		}
		return 0
	})
	return dated
}

func occurrenceDate(o Occurrence) (time.Time, bool) { return o.RunDate() }
func occurrenceID(o Occurrence) string             { return o.Execution.ID }

func executionDate(e lims.ProcessExecution) (time.Time, bool) {
	if e.RunDate == nil {
		return time.Time{}, false
	}
	return *e.RunDate, true
}

func executionID(e lims.ProcessExecution) string { return e.ID }

func pick[T any](items []T, date func(T) (time.Time, bool), id func(T) string, tie TieBreak, latest bool) (T, bool) {
	var (
		best     T
		bestDate time.Time
		found    bool
	)
	for _, item := range items {
		d, ok := date(item)
		if !ok {
			continue
		}
		if !found {
			best, bestDate, found = item, d, true
			continue
		}
		switch {
		case latest && d.After(bestDate), !latest && d.Before(bestDate):
			best, bestDate = item, d
		case d.Equal(bestDate) && tie == TieExecutionID && id(item) < id(best):
			best = item
		}
	}
	return best, found
}
