package rollup

import "time"

// SortKey selects the active action ordering inside a condition group.
type SortKey string

const (
	SortDelay      SortKey = "delay"
	SortCode       SortKey = "code"
	SortStandard   SortKey = "standard"
	SortTargetDate SortKey = "target_date"
	SortProgress   SortKey = "progress"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sort is the single active (key, direction) pair. The zero value is not
// valid; use DefaultSort.
type Sort struct {
	Key       SortKey
	Direction Direction
}

// DefaultSort orders by delay ascending.
func DefaultSort() Sort { return Sort{Key: SortDelay, Direction: Ascending} }

// Toggle applies a column selection: the same key flips direction, a new key
// resets to ascending.
func (s Sort) Toggle(key SortKey) Sort {
	if s.Key == key {
		if s.Direction == Ascending {
			s.Direction = Descending
		} else {
			s.Direction = Ascending
		}
		return s
	}
	return Sort{Key: key, Direction: Ascending}
}

// Valid reports whether the key is one the engine supports.
func (k SortKey) Valid() bool {
	switch k {
	case SortDelay, SortCode, SortStandard, SortTargetDate, SortProgress:
		return true
	}
	return false
}

// Less orders two rows under the active sort. NO_ACTION rows always sort
// before real actions regardless of key or direction. The direction applies
// to the primary key only; tie-breaks (target date under delay, then action
// code) stay ascending either way so equal rows keep one stable order.
func (s Sort) Less(a, b Row) bool {
	if a.Kind != b.Kind {
		return a.Kind == RowNoAction
	}
	if c := s.compare(a, b); c != 0 {
		if s.Direction == Descending {
			return c > 0
		}
		return c < 0
	}
	if s.Key == SortDelay {
		if c := compareDates(a.TargetDate, b.TargetDate); c != 0 {
			return c < 0
		}
	}
	return CompareCodes(a.Code, b.Code) < 0
}

func (s Sort) compare(a, b Row) int {
	switch s.Key {
	case SortCode:
		return CompareCodes(a.Code, b.Code)
	case SortStandard:
		return CompareCodes(a.StandardCode, b.StandardCode)
	case SortTargetDate:
		return compareDates(a.TargetDate, b.TargetDate)
	case SortProgress:
		return compareInts(a.Progress, b.Progress)
	default: // SortDelay
		return compareInts(a.DelayDays, b.DelayDays)
	}
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareDates orders ISO dates chronologically. Rows without a target date
// compare greater than any dated row, which places them last ascending and
// first descending.
func compareDates(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	ta, errA := time.Parse(dateLayout, *a)
	tb, errB := time.Parse(dateLayout, *b)
	if errA != nil || errB != nil {
		// Unparseable dates fall back to lexical order.
		switch {
		case *a < *b:
			return -1
		case *a > *b:
			return 1
		}
		return 0
	}
	switch {
	case ta.Before(tb):
		return -1
	case ta.After(tb):
		return 1
	}
	return 0
}
