package rollup

import (
	"strings"

	"belkon/internal/domain"
)

// Pseudo-statuses accepted by the status filter alongside the real ones.
const (
	StatusDelayed    = "delayed"
	StatusContinuous = "continuous"
)

// Filters narrows the enriched row set. Every field is optional; empty means
// pass-through. Filters compose by AND.
type Filters struct {
	ComponentID     string
	StandardID      string
	ResponsibleID   string
	CollaboratingID string
	Search          string
	Status          string
}

// Apply runs the pipeline in two passes and returns both the set with every
// filter except status applied (the stats denominator) and the final set.
func (f Filters) Apply(rows []Row) (preStatus, final []Row) {
	preStatus = make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.matchesPreStatus(r) {
			preStatus = append(preStatus, r)
		}
	}
	if f.Status == "" {
		return preStatus, preStatus
	}
	final = make([]Row, 0, len(preStatus))
	for _, r := range preStatus {
		if matchesStatus(r, f.Status) {
			final = append(final, r)
		}
	}
	return preStatus, final
}

func (f Filters) matchesPreStatus(r Row) bool {
	if f.ComponentID != "" && r.ComponentID != f.ComponentID {
		return false
	}
	if f.StandardID != "" && r.StandardID != f.StandardID {
		return false
	}
	if f.ResponsibleID != "" {
		if r.Kind != RowAction || !r.Responsible.Includes(f.ResponsibleID) {
			return false
		}
	}
	if f.CollaboratingID != "" {
		if r.Kind != RowAction || !r.Collaborating.Includes(f.CollaboratingID) {
			return false
		}
	}
	if f.Search != "" && !matchesSearch(r, f.Search) {
		return false
	}
	return true
}

func matchesSearch(r Row, term string) bool {
	needle := strings.ToLower(term)
	for _, hay := range []string{r.Code, r.Title, r.Description} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

func matchesStatus(r Row, status string) bool {
	switch status {
	case StatusDelayed:
		return r.Delayed()
	case StatusContinuous:
		return r.Kind == RowAction && r.Continuous
	default:
		return r.Kind == RowAction && r.Status == status
	}
}

// KnownStatus reports whether a status filter value is acceptable.
func KnownStatus(status string) bool {
	switch status {
	case "", StatusDelayed, StatusContinuous,
		domain.StatusNotStarted, domain.StatusInProgress, domain.StatusCompleted,
		domain.StatusCancelled, domain.StatusOngoing:
		return true
	}
	return false
}
