package rollup

import (
	"time"

	"belkon/internal/domain"
)

// RowKind distinguishes real persisted actions from synthetic placeholders
// emitted for conditions that need no remediation.
type RowKind int

const (
	RowAction RowKind = iota
	RowNoAction
)

// NoActionTitle is the fixed placeholder title for synthetic rows.
const NoActionTitle = "Eylem öngörülmemiştir"

// Assignment is the resolved responsible/collaborating side of a row: either
// every unit, or an explicit set of departments and special units. The All
// variant never carries names.
type Assignment struct {
	All       bool
	IDs       []string
	Names     []string
	UnitNames []string
}

// AllUnits returns the escape-hatch assignment.
func AllUnits() Assignment { return Assignment{All: true} }

// ExplicitUnits returns an assignment of departments and special units.
func ExplicitUnits(ids, names, unitNames []string) Assignment {
	return Assignment{IDs: ids, Names: names, UnitNames: unitNames}
}

// Includes reports whether the assignment covers the given department.
func (a Assignment) Includes(departmentID string) bool {
	if a.All {
		return true
	}
	for _, id := range a.IDs {
		if id == departmentID {
			return true
		}
	}
	return false
}

// Row is one line of the rollup: an enriched action or a NO_ACTION
// placeholder, carrying its resolved classification chain.
type Row struct {
	Kind RowKind

	ActionID    string
	Code        string
	Title       string
	Description string
	Status      string
	Progress    int
	StartDate   *string
	TargetDate  *string
	Continuous  bool
	DelayDays   int

	Responsible   Assignment
	Collaborating Assignment

	ConditionID          string
	ConditionCode        string
	ConditionDescription string
	Situation            string
	ReasonableAssurance  bool

	// Classification resolved by following condition -> standard ->
	// component. Empty when the chain is broken; such rows group under the
	// "other" bucket.
	StandardID    string
	StandardCode  string
	StandardName  string
	ComponentID   string
	ComponentCode string
	ComponentName string
}

// Delayed reports whether the row counts as delayed. The same predicate
// backs the DELAYED status filter and the delay statistics.
func (r Row) Delayed() bool {
	return r.Kind == RowAction && r.DelayDays > 0
}

// Snapshot is the bulk-fetched input for one (organization, plan): the flat
// action list plus every lookup table the enrichment pass needs. It is
// immutable once built; the pipeline never mutates it.
type Snapshot struct {
	PlanID     string
	Actions    []domain.Action
	Conditions []domain.Condition
	Standards  []domain.Standard
	Components []domain.Component
	Situations []domain.Situation

	// DepartmentNames maps department id to display name.
	DepartmentNames map[string]string
	// UnitLabels maps special-unit tags to display names; defaults to
	// domain.SpecialUnitLabels when nil.
	UnitLabels map[string]string

	// Now anchors delay computation; zero means time.Now at Enrich time.
	Now time.Time
}

func (s Snapshot) now() time.Time {
	if s.Now.IsZero() {
		return time.Now()
	}
	return s.Now
}

func (s Snapshot) unitLabel(tag string) string {
	labels := s.UnitLabels
	if labels == nil {
		labels = domain.SpecialUnitLabels
	}
	if name, ok := labels[tag]; ok {
		return name
	}
	return tag
}
