package rollup

import (
	"time"

	"belkon/internal/domain"
)

const dateLayout = "2006-01-02"

// Enrich turns the snapshot's flat action list into rollup rows: resolved
// names, inherited classification, delay days, plus one synthetic NO_ACTION
// row for every condition that has a situation narrative but no action.
// Pure function; ordering of the result is a downstream concern.
func Enrich(snap Snapshot) []Row {
	conditions := make(map[string]domain.Condition, len(snap.Conditions))
	for _, c := range snap.Conditions {
		conditions[c.ID] = c
	}
	standards := make(map[string]domain.Standard, len(snap.Standards))
	for _, s := range snap.Standards {
		standards[s.ID] = s
	}
	components := make(map[string]domain.Component, len(snap.Components))
	for _, c := range snap.Components {
		components[c.ID] = c
	}
	situations := make(map[string]string, len(snap.Situations))
	for _, s := range snap.Situations {
		situations[s.ConditionID] = s.Narrative
	}

	now := snap.now()
	hasAction := make(map[string]bool, len(snap.Actions))
	rows := make([]Row, 0, len(snap.Actions))
	for _, a := range snap.Actions {
		hasAction[a.ConditionID] = true
		row := Row{
			Kind:          RowAction,
			ActionID:      a.ID,
			Code:          a.Code,
			Title:         a.Title,
			Description:   a.Description,
			Status:        a.Status,
			Progress:      a.Progress,
			StartDate:     a.StartDate,
			TargetDate:    a.TargetDate,
			Continuous:    a.Continuous,
			DelayDays:     delayDays(a, now),
			Responsible:   snap.assignment(a.AllResponsible, a.ResponsibleIDs, a.ResponsibleUnits),
			Collaborating: snap.assignment(a.AllCollaborating, a.CollaboratingIDs, a.CollaboratingUnits),
			ConditionID:   a.ConditionID,
		}
		snap.classify(&row, conditions, standards, components, situations)
		rows = append(rows, row)
	}

	// Conditions covered by a narrative but no remediation work still get a
	// visible row.
	for _, s := range snap.Situations {
		if hasAction[s.ConditionID] {
			continue
		}
		row := Row{
			Kind:        RowNoAction,
			Title:       NoActionTitle,
			ConditionID: s.ConditionID,
		}
		snap.classify(&row, conditions, standards, components, situations)
		rows = append(rows, row)
	}
	return rows
}

func (s Snapshot) assignment(all bool, deptIDs, unitTags []string) Assignment {
	if all {
		return AllUnits()
	}
	names := make([]string, 0, len(deptIDs))
	for _, id := range deptIDs {
		if name, ok := s.DepartmentNames[id]; ok {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}
	unitNames := make([]string, 0, len(unitTags))
	for _, tag := range unitTags {
		unitNames = append(unitNames, s.unitLabel(tag))
	}
	return ExplicitUnits(deptIDs, names, unitNames)
}

// classify follows condition -> standard -> component. Broken links leave
// the corresponding fields empty; grouping buckets those under "other".
func (s Snapshot) classify(row *Row, conditions map[string]domain.Condition, standards map[string]domain.Standard, components map[string]domain.Component, situations map[string]string) {
	row.Situation = situations[row.ConditionID]
	cond, ok := conditions[row.ConditionID]
	if !ok {
		return
	}
	row.ConditionCode = cond.Code
	row.ConditionDescription = cond.Description
	row.ReasonableAssurance = cond.ReasonableAssurance
	std, ok := standards[cond.StandardID]
	if !ok {
		return
	}
	row.StandardID = std.ID
	row.StandardCode = std.Code
	row.StandardName = std.Name
	comp, ok := components[std.ComponentID]
	if !ok {
		return
	}
	row.ComponentID = comp.ID
	row.ComponentCode = comp.Code
	row.ComponentName = comp.Name
}

// delayDays is whole days past the target date, and only for statuses that
// can still be late. Completed, cancelled and ongoing work never counts.
func delayDays(a domain.Action, now time.Time) int {
	switch a.Status {
	case domain.StatusCompleted, domain.StatusCancelled, domain.StatusOngoing:
		return 0
	}
	if a.TargetDate == nil {
		return 0
	}
	target, err := time.Parse(dateLayout, *a.TargetDate)
	if err != nil {
		return 0
	}
	if !target.Before(now) {
		return 0
	}
	return int(now.Sub(target).Hours() / 24)
}
