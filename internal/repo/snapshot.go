package repo

import (
	"context"
	"fmt"

	"belkon/internal/rollup"
)

// FetchSnapshot bulk-loads everything the rollup pipeline needs for one
// plan: a fixed number of queries regardless of plan size.
func (r Repo) FetchSnapshot(ctx context.Context, orgID, planID string) (rollup.Snapshot, error) {
	snap := rollup.Snapshot{PlanID: planID}

	actions, err := r.ListActions(ctx, planID)
	if err != nil {
		return snap, fmt.Errorf("fetch actions: %w", err)
	}
	snap.Actions = actions

	snap.Conditions, err = r.ListConditions(ctx)
	if err != nil {
		return snap, fmt.Errorf("fetch conditions: %w", err)
	}
	snap.Standards, err = r.ListStandards(ctx)
	if err != nil {
		return snap, fmt.Errorf("fetch standards: %w", err)
	}
	snap.Components, err = r.ListComponents(ctx)
	if err != nil {
		return snap, fmt.Errorf("fetch components: %w", err)
	}
	snap.Situations, err = r.ListSituations(ctx, planID)
	if err != nil {
		return snap, fmt.Errorf("fetch situations: %w", err)
	}

	departments, err := r.ListDepartments(ctx, orgID)
	if err != nil {
		return snap, fmt.Errorf("fetch departments: %w", err)
	}
	snap.DepartmentNames = make(map[string]string, len(departments))
	for _, d := range departments {
		snap.DepartmentNames[d.ID] = d.Name
	}
	return snap, nil
}
