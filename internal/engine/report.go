package engine

import (
	"context"
	"fmt"

	"belkon/internal/domain"
	"belkon/internal/rollup"
)

// Report is the full rollup surface for one plan: the grouped tree over the
// final filtered rows, global stats over the pre-status set, component stats
// over the unfiltered snapshot.
type Report struct {
	Plan       domain.ActionPlan
	Tree       rollup.Tree
	Stats      rollup.GlobalStats
	Components []rollup.ComponentStats
}

type ReportOptions struct {
	OrgID   string
	PlanID  string
	Filters rollup.Filters
	Sort    rollup.Sort
	Loader  *Loader
}

func (e Engine) Report(ctx context.Context, opts ReportOptions) (Report, error) {
	if err := e.EnsureEntitled(ctx, opts.OrgID, ModuleInternalControl); err != nil {
		return Report{}, err
	}
	plan, err := e.requireOrgPlan(ctx, opts.OrgID, opts.PlanID)
	if err != nil {
		return Report{}, err
	}
	if !opts.Sort.Key.Valid() {
		opts.Sort = rollup.DefaultSort()
	}
	if !rollup.KnownStatus(opts.Filters.Status) {
		return Report{}, fmt.Errorf("unknown status filter %q", opts.Filters.Status)
	}

	loader := opts.Loader
	if loader == nil {
		loader = &Loader{Fetch: e.Repo.FetchSnapshot}
	}
	snap, err := loader.Load(ctx, opts.OrgID, opts.PlanID)
	if err != nil {
		return Report{}, fmt.Errorf("load snapshot: %w", err)
	}
	snap.Now = e.now()
	var componentOrder []string
	if e.Config != nil {
		snap.UnitLabels = e.Config.SpecialUnitLabels()
		componentOrder = e.Config.Rollup.ComponentOrder
	}

	rows := rollup.Enrich(snap)
	preStatus, final := opts.Filters.Apply(rows)
	return Report{
		Plan:       plan,
		Tree:       rollup.BuildTree(final, opts.Sort, componentOrder),
		Stats:      rollup.ComputeGlobalStats(preStatus),
		Components: rollup.ComputeComponentStats(rows, componentOrder),
	}, nil
}
