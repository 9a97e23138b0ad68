package app

import (
	"context"
	"errors"
	"fmt"

	"belkon/internal/domain"
	"belkon/internal/repo"
)

// Tenant is the explicit request context every operation receives: the
// resolved organization and plan plus the acting user. There is no ambient
// global; callers thread this through.
type Tenant struct {
	Org     domain.Organization
	Plan    domain.ActionPlan
	ActorID string
}

// ResolveOrg picks the working organization: the override when given,
// otherwise the only org in the store.
func ResolveOrg(ctx context.Context, orgOverride string, r repo.Repo) (domain.Organization, error) {
	if orgOverride != "" {
		return r.GetOrg(ctx, orgOverride)
	}
	orgs, err := r.ListOrgs(ctx)
	if err != nil {
		return domain.Organization{}, err
	}
	switch len(orgs) {
	case 0:
		return domain.Organization{}, fmt.Errorf("no organizations exist; create one with bk org create")
	case 1:
		return orgs[0], nil
	}
	return domain.Organization{}, fmt.Errorf("multiple organizations exist; specify --org")
}

// ResolveOrgAndPlan resolves the working organization and plan. An empty
// plan override selects the org's active plan.
func ResolveOrgAndPlan(ctx context.Context, orgOverride, planOverride, actorID string, r repo.Repo) (Tenant, error) {
	org, err := ResolveOrg(ctx, orgOverride, r)
	if err != nil {
		return Tenant{}, err
	}
	var plan domain.ActionPlan
	if planOverride != "" {
		plan, err = r.GetPlan(ctx, planOverride)
		if err != nil {
			return Tenant{}, err
		}
		if plan.OrgID != org.ID {
			return Tenant{}, fmt.Errorf("plan %s not in organization %s", planOverride, org.ID)
		}
	} else {
		plan, err = r.ActivePlan(ctx, org.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return Tenant{}, fmt.Errorf("organization %s has no active plan; activate one with bk plan activate", org.ID)
		}
		if err != nil {
			return Tenant{}, err
		}
	}
	return Tenant{Org: org, Plan: plan, ActorID: actorID}, nil
}
