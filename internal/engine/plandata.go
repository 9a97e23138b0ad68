package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"belkon/internal/domain"
	"belkon/internal/events"
)

func (e Engine) CreateDepartment(ctx context.Context, orgID, name, actorID string) (domain.Department, error) {
	if name == "" {
		return domain.Department{}, errors.New("name is required")
	}
	if err := e.EnsureEntitled(ctx, orgID, ModuleInternalControl); err != nil {
		return domain.Department{}, err
	}
	d := domain.Department{
		ID:        e.newID(),
		OrgID:     orgID,
		Name:      name,
		CreatedAt: e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Department{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDepartment(ctx, tx, d); err != nil {
		return domain.Department{}, fmt.Errorf("insert department: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "department.create", orgID, "department", d.ID, actorID, events.EventPayload{"name": name}); err != nil {
		return domain.Department{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Department{}, err
	}
	return d, nil
}

func (e Engine) RenameDepartment(ctx context.Context, orgID, id, name, actorID string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if err := e.requireOrgDepartment(ctx, orgID, id); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateDepartmentName(ctx, tx, id, name); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "department.rename", orgID, "department", id, actorID, events.EventPayload{"name": name}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) DeleteDepartment(ctx context.Context, orgID, id, actorID string) error {
	if err := e.requireOrgDepartment(ctx, orgID, id); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteDepartment(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "department.delete", orgID, "department", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) requireOrgDepartment(ctx context.Context, orgID, id string) error {
	d, err := e.Repo.GetDepartment(ctx, id)
	if err != nil {
		return err
	}
	if d.OrgID != orgID {
		return fmt.Errorf("department %s not in organization %s", id, orgID)
	}
	return nil
}

type PlanCreateOptions struct {
	OrgID    string
	Name     string
	Year     int
	Activate bool
	ActorID  string
}

func (e Engine) CreatePlan(ctx context.Context, opts PlanCreateOptions) (domain.ActionPlan, error) {
	if opts.Name == "" {
		return domain.ActionPlan{}, errors.New("name is required")
	}
	if opts.Year < 2000 || opts.Year > 2200 {
		return domain.ActionPlan{}, fmt.Errorf("implausible plan year %d", opts.Year)
	}
	if err := e.EnsureEntitled(ctx, opts.OrgID, ModuleInternalControl); err != nil {
		return domain.ActionPlan{}, err
	}
	p := domain.ActionPlan{
		ID:        e.newID(),
		OrgID:     opts.OrgID,
		Name:      opts.Name,
		Year:      opts.Year,
		CreatedAt: e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ActionPlan{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPlan(ctx, tx, p); err != nil {
		return domain.ActionPlan{}, fmt.Errorf("insert plan: %w", err)
	}
	if opts.Activate {
		if err := e.Repo.ActivatePlan(ctx, tx, opts.OrgID, p.ID); err != nil {
			return domain.ActionPlan{}, err
		}
		p.Active = true
	}
	if err := e.Events.Append(ctx, tx, "plan.create", opts.OrgID, "plan", p.ID, opts.ActorID,
		events.EventPayload{"name": p.Name, "year": p.Year}); err != nil {
		return domain.ActionPlan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ActionPlan{}, err
	}
	return p, nil
}

func (e Engine) ActivatePlan(ctx context.Context, orgID, planID, actorID string) error {
	if _, err := e.requireOrgPlan(ctx, orgID, planID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.ActivatePlan(ctx, tx, orgID, planID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "plan.activate", orgID, "plan", planID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) requireOrgPlan(ctx context.Context, orgID, planID string) (domain.ActionPlan, error) {
	p, err := e.Repo.GetPlan(ctx, planID)
	if err != nil {
		return p, err
	}
	if p.OrgID != orgID {
		return p, fmt.Errorf("plan %s not in organization %s", planID, orgID)
	}
	return p, nil
}

func (e Engine) CreateComponent(ctx context.Context, code, name, actorID string) (domain.Component, error) {
	if code == "" || name == "" {
		return domain.Component{}, errors.New("code and name are required")
	}
	c := domain.Component{ID: e.newID(), Code: code, Name: name}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Component{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertComponent(ctx, tx, c); err != nil {
		return domain.Component{}, fmt.Errorf("insert component: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "component.create", "", "component", c.ID, actorID, events.EventPayload{"code": code}); err != nil {
		return domain.Component{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Component{}, err
	}
	return c, nil
}

func (e Engine) CreateStandard(ctx context.Context, componentID, code, name, actorID string) (domain.Standard, error) {
	if code == "" || name == "" {
		return domain.Standard{}, errors.New("code and name are required")
	}
	if _, err := e.Repo.GetComponent(ctx, componentID); err != nil {
		return domain.Standard{}, err
	}
	s := domain.Standard{ID: e.newID(), ComponentID: componentID, Code: code, Name: name}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Standard{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertStandard(ctx, tx, s); err != nil {
		return domain.Standard{}, fmt.Errorf("insert standard: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "standard.create", "", "standard", s.ID, actorID, events.EventPayload{"code": code}); err != nil {
		return domain.Standard{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Standard{}, err
	}
	return s, nil
}

type ConditionCreateOptions struct {
	StandardID          string
	Code                string
	Description         string
	ReasonableAssurance bool
	ActorID             string
}

func (e Engine) CreateCondition(ctx context.Context, opts ConditionCreateOptions) (domain.Condition, error) {
	if opts.Code == "" {
		return domain.Condition{}, errors.New("code is required")
	}
	if _, err := e.Repo.GetStandard(ctx, opts.StandardID); err != nil {
		return domain.Condition{}, err
	}
	c := domain.Condition{
		ID:                  e.newID(),
		StandardID:          opts.StandardID,
		Code:                opts.Code,
		Description:         opts.Description,
		ReasonableAssurance: opts.ReasonableAssurance,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Condition{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCondition(ctx, tx, c); err != nil {
		return domain.Condition{}, fmt.Errorf("insert condition: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "condition.create", "", "condition", c.ID, opts.ActorID, events.EventPayload{"code": opts.Code}); err != nil {
		return domain.Condition{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Condition{}, err
	}
	return c, nil
}

func (e Engine) UpsertSituation(ctx context.Context, orgID, planID, conditionID, narrative, actorID string) (domain.Situation, error) {
	if narrative == "" {
		return domain.Situation{}, errors.New("narrative is required")
	}
	if _, err := e.requireOrgPlan(ctx, orgID, planID); err != nil {
		return domain.Situation{}, err
	}
	if _, err := e.Repo.GetCondition(ctx, conditionID); err != nil {
		return domain.Situation{}, err
	}
	s := domain.Situation{
		ConditionID: conditionID,
		PlanID:      planID,
		Narrative:   narrative,
		UpdatedAt:   e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Situation{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertSituation(ctx, tx, s); err != nil {
		return domain.Situation{}, fmt.Errorf("upsert situation: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "situation.upsert", orgID, "condition", conditionID, actorID,
		events.EventPayload{"plan_id": planID}); err != nil {
		return domain.Situation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Situation{}, err
	}
	return s, nil
}

// ActionOptions carries every settable field of an action. Used for both
// create and update; update replaces the stored fields wholesale, falling
// back to the existing condition and status when left empty.
type ActionOptions struct {
	OrgID       string
	PlanID      string
	ConditionID string
	Code        string
	Title       string
	Description string
	Status      string
	Progress    int
	StartDate   string
	TargetDate  string
	CompletedAt string
	Continuous  bool

	AllResponsible     bool
	AllCollaborating   bool
	ResponsibleIDs     []string
	CollaboratingIDs   []string
	ResponsibleUnits   []string
	CollaboratingUnits []string

	ActorID string
}

func (e Engine) validateActionOptions(ctx context.Context, opts ActionOptions) error {
	if opts.Title == "" {
		return errors.New("title is required")
	}
	if opts.Code == "" {
		return errors.New("code is required")
	}
	switch opts.Status {
	case domain.StatusNotStarted, domain.StatusInProgress, domain.StatusCompleted,
		domain.StatusCancelled, domain.StatusOngoing:
	default:
		return fmt.Errorf("invalid status %q", opts.Status)
	}
	if opts.Progress < 0 || opts.Progress > 100 {
		return fmt.Errorf("progress %d out of range", opts.Progress)
	}
	for _, date := range []string{opts.StartDate, opts.TargetDate, opts.CompletedAt} {
		if date == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("invalid date %q: %w", date, err)
		}
	}
	if opts.AllResponsible && (len(opts.ResponsibleIDs) > 0 || len(opts.ResponsibleUnits) > 0) {
		return errors.New("all_responsible excludes explicit responsible units")
	}
	if opts.AllCollaborating && (len(opts.CollaboratingIDs) > 0 || len(opts.CollaboratingUnits) > 0) {
		return errors.New("all_collaborating excludes explicit collaborating units")
	}
	for _, deptID := range append(append([]string{}, opts.ResponsibleIDs...), opts.CollaboratingIDs...) {
		if err := e.requireOrgDepartment(ctx, opts.OrgID, deptID); err != nil {
			return err
		}
	}
	if _, err := e.Repo.GetCondition(ctx, opts.ConditionID); err != nil {
		return fmt.Errorf("condition %s: %w", opts.ConditionID, err)
	}
	return nil
}

func (e Engine) actionFromOptions(id string, opts ActionOptions, createdAt string) domain.Action {
	a := domain.Action{
		ID:                 id,
		PlanID:             opts.PlanID,
		ConditionID:        opts.ConditionID,
		Code:               opts.Code,
		Title:              opts.Title,
		Description:        opts.Description,
		Status:             opts.Status,
		Progress:           opts.Progress,
		Continuous:         opts.Continuous,
		AllResponsible:     opts.AllResponsible,
		AllCollaborating:   opts.AllCollaborating,
		ResponsibleIDs:     opts.ResponsibleIDs,
		CollaboratingIDs:   opts.CollaboratingIDs,
		ResponsibleUnits:   opts.ResponsibleUnits,
		CollaboratingUnits: opts.CollaboratingUnits,
		CreatedAt:          createdAt,
		UpdatedAt:          e.timestamp(),
	}
	if opts.StartDate != "" {
		a.StartDate = &opts.StartDate
	}
	if opts.TargetDate != "" {
		a.TargetDate = &opts.TargetDate
	}
	if opts.CompletedAt != "" {
		a.CompletedAt = &opts.CompletedAt
	}
	return a
}

func (e Engine) CreateAction(ctx context.Context, opts ActionOptions) (domain.Action, error) {
	if opts.Status == "" {
		opts.Status = domain.StatusNotStarted
	}
	if err := e.EnsureEntitled(ctx, opts.OrgID, ModuleInternalControl); err != nil {
		return domain.Action{}, err
	}
	if _, err := e.requireOrgPlan(ctx, opts.OrgID, opts.PlanID); err != nil {
		return domain.Action{}, err
	}
	if err := e.validateActionOptions(ctx, opts); err != nil {
		return domain.Action{}, err
	}
	a := e.actionFromOptions(e.newID(), opts, e.timestamp())
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Action{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAction(ctx, tx, a); err != nil {
		return domain.Action{}, fmt.Errorf("insert action: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "action.create", opts.OrgID, "action", a.ID, opts.ActorID,
		events.EventPayload{"code": a.Code, "plan_id": a.PlanID}); err != nil {
		return domain.Action{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Action{}, err
	}
	return a, nil
}

func (e Engine) UpdateAction(ctx context.Context, id string, opts ActionOptions) (domain.Action, error) {
	existing, err := e.Repo.GetAction(ctx, id)
	if err != nil {
		return domain.Action{}, err
	}
	if _, err := e.requireOrgPlan(ctx, opts.OrgID, existing.PlanID); err != nil {
		return domain.Action{}, err
	}
	opts.PlanID = existing.PlanID
	if opts.ConditionID == "" {
		opts.ConditionID = existing.ConditionID
	}
	if opts.Status == "" {
		opts.Status = existing.Status
	}
	if err := e.validateActionOptions(ctx, opts); err != nil {
		return domain.Action{}, err
	}
	a := e.actionFromOptions(id, opts, existing.CreatedAt)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Action{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAction(ctx, tx, a); err != nil {
		return domain.Action{}, fmt.Errorf("update action: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "action.update", opts.OrgID, "action", id, opts.ActorID,
		events.EventPayload{"status": a.Status, "progress": a.Progress}); err != nil {
		return domain.Action{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Action{}, err
	}
	return a, nil
}

func (e Engine) DeleteAction(ctx context.Context, orgID, id, actorID string) error {
	existing, err := e.Repo.GetAction(ctx, id)
	if err != nil {
		return err
	}
	if _, err := e.requireOrgPlan(ctx, orgID, existing.PlanID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAction(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "action.delete", orgID, "action", id, actorID,
		events.EventPayload{"code": existing.Code}); err != nil {
		return err
	}
	return tx.Commit()
}
