package server

import (
	"belkon/internal/domain"
	"belkon/internal/engine"
	"belkon/internal/rollup"
)

// Request payloads

type CreateOrgRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

type UpdateOrgRequest struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty" enum:"active,suspended"`
}

type GrantLicenseRequest struct {
	ModuleID  string  `json:"module_id"`
	ExpiresAt *string `json:"expires_at,omitempty" format:"date"`
}

type CreateDepartmentRequest struct {
	Name string `json:"name"`
}

type CreatePlanRequest struct {
	Name     string `json:"name"`
	Year     int    `json:"year"`
	Activate bool   `json:"activate,omitempty"`
}

type CreateComponentRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type CreateStandardRequest struct {
	ComponentID string `json:"component_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
}

type CreateConditionRequest struct {
	StandardID          string `json:"standard_id"`
	Code                string `json:"code"`
	Description         string `json:"description,omitempty"`
	ReasonableAssurance bool   `json:"reasonable_assurance,omitempty"`
}

type UpsertSituationRequest struct {
	ConditionID string `json:"condition_id"`
	Narrative   string `json:"narrative"`
}

type ActionRequest struct {
	ConditionID string  `json:"condition_id"`
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"not_started,in_progress,completed,cancelled,ongoing"`
	Progress    *int    `json:"progress,omitempty" minimum:"0" maximum:"100"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	TargetDate  *string `json:"target_date,omitempty" format:"date"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date"`
	Continuous  bool    `json:"continuous,omitempty"`

	AllResponsible     bool     `json:"all_responsible,omitempty"`
	AllCollaborating   bool     `json:"all_collaborating,omitempty"`
	ResponsibleIDs     []string `json:"responsible_ids,omitempty"`
	CollaboratingIDs   []string `json:"collaborating_ids,omitempty"`
	ResponsibleUnits   []string `json:"responsible_units,omitempty"`
	CollaboratingUnits []string `json:"collaborating_units,omitempty"`
}

func (r ActionRequest) toOptions(orgID, planID, actorID string) engine.ActionOptions {
	opts := engine.ActionOptions{
		OrgID:              orgID,
		PlanID:             planID,
		ConditionID:        r.ConditionID,
		Code:               r.Code,
		Title:              r.Title,
		Continuous:         r.Continuous,
		AllResponsible:     r.AllResponsible,
		AllCollaborating:   r.AllCollaborating,
		ResponsibleIDs:     r.ResponsibleIDs,
		CollaboratingIDs:   r.CollaboratingIDs,
		ResponsibleUnits:   r.ResponsibleUnits,
		CollaboratingUnits: r.CollaboratingUnits,
		ActorID:            actorID,
	}
	if r.Description != nil {
		opts.Description = *r.Description
	}
	if r.Status != nil {
		opts.Status = *r.Status
	}
	if r.Progress != nil {
		opts.Progress = *r.Progress
	}
	if r.StartDate != nil {
		opts.StartDate = *r.StartDate
	}
	if r.TargetDate != nil {
		opts.TargetDate = *r.TargetDate
	}
	if r.CompletedAt != nil {
		opts.CompletedAt = *r.CompletedAt
	}
	return opts
}

// Rollup responses. The grouped tree is mapped into wire types so the core
// package stays free of serialization tags.

type RollupRowResponse struct {
	Kind        string  `json:"kind" enum:"action,no_action"`
	ActionID    string  `json:"action_id,omitempty"`
	Code        string  `json:"code,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	Progress    int     `json:"progress"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	TargetDate  *string `json:"target_date,omitempty" format:"date"`
	Continuous  bool    `json:"continuous"`
	DelayDays   int     `json:"delay_days"`

	Responsible   AssignmentResponse `json:"responsible"`
	Collaborating AssignmentResponse `json:"collaborating"`
}

type AssignmentResponse struct {
	All       bool     `json:"all"`
	IDs       []string `json:"ids,omitempty"`
	Names     []string `json:"names,omitempty"`
	UnitNames []string `json:"unit_names,omitempty"`
}

type ConditionGroupResponse struct {
	Code                string              `json:"code"`
	Description         string              `json:"description,omitempty"`
	Situation           string              `json:"situation,omitempty"`
	ReasonableAssurance bool                `json:"reasonable_assurance"`
	Rows                []RollupRowResponse `json:"rows"`
}

type StandardGroupResponse struct {
	Code       string                   `json:"code"`
	Name       string                   `json:"name,omitempty"`
	Conditions []ConditionGroupResponse `json:"conditions"`
}

type ComponentGroupResponse struct {
	Code      string                  `json:"code"`
	Name      string                  `json:"name,omitempty"`
	Standards []StandardGroupResponse `json:"standards"`
}

type RollupResponse struct {
	PlanID     string                   `json:"plan_id"`
	Components []ComponentGroupResponse `json:"components"`
	Stats      rollup.GlobalStats       `json:"stats"`
}

type RollupStatsResponse struct {
	PlanID     string                  `json:"plan_id"`
	Global     rollup.GlobalStats      `json:"global"`
	Components []rollup.ComponentStats `json:"components"`
}

func assignmentResponse(a rollup.Assignment) AssignmentResponse {
	return AssignmentResponse{All: a.All, IDs: a.IDs, Names: a.Names, UnitNames: a.UnitNames}
}

func rowResponse(r rollup.Row) RollupRowResponse {
	kind := "action"
	if r.Kind == rollup.RowNoAction {
		kind = "no_action"
	}
	return RollupRowResponse{
		Kind:          kind,
		ActionID:      r.ActionID,
		Code:          r.Code,
		Title:         r.Title,
		Description:   r.Description,
		Status:        r.Status,
		Progress:      r.Progress,
		StartDate:     r.StartDate,
		TargetDate:    r.TargetDate,
		Continuous:    r.Continuous,
		DelayDays:     r.DelayDays,
		Responsible:   assignmentResponse(r.Responsible),
		Collaborating: assignmentResponse(r.Collaborating),
	}
}

func rollupResponse(rep engine.Report) RollupResponse {
	res := RollupResponse{PlanID: rep.Plan.ID, Stats: rep.Stats}
	for _, comp := range rep.Tree.Components {
		cg := ComponentGroupResponse{Code: comp.Code, Name: comp.Name}
		for _, std := range comp.Standards {
			sg := StandardGroupResponse{Code: std.Code, Name: std.Name}
			for _, cond := range std.Conditions {
				cr := ConditionGroupResponse{
					Code:                cond.Code,
					Description:         cond.Description,
					Situation:           cond.Situation,
					ReasonableAssurance: cond.ReasonableAssurance,
					Rows:                make([]RollupRowResponse, 0, len(cond.Rows)),
				}
				for _, row := range cond.Rows {
					cr.Rows = append(cr.Rows, rowResponse(row))
				}
				sg.Conditions = append(sg.Conditions, cr)
			}
			cg.Standards = append(cg.Standards, sg)
		}
		res.Components = append(res.Components, cg)
	}
	return res
}

// Entity responses reuse the domain structs, which already carry wire tags.

type EventListResponse struct {
	Events []domain.Event `json:"events"`
	NextID int64          `json:"next_id"`
}
