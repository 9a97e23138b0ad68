package domain

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status" enum:"active,suspended"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Module is an entry of the entitlement catalog (budget, internal control,
// risk register, quality audit, ...).
type Module struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// License grants an organization access to a module, optionally time-boxed.
type License struct {
	OrgID     string  `json:"org_id"`
	ModuleID  string  `json:"module_id"`
	GrantedBy string  `json:"granted_by"`
	GrantedAt string  `json:"granted_at" format:"date-time"`
	ExpiresAt *string `json:"expires_at,omitempty" format:"date"`
}

type Department struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// ActionPlan is the scoping context for conditions and actions; at most one
// plan per organization is active at a time.
type ActionPlan struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	Year      int    `json:"year"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Component is the top level of the compliance taxonomy. The canonical codes
// are KOS, RDS, KFS, BIS and IS; custom codes sort after them.
type Component struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Standard struct {
	ID          string `json:"id"`
	ComponentID string `json:"component_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
}

type Condition struct {
	ID                  string `json:"id"`
	StandardID          string `json:"standard_id"`
	Code                string `json:"code"`
	Description         string `json:"description"`
	ReasonableAssurance bool   `json:"reasonable_assurance"`
}

// Situation is the per-(condition, plan) "current situation" narrative. A
// condition with a situation but no actions is reported as needing none.
type Situation struct {
	ConditionID string `json:"condition_id"`
	PlanID      string `json:"plan_id"`
	Narrative   string `json:"narrative"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// Action lifecycle statuses. NO_ACTION placeholder rows are synthesized by
// the rollup engine and never persisted with these.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusOngoing    = "ongoing"
)

// Special responsible units: fixed non-departmental bodies that can carry
// responsibility instead of or alongside departments.
const (
	UnitTopManagement = "ust_yonetim"
	UnitInternalAudit = "ic_denetim"
	UnitInspection    = "teftis_kurulu"
	UnitStrategy      = "strateji_gelistirme"
)

// SpecialUnitLabels maps unit tags to display names.
var SpecialUnitLabels = map[string]string{
	UnitTopManagement: "Üst Yönetim",
	UnitInternalAudit: "İç Denetim Birimi",
	UnitInspection:    "Teftiş Kurulu",
	UnitStrategy:      "Strateji Geliştirme Birimi",
}

type Action struct {
	ID          string  `json:"id"`
	PlanID      string  `json:"plan_id"`
	ConditionID string  `json:"condition_id"`
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status" enum:"not_started,in_progress,completed,cancelled,ongoing"`
	Progress    int     `json:"progress"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	TargetDate  *string `json:"target_date,omitempty" format:"date"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date"`
	Continuous  bool    `json:"continuous"`

	// Responsible/collaborating assignment. The all-units flags short-circuit
	// the explicit lists; both never carry data at once.
	AllResponsible     bool     `json:"all_responsible"`
	AllCollaborating   bool     `json:"all_collaborating"`
	ResponsibleIDs     []string `json:"responsible_ids,omitempty"`
	CollaboratingIDs   []string `json:"collaborating_ids,omitempty"`
	ResponsibleUnits   []string `json:"responsible_units,omitempty"`
	CollaboratingUnits []string `json:"collaborating_units,omitempty"`

	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
