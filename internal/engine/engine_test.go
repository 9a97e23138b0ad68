package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"belkon/internal/config"
	"belkon/internal/db"
	"belkon/internal/domain"
	"belkon/internal/engine"
	"belkon/internal/migrate"
	"belkon/internal/repo"
	"belkon/internal/rollup"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Org    domain.Organization
	Plan   domain.ActionPlan
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	org, err := eng.CreateOrg(ctx, engine.OrgCreateOptions{Name: "Örnek Belediyesi", ActorID: "admin"})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	if _, err := eng.GrantLicense(ctx, engine.LicenseGrantOptions{
		OrgID: org.ID, ModuleID: engine.ModuleInternalControl, ActorID: "admin",
	}); err != nil {
		t.Fatalf("grant license: %v", err)
	}
	plan, err := eng.CreatePlan(ctx, engine.PlanCreateOptions{
		OrgID: org.ID, Name: "2026 Eylem Planı", Year: 2026, Activate: true, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Org: org, Plan: plan}
}

// condition returns a seeded condition id under the given standard.
func (env testEnv) condition(t *testing.T, standardID, code string) string {
	t.Helper()
	c, err := env.Engine.CreateCondition(env.Ctx, engine.ConditionCreateOptions{
		StandardID: standardID, Code: code, Description: "test koşulu", ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("create condition: %v", err)
	}
	return c.ID
}

func TestEntitlementGate(t *testing.T) {
	env := newTestEnv(t)

	if err := env.Engine.RevokeLicense(env.Ctx, env.Org.ID, engine.ModuleInternalControl, "admin"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	_, err := env.Engine.CreateDepartment(env.Ctx, env.Org.ID, "Mali Hizmetler", "admin")
	if !errors.Is(err, engine.ErrNotEntitled) {
		t.Fatalf("expected ErrNotEntitled, got %v", err)
	}

	// Expired license also blocks.
	if _, err := env.Engine.GrantLicense(env.Ctx, engine.LicenseGrantOptions{
		OrgID: env.Org.ID, ModuleID: engine.ModuleInternalControl,
		ExpiresAt: "2025-12-31", ActorID: "admin",
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	_, err = env.Engine.CreateDepartment(env.Ctx, env.Org.ID, "Mali Hizmetler", "admin")
	if !errors.Is(err, engine.ErrLicenseExpired) {
		t.Fatalf("expected ErrLicenseExpired, got %v", err)
	}

	// A live license opens the gate again.
	if _, err := env.Engine.GrantLicense(env.Ctx, engine.LicenseGrantOptions{
		OrgID: env.Org.ID, ModuleID: engine.ModuleInternalControl, ActorID: "admin",
	}); err != nil {
		t.Fatalf("regrant: %v", err)
	}
	if _, err := env.Engine.CreateDepartment(env.Ctx, env.Org.ID, "Mali Hizmetler", "admin"); err != nil {
		t.Fatalf("create department: %v", err)
	}

	// Suspended orgs are blocked regardless of license.
	if _, err := env.Engine.UpdateOrg(env.Ctx, env.Org.ID, "", "suspended", "admin"); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	_, err = env.Engine.CreateDepartment(env.Ctx, env.Org.ID, "Zabıta", "admin")
	if !errors.Is(err, engine.ErrOrgSuspended) {
		t.Fatalf("expected ErrOrgSuspended, got %v", err)
	}
}

func TestPlanActivationIsExclusive(t *testing.T) {
	env := newTestEnv(t)
	second, err := env.Engine.CreatePlan(env.Ctx, engine.PlanCreateOptions{
		OrgID: env.Org.ID, Name: "2027 Eylem Planı", Year: 2027, ActorID: "admin",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.ActivatePlan(env.Ctx, env.Org.ID, second.ID, "admin"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	active, err := env.Engine.Repo.ActivePlan(env.Ctx, env.Org.ID)
	if err != nil {
		t.Fatalf("active plan: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("active plan = %s, want %s", active.ID, second.ID)
	}
	first, err := env.Engine.Repo.GetPlan(env.Ctx, env.Plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.Active {
		t.Error("previous plan must be deactivated")
	}
}

func TestActionValidation(t *testing.T) {
	env := newTestEnv(t)
	condID := env.condition(t, "std-kos1", "KOS 1.1.1")

	_, err := env.Engine.CreateAction(env.Ctx, engine.ActionOptions{
		OrgID: env.Org.ID, PlanID: env.Plan.ID, ConditionID: condID,
		Code: "E1", Title: "Eylem", Status: "done", ActorID: "admin",
	})
	if err == nil {
		t.Error("expected invalid status to be rejected")
	}
	_, err = env.Engine.CreateAction(env.Ctx, engine.ActionOptions{
		OrgID: env.Org.ID, PlanID: env.Plan.ID, ConditionID: condID,
		Code: "E1", Title: "Eylem", Progress: 140, ActorID: "admin",
	})
	if err == nil {
		t.Error("expected out-of-range progress to be rejected")
	}
	_, err = env.Engine.CreateAction(env.Ctx, engine.ActionOptions{
		OrgID: env.Org.ID, PlanID: env.Plan.ID, ConditionID: condID,
		Code: "E1", Title: "Eylem", AllResponsible: true,
		ResponsibleUnits: []string{domain.UnitTopManagement}, ActorID: "admin",
	})
	if err == nil {
		t.Error("expected all-responsible plus explicit units to be rejected")
	}
	_, err = env.Engine.CreateAction(env.Ctx, engine.ActionOptions{
		OrgID: env.Org.ID, PlanID: env.Plan.ID, ConditionID: condID,
		Code: "E1", Title: "Eylem", TargetDate: "31/12/2026", ActorID: "admin",
	})
	if err == nil {
		t.Error("expected malformed date to be rejected")
	}
}

func TestActionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	dept, err := env.Engine.CreateDepartment(env.Ctx, env.Org.ID, "İnsan Kaynakları", "admin")
	if err != nil {
		t.Fatal(err)
	}
	condID := env.condition(t, "std-kos1", "KOS 1.1.2")

	a, err := env.Engine.CreateAction(env.Ctx, engine.ActionOptions{
		OrgID: env.Org.ID, PlanID: env.Plan.ID, ConditionID: condID,
		Code: "E1.1.1", Title: "Etik eğitimi", TargetDate: "2026-06-30",
		ResponsibleIDs: []string{dept.ID}, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}
	if a.Status != domain.StatusNotStarted {
		t.Errorf("default status = %s", a.Status)
	}

	a, err = env.Engine.UpdateAction(env.Ctx, a.ID, engine.ActionOptions{
		OrgID: env.Org.ID, Code: a.Code, Title: a.Title,
		Status: domain.StatusInProgress, Progress: 30, TargetDate: "2026-06-30",
		ResponsibleIDs: []string{dept.ID}, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("update action: %v", err)
	}
	if a.Status != domain.StatusInProgress || a.Progress != 30 {
		t.Errorf("updated action = %s %d", a.Status, a.Progress)
	}

	got, err := env.Engine.Repo.GetAction(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ResponsibleIDs) != 1 || got.ResponsibleIDs[0] != dept.ID {
		t.Errorf("responsible ids = %v", got.ResponsibleIDs)
	}

	if err := env.Engine.DeleteAction(env.Ctx, env.Org.ID, a.ID, "admin"); err != nil {
		t.Fatalf("delete action: %v", err)
	}
	if _, err := env.Engine.Repo.GetAction(env.Ctx, a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestReport(t *testing.T) {
	env := newTestEnv(t)
	satisfied := env.condition(t, "std-kos1", "KOS 1.1")
	open := env.condition(t, "std-kos1", "KOS 1.2")

	if _, err := env.Engine.UpsertSituation(env.Ctx, env.Org.ID, env.Plan.ID, satisfied, "Mevcut durum yeterli", "admin"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpsertSituation(env.Ctx, env.Org.ID, env.Plan.ID, open, "Eksikler var", "admin"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAction(env.Ctx, engine.ActionOptions{
		OrgID: env.Org.ID, PlanID: env.Plan.ID, ConditionID: open,
		Code: "E1", Title: "Tamamlanan", Status: domain.StatusCompleted, Progress: 100, ActorID: "admin",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAction(env.Ctx, engine.ActionOptions{
		OrgID: env.Org.ID, PlanID: env.Plan.ID, ConditionID: open,
		Code: "E2", Title: "Geciken", Status: domain.StatusInProgress, Progress: 40,
		TargetDate: "2026-03-14", ActorID: "admin",
	}); err != nil {
		t.Fatal(err)
	}

	rep, err := env.Engine.Report(env.Ctx, engine.ReportOptions{OrgID: env.Org.ID, PlanID: env.Plan.ID})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Stats.Total != 2 || rep.Stats.Completed != 1 || rep.Stats.Delayed != 1 || rep.Stats.NoAction != 1 {
		t.Errorf("stats = %+v", rep.Stats)
	}
	if len(rep.Tree.Components) != 1 || rep.Tree.Components[0].Code != "KOS" {
		t.Fatalf("tree components = %+v", rep.Tree.Components)
	}
	if len(rep.Components) == 0 || rep.Components[0].ComponentCode != "KOS" {
		t.Errorf("component stats = %+v", rep.Components)
	}

	// The delayed filter narrows the tree but not the stats denominator.
	rep, err = env.Engine.Report(env.Ctx, engine.ReportOptions{
		OrgID: env.Org.ID, PlanID: env.Plan.ID,
		Filters: rollup.Filters{Status: rollup.StatusDelayed},
	})
	if err != nil {
		t.Fatalf("filtered report: %v", err)
	}
	if rep.Stats.Total != 2 {
		t.Errorf("filtered stats total = %d, want 2", rep.Stats.Total)
	}
	count := 0
	for _, comp := range rep.Tree.Components {
		for _, std := range comp.Standards {
			for _, cond := range std.Conditions {
				count += len(cond.Rows)
			}
		}
	}
	if count != 1 {
		t.Errorf("filtered tree rows = %d, want 1", count)
	}

	_, err = env.Engine.Report(env.Ctx, engine.ReportOptions{
		OrgID: env.Org.ID, PlanID: env.Plan.ID,
		Filters: rollup.Filters{Status: "bogus"},
	})
	if err == nil {
		t.Error("expected unknown status filter to be rejected")
	}
}

func TestReportConfiguredComponentOrder(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Rollup.ComponentOrder = []string{"RDS", "KOS"}

	kos := env.condition(t, "std-kos1", "KOS 1.1")
	rds := env.condition(t, "std-rds5", "RDS 5.1")
	for i, condID := range []string{kos, rds} {
		if _, err := env.Engine.CreateAction(env.Ctx, engine.ActionOptions{
			OrgID: env.Org.ID, PlanID: env.Plan.ID, ConditionID: condID,
			Code: fmt.Sprintf("E%d", i+1), Title: "Eylem", ActorID: "admin",
		}); err != nil {
			t.Fatal(err)
		}
	}

	rep, err := env.Engine.Report(env.Ctx, engine.ReportOptions{OrgID: env.Org.ID, PlanID: env.Plan.ID})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rep.Tree.Components) != 2 {
		t.Fatalf("tree components = %+v", rep.Tree.Components)
	}
	if rep.Tree.Components[0].Code != "RDS" || rep.Tree.Components[1].Code != "KOS" {
		t.Errorf("tree order = %s, %s, want configured RDS before KOS",
			rep.Tree.Components[0].Code, rep.Tree.Components[1].Code)
	}
	if rep.Components[0].ComponentCode != "RDS" || rep.Components[1].ComponentCode != "KOS" {
		t.Errorf("component stats order = %s, %s, want configured RDS before KOS",
			rep.Components[0].ComponentCode, rep.Components[1].ComponentCode)
	}
}

func TestSyncModuleCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Modules.Catalog["imar"] = config.ModuleEntry{
		Name: "İmar Yönetimi", Description: "İmar planı takibi",
	}
	env.Engine.Config.Modules.Catalog["ic_kontrol"] = config.ModuleEntry{
		Name: "İç Kontrol Sistemi", Description: "İç kontrol standartları uyum eylem planı",
	}

	if err := env.Engine.SyncModuleCatalog(env.Ctx); err != nil {
		t.Fatalf("sync catalog: %v", err)
	}

	// The new catalog entry lands in the modules table and is licensable.
	m, err := env.Engine.Repo.GetModule(env.Ctx, "imar")
	if err != nil {
		t.Fatalf("get module: %v", err)
	}
	if m.Name != "İmar Yönetimi" {
		t.Errorf("module name = %q", m.Name)
	}
	if _, err := env.Engine.GrantLicense(env.Ctx, engine.LicenseGrantOptions{
		OrgID: env.Org.ID, ModuleID: "imar", ActorID: "admin",
	}); err != nil {
		t.Fatalf("grant license for catalog module: %v", err)
	}

	// A renamed entry updates the seeded row in place.
	ic, err := env.Engine.Repo.GetModule(env.Ctx, engine.ModuleInternalControl)
	if err != nil {
		t.Fatal(err)
	}
	if ic.Name != "İç Kontrol Sistemi" {
		t.Errorf("renamed module = %q", ic.Name)
	}
}

func TestEventAppendOnMutations(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateDepartment(env.Ctx, env.Org.ID, "Fen İşleri", "admin"); err != nil {
		t.Fatal(err)
	}
	evts, err := env.Engine.Repo.ListEvents(env.Ctx, env.Org.ID, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	// org.create, license.grant, plan.create, department.create at minimum.
	if len(evts) < 4 {
		t.Fatalf("expected at least 4 events, got %d", len(evts))
	}
	last := evts[len(evts)-1]
	if last.Type != "department.create" || last.ActorID != "admin" {
		t.Errorf("last event = %+v", last)
	}
}

func TestLoaderRetriesOnce(t *testing.T) {
	calls := 0
	l := &engine.Loader{
		Fetch: func(ctx context.Context, orgID, planID string) (rollup.Snapshot, error) {
			calls++
			if calls == 1 {
				return rollup.Snapshot{}, fmt.Errorf("transient failure")
			}
			return rollup.Snapshot{PlanID: planID}, nil
		},
	}
	snap, err := l.Load(context.Background(), "org", "plan")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if snap.PlanID != "plan" || l.State() != engine.StateReady {
		t.Errorf("state = %v", l.State())
	}

	failing := &engine.Loader{
		Fetch: func(ctx context.Context, orgID, planID string) (rollup.Snapshot, error) {
			return rollup.Snapshot{}, fmt.Errorf("down")
		},
	}
	if _, err := failing.Load(context.Background(), "org", "plan"); err == nil {
		t.Fatal("expected failure after retry")
	}
	if failing.State() != engine.StateFailed || failing.Err() == nil {
		t.Errorf("failed state = %v err = %v", failing.State(), failing.Err())
	}
}
