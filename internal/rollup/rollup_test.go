package rollup

import (
	"reflect"
	"testing"
	"time"

	"belkon/internal/domain"
)

func strptr(s string) *string { return &s }

// testSnapshot builds a small plan: KOS and RDS components, one standard
// each, two KOS conditions (one with actions, one satisfied by its current
// situation) plus one RDS condition and one action with a dangling condition
// reference.
func testSnapshot() Snapshot {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	return Snapshot{
		PlanID: "plan-1",
		Components: []domain.Component{
			{ID: "comp-rds", Code: "RDS", Name: "Risk Değerlendirme"},
			{ID: "comp-kos", Code: "KOS", Name: "Kontrol Ortamı"},
		},
		Standards: []domain.Standard{
			{ID: "std-kos1", ComponentID: "comp-kos", Code: "KOS 1", Name: "Etik Değerler"},
			{ID: "std-rds1", ComponentID: "comp-rds", Code: "RDS 1", Name: "Planlama"},
		},
		Conditions: []domain.Condition{
			{ID: "cond-1", StandardID: "std-kos1", Code: "KOS 1.1", Description: "Etik kurallar bilinir"},
			{ID: "cond-2", StandardID: "std-kos1", Code: "KOS 1.2", Description: "Dürüstlük esastır", ReasonableAssurance: true},
			{ID: "cond-3", StandardID: "std-rds1", Code: "RDS 1.1", Description: "Planlar hazırlanır"},
		},
		Situations: []domain.Situation{
			{ConditionID: "cond-1", PlanID: "plan-1", Narrative: "Kurallar duyuruldu"},
			{ConditionID: "cond-2", PlanID: "plan-1", Narrative: "Mevcut durum yeterli"},
			{ConditionID: "cond-3", PlanID: "plan-1", Narrative: "Planlama sürüyor"},
		},
		Actions: []domain.Action{
			{
				ID: "act-1", PlanID: "plan-1", ConditionID: "cond-1", Code: "E1.1.1",
				Title: "Etik eğitimi", Status: domain.StatusInProgress, Progress: 40,
				TargetDate:     strptr("2026-01-14"),
				ResponsibleIDs: []string{"dept-ik"},
			},
			{
				ID: "act-2", PlanID: "plan-1", ConditionID: "cond-1", Code: "E1.1.2",
				Title: "El kitabı", Status: domain.StatusCompleted, Progress: 100,
				TargetDate:       strptr("2026-01-01"),
				ResponsibleIDs:   []string{"dept-ik"},
				CollaboratingIDs: []string{"dept-bilgi"},
			},
			{
				ID: "act-3", PlanID: "plan-1", ConditionID: "cond-1", Code: "E1.1.10",
				Title: "Anket", Status: domain.StatusNotStarted,
				ResponsibleUnits: []string{domain.UnitStrategy},
			},
			{
				ID: "act-4", PlanID: "plan-1", ConditionID: "cond-3", Code: "E2.1.1",
				Title: "Risk envanteri", Status: domain.StatusOngoing, Continuous: true,
				TargetDate:     strptr("2025-12-31"),
				AllResponsible: true,
			},
			{
				ID: "act-5", PlanID: "plan-1", ConditionID: "cond-missing", Code: "E9.9.9",
				Title: "Sahipsiz eylem", Status: domain.StatusCancelled,
				ResponsibleIDs: []string{"dept-ik"},
			},
		},
		DepartmentNames: map[string]string{
			"dept-ik":    "İnsan Kaynakları",
			"dept-bilgi": "Bilgi İşlem",
		},
		Now: now,
	}
}

func findRow(t *testing.T, rows []Row, actionID string) Row {
	t.Helper()
	for _, r := range rows {
		if r.ActionID == actionID {
			return r
		}
	}
	t.Fatalf("action %s not found in %d rows", actionID, len(rows))
	return Row{}
}

func TestEnrichRowCount(t *testing.T) {
	rows := Enrich(testSnapshot())
	// Five actions plus one synthetic row for cond-2.
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}
	synthetic := 0
	for _, r := range rows {
		if r.Kind == RowNoAction {
			synthetic++
			if r.ConditionID != "cond-2" {
				t.Errorf("synthetic row for %s, want cond-2", r.ConditionID)
			}
			if r.Title != NoActionTitle {
				t.Errorf("synthetic title %q", r.Title)
			}
			if !r.ReasonableAssurance {
				t.Error("synthetic row must inherit reasonable assurance")
			}
			if r.ComponentCode != "KOS" || r.StandardCode != "KOS 1" {
				t.Errorf("synthetic row classified as %s/%s", r.ComponentCode, r.StandardCode)
			}
		}
	}
	if synthetic != 1 {
		t.Fatalf("expected exactly 1 synthetic row, got %d", synthetic)
	}
}

func TestEnrichDelay(t *testing.T) {
	rows := Enrich(testSnapshot())

	// 2026-01-14 to 2026-03-15 is 60 whole days.
	if got := findRow(t, rows, "act-1").DelayDays; got != 60 {
		t.Errorf("act-1 delay = %d, want 60", got)
	}
	// Completed actions never count as delayed even past target.
	if got := findRow(t, rows, "act-2").DelayDays; got != 0 {
		t.Errorf("act-2 delay = %d, want 0", got)
	}
	// No target date means no delay.
	if got := findRow(t, rows, "act-3").DelayDays; got != 0 {
		t.Errorf("act-3 delay = %d, want 0", got)
	}
	// Ongoing work is exempt.
	if got := findRow(t, rows, "act-4").DelayDays; got != 0 {
		t.Errorf("act-4 delay = %d, want 0", got)
	}
	if !findRow(t, rows, "act-1").Delayed() {
		t.Error("act-1 must report delayed")
	}
	if findRow(t, rows, "act-2").Delayed() {
		t.Error("act-2 must not report delayed")
	}
}

func TestEnrichAssignments(t *testing.T) {
	rows := Enrich(testSnapshot())

	r1 := findRow(t, rows, "act-1")
	if !reflect.DeepEqual(r1.Responsible.Names, []string{"İnsan Kaynakları"}) {
		t.Errorf("act-1 responsible names = %v", r1.Responsible.Names)
	}
	r3 := findRow(t, rows, "act-3")
	if !reflect.DeepEqual(r3.Responsible.UnitNames, []string{"Strateji Geliştirme Birimi"}) {
		t.Errorf("act-3 unit names = %v", r3.Responsible.UnitNames)
	}
	r4 := findRow(t, rows, "act-4")
	if !r4.Responsible.All {
		t.Error("act-4 responsible must be all units")
	}
	if !r4.Responsible.Includes("dept-bilgi") {
		t.Error("all-units assignment must include every department")
	}
	if r1.Responsible.Includes("dept-bilgi") {
		t.Error("explicit assignment must not include unrelated departments")
	}
}

func TestEnrichBrokenChain(t *testing.T) {
	rows := Enrich(testSnapshot())
	r := findRow(t, rows, "act-5")
	if r.ComponentCode != "" || r.StandardCode != "" || r.ConditionCode != "" {
		t.Errorf("dangling condition must leave classification empty, got %s/%s/%s",
			r.ComponentCode, r.StandardCode, r.ConditionCode)
	}
}

func TestFiltersStatusPartition(t *testing.T) {
	rows := Enrich(testSnapshot())
	pre, _ := Filters{}.Apply(rows)
	if len(pre) != len(rows) {
		t.Fatalf("empty filters must pass everything: %d != %d", len(pre), len(rows))
	}

	// Every real action lands in exactly one real-status bucket.
	total := 0
	for _, status := range []string{
		domain.StatusNotStarted, domain.StatusInProgress, domain.StatusCompleted,
		domain.StatusCancelled, domain.StatusOngoing,
	} {
		_, final := Filters{Status: status}.Apply(rows)
		for _, r := range final {
			if r.Kind != RowAction {
				t.Errorf("status filter %s let a synthetic row through", status)
			}
		}
		total += len(final)
	}
	if total != 5 {
		t.Errorf("real-status buckets sum to %d, want 5", total)
	}
}

func TestFiltersPseudoStatuses(t *testing.T) {
	rows := Enrich(testSnapshot())

	_, delayed := Filters{Status: StatusDelayed}.Apply(rows)
	if len(delayed) != 1 || delayed[0].ActionID != "act-1" {
		t.Fatalf("delayed filter returned %d rows", len(delayed))
	}
	_, continuous := Filters{Status: StatusContinuous}.Apply(rows)
	if len(continuous) != 1 || continuous[0].ActionID != "act-4" {
		t.Fatalf("continuous filter returned %d rows", len(continuous))
	}
}

func TestFiltersPreStatusSet(t *testing.T) {
	rows := Enrich(testSnapshot())
	pre, final := Filters{ComponentID: "comp-kos", Status: StatusDelayed}.Apply(rows)
	// Pre-status keeps the full KOS slice: three actions and the synthetic row.
	if len(pre) != 4 {
		t.Errorf("pre-status set has %d rows, want 4", len(pre))
	}
	if len(final) != 1 {
		t.Errorf("final set has %d rows, want 1", len(final))
	}
}

func TestFiltersDepartmentAndSearch(t *testing.T) {
	rows := Enrich(testSnapshot())

	_, resp := Filters{ResponsibleID: "dept-ik"}.Apply(rows)
	// act-1, act-2, act-5 explicitly; act-4 via all-units.
	if len(resp) != 4 {
		t.Errorf("responsible filter returned %d rows, want 4", len(resp))
	}
	_, collab := Filters{CollaboratingID: "dept-bilgi"}.Apply(rows)
	if len(collab) != 1 || collab[0].ActionID != "act-2" {
		t.Errorf("collaborating filter returned %d rows", len(collab))
	}
	_, search := Filters{Search: "eğitim"}.Apply(rows)
	if len(search) != 1 || search[0].ActionID != "act-1" {
		t.Errorf("search returned %d rows", len(search))
	}
	_, none := Filters{Search: "yok böyle bir şey"}.Apply(rows)
	if len(none) != 0 {
		t.Errorf("miss search returned %d rows", len(none))
	}
}

func TestKnownStatus(t *testing.T) {
	for _, ok := range []string{"", StatusDelayed, StatusContinuous, domain.StatusCompleted} {
		if !KnownStatus(ok) {
			t.Errorf("KnownStatus(%q) = false", ok)
		}
	}
	if KnownStatus("done") {
		t.Error(`KnownStatus("done") = true`)
	}
}

func TestSortToggle(t *testing.T) {
	s := DefaultSort()
	if s.Key != SortDelay || s.Direction != Ascending {
		t.Fatalf("default sort = %+v", s)
	}
	s = s.Toggle(SortDelay)
	if s.Direction != Descending {
		t.Error("same key must flip direction")
	}
	s = s.Toggle(SortCode)
	if s.Key != SortCode || s.Direction != Ascending {
		t.Error("new key must reset to ascending")
	}
}

func TestSortNoActionFirst(t *testing.T) {
	noAction := Row{Kind: RowNoAction}
	action := Row{Kind: RowAction, Code: "E1", DelayDays: -1}
	for _, s := range []Sort{DefaultSort(), {Key: SortCode, Direction: Descending}} {
		if !s.Less(noAction, action) || s.Less(action, noAction) {
			t.Errorf("NO_ACTION must sort first under %+v", s)
		}
	}
}

func TestSortNilTargetDatesLast(t *testing.T) {
	dated := Row{Kind: RowAction, Code: "E2", TargetDate: strptr("2026-06-01")}
	undated := Row{Kind: RowAction, Code: "E1"}
	asc := Sort{Key: SortTargetDate, Direction: Ascending}
	if !asc.Less(dated, undated) {
		t.Error("dated rows sort before undated ones ascending")
	}
	desc := Sort{Key: SortTargetDate, Direction: Descending}
	if !desc.Less(undated, dated) {
		t.Error("undated rows sort first descending")
	}
}

func TestSortCodeNumericWithinGroup(t *testing.T) {
	rows := []Row{
		{Kind: RowAction, Code: "E1.1.10"},
		{Kind: RowAction, Code: "E1.1.2"},
		{Kind: RowAction, Code: "E1.1.1"},
	}
	sortRows(rows, Sort{Key: SortCode, Direction: Ascending})
	want := []string{"E1.1.1", "E1.1.2", "E1.1.10"}
	for i, w := range want {
		if rows[i].Code != w {
			t.Fatalf("position %d = %s, want %s", i, rows[i].Code, w)
		}
	}
}

func TestBuildTree(t *testing.T) {
	rows := Enrich(testSnapshot())
	tree := BuildTree(rows, DefaultSort(), nil)

	if len(tree.Components) != 3 {
		t.Fatalf("expected 3 component groups, got %d", len(tree.Components))
	}
	if tree.Components[0].Code != "KOS" || tree.Components[1].Code != "RDS" {
		t.Errorf("component order: %s, %s", tree.Components[0].Code, tree.Components[1].Code)
	}
	last := tree.Components[2]
	if last.Code != OtherBucket || last.Name != OtherBucketLabel {
		t.Errorf("last component = %s/%s, want other bucket", last.Code, last.Name)
	}

	// Nothing is dropped: every row appears exactly once in the tree.
	count := 0
	for _, comp := range tree.Components {
		for _, std := range comp.Standards {
			for _, cond := range std.Conditions {
				count += len(cond.Rows)
			}
		}
	}
	if count != len(rows) {
		t.Errorf("tree holds %d rows, want %d", count, len(rows))
	}

	kos := tree.Components[0]
	if len(kos.Standards) != 1 || kos.Standards[0].Code != "KOS 1" {
		t.Fatalf("KOS standards = %+v", kos.Standards)
	}
	conds := kos.Standards[0].Conditions
	if len(conds) != 2 || conds[0].Code != "KOS 1.1" || conds[1].Code != "KOS 1.2" {
		t.Fatalf("KOS 1 conditions out of order")
	}
	if conds[0].Situation != "Kurallar duyuruldu" {
		t.Errorf("condition situation = %q", conds[0].Situation)
	}

	// Default sort puts the undelayed actions before the delayed one.
	c1 := conds[0].Rows
	if c1[len(c1)-1].ActionID != "act-1" {
		t.Errorf("delayed action must sort last ascending, got %s", c1[len(c1)-1].ActionID)
	}
}

func TestSortDelayDescendingTieBreakStaysAscending(t *testing.T) {
	rows := []Row{
		{Kind: RowAction, Code: "E3", DelayDays: 7, TargetDate: strptr("2026-03-01")},
		{Kind: RowAction, Code: "E2", DelayDays: 12, TargetDate: strptr("2026-02-01")},
		{Kind: RowAction, Code: "E1", DelayDays: 12, TargetDate: strptr("2026-01-01")},
	}
	sortRows(rows, Sort{Key: SortDelay, Direction: Descending})
	// Largest delay first, but equal delays still break on target date
	// ascending: the direction flips the primary key only.
	want := []string{"E1", "E2", "E3"}
	for i, w := range want {
		if rows[i].Code != w {
			t.Fatalf("position %d = %s, want %s", i, rows[i].Code, w)
		}
	}
}

func TestBuildTreeConfiguredComponentOrder(t *testing.T) {
	rows := Enrich(testSnapshot())
	tree := BuildTree(rows, DefaultSort(), []string{"RDS", "KOS"})
	if tree.Components[0].Code != "RDS" || tree.Components[1].Code != "KOS" {
		t.Errorf("component order: %s, %s, want RDS before KOS", tree.Components[0].Code, tree.Components[1].Code)
	}
	if tree.Components[2].Code != OtherBucket {
		t.Errorf("last component = %s, other bucket stays last under any order", tree.Components[2].Code)
	}

	stats := ComputeComponentStats(rows, []string{"RDS", "KOS"})
	if stats[0].ComponentCode != "RDS" || stats[1].ComponentCode != "KOS" {
		t.Errorf("component stats order: %s, %s, want RDS before KOS", stats[0].ComponentCode, stats[1].ComponentCode)
	}
}

func TestBuildTreeDeterministic(t *testing.T) {
	rows := Enrich(testSnapshot())
	a := BuildTree(rows, DefaultSort(), nil)
	b := BuildTree(rows, DefaultSort(), nil)
	if !reflect.DeepEqual(a, b) {
		t.Error("BuildTree must be deterministic for identical input")
	}
}

func TestGlobalStats(t *testing.T) {
	rows := Enrich(testSnapshot())
	st := ComputeGlobalStats(rows)

	if st.Total != 5 {
		t.Errorf("total = %d, want 5", st.Total)
	}
	if st.NoAction != 1 {
		t.Errorf("no-action = %d, want 1", st.NoAction)
	}
	if st.Completed != 1 || st.InProgress != 1 || st.NotStarted != 1 || st.Ongoing != 1 || st.Cancelled != 1 {
		t.Errorf("status buckets = %+v", st)
	}
	if st.Delayed != 1 || st.Continuous != 1 {
		t.Errorf("delayed = %d continuous = %d", st.Delayed, st.Continuous)
	}
	if st.CompletedPct != 20 {
		t.Errorf("completed pct = %v, want 20", st.CompletedPct)
	}
	// Real-status buckets partition the total together with cancelled.
	if st.Completed+st.InProgress+st.NotStarted+st.Ongoing+st.Cancelled != st.Total {
		t.Error("status buckets must partition the total")
	}
}

func TestGlobalStatsUsesPreStatusSet(t *testing.T) {
	rows := Enrich(testSnapshot())
	pre, final := Filters{Status: StatusDelayed}.Apply(rows)
	if ComputeGlobalStats(pre).Total != 5 {
		t.Error("stats denominator must ignore the status filter")
	}
	if len(final) == len(pre) {
		t.Fatal("fixture must actually narrow under the status filter")
	}
}

// TestScenarioKOS walks one small plan end to end: a satisfied condition and
// a condition with one completed and one day-late action.
func TestScenarioKOS(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	snap := Snapshot{
		PlanID:     "plan-1",
		Components: []domain.Component{{ID: "comp-kos", Code: "KOS", Name: "Kontrol Ortamı"}},
		Standards:  []domain.Standard{{ID: "std-1", ComponentID: "comp-kos", Code: "KOS-1", Name: "Etik"}},
		Conditions: []domain.Condition{
			{ID: "c1", StandardID: "std-1", Code: "KOS-1.1"},
			{ID: "c2", StandardID: "std-1", Code: "KOS-1.2"},
		},
		Situations: []domain.Situation{
			{ConditionID: "c1", PlanID: "plan-1", Narrative: "ok"},
			{ConditionID: "c2", PlanID: "plan-1", Narrative: "eksik"},
		},
		Actions: []domain.Action{
			{ID: "a1", ConditionID: "c2", Code: "E1", Status: domain.StatusCompleted, Progress: 100},
			{ID: "a2", ConditionID: "c2", Code: "E2", Status: domain.StatusInProgress, Progress: 40,
				TargetDate: strptr("2026-05-01")},
		},
		Now: now,
	}
	rows := Enrich(snap)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if got := findRow(t, rows, "a2").DelayDays; got != 1 {
		t.Errorf("a2 delay = %d, want 1", got)
	}
	st := ComputeGlobalStats(rows)
	if st.Total != 2 || st.Completed != 1 || st.InProgress != 1 || st.Delayed != 1 || st.NoAction != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.CompletedPct != 50 || st.InProgressPct != 50 {
		t.Errorf("pcts = %v / %v, want 50 / 50", st.CompletedPct, st.InProgressPct)
	}
	_, delayed := Filters{Status: StatusDelayed}.Apply(rows)
	if len(delayed) != 1 || delayed[0].ActionID != "a2" {
		t.Fatalf("delayed filter = %d rows", len(delayed))
	}
}

func TestComponentStats(t *testing.T) {
	rows := Enrich(testSnapshot())
	stats := ComputeComponentStats(rows, nil)

	if len(stats) != 3 {
		t.Fatalf("expected 3 component entries, got %d", len(stats))
	}
	kos := stats[0]
	if kos.ComponentCode != "KOS" || kos.ComponentID != "comp-kos" {
		t.Fatalf("first entry = %+v", kos)
	}
	if kos.Standards != 1 || kos.Conditions != 2 {
		t.Errorf("KOS standards/conditions = %d/%d", kos.Standards, kos.Conditions)
	}
	if kos.Actions != 3 || kos.AssuredConditions != 1 {
		t.Errorf("KOS actions = %d assured = %d", kos.Actions, kos.AssuredConditions)
	}
	if kos.Delayed != 1 || kos.NotStarted != 1 || kos.InProgress != 1 {
		t.Errorf("KOS sub-counts = %+v", kos)
	}
	rds := stats[1]
	if rds.ComponentCode != "RDS" || rds.Continuous != 1 {
		t.Errorf("RDS entry = %+v", rds)
	}
	if stats[2].ComponentCode != OtherBucket {
		t.Errorf("last entry = %s, want other bucket", stats[2].ComponentCode)
	}
}
