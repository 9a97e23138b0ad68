package rollup

import "belkon/internal/domain"

// GlobalStats summarizes the filtered-but-pre-status row set, so toggling a
// status filter never distorts the denominators.
//
// Total counts every real action including cancelled ones, while cancelled
// actions sit in no named bucket; the percentages therefore may not sum to
// 100. Cancelled is surfaced separately so the gap stays visible.
type GlobalStats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	NotStarted int `json:"not_started"`
	Delayed    int `json:"delayed"`
	Ongoing    int `json:"ongoing"`
	Continuous int `json:"continuous"`
	Cancelled  int `json:"cancelled"`

	// NoAction counts conditions whose current situation already satisfies
	// the requirement.
	NoAction int `json:"no_action"`

	CompletedPct  float64 `json:"completed_pct"`
	InProgressPct float64 `json:"in_progress_pct"`
	NotStartedPct float64 `json:"not_started_pct"`
	DelayedPct    float64 `json:"delayed_pct"`
	OngoingPct    float64 `json:"ongoing_pct"`
	ContinuousPct float64 `json:"continuous_pct"`
}

// ComputeGlobalStats tallies the pre-status filtered rows.
func ComputeGlobalStats(rows []Row) GlobalStats {
	var st GlobalStats
	for _, r := range rows {
		if r.Kind == RowNoAction {
			st.NoAction++
			continue
		}
		st.Total++
		switch r.Status {
		case domain.StatusCompleted:
			st.Completed++
		case domain.StatusInProgress:
			st.InProgress++
		case domain.StatusNotStarted:
			st.NotStarted++
		case domain.StatusOngoing:
			st.Ongoing++
		case domain.StatusCancelled:
			st.Cancelled++
		}
		if r.Delayed() {
			st.Delayed++
		}
		if r.Continuous {
			st.Continuous++
		}
	}
	st.CompletedPct = pct(st.Completed, st.Total)
	st.InProgressPct = pct(st.InProgress, st.Total)
	st.NotStartedPct = pct(st.NotStarted, st.Total)
	st.DelayedPct = pct(st.Delayed, st.Total)
	st.OngoingPct = pct(st.Ongoing, st.Total)
	st.ContinuousPct = pct(st.Continuous, st.Total)
	return st
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

// ComponentStats summarizes one component over the unfiltered plan
// snapshot. It doubles as a filter control: selecting a component applies
// its id as the component filter.
type ComponentStats struct {
	ComponentID   string `json:"component_id"`
	ComponentCode string `json:"component_code"`
	ComponentName string `json:"component_name"`

	Standards         int `json:"standards"`
	Conditions        int `json:"conditions"`
	AssuredConditions int `json:"assured_conditions"`
	Actions           int `json:"actions"`
	Continuous        int `json:"continuous"`
	NotStarted        int `json:"not_started"`
	InProgress        int `json:"in_progress"`
	Delayed           int `json:"delayed"`
}

// ComputeComponentStats tallies per-component counters over the full
// enriched (unfiltered) row set, ordered like the tree (configured display
// order, canonical when order is empty).
func ComputeComponentStats(rows []Row, order []string) []ComponentStats {
	type tracker struct {
		stats      ComponentStats
		standards  map[string]bool
		conditions map[string]bool
	}
	byCode := map[string]*tracker{}
	for _, r := range rows {
		code := r.ComponentCode
		if code == "" {
			code = OtherBucket
		}
		tr, ok := byCode[code]
		if !ok {
			name := r.ComponentName
			if code == OtherBucket {
				name = OtherBucketLabel
			}
			tr = &tracker{
				stats:      ComponentStats{ComponentID: r.ComponentID, ComponentCode: code, ComponentName: name},
				standards:  map[string]bool{},
				conditions: map[string]bool{},
			}
			byCode[code] = tr
		}
		if r.StandardCode != "" {
			tr.standards[r.StandardCode] = true
		}
		tr.conditions[r.ConditionID] = true
		if r.Kind == RowNoAction {
			if r.ReasonableAssurance {
				tr.stats.AssuredConditions++
			}
			continue
		}
		tr.stats.Actions++
		if r.Continuous {
			tr.stats.Continuous++
		}
		switch r.Status {
		case domain.StatusNotStarted:
			tr.stats.NotStarted++
		case domain.StatusInProgress:
			tr.stats.InProgress++
		}
		if r.Delayed() {
			tr.stats.Delayed++
		}
	}
	var codes []string
	for code := range byCode {
		codes = append(codes, code)
	}
	sortComponentCodes(codes, componentRank(order))
	res := make([]ComponentStats, 0, len(codes))
	for _, code := range codes {
		tr := byCode[code]
		tr.stats.Standards = len(tr.standards)
		tr.stats.Conditions = len(tr.conditions)
		res = append(res, tr.stats)
	}
	return res
}

func sortComponentCodes(codes []string, rank map[string]int) {
	for i := 1; i < len(codes); i++ {
		for j := i; j > 0 && compareComponents(codes[j], codes[j-1], rank) < 0; j-- {
			codes[j], codes[j-1] = codes[j-1], codes[j]
		}
	}
}
