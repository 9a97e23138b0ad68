package rollup

import "sort"

// OtherBucket keys and labels rows whose classification chain is broken.
const (
	OtherBucket      = "other"
	OtherBucketLabel = "Diğer"
)

// Canonical component order; codes outside the table sort after, Turkish
// alphabetical among themselves.
var componentOrder = map[string]int{
	"KOS": 0,
	"RDS": 1,
	"KFS": 2,
	"BIS": 3,
	"IS":  4,
}

type ConditionGroup struct {
	Code                string
	Description         string
	Situation           string
	ReasonableAssurance bool
	Rows                []Row
}

type StandardGroup struct {
	Code       string
	Name       string
	Conditions []ConditionGroup
}

type ComponentGroup struct {
	Code      string
	Name      string
	Standards []StandardGroup
}

// Tree is the three-level grouped view the table and the exporters walk.
type Tree struct {
	Components []ComponentGroup
}

// componentRank maps component codes to display positions: the configured
// order when one is given, the canonical table otherwise.
func componentRank(order []string) map[string]int {
	if len(order) == 0 {
		return componentOrder
	}
	rank := make(map[string]int, len(order))
	for i, code := range order {
		rank[code] = i
	}
	return rank
}

// BuildTree groups rows into Component -> Standard -> Condition and orders
// every level. Components follow the configured display order (canonical
// when order is empty). Rows with missing classification land in an "other"
// bucket at the level where the chain breaks; nothing is dropped. Rebuilt
// wholesale on every input change, never maintained incrementally.
func BuildTree(rows []Row, s Sort, order []string) Tree {
	type condKey struct{ comp, std, cond string }
	comps := map[string]*ComponentGroup{}
	stds := map[string]map[string]*StandardGroup{}
	conds := map[condKey]*ConditionGroup{}

	for _, r := range rows {
		compCode, compName := r.ComponentCode, r.ComponentName
		if compCode == "" {
			compCode, compName = OtherBucket, OtherBucketLabel
		}
		stdCode, stdName := r.StandardCode, r.StandardName
		if stdCode == "" {
			stdCode, stdName = OtherBucket, OtherBucketLabel
		}
		condCode := r.ConditionCode
		if condCode == "" {
			condCode = OtherBucket
		}
		if _, ok := comps[compCode]; !ok {
			comps[compCode] = &ComponentGroup{Code: compCode, Name: compName}
			stds[compCode] = map[string]*StandardGroup{}
		}
		if _, ok := stds[compCode][stdCode]; !ok {
			stds[compCode][stdCode] = &StandardGroup{Code: stdCode, Name: stdName}
		}
		key := condKey{compCode, stdCode, condCode}
		cg, ok := conds[key]
		if !ok {
			cg = &ConditionGroup{
				Code:                condCode,
				Description:         r.ConditionDescription,
				Situation:           r.Situation,
				ReasonableAssurance: r.ReasonableAssurance,
			}
			conds[key] = cg
		}
		cg.Rows = append(cg.Rows, r)
	}

	tree := Tree{}
	for code, cg := range comps {
		group := *cg
		var stdCodes []string
		for stdCode := range stds[code] {
			stdCodes = append(stdCodes, stdCode)
		}
		sort.Slice(stdCodes, func(i, j int) bool {
			return compareBucketCodes(stdCodes[i], stdCodes[j]) < 0
		})
		for _, stdCode := range stdCodes {
			sg := *stds[code][stdCode]
			var condCodes []string
			for key := range conds {
				if key.comp == code && key.std == stdCode {
					condCodes = append(condCodes, key.cond)
				}
			}
			sort.Slice(condCodes, func(i, j int) bool {
				return compareBucketCodes(condCodes[i], condCodes[j]) < 0
			})
			for _, condCode := range condCodes {
				cond := *conds[condKey{code, stdCode, condCode}]
				sortRows(cond.Rows, s)
				sg.Conditions = append(sg.Conditions, cond)
			}
			group.Standards = append(group.Standards, sg)
		}
		tree.Components = append(tree.Components, group)
	}
	rank := componentRank(order)
	sort.Slice(tree.Components, func(i, j int) bool {
		return compareComponents(tree.Components[i].Code, tree.Components[j].Code, rank) < 0
	})
	return tree
}

func sortRows(rows []Row, s Sort) {
	sort.SliceStable(rows, func(i, j int) bool { return s.Less(rows[i], rows[j]) })
}

func compareComponents(a, b string, rank map[string]int) int {
	oa, oka := rank[a]
	ob, okb := rank[b]
	switch {
	case oka && okb:
		return compareInts(oa, ob)
	case oka:
		return -1
	case okb:
		return 1
	}
	return compareBucketCodes(a, b)
}

// compareBucketCodes orders codes numerically-aware with the "other" bucket
// always last.
func compareBucketCodes(a, b string) int {
	switch {
	case a == OtherBucket && b == OtherBucket:
		return 0
	case a == OtherBucket:
		return 1
	case b == OtherBucket:
		return -1
	}
	return CompareCodes(a, b)
}
