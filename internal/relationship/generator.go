package relationship

import (
	"cmp"
	"slices"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
)

// Generate pairs every leader with every manager of the tenant, never an
// employee with themselves. The result is sorted by evaluator then evaluee
// and free of duplicates; empty leader or manager sets yield an empty
// slice. Employees must all belong to tenantID, see GenerateChecked.
func Generate(tenantID string, employees []evaluation.Employee, policy Policy) []Relationship {
	var leaders, managers []string
	for _, e := range employees {
		if policy.IsLeader(e) {
			leaders = append(leaders, e.EmployeeID)
		}
		if policy.IsManager(e) {
			managers = append(managers, e.EmployeeID)
		}
	}

	rels := make([]Relationship, 0, len(leaders)*len(managers))
	seen := make(map[[2]string]struct{}, len(leaders)*len(managers))
	for _, evaluator := range leaders {
		for _, evaluee := range managers {
			if evaluator == evaluee {
				continue
			}
			key := [2]string{evaluator, evaluee}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			rels = append(rels, Relationship{TenantID: tenantID, EvaluatorID: evaluator, EvalueeID: evaluee})
		}
	}

	slices.SortFunc(rels, func(a, b Relationship) int {
		if c := cmp.Compare(a.EvaluatorID, b.EvaluatorID); c != 0 {
			return c
		}
		return cmp.Compare(a.EvalueeID, b.EvalueeID)
	})
	return rels
}

// GenerateChecked is Generate refusing employees of any other tenant.
func GenerateChecked(tenantID string, employees []evaluation.Employee, policy Policy) ([]Relationship, error) {
	for _, e := range employees {
		if e.TenantID != tenantID {
			return nil, internal.ErrCrossTenantAccess.WithMessage(
				"employee %s of tenant %s passed to generation for tenant %s", e.EmployeeID, e.TenantID, tenantID)
		}
	}
	return Generate(tenantID, employees, policy), nil
}
