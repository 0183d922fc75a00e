package reconciliation

import (
	"fmt"
	"slices"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/directory"
	"github.com/frahmantamala/evaluation-sync/internal/level"
)

type Candidate struct {
	Index  int
	Record NormalizedRecord
}

// Plan is the part of a reconciliation decidable without the store.
type Plan struct {
	Candidates []Candidate
	Skips      []RecordSkip
	Failures   []RecordFailure
	// ids whose supervisor link was dropped to break a cycle
	CyclesBroken []string
}

// NormalizeRecords applies n to every record, in order.
func NormalizeRecords(n *level.Normalizer, records []directory.EmployeeRecord) []NormalizedRecord {
	out := make([]NormalizedRecord, 0, len(records))
	for _, r := range records {
		title := r.EffectiveTitle()
		out = append(out, NormalizedRecord{
			EmployeeRecord:  r,
			NormalizedLevel: n.NormalizeRaw(title, string(r.Level)),
			LevelCorrected:  n.Corrected(title),
		})
	}
	return out
}

// PlanImport skips inactive records, fails invalid and repeated ones, and
// drops supervisor links that would close a cycle.
func PlanImport(records []NormalizedRecord) Plan {
	var plan Plan
	seen := make(map[string]struct{}, len(records))

	for i, r := range records {
		if !r.IsActive() {
			plan.Skips = append(plan.Skips, RecordSkip{Index: i, EmployeeID: r.ID, Reason: SkipInactive})
			continue
		}
		if err := r.Validate(); err != nil {
			plan.Failures = append(plan.Failures, NewRecordFailure(i, r.ID, err))
			continue
		}
		if _, dup := seen[r.ID]; dup {
			plan.Failures = append(plan.Failures, NewRecordFailure(i, r.ID, fmt.Errorf("employee id %s repeated in snapshot", r.ID)))
			continue
		}
		seen[r.ID] = struct{}{}
		plan.Candidates = append(plan.Candidates, Candidate{Index: i, Record: r})
	}

	plan.CyclesBroken = breakSupervisorCycles(plan.Candidates)
	return plan
}

func NewRecordFailure(index int, employeeID string, cause error) RecordFailure {
	err := internal.ErrRecordImport.
		WithMessage("employee %q (record %d) could not be imported", employeeID, index).
		WithCause(cause)
	return RecordFailure{
		Index:      index,
		EmployeeID: employeeID,
		Message:    err.Error(),
		Err:        err,
	}
}

// breakSupervisorCycles walks the supervisor links of candidates and, for
// each cycle, clears the link of its smallest id. Links to ids outside the
// snapshot are left alone.
func breakSupervisorCycles(candidates []Candidate) []string {
	pos := make(map[string]int, len(candidates))
	for i, c := range candidates {
		pos[c.Record.ID] = i
	}
	next := func(id string) (string, bool) {
		sup := candidates[pos[id]].Record.SupervisorID
		if sup == nil {
			return "", false
		}
		if _, ok := pos[*sup]; !ok {
			return "", false
		}
		return *sup, true
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.Record.ID)
	}
	slices.Sort(ids)

	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(ids))
	var broken []string

	for _, start := range ids {
		if state[start] != unvisited {
			continue
		}
		var path []string
		id, ok := start, true
		for ok && state[id] == unvisited {
			state[id] = onPath
			path = append(path, id)
			id, ok = next(id)
		}
		if ok && state[id] == onPath {
			cycle := path[slices.Index(path, id):]
			victim := slices.Min(cycle)
			candidates[pos[victim]].Record.SupervisorID = nil
			broken = append(broken, victim)
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return broken
}
