// Package reconciliation replaces a tenant's employee replica with a fresh
// directory snapshot. Replacement is all or nothing at the store level and
// tolerant of individual bad records.
package reconciliation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
	"github.com/frahmantamala/evaluation-sync/internal/directory"
	"github.com/frahmantamala/evaluation-sync/internal/relationship"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
)

const (
	SkipInactive      = "inactive"
	SkipQuotaExceeded = "quota_exceeded"
)

// NormalizedRecord is a snapshot record with its corrected level.
type NormalizedRecord struct {
	directory.EmployeeRecord
	NormalizedLevel int
	// LevelCorrected is set when a title rule overrode the raw level.
	LevelCorrected bool
}

// RecordSkip is a record deliberately left out of the replica.
type RecordSkip struct {
	Index      int    `json:"index"`
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}

// RecordFailure is a record that could not be imported.
type RecordFailure struct {
	Index      int    `json:"index"`
	EmployeeID string `json:"employee_id"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// Result summarizes one replacement of a tenant replica.
type Result struct {
	RunID                  string          `json:"run_id"`
	TenantID               string          `json:"tenant_id"`
	Created                int             `json:"created"`
	Skipped                int             `json:"skipped"`
	Failed                 int             `json:"failed"`
	Skips                  []RecordSkip    `json:"skips,omitempty"`
	Failures               []RecordFailure `json:"failures,omitempty"`
	SupervisorCyclesBroken int             `json:"supervisor_cycles_broken"`
	StartedAt              time.Time       `json:"started_at"`
	FinishedAt             time.Time       `json:"finished_at"`
}

// FirstError is the first per-record failure message, if any.
func (r *Result) FirstError() string {
	if len(r.Failures) == 0 {
		return ""
	}
	return r.Failures[0].Message
}

// SyncOutcome is what a full fetch, reconcile and generate run produced.
type SyncOutcome struct {
	Result        *Result                     `json:"result"`
	Relationships []relationship.Relationship `json:"relationships"`
	Fetched       int                         `json:"fetched"`
	Pages         int                         `json:"pages"`
	FetchedAt     time.Time                   `json:"fetched_at"`
	// LevelsCorrected counts records whose level came from a title rule.
	LevelsCorrected int `json:"levels_corrected"`
}

// AfterReplace runs inside the replace transaction with the rows that were
// imported. An error aborts the whole replacement.
type AfterReplace func(ctx context.Context, tx *gorm.DB, employees []evaluation.Employee) error

type ReplaceOptions struct {
	RunID        string
	At           time.Time
	MaxEmployees int
	After        AfterReplace
}

// StoreAPI is the evaluation store the engine writes.
type StoreAPI interface {
	ReplaceEmployees(ctx context.Context, scope *tenancy.Scope, plan Plan, opts ReplaceOptions) (*Result, error)
	ListEmployees(ctx context.Context, scope *tenancy.Scope) ([]evaluation.Employee, error)
	RecordRun(ctx context.Context, run *evaluation.SyncRun) error
	ListRuns(ctx context.Context, scope *tenancy.Scope, limit int) ([]evaluation.SyncRun, error)
}

// Generator rebuilds relationships inside the replace transaction.
type Generator interface {
	ReplaceInTx(ctx context.Context, tx *gorm.DB, scope *tenancy.Scope, runID string, employees []evaluation.Employee) ([]relationship.Relationship, error)
	Announce(ctx context.Context, tenantID, runID string, count int)
}

// Recorder receives sync metrics. Optional.
type Recorder interface {
	RecordSync(tenantID, status string, created, skipped, failed int, took time.Duration)
	RecordLockContention(tenantID string)
}

// ToEmployee maps a record onto the replica row.
func ToEmployee(tenantID, runID string, at time.Time, r NormalizedRecord) evaluation.Employee {
	return evaluation.Employee{
		TenantID:       tenantID,
		EmployeeID:     r.ID,
		Name:           r.Name,
		DepartmentID:   r.DepartmentID,
		DepartmentName: r.DepartmentName,
		PositionID:     r.PositionID,
		PositionName:   r.PositionName,
		Title:          r.EffectiveTitle(),
		RawLevel:       string(r.Level),
		Level:          r.NormalizedLevel,
		SupervisorID:   r.SupervisorID,
		Email:          r.Email,
		Phone:          r.Phone,
		Active:         true,
		SyncRunID:      runID,
		SyncedAt:       at,
	}
}
