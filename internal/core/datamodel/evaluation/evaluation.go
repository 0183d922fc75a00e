package evaluation

import "time"

// Employee is the evaluation subsystem's replica of a directory employee.
// Position and department names are a cache refreshed on every sync.
type Employee struct {
	ID             int64     `gorm:"primaryKey"`
	TenantID       string    `gorm:"column:tenant_id;not null;uniqueIndex:idx_eval_employees_tenant_employee"`
	EmployeeID     string    `gorm:"column:employee_id;not null;uniqueIndex:idx_eval_employees_tenant_employee"`
	Name           string    `gorm:"column:name;not null"`
	DepartmentID   string    `gorm:"column:department_id"`
	DepartmentName string    `gorm:"column:department_name"`
	PositionID     string    `gorm:"column:position_id"`
	PositionName   string    `gorm:"column:position_name"`
	Title          string    `gorm:"column:title"`
	RawLevel       string    `gorm:"column:raw_level"`
	Level          int       `gorm:"column:level;not null"`
	SupervisorID   *string   `gorm:"column:supervisor_id"`
	Email          string    `gorm:"column:email"`
	Phone          string    `gorm:"column:phone"`
	Active         bool      `gorm:"column:active;default:true"`
	SyncRunID      string    `gorm:"column:sync_run_id"`
	SyncedAt       time.Time `gorm:"column:synced_at"`
}

func (Employee) TableName() string {
	return "eval_employees"
}

func (e Employee) OwnerTenantID() string { return e.TenantID }

type Task struct {
	ID        int64     `gorm:"primaryKey"`
	TenantID  string    `gorm:"column:tenant_id;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Status    string    `gorm:"column:status;default:draft"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Task) TableName() string {
	return "eval_tasks"
}

func (t Task) OwnerTenantID() string { return t.TenantID }

type TaskAssignment struct {
	ID          int64  `gorm:"primaryKey"`
	TenantID    string `gorm:"column:tenant_id;not null;index"`
	TaskID      int64  `gorm:"column:task_id;not null"`
	EvaluatorID string `gorm:"column:evaluator_id;not null"`
	EvalueeID   string `gorm:"column:evaluee_id;not null"`
}

func (TaskAssignment) TableName() string {
	return "eval_task_assignments"
}

func (a TaskAssignment) OwnerTenantID() string { return a.TenantID }

type Result struct {
	ID           int64     `gorm:"primaryKey"`
	TenantID     string    `gorm:"column:tenant_id;not null;index"`
	AssignmentID int64     `gorm:"column:assignment_id;not null"`
	Score        float64   `gorm:"column:score"`
	Comment      string    `gorm:"column:comment"`
	SubmittedAt  time.Time `gorm:"column:submitted_at"`
}

func (Result) TableName() string {
	return "eval_results"
}

func (r Result) OwnerTenantID() string { return r.TenantID }

type Relationship struct {
	ID          int64     `gorm:"primaryKey"`
	TenantID    string    `gorm:"column:tenant_id;not null;uniqueIndex:idx_eval_relationships_pair"`
	EvaluatorID string    `gorm:"column:evaluator_id;not null;uniqueIndex:idx_eval_relationships_pair"`
	EvalueeID   string    `gorm:"column:evaluee_id;not null;uniqueIndex:idx_eval_relationships_pair"`
	RunID       string    `gorm:"column:run_id"`
	GeneratedAt time.Time `gorm:"column:generated_at"`
}

func (Relationship) TableName() string {
	return "eval_relationships"
}

func (r Relationship) OwnerTenantID() string { return r.TenantID }

const (
	SyncRunSucceeded         = "succeeded"
	SyncRunAborted           = "aborted"
	SyncRunSourceUnavailable = "source_unavailable"
)

// SyncRun is the audit trail of reconciliation attempts. It is written
// outside the replace transaction so aborted runs stay visible.
type SyncRun struct {
	ID         string     `gorm:"primaryKey;column:id"`
	TenantID   string     `gorm:"column:tenant_id;not null;index"`
	Status     string     `gorm:"column:status;not null"`
	Created    int        `gorm:"column:created"`
	Skipped    int        `gorm:"column:skipped"`
	Failed     int        `gorm:"column:failed"`
	FirstError string     `gorm:"column:first_error"`
	StartedAt  time.Time  `gorm:"column:started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
}

func (SyncRun) TableName() string {
	return "eval_sync_runs"
}

func (r SyncRun) OwnerTenantID() string { return r.TenantID }

// All lists the evaluation-store models, children before parents, which is
// also the order the replace transaction deletes them in.
func All() []interface{} {
	return []interface{}{
		&Result{},
		&TaskAssignment{},
		&Task{},
		&Relationship{},
		&Employee{},
		&SyncRun{},
	}
}
