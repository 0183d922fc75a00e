package reconciliation

import (
	"time"

	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
)

type SyncResponse struct {
	*SyncOutcome
}

type EmployeeResponse struct {
	EmployeeID     string    `json:"employee_id"`
	Name           string    `json:"name"`
	DepartmentID   string    `json:"department_id,omitempty"`
	DepartmentName string    `json:"department_name,omitempty"`
	PositionID     string    `json:"position_id,omitempty"`
	PositionName   string    `json:"position_name,omitempty"`
	Title          string    `json:"title,omitempty"`
	RawLevel       string    `json:"raw_level,omitempty"`
	Level          int       `json:"level"`
	SupervisorID   *string   `json:"supervisor_id"`
	Email          string    `json:"email,omitempty"`
	SyncRunID      string    `json:"sync_run_id"`
	SyncedAt       time.Time `json:"synced_at"`
}

type EmployeesResponse struct {
	TenantID  string             `json:"tenant_id"`
	Employees []EmployeeResponse `json:"employees"`
}

type RunResponse struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Created    int        `json:"created"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	FirstError string     `json:"first_error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type RunsResponse struct {
	TenantID string        `json:"tenant_id"`
	Runs     []RunResponse `json:"runs"`
}

func ToEmployeeResponse(e evaluation.Employee) EmployeeResponse {
	return EmployeeResponse{
		EmployeeID:     e.EmployeeID,
		Name:           e.Name,
		DepartmentID:   e.DepartmentID,
		DepartmentName: e.DepartmentName,
		PositionID:     e.PositionID,
		PositionName:   e.PositionName,
		Title:          e.Title,
		RawLevel:       e.RawLevel,
		Level:          e.Level,
		SupervisorID:   e.SupervisorID,
		Email:          e.Email,
		SyncRunID:      e.SyncRunID,
		SyncedAt:       e.SyncedAt,
	}
}

func ToRunResponse(r evaluation.SyncRun) RunResponse {
	return RunResponse{
		ID:         r.ID,
		Status:     r.Status,
		Created:    r.Created,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		FirstError: r.FirstError,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
