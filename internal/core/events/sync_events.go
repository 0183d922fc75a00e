package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeEmployeesReconciled    = "employees.reconciled"
	EventTypeRelationshipsGenerated = "relationships.generated"
	EventTypeSyncFailed             = "sync.failed"
)

type EmployeesReconciledEvent struct {
	BaseEvent
	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
	Created  int    `json:"created"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

func NewEmployeesReconciledEvent(tenantID, runID string, created, skipped, failed int) *EmployeesReconciledEvent {
	return &EmployeesReconciledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeEmployeesReconciled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"tenant_id": tenantID,
				"run_id":    runID,
				"created":   created,
				"skipped":   skipped,
				"failed":    failed,
			},
		},
		TenantID: tenantID,
		RunID:    runID,
		Created:  created,
		Skipped:  skipped,
		Failed:   failed,
	}
}

type RelationshipsGeneratedEvent struct {
	BaseEvent
	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
	Count    int    `json:"count"`
}

func NewRelationshipsGeneratedEvent(tenantID, runID string, count int) *RelationshipsGeneratedEvent {
	return &RelationshipsGeneratedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRelationshipsGenerated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"tenant_id": tenantID,
				"run_id":    runID,
				"count":     count,
			},
		},
		TenantID: tenantID,
		RunID:    runID,
		Count:    count,
	}
}

type SyncFailedEvent struct {
	BaseEvent
	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}

func NewSyncFailedEvent(tenantID, runID, code, reason string) *SyncFailedEvent {
	return &SyncFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSyncFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"tenant_id": tenantID,
				"run_id":    runID,
				"code":      code,
				"reason":    reason,
			},
		},
		TenantID: tenantID,
		RunID:    runID,
		Code:     code,
		Reason:   reason,
	}
}
