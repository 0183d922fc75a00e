// Package directory fetches the authoritative employee snapshot of one
// tenant from the org directory-of-record.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/frahmantamala/evaluation-sync/internal"
)

// RawLevel is the level exactly as the directory delivered it. Some
// deployments send numbers, others strings, some nothing.
type RawLevel string

func (r *RawLevel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RawLevel(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("level: %w", err)
	}
	*r = RawLevel(n.String())
	return nil
}

// EmployeeRecord is one employee as the directory delivers it.
type EmployeeRecord struct {
	TenantID       string   `json:"tenant_id,omitempty" db:"tenant_id"`
	ID             string   `json:"id" db:"id" validate:"required,max=64,printascii"`
	Name           string   `json:"name" db:"name" validate:"required,max=255"`
	DepartmentID   string   `json:"department_id" db:"department_id" validate:"max=64"`
	DepartmentName string   `json:"department_name" db:"department_name"`
	PositionID     string   `json:"position_id" db:"position_id" validate:"max=64"`
	PositionName   string   `json:"position_name" db:"position_name"`
	Title          string   `json:"title" db:"title"`
	Level          RawLevel `json:"level" db:"raw_level"`
	SupervisorID   *string  `json:"supervisor_id,omitempty" db:"supervisor_id"`
	Email          string   `json:"email" db:"email" validate:"omitempty,email"`
	Phone          string   `json:"phone" db:"phone"`
	Active         *bool    `json:"active,omitempty" db:"active"`
}

// IsActive treats a missing flag as active.
func (r EmployeeRecord) IsActive() bool {
	return r.Active == nil || *r.Active
}

// EffectiveTitle falls back to the position name when no title was sent.
func (r EmployeeRecord) EffectiveTitle() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return r.PositionName
}

var recordValidator = validator.New()

// Validate checks the fields an import cannot do without.
func (r EmployeeRecord) Validate() error {
	if err := recordValidator.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			out := make([]internal.ValidationError, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				out = append(out, internal.ValidationError{
					Field:   fe.Field(),
					Message: fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()),
					Code:    fe.Tag(),
				})
			}
			return internal.NewValidationFieldErrors(out)
		}
		return err
	}
	if r.SupervisorID != nil && *r.SupervisorID == r.ID {
		return internal.NewValidationError("employee cannot supervise themselves", internal.ErrCodeValidationFailed)
	}
	return nil
}

// Snapshot is one complete, immutable read of a tenant's employees.
type Snapshot struct {
	tenantID  string
	records   []EmployeeRecord
	fetchedAt time.Time
	pages     int
}

func NewSnapshot(tenantID string, records []EmployeeRecord, pages int, fetchedAt time.Time) Snapshot {
	copied := make([]EmployeeRecord, len(records))
	copy(copied, records)
	return Snapshot{tenantID: tenantID, records: copied, fetchedAt: fetchedAt, pages: pages}
}

func (s Snapshot) TenantID() string     { return s.tenantID }
func (s Snapshot) FetchedAt() time.Time { return s.fetchedAt }
func (s Snapshot) Pages() int           { return s.pages }
func (s Snapshot) Len() int             { return len(s.records) }

// Records returns a copy in delivery order.
func (s Snapshot) Records() []EmployeeRecord {
	out := make([]EmployeeRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Source delivers complete snapshots. A failed Fetch returns no records;
// calling it again starts over.
type Source interface {
	Fetch(ctx context.Context, tenantID string) (Snapshot, error)
}

// checkTenant fails when the directory tagged a record with another tenant.
func checkTenant(tenantID string, records []EmployeeRecord) error {
	for _, r := range records {
		if r.TenantID != "" && r.TenantID != tenantID {
			return internal.ErrCrossTenantAccess.WithMessage(
				"directory returned employee %s of tenant %s for tenant %s", r.ID, r.TenantID, tenantID)
		}
	}
	return nil
}

// checkDuplicates rejects snapshots that deliver the same id twice, which
// would mean pages shifted under us.
func checkDuplicates(records []EmployeeRecord) error {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("employee id %s delivered twice", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

type retryingSource struct {
	source   Source
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// WithRetry restarts failed fetches from scratch up to attempts extra times.
// Only SOURCE_UNAVAILABLE failures are retried.
func WithRetry(source Source, attempts int, backoff time.Duration, logger *slog.Logger) Source {
	if attempts <= 0 {
		return source
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &retryingSource{source: source, attempts: attempts, backoff: backoff, logger: logger}
}

func (r *retryingSource) Fetch(ctx context.Context, tenantID string) (Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= r.attempts; attempt++ {
		if attempt > 0 {
			wait := r.backoff * time.Duration(1<<(attempt-1))
			r.logger.Warn("retrying employee snapshot fetch",
				"tenant_id", tenantID,
				"attempt", attempt,
				"wait", wait,
				"error", lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Snapshot{}, internal.ErrSourceUnavailable.WithCause(ctx.Err())
			}
		}

		snap, err := r.source.Fetch(ctx, tenantID)
		if err == nil {
			return snap, nil
		}
		if !internal.HasCode(err, internal.ErrCodeSourceUnavailable) {
			return Snapshot{}, err
		}
		lastErr = err
	}
	return Snapshot{}, lastErr
}

func unavailable(tenantID string, err error) error {
	return internal.ErrSourceUnavailable.
		WithMessage("employee snapshot for tenant %s unavailable", tenantID).
		WithCause(err)
}
