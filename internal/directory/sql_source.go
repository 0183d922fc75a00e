package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/evaluation-sync/internal/level"
)

const snapshotQuery = `
SELECT e.tenant_id,
       e.id,
       e.name,
       e.department_id,
       COALESCE(d.name, '')             AS department_name,
       COALESCE(e.position_id, '')      AS position_id,
       COALESCE(p.name, '')             AS position_name,
       COALESCE(p.management_level, '') AS management_level,
       COALESCE(p.level, 0)             AS position_level,
       e.supervisor_id,
       COALESCE(e.email, '')            AS email,
       COALESCE(e.phone, '')            AS phone,
       e.active
FROM org_employees e
LEFT JOIN org_departments d ON d.tenant_id = e.tenant_id AND d.id = e.department_id
LEFT JOIN org_positions p ON p.tenant_id = e.tenant_id AND p.id = e.position_id
WHERE e.tenant_id = ?
ORDER BY e.id`

type snapshotRow struct {
	TenantID        string  `db:"tenant_id"`
	ID              string  `db:"id"`
	Name            string  `db:"name"`
	DepartmentID    string  `db:"department_id"`
	DepartmentName  string  `db:"department_name"`
	PositionID      string  `db:"position_id"`
	PositionName    string  `db:"position_name"`
	ManagementLevel string  `db:"management_level"`
	PositionLevel   int     `db:"position_level"`
	SupervisorID    *string `db:"supervisor_id"`
	Email           string  `db:"email"`
	Phone           string  `db:"phone"`
	Active          bool    `db:"active"`
}

// SQLSource reads the directory-of-record tables directly. Position levels
// that disagree with their management band are logged and clamped.
type SQLSource struct {
	db      *sqlx.DB
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewSQLSource(db *sqlx.DB, timeout time.Duration, logger *slog.Logger) *SQLSource {
	return &SQLSource{db: db, timeout: timeout, logger: logger, now: time.Now}
}

func (s *SQLSource) Fetch(ctx context.Context, tenantID string) (Snapshot, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(snapshotQuery), tenantID); err != nil {
		s.logger.Error("directory query failed", "tenant_id", tenantID, "error", err)
		return Snapshot{}, unavailable(tenantID, fmt.Errorf("query employees: %w", err))
	}

	records := make([]EmployeeRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, s.toRecord(row))
	}

	if err := checkTenant(tenantID, records); err != nil {
		return Snapshot{}, err
	}

	s.logger.Info("employee snapshot read from directory tables",
		"tenant_id", tenantID,
		"records", len(records))

	return NewSnapshot(tenantID, records, 1, s.now()), nil
}

func (s *SQLSource) toRecord(row snapshotRow) EmployeeRecord {
	lvl := row.PositionLevel
	if row.ManagementLevel != "" {
		if err := level.CheckPosition(row.ManagementLevel, lvl); err != nil {
			corrected := level.Correct(row.ManagementLevel, lvl)
			s.logger.Warn("position level disagrees with management band",
				"tenant_id", row.TenantID,
				"position_id", row.PositionID,
				"error", err,
				"corrected_level", corrected)
			lvl = corrected
		}
	}

	var raw RawLevel
	if lvl > 0 {
		raw = RawLevel(strconv.Itoa(lvl))
	}

	active := row.Active
	return EmployeeRecord{
		TenantID:       row.TenantID,
		ID:             row.ID,
		Name:           row.Name,
		DepartmentID:   row.DepartmentID,
		DepartmentName: row.DepartmentName,
		PositionID:     row.PositionID,
		PositionName:   row.PositionName,
		Title:          row.PositionName,
		Level:          raw,
		SupervisorID:   row.SupervisorID,
		Email:          row.Email,
		Phone:          row.Phone,
		Active:         &active,
	}
}
