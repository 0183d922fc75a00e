package organization

import "time"

const (
	ManagementSenior = "senior"
	ManagementMiddle = "middle"
	ManagementJunior = "junior"
)

// Department, Position and Employee are the directory-of-record tables.
// Ids are only unique within a tenant, hence the composite keys.

type Department struct {
	TenantID  string    `gorm:"primaryKey;column:tenant_id"`
	ID        string    `gorm:"primaryKey;column:id"`
	Name      string    `gorm:"column:name;not null"`
	Level     int       `gorm:"column:level;default:1"`
	ParentID  *string   `gorm:"column:parent_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Department) TableName() string {
	return "org_departments"
}

func (d Department) OwnerTenantID() string { return d.TenantID }

type Position struct {
	TenantID        string    `gorm:"primaryKey;column:tenant_id"`
	ID              string    `gorm:"primaryKey;column:id"`
	DepartmentID    string    `gorm:"column:department_id;not null"`
	Name            string    `gorm:"column:name;not null"`
	ManagementLevel string    `gorm:"column:management_level;not null"`
	Level           int       `gorm:"column:level;not null;default:1"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Position) TableName() string {
	return "org_positions"
}

func (p Position) OwnerTenantID() string { return p.TenantID }

type Employee struct {
	TenantID     string    `gorm:"primaryKey;column:tenant_id"`
	ID           string    `gorm:"primaryKey;column:id"`
	Name         string    `gorm:"column:name;not null"`
	DepartmentID string    `gorm:"column:department_id;not null"`
	PositionID   string    `gorm:"column:position_id"`
	SupervisorID *string   `gorm:"column:supervisor_id"`
	Email        string    `gorm:"column:email"`
	Phone        string    `gorm:"column:phone"`
	Active       bool      `gorm:"column:active;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Employee) TableName() string {
	return "org_employees"
}

func (e Employee) OwnerTenantID() string { return e.TenantID }
