package tenant

import "time"

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusExpired   = "expired"
)

type Tenant struct {
	ID             string     `gorm:"primaryKey;column:id"`
	Name           string     `gorm:"column:name;not null"`
	Status         string     `gorm:"column:status;not null;default:active"`
	MaxUsers       int        `gorm:"column:max_users;default:0"`
	MaxDepartments int        `gorm:"column:max_departments;default:0"`
	MaxEmployees   int        `gorm:"column:max_employees;default:0"`
	ExpiresAt      *time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// IsSyncable reports whether the tenant's children may take part in a sync
// at the given instant. Suspension and expiry both invalidate them.
func (t *Tenant) IsSyncable(now time.Time) bool {
	if t.Status != StatusActive {
		return false
	}
	if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
		return false
	}
	return true
}
