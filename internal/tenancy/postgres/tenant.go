package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/evaluation-sync/internal"
	tenantDatamodel "github.com/frahmantamala/evaluation-sync/internal/core/datamodel/tenant"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) tenancy.RepositoryAPI {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenantDatamodel.Tenant, error) {
	var t tenantDatamodel.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTenantNotFound.WithMessage("tenant %s not found", id)
		}
		return nil, err
	}
	return &t, nil
}

// ListSyncable returns active, unexpired tenants ordered by id.
func (r *TenantRepository) ListSyncable(ctx context.Context, now time.Time) ([]*tenantDatamodel.Tenant, error) {
	var tenants []*tenantDatamodel.Tenant
	err := r.db.WithContext(ctx).
		Where("status = ?", tenantDatamodel.StatusActive).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("id ASC").
		Find(&tenants).Error
	return tenants, err
}

func (r *TenantRepository) Create(ctx context.Context, t *tenantDatamodel.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TenantRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&tenantDatamodel.Tenant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrTenantNotFound.WithMessage("tenant %s not found", id)
	}
	return nil
}
