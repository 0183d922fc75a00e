package tenancy

import (
	"reflect"

	"gorm.io/gorm"

	"github.com/frahmantamala/evaluation-sync/internal"
)

// Register installs gorm callbacks enforcing tenant isolation on every
// statement whose context is bound to a tenant:
//   - creates must carry the bound tenant id,
//   - updates and deletes may not target a model of another tenant,
//   - query results may not contain rows of another tenant.
func (g *Guard) Register(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("tenancy:create", g.checkWrite(true)); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenancy:update", g.checkWrite(false)); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenancy:delete", g.checkWrite(false)); err != nil {
		return err
	}
	return db.Callback().Query().After("gorm:query").Register("tenancy:query", g.checkWrite(false))
}

// checkWrite returns a callback; strict treats an empty owner as foreign.
// Non-strict callbacks accept zero models used only to name the table.
func (g *Guard) checkWrite(strict bool) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Error != nil || db.Statement == nil || db.Statement.Context == nil {
			return
		}
		bound := internal.TenantIDFromContext(db.Statement.Context)
		if bound == "" {
			return
		}

		rv := db.Statement.ReflectValue
		if !rv.IsValid() {
			return
		}

		check := func(v reflect.Value) bool {
			owner, ok := ownerOf(v)
			if !ok {
				return true
			}
			if owner == bound || (!strict && owner == "") {
				return true
			}
			_ = db.AddError(g.violation(db.Statement.Context, bound, owner, "table "+db.Statement.Table))
			return false
		}

		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				if !check(rv.Index(i)) {
					return
				}
			}
		default:
			check(rv)
		}
	}
}

func ownerOf(v reflect.Value) (string, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if !v.IsValid() || !v.CanInterface() {
		return "", false
	}
	if o, ok := v.Interface().(Owned); ok {
		return o.OwnerTenantID(), true
	}
	return "", false
}
