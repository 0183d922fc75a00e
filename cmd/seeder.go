package cmd

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/organization"
	tenantDatamodel "github.com/frahmantamala/evaluation-sync/internal/core/datamodel/tenant"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed demo tenants and, for local development, a small organization directory to sync from.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()
		db, err := initGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		// the directory tables live in the directory database when syncing over SQL
		dirDB := db
		if cfg.Directory.Kind == internal.DirectoryKindSQL && cfg.Directory.DSN != "" && cfg.Directory.DSN != cfg.Database.Source {
			conn, err := sqlx.Connect("pgx", cfg.Directory.DSN)
			if err != nil {
				log.Fatalf("failed to connect to directory database: %v", err)
			}
			defer conn.Close()
			if dirDB, err = initGorm(conn); err != nil {
				log.Fatalf("failed to init directory gorm: %v", err)
			}
		}

		seed := demoDirectory()

		if clearData {
			for _, model := range []interface{}{&organization.Employee{}, &organization.Position{}, &organization.Department{}} {
				if err := dirDB.Where("tenant_id IN ?", seed.tenantIDs()).Delete(model).Error; err != nil {
					log.Fatalf("failed to clear %T: %v", model, err)
				}
			}
			fmt.Println("Cleared demo directory data")
		}

		for _, t := range seed.tenants {
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(t).Error; err != nil {
				log.Fatalf("failed to insert tenant %s: %v", t.ID, err)
			}
			fmt.Println("Seeded tenant:", t.ID)
		}

		if err := organization.ValidateDepartmentTree(seed.departments); err != nil {
			log.Fatalf("demo departments are invalid: %v", err)
		}

		if err := insertAll(dirDB, seed.departments, seed.positions, seed.employees); err != nil {
			log.Fatalf("failed to seed directory: %v", err)
		}
		fmt.Printf("Seeded %d departments, %d positions, %d employees\n",
			len(seed.departments), len(seed.positions), len(seed.employees))
	},
}

type directorySeed struct {
	tenants     []*tenantDatamodel.Tenant
	departments []organization.Department
	positions   []organization.Position
	employees   []organization.Employee
}

func (s directorySeed) tenantIDs() []string {
	ids := make([]string, 0, len(s.tenants))
	for _, t := range s.tenants {
		ids = append(ids, t.ID)
	}
	return ids
}

func insertAll(db *gorm.DB, departments []organization.Department, positions []organization.Position, employees []organization.Employee) error {
	return db.Transaction(func(tx *gorm.DB) error {
		onConflict := tx.Clauses(clause.OnConflict{DoNothing: true})
		if err := onConflict.Create(&departments).Error; err != nil {
			return fmt.Errorf("departments: %w", err)
		}
		if err := onConflict.Create(&positions).Error; err != nil {
			return fmt.Errorf("positions: %w", err)
		}
		if err := onConflict.Create(&employees).Error; err != nil {
			return fmt.Errorf("employees: %w", err)
		}
		return nil
	})
}

func demoDirectory() directorySeed {
	ptr := func(s string) *string { return &s }

	return directorySeed{
		tenants: []*tenantDatamodel.Tenant{
			{ID: "wei", Name: "Wei", Status: tenantDatamodel.StatusActive},
			{ID: "shu", Name: "Shu", Status: tenantDatamodel.StatusActive, MaxEmployees: 100},
		},
		departments: []organization.Department{
			{TenantID: "wei", ID: "D1", Name: "丞相府", Level: 1},
			{TenantID: "wei", ID: "D2", Name: "虎卫军", Level: 2, ParentID: ptr("D1")},
			{TenantID: "shu", ID: "D1", Name: "汉中王府", Level: 1},
		},
		positions: []organization.Position{
			{TenantID: "wei", ID: "P1", DepartmentID: "D1", Name: "董事长", ManagementLevel: organization.ManagementSenior, Level: 13},
			// declared middle but ranked 10; the directory reader clamps it to 9
			{TenantID: "wei", ID: "P2", DepartmentID: "D2", Name: "部门经理", ManagementLevel: organization.ManagementMiddle, Level: 10},
			{TenantID: "wei", ID: "P3", DepartmentID: "D2", Name: "部门经理", ManagementLevel: organization.ManagementMiddle, Level: 5},
			{TenantID: "shu", ID: "P1", DepartmentID: "D1", Name: "主公", ManagementLevel: organization.ManagementSenior, Level: 14},
			{TenantID: "shu", ID: "P2", DepartmentID: "D1", Name: "部门经理", ManagementLevel: organization.ManagementMiddle, Level: 8},
		},
		employees: []organization.Employee{
			{TenantID: "wei", ID: "E1", Name: "曹操", DepartmentID: "D1", PositionID: "P1", Active: true},
			{TenantID: "wei", ID: "E2", Name: "许褚", DepartmentID: "D2", PositionID: "P2", SupervisorID: ptr("E1"), Active: true},
			{TenantID: "wei", ID: "E3", Name: "张辽", DepartmentID: "D2", PositionID: "P3", SupervisorID: ptr("E1"), Active: true},
			{TenantID: "shu", ID: "E1", Name: "刘备", DepartmentID: "D1", PositionID: "P1", Active: true},
			{TenantID: "shu", ID: "E2", Name: "关羽", DepartmentID: "D1", PositionID: "P2", SupervisorID: ptr("E1"), Active: true},
		},
	}
}
