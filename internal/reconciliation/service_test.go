package reconciliation_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
	tenantDatamodel "github.com/frahmantamala/evaluation-sync/internal/core/datamodel/tenant"
	"github.com/frahmantamala/evaluation-sync/internal/core/events"
	"github.com/frahmantamala/evaluation-sync/internal/directory"
	"github.com/frahmantamala/evaluation-sync/internal/level"
	"github.com/frahmantamala/evaluation-sync/internal/reconciliation"
	reconciliationPostgres "github.com/frahmantamala/evaluation-sync/internal/reconciliation/postgres"
	"github.com/frahmantamala/evaluation-sync/internal/relationship"
	relationshipPostgres "github.com/frahmantamala/evaluation-sync/internal/relationship/postgres"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
	tenancyPostgres "github.com/frahmantamala/evaluation-sync/internal/tenancy/postgres"
)

type employeeView struct {
	ID    string
	Name  string
	Level int
}

func viewOf(employees []evaluation.Employee) []employeeView {
	out := make([]employeeView, 0, len(employees))
	for _, e := range employees {
		out = append(out, employeeView{e.EmployeeID, e.Name, e.Level})
	}
	return out
}

func relPairs(rels []relationship.Relationship) [][2]string {
	out := make([][2]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, [2]string{r.EvaluatorID, r.EvalueeID})
	}
	return out
}

func scenario() []directory.EmployeeRecord {
	return []directory.EmployeeRecord{
		record("E1", "曹操", "董事长", "13"),
		record("E2", "许褚", "部门经理", "10"),
		record("E3", "张辽", "部门经理", "5"),
	}
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		tenants   tenancy.RepositoryAPI
		source    *fakeSource
		locker    *tenancy.LocalLocker
		recorder  *fakeRecorder
		publisher *fakePublisher
		service   *reconciliation.Service
		deps      reconciliation.Dependencies
	)

	employeesOf := func(tenantID string) []evaluation.Employee {
		var employees []evaluation.Employee
		Expect(db.Where("tenant_id = ?", tenantID).Order("employee_id").Find(&employees).Error).To(Succeed())
		return employees
	}

	runsOf := func(tenantID string) []evaluation.SyncRun {
		var runs []evaluation.SyncRun
		Expect(db.Where("tenant_id = ?", tenantID).Order("started_at").Find(&runs).Error).To(Succeed())
		return runs
	}

	countOf := func(model interface{}, tenantID string) int64 {
		var n int64
		Expect(db.Model(model).Where("tenant_id = ?", tenantID).Count(&n).Error).To(Succeed())
		return n
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		Expect(db.AutoMigrate(&tenantDatamodel.Tenant{})).To(Succeed())
		Expect(db.AutoMigrate(evaluation.All()...)).To(Succeed())

		tenants = tenancyPostgres.NewTenantRepository(db)
		for _, t := range []*tenantDatamodel.Tenant{
			{ID: "wei", Name: "Wei", Status: tenantDatamodel.StatusActive},
			{ID: "shu", Name: "Shu", Status: tenantDatamodel.StatusActive},
			{ID: "wu", Name: "Wu", Status: tenantDatamodel.StatusSuspended},
			{ID: "jin", Name: "Jin", Status: tenantDatamodel.StatusActive, MaxEmployees: 2},
		} {
			Expect(tenants.Create(ctx, t)).To(Succeed())
		}

		recorder = &fakeRecorder{}
		guard := tenancy.NewGuard(tenants, recorder, testLogger)
		Expect(guard.Register(db)).To(Succeed())

		policies, err := relationship.NewPolicies(relationship.DefaultPolicy())
		Expect(err).NotTo(HaveOccurred())

		source = newFakeSource()
		source.Set("wei", scenario()...)
		locker = tenancy.NewLocalLocker()
		publisher = &fakePublisher{}

		generator := relationship.NewService(
			relationshipPostgres.NewRelationshipRepository(db),
			guard, policies, locker, nil, nil, testLogger)

		deps = reconciliation.Dependencies{
			Guard:        guard,
			Source:       source,
			Normalizer:   level.Default(),
			Store:        reconciliationPostgres.NewStore(db),
			Generator:    generator,
			Locker:       locker,
			Publisher:    publisher,
			Recorder:     recorder,
			Logger:       testLogger,
			FetchTimeout: time.Second,
		}
		service = reconciliation.NewService(deps)
	})

	Describe("Sync", func() {
		It("imports the snapshot and pairs the chairman with both managers", func() {
			outcome, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())

			Expect(outcome.Fetched).To(Equal(3))
			Expect(outcome.FetchedAt).NotTo(BeZero())
			Expect(outcome.LevelsCorrected).To(Equal(2))
			Expect(outcome.Result.Created).To(Equal(3))
			Expect(outcome.Result.Skipped).To(BeZero())
			Expect(outcome.Result.Failed).To(BeZero())
			Expect(relPairs(outcome.Relationships)).To(Equal([][2]string{{"E1", "E2"}, {"E1", "E3"}}))

			Expect(viewOf(employeesOf("wei"))).To(Equal([]employeeView{
				{"E1", "曹操", 13},
				{"E2", "许褚", 9},
				{"E3", "张辽", 9},
			}))
			Expect(employeesOf("wei")[1].RawLevel).To(Equal("10"))
			Expect(countOf(&evaluation.Relationship{}, "wei")).To(Equal(int64(2)))
		})

		It("is idempotent for an unchanged snapshot", func() {
			first, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			before := viewOf(employeesOf("wei"))

			second, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())

			Expect(viewOf(employeesOf("wei"))).To(Equal(before))
			Expect(second.Relationships).To(Equal(first.Relationships))
			Expect(second.Result.Created).To(Equal(first.Result.Created))
			Expect(second.Result.RunID).NotTo(Equal(first.Result.RunID))
		})

		It("replaces the replica and clears downstream evaluation data", func() {
			_, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())

			task := evaluation.Task{TenantID: "wei", Name: "Q3 review"}
			Expect(db.Create(&task).Error).To(Succeed())
			assignment := evaluation.TaskAssignment{TenantID: "wei", TaskID: task.ID, EvaluatorID: "E1", EvalueeID: "E2"}
			Expect(db.Create(&assignment).Error).To(Succeed())
			Expect(db.Create(&evaluation.Result{TenantID: "wei", AssignmentID: assignment.ID, Score: 4}).Error).To(Succeed())

			source.Set("wei", record("E1", "曹操", "董事长", "13"), record("E4", "典韦", "部门经理", "7"))
			outcome, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())

			Expect(viewOf(employeesOf("wei"))).To(Equal([]employeeView{{"E1", "曹操", 13}, {"E4", "典韦", 9}}))
			Expect(relPairs(outcome.Relationships)).To(Equal([][2]string{{"E1", "E4"}}))
			Expect(countOf(&evaluation.Task{}, "wei")).To(BeZero())
			Expect(countOf(&evaluation.TaskAssignment{}, "wei")).To(BeZero())
			Expect(countOf(&evaluation.Result{}, "wei")).To(BeZero())
		})

		It("counts per-record failures and keeps the rest", func() {
			Expect(db.Exec(`CREATE TRIGGER reject_blocked BEFORE INSERT ON eval_employees
				WHEN NEW.employee_id = 'BLOCKED'
				BEGIN SELECT RAISE(ABORT, 'blocked by store'); END;`).Error).To(Succeed())

			inactive := record("E5", "Retired", "", "4")
			inactive.Active = boolPtr(false)
			source.Set("wei", append(scenario(),
				record("BLOCKED", "Stuck", "", "3"),
				record("E6", "", "", "3"),
				record("E2", "Duplicate", "", "3"),
				inactive,
			)...)

			outcome, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())

			result := outcome.Result
			Expect(result.Created).To(Equal(3))
			Expect(result.Failed).To(Equal(3))
			Expect(result.Skipped).To(Equal(1))

			failedIDs := []string{}
			for _, f := range result.Failures {
				failedIDs = append(failedIDs, f.EmployeeID)
				Expect(f.Err).To(MatchError(internal.ErrRecordImport))
			}
			Expect(failedIDs).To(ConsistOf("BLOCKED", "E6", "E2"))
			Expect(viewOf(employeesOf("wei"))).To(HaveLen(3))

			runs := runsOf("wei")
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].Status).To(Equal(evaluation.SyncRunSucceeded))
			Expect(runs[0].Failed).To(Equal(3))
			Expect(runs[0].FirstError).NotTo(BeEmpty())
		})

		It("aborts on a store failure and keeps the prior snapshot", func() {
			_, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			before := viewOf(employeesOf("wei"))

			Expect(db.Migrator().DropTable(&evaluation.Task{})).To(Succeed())
			source.Set("wei", record("E9", "New", "", "3"))

			outcome, err := service.Sync(ctx, "wei")
			Expect(err).To(MatchError(internal.ErrReconciliationAborted))
			Expect(outcome).To(BeNil())

			Expect(viewOf(employeesOf("wei"))).To(Equal(before))
			Expect(countOf(&evaluation.Relationship{}, "wei")).To(Equal(int64(2)))

			runs := runsOf("wei")
			Expect(runs).To(HaveLen(2))
			Expect(runs[1].Status).To(Equal(evaluation.SyncRunAborted))
			Expect(publisher.Types()).To(ContainElement(events.EventTypeSyncFailed))
		})

		It("reports an unavailable source and leaves the replica alone", func() {
			_, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			before := viewOf(employeesOf("wei"))

			source.err = errors.New("connection refused")
			_, err = service.Sync(ctx, "wei")
			Expect(err).To(MatchError(internal.ErrSourceUnavailable))
			Expect(viewOf(employeesOf("wei"))).To(Equal(before))

			runs := runsOf("wei")
			Expect(runs[len(runs)-1].Status).To(Equal(evaluation.SyncRunSourceUnavailable))
		})

		It("treats a fetch exceeding the timeout as an unavailable source", func() {
			_, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			before := viewOf(employeesOf("wei"))

			impatient := deps
			impatient.FetchTimeout = 50 * time.Millisecond
			slow := reconciliation.NewService(impatient)

			source.entered = make(chan struct{}, 1)
			source.gate = make(chan struct{})
			defer close(source.gate)

			_, err = slow.Sync(ctx, "wei")
			Expect(err).To(MatchError(internal.ErrSourceUnavailable))
			Expect(viewOf(employeesOf("wei"))).To(Equal(before))
			Expect(countOf(&evaluation.Relationship{}, "wei")).To(Equal(int64(2)))

			runs := runsOf("wei")
			Expect(runs).To(HaveLen(2))
			Expect(runs[1].Status).To(Equal(evaluation.SyncRunSourceUnavailable))
		})

		It("rejects a snapshot that belongs to another tenant", func() {
			source.tenantFor["wei"] = "shu"
			_, err := service.Sync(ctx, "wei")
			Expect(err).To(MatchError(internal.ErrCrossTenantAccess))
			Expect(employeesOf("wei")).To(BeEmpty())
			Expect(recorder.violations).To(Equal([]string{"wei"}))
		})

		It("fails fast when the tenant is already syncing", func() {
			source.entered = make(chan struct{}, 1)
			source.gate = make(chan struct{})

			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := service.Sync(ctx, "wei")
				done <- err
			}()
			Eventually(source.entered).Should(Receive())

			_, err := service.Sync(ctx, "wei")
			Expect(err).To(MatchError(internal.ErrSyncInProgress))

			close(source.gate)
			Eventually(done).Should(Receive(BeNil()))
			Expect(recorder.contention).To(Equal(1))
			Expect(runsOf("wei")).To(HaveLen(1))
		})

		It("leaves another tenant with the same ids untouched", func() {
			source.Set("shu", record("E1", "刘备", "主公", "14"), record("E2", "关羽", "部门经理", "8"))
			_, err := service.Sync(ctx, "shu")
			Expect(err).NotTo(HaveOccurred())
			shuBefore := viewOf(employeesOf("shu"))

			_, err = service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			source.Set("wei")
			_, err = service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())

			Expect(viewOf(employeesOf("shu"))).To(Equal(shuBefore))
			Expect(countOf(&evaluation.Relationship{}, "shu")).To(Equal(int64(1)))
		})

		It("handles an empty snapshot", func() {
			source.Set("wei")
			outcome, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Result.Created).To(BeZero())
			Expect(outcome.Relationships).NotTo(BeNil())
			Expect(outcome.Relationships).To(BeEmpty())
		})

		It("skips records beyond the tenant quota", func() {
			source.Set("jin", scenario()...)
			outcome, err := service.Sync(ctx, "jin")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Result.Created).To(Equal(2))
			Expect(outcome.Result.Skips).To(Equal([]reconciliation.RecordSkip{
				{Index: 2, EmployeeID: "E3", Reason: reconciliation.SkipQuotaExceeded},
			}))
		})

		It("stores supervisors without cycles", func() {
			a := record("E1", "曹操", "董事长", "13")
			a.SupervisorID = strPtr("E2")
			b := record("E2", "许褚", "部门经理", "10")
			b.SupervisorID = strPtr("E1")
			source.Set("wei", a, b)

			outcome, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Result.SupervisorCyclesBroken).To(Equal(1))

			employees := employeesOf("wei")
			Expect(employees[0].SupervisorID).To(BeNil())
			Expect(*employees[1].SupervisorID).To(Equal("E1"))
		})

		It("refuses suspended and unknown tenants without an audit row", func() {
			_, err := service.Sync(ctx, "wu")
			Expect(err).To(MatchError(internal.ErrTenantInactive))
			_, err = service.Sync(ctx, "qin")
			Expect(err).To(MatchError(internal.ErrTenantNotFound))
			Expect(runsOf("wu")).To(BeEmpty())
		})

		It("records metrics and events", func() {
			_, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.syncs).To(Equal([]syncRecord{{"wei", evaluation.SyncRunSucceeded, 3, 0, 0}}))
			Expect(publisher.Types()).To(Equal([]string{events.EventTypeEmployeesReconciled}))
		})
	})

	Describe("Reconcile", func() {
		It("replaces the replica from already normalized records", func() {
			result, err := service.Reconcile(ctx, "wei", normalized(scenario()...))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Created).To(Equal(3))
			Expect(result.TenantID).To(Equal("wei"))
			Expect(result.FinishedAt).NotTo(BeZero())

			employees, err := service.Employees(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			Expect(viewOf(employees)[1]).To(Equal(employeeView{"E2", "许褚", 9}))
		})

		It("refuses records of another tenant and leaves the replica alone", func() {
			_, err := service.Reconcile(ctx, "wei", normalized(scenario()...))
			Expect(err).NotTo(HaveOccurred())

			foreign := record("S1", "诸葛亮", "丞相", "13")
			foreign.TenantID = "shu"
			_, err = service.Reconcile(ctx, "wei", normalized(record("E4", "典韦", "", "4"), foreign))
			Expect(err).To(MatchError(internal.ErrCrossTenantAccess))

			Expect(viewOf(employeesOf("wei"))).To(HaveLen(3))
			Expect(employeesOf("shu")).To(BeEmpty())
			Expect(recorder.violations).To(Equal([]string{"wei"}))
		})

		It("accepts records carrying their own tenant id", func() {
			own := record("E1", "曹操", "董事长", "13")
			own.TenantID = "wei"
			result, err := service.Reconcile(ctx, "wei", normalized(own))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Created).To(Equal(1))
		})

		It("aborts when the context is already cancelled", func() {
			_, err := service.Reconcile(ctx, "wei", normalized(scenario()...))
			Expect(err).NotTo(HaveOccurred())

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err = service.Reconcile(cancelled, "wei", normalized(record("E9", "New", "", "3")))
			Expect(err).To(HaveOccurred())
			Expect(viewOf(employeesOf("wei"))).To(HaveLen(3))
		})
	})

	Describe("Runs", func() {
		It("lists the newest audit rows first", func() {
			_, err := service.Sync(ctx, "wei")
			Expect(err).NotTo(HaveOccurred())
			source.err = errors.New("down")
			_, _ = service.Sync(ctx, "wei")

			runs, err := service.Runs(ctx, "wei", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(2))
			Expect(runs[0].Status).To(Equal(evaluation.SyncRunSourceUnavailable))
		})
	})
})
