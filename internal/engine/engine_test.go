package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cargotrail/schemarun/internal/dialect"
	"github.com/cargotrail/schemarun/internal/history"
	"github.com/cargotrail/schemarun/internal/registry"
	"github.com/cargotrail/schemarun/internal/schema"
)

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	var st history.Store
	err := st.Connect(history.Config{
		Driver:       dialect.DriverSqlite,
		DriverConfig: &dialect.SqliteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")},
	})
	if err != nil {
		t.Fatalf("connect store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return &st
}

// countingOp counts invocations and optionally fails.
type countingOp struct {
	calls int
	err   error
}

func (o *countingOp) Execute(_ context.Context, _ *schema.DB) error {
	o.calls++
	return o.err
}

func mustReg(t *testing.T, defs ...registry.Definition) *registry.Registry {
	t.Helper()
	r := registry.New()
	if err := r.Add(defs...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return r
}

func itemByName(t *testing.T, report *Report, name string) Item {
	t.Helper()
	for _, it := range report.Items {
		if it.Name == name {
			return it
		}
	}
	t.Fatalf("report has no item %s: %+v", name, report.Items)
	return Item{}
}

func TestRunAll_AppliesInDependencyOrder(t *testing.T) {
	st := newTestStore(t)
	a := &countingOp{}
	b := &countingOp{}
	reg := mustReg(t,
		registry.Definition{Name: "b", Version: "1", DependsOn: []string{"a"}, Run: b},
		registry.Definition{Name: "a", Version: "1", Run: a},
	)

	report, err := New(reg, st).RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if len(report.Items) != 2 {
		t.Fatalf("report has %d items, want 2", len(report.Items))
	}
	if report.Items[0].Name != "a" || report.Items[1].Name != "b" {
		t.Fatalf("execution order = %s, %s; want a, b", report.Items[0].Name, report.Items[1].Name)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("calls a=%d b=%d, want 1/1", a.calls, b.calls)
	}
	if !report.OK() {
		t.Fatalf("report not OK: %+v", report.Items)
	}
	if report.RunID == "" {
		t.Fatal("report has no run id")
	}

	rec, err := st.Get(context.Background(), "a", "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil || rec.Status != history.StatusCompleted {
		t.Fatalf("ledger record for a = %+v", rec)
	}
	if rec.ExecutedAt == nil || rec.CompletedAt == nil {
		t.Fatalf("completed record missing timestamps: %+v", rec)
	}
}

func TestRunAll_SecondRunInvokesNothing(t *testing.T) {
	st := newTestStore(t)
	a := &countingOp{}
	b := &countingOp{}
	reg := mustReg(t,
		registry.Definition{Name: "a", Version: "1", Run: a},
		registry.Definition{Name: "b", Version: "1", DependsOn: []string{"a"}, Run: b},
	)
	eng := New(reg, st)

	first, err := eng.RunAll(context.Background())
	if err != nil {
		t.Fatalf("first RunAll: %v", err)
	}
	second, err := eng.RunAll(context.Background())
	if err != nil {
		t.Fatalf("second RunAll: %v", err)
	}

	fc, _, _ := first.Counts()
	sc, _, _ := second.Counts()
	if fc != sc {
		t.Fatalf("completed counts differ: first=%d second=%d", fc, sc)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("second run re-invoked operations: a=%d b=%d", a.calls, b.calls)
	}
	if second.Applied() != 0 {
		t.Fatalf("second run Applied() = %d, want 0", second.Applied())
	}
	for _, it := range second.Items {
		if !it.AlreadyApplied {
			t.Fatalf("item %s not marked already applied", it.Name)
		}
	}
}

func TestRunAll_FailureSkipsDependentsButNotIndependents(t *testing.T) {
	st := newTestStore(t)
	x := &countingOp{}
	y := &countingOp{err: errors.New("connection dropped")}
	z := &countingOp{}
	c := &countingOp{}
	reg := mustReg(t,
		registry.Definition{Name: "x", Version: "1", Run: x},
		registry.Definition{Name: "y", Version: "1", Run: y},
		registry.Definition{Name: "z", Version: "1", DependsOn: []string{"x", "y"}, Run: z},
		registry.Definition{Name: "c", Version: "1", Run: c},
	)

	report, err := New(reg, st).RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if it := itemByName(t, report, "x"); it.Status != history.StatusCompleted {
		t.Fatalf("x status = %s", it.Status)
	}
	yi := itemByName(t, report, "y")
	if yi.Status != history.StatusFailed || yi.Error != "connection dropped" {
		t.Fatalf("y item = %+v", yi)
	}
	zi := itemByName(t, report, "z")
	if zi.Status != history.StatusSkipped {
		t.Fatalf("z status = %s, want SKIPPED", zi.Status)
	}
	if zi.SkipReason == "" {
		t.Fatal("skipped item has no reason")
	}
	if z.calls != 0 {
		t.Fatalf("z was invoked %d times despite unmet dependency", z.calls)
	}
	// Independent migration still completes in the same run.
	if it := itemByName(t, report, "c"); it.Status != history.StatusCompleted {
		t.Fatalf("c status = %s", it.Status)
	}

	rec, err := st.Get(context.Background(), "y", "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != history.StatusFailed || rec.ErrorMessage != "connection dropped" {
		t.Fatalf("failed ledger record = %+v", rec)
	}
	zrec, err := st.Get(context.Background(), "z", "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if zrec.Status != history.StatusSkipped {
		t.Fatalf("skip not persisted: %+v", zrec)
	}
}

func TestRunAll_SkipCascadesTransitively(t *testing.T) {
	st := newTestStore(t)
	reg := mustReg(t,
		registry.Definition{Name: "a", Version: "1", Run: &countingOp{err: errors.New("boom")}},
		registry.Definition{Name: "b", Version: "1", DependsOn: []string{"a"}, Run: &countingOp{}},
		registry.Definition{Name: "c", Version: "1", DependsOn: []string{"b"}, Run: &countingOp{}},
	)

	report, err := New(reg, st).RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if it := itemByName(t, report, "b"); it.Status != history.StatusSkipped {
		t.Fatalf("b status = %s", it.Status)
	}
	// SKIPPED counts as not-COMPLETED for anything depending on it.
	if it := itemByName(t, report, "c"); it.Status != history.StatusSkipped {
		t.Fatalf("c status = %s", it.Status)
	}
}

func TestRunAll_ResolverErrorBeforeAnySideEffect(t *testing.T) {
	st := newTestStore(t)
	reg := mustReg(t,
		registry.Definition{Name: "a", Version: "1", DependsOn: []string{"missing"}, Run: &countingOp{}},
	)

	report, err := New(reg, st).RunAll(context.Background())
	if report != nil {
		t.Fatalf("expected nil report, got %+v", report)
	}
	var unknown *registry.UnknownDependencyError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}

	// The ledger table must not even exist yet.
	var n int
	probe := st.DB().QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, st.Table())
	if err := probe.Scan(&n); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if n != 0 {
		t.Fatal("ledger table created despite resolution failure")
	}
}

func TestRunAll_ReinvokesStuckRunningRecord(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.Ensure(ctx); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	// Simulate a crash: RUNNING row with no completed_at.
	started := time.Now().Add(-time.Hour)
	err := st.Upsert(ctx, history.Record{
		Name: "a", Version: "1", Status: history.StatusRunning, ExecutedAt: &started,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	a := &countingOp{}
	reg := mustReg(t, registry.Definition{Name: "a", Version: "1", Run: a})

	report, err := New(reg, st).RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if a.calls != 1 {
		t.Fatalf("stuck RUNNING migration not re-invoked: calls=%d", a.calls)
	}
	if it := itemByName(t, report, "a"); it.Status != history.StatusCompleted || it.AlreadyApplied {
		t.Fatalf("item = %+v", it)
	}
}

func TestRunAll_NewVersionRunsAgainOldRowRemains(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	v1 := &countingOp{}
	eng := New(mustReg(t, registry.Definition{Name: "a", Version: "1", Run: v1}), st)
	if _, err := eng.RunAll(ctx); err != nil {
		t.Fatalf("RunAll v1: %v", err)
	}

	v2 := &countingOp{}
	eng2 := New(mustReg(t, registry.Definition{Name: "a", Version: "2", Run: v2}), st)
	if _, err := eng2.RunAll(ctx); err != nil {
		t.Fatalf("RunAll v2: %v", err)
	}

	if v2.calls != 1 {
		t.Fatalf("new version not invoked: calls=%d", v2.calls)
	}
	old, err := st.Get(ctx, "a", "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if old == nil || old.Status != history.StatusCompleted {
		t.Fatalf("old version row lost: %+v", old)
	}
}

type blockingOp struct {
	started chan struct{}
}

func (o *blockingOp) Execute(ctx context.Context, _ *schema.DB) error {
	close(o.started)
	<-ctx.Done()
	return fmt.Errorf("interrupted: %w", ctx.Err())
}

func TestRunAll_CancellationLeavesRunningRow(t *testing.T) {
	st := newTestStore(t)
	op := &blockingOp{started: make(chan struct{})}
	reg := mustReg(t, registry.Definition{Name: "slow", Version: "1", Run: op})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-op.started
		cancel()
	}()

	report, err := New(reg, st).RunAll(ctx)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if report == nil {
		t.Fatal("expected partial report")
	}

	rec, gerr := st.Get(context.Background(), "slow", "1")
	if gerr != nil {
		t.Fatalf("Get: %v", gerr)
	}
	if rec == nil || rec.Status != history.StatusRunning {
		t.Fatalf("in-flight row = %+v, want RUNNING", rec)
	}
	if rec.CompletedAt != nil {
		t.Fatalf("RUNNING row has completed_at: %+v", rec)
	}
}

func TestRollback(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	aRun := &countingOp{}
	aBack := &countingOp{}
	bRun := &countingOp{}
	reg := mustReg(t,
		registry.Definition{Name: "a", Version: "1", Run: aRun, Rollback: aBack},
		registry.Definition{Name: "b", Version: "1", DependsOn: []string{"a"}, Run: bRun},
	)
	eng := New(reg, st)

	if _, err := eng.RunAll(ctx); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	// Refused while a dependent is still applied.
	if err := eng.Rollback(ctx, "a"); err == nil {
		t.Fatal("expected refusal while dependent b is applied")
	}

	// b has no rollback operation.
	if err := eng.Rollback(ctx, "b"); err == nil {
		t.Fatal("expected error for missing rollback operation")
	}

	// Clear b, then a rolls back and its row is deleted.
	if err := st.Delete(ctx, "b", "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := eng.Rollback(ctx, "a"); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if aBack.calls != 1 {
		t.Fatalf("rollback op calls = %d", aBack.calls)
	}
	rec, err := st.Get(ctx, "a", "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("row still present after rollback: %+v", rec)
	}

	// A later run re-applies.
	if _, err := eng.RunAll(ctx); err != nil {
		t.Fatalf("RunAll after rollback: %v", err)
	}
	if aRun.calls != 2 {
		t.Fatalf("a not re-applied after rollback: calls=%d", aRun.calls)
	}
}

func TestRollback_Unknown(t *testing.T) {
	st := newTestStore(t)
	eng := New(mustReg(t, registry.Definition{Name: "a", Version: "1", Run: &countingOp{}}), st)
	if err := eng.Rollback(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown migration")
	}
}

func TestRollback_NotCompleted(t *testing.T) {
	st := newTestStore(t)
	eng := New(mustReg(t, registry.Definition{
		Name: "a", Version: "1", Run: &countingOp{}, Rollback: &countingOp{},
	}), st)
	if err := eng.Rollback(context.Background(), "a"); err == nil {
		t.Fatal("expected error for never-applied migration")
	}
}

func TestRollback_FailureLeavesRowCompleted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	back := &countingOp{err: errors.New("cannot undo")}
	reg := mustReg(t, registry.Definition{Name: "a", Version: "1", Run: &countingOp{}, Rollback: back})
	eng := New(reg, st)

	if _, err := eng.RunAll(ctx); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if err := eng.Rollback(ctx, "a"); err == nil {
		t.Fatal("expected rollback failure")
	}
	rec, err := st.Get(ctx, "a", "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil || rec.Status != history.StatusCompleted {
		t.Fatalf("row after failed rollback = %+v, want COMPLETED", rec)
	}
}

func TestReportCounts(t *testing.T) {
	r := &Report{Items: []Item{
		{Name: "a", Status: history.StatusCompleted},
		{Name: "b", Status: history.StatusCompleted, AlreadyApplied: true},
		{Name: "c", Status: history.StatusFailed},
		{Name: "d", Status: history.StatusSkipped},
	}}
	completed, failed, skipped := r.Counts()
	if completed != 2 || failed != 1 || skipped != 1 {
		t.Fatalf("Counts = %d/%d/%d", completed, failed, skipped)
	}
	if r.OK() {
		t.Fatal("report with failures reported OK")
	}
	if r.Applied() != 1 {
		t.Fatalf("Applied = %d, want 1", r.Applied())
	}
}
