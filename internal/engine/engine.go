// Package engine drives the resolved migration order against the history
// ledger: it skips satisfied work, persists RUNNING before each invocation,
// isolates per-migration failures, and cascades skips to dependents.
package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cargotrail/schemarun/internal/common"
	"github.com/cargotrail/schemarun/internal/history"
	"github.com/cargotrail/schemarun/internal/registry"
	"github.com/cargotrail/schemarun/internal/schema"
)

// Engine executes a registry against a connected history store. Execution is
// strictly sequential: later migrations may depend on schema state produced
// by earlier ones.
type Engine struct {
	registry *registry.Registry
	store    *history.Store
}

// New binds a registry to a connected history store.
func New(reg *registry.Registry, st *history.Store) *Engine {
	return &Engine{registry: reg, store: st}
}

func newRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// RunAll resolves the registry and executes every pending migration in order.
// Resolution errors (unknown dependency, cycle) are fatal and surface before
// any side effect. Operation failures are recorded per item and do not abort
// the run; only dependents of a failed item are skipped. On context
// cancellation mid-operation the in-flight row is left RUNNING as an
// operational signal and the partial report is returned with the error.
func (e *Engine) RunAll(ctx context.Context) (*Report, error) {
	order, err := e.registry.Resolve()
	if err != nil {
		return nil, err
	}

	if err := e.store.Ensure(ctx); err != nil {
		return nil, err
	}

	report := &Report{RunID: newRunID(), StartedAt: time.Now()}
	logger := common.GetLogger().WithComponent("engine").WithRun(report.RunID)
	logger.Info("migration run started", "migrations", len(order))

	db := schema.New(e.store.DB(), e.store.Driver())
	final := make(map[string]history.Status, len(order))

	for _, def := range order {
		item, err := e.runOne(ctx, logger, db, def, final)
		if err != nil {
			report.FinishedAt = time.Now()
			return report, err
		}
		report.Items = append(report.Items, item)
		final[def.Name] = item.Status

		if item.Status == history.StatusRunning && ctx.Err() != nil {
			// Cancelled mid-operation: the row stays RUNNING for operators.
			report.FinishedAt = time.Now()
			logger.Warn("run cancelled, leaving in-flight migration RUNNING",
				"migration", def.Name)
			return report, fmt.Errorf("run cancelled during %s: %w", def.Name, ctx.Err())
		}
	}

	report.FinishedAt = time.Now()
	completed, failed, skipped := report.Counts()
	logger.Info("migration run finished",
		"completed", completed, "failed", failed, "skipped", skipped,
		"applied", report.Applied())
	return report, nil
}

func (e *Engine) runOne(ctx context.Context, logger *common.Logger, db *schema.DB,
	def registry.Definition, final map[string]history.Status) (Item, error) {
	item := Item{Name: def.Name, Version: def.Version}
	mlog := logger.WithMigration(def.Name, def.Version)

	rec, err := e.store.Get(ctx, def.Name, def.Version)
	if err != nil {
		return item, err
	}
	if rec != nil && rec.Status == history.StatusCompleted {
		// Already satisfied by a prior run: contributes COMPLETED to
		// dependents without invoking the operation again.
		item.Status = history.StatusCompleted
		item.AlreadyApplied = true
		mlog.Debug("already applied, skipping invocation")
		return item, nil
	}

	if dep, status, ok := unmetDependency(def, final); ok {
		now := time.Now()
		skipRec := history.Record{
			Name:        def.Name,
			Version:     def.Version,
			Status:      history.StatusSkipped,
			ExecutedAt:  &now,
			CompletedAt: &now,
		}
		if err := e.store.Upsert(ctx, skipRec); err != nil {
			return item, err
		}
		item.Status = history.StatusSkipped
		item.SkipReason = fmt.Sprintf("dependency %s is %s", dep, statusWord(status))
		mlog.Warn("migration skipped", "reason", item.SkipReason)
		return item, nil
	}

	started := time.Now()
	if err := e.store.Upsert(ctx, history.Record{
		Name:       def.Name,
		Version:    def.Version,
		Status:     history.StatusRunning,
		ExecutedAt: &started,
	}); err != nil {
		return item, err
	}

	mlog.Info("migration running", "description", def.Description)
	opErr := def.Run.Execute(ctx, db)
	finished := time.Now()
	item.DurationMS = finished.Sub(started).Milliseconds()

	if opErr != nil && ctx.Err() != nil {
		// Leave the RUNNING row in place; RunAll stops the run.
		item.Status = history.StatusRunning
		item.Error = opErr.Error()
		return item, nil
	}

	if opErr != nil {
		item.Status = history.StatusFailed
		item.Error = opErr.Error()
		mlog.Error("migration failed", "error", opErr, "duration_ms", item.DurationMS)
		if err := e.store.Upsert(ctx, history.Record{
			Name:         def.Name,
			Version:      def.Version,
			Status:       history.StatusFailed,
			ErrorMessage: opErr.Error(),
			ExecutedAt:   &started,
			CompletedAt:  &finished,
			DurationMS:   item.DurationMS,
		}); err != nil {
			return item, err
		}
		return item, nil
	}

	item.Status = history.StatusCompleted
	mlog.Info("migration completed", "duration_ms", item.DurationMS)
	if err := e.store.Upsert(ctx, history.Record{
		Name:        def.Name,
		Version:     def.Version,
		Status:      history.StatusCompleted,
		ExecutedAt:  &started,
		CompletedAt: &finished,
		DurationMS:  item.DurationMS,
	}); err != nil {
		return item, err
	}
	return item, nil
}

// unmetDependency returns the first dependency of def whose status in this
// run is not COMPLETED. Resolution guarantees every dependency was processed
// earlier in the order, so absence from final cannot happen for valid graphs.
func unmetDependency(def registry.Definition, final map[string]history.Status) (string, history.Status, bool) {
	for _, dep := range def.DependsOn {
		if st, ok := final[dep]; !ok || st != history.StatusCompleted {
			return dep, final[dep], true
		}
	}
	return "", "", false
}

func statusWord(s history.Status) string {
	switch s {
	case history.StatusFailed:
		return "failed"
	case history.StatusSkipped:
		return "skipped"
	case history.StatusRunning:
		return "still running"
	case "":
		return "not recorded"
	default:
		return "not completed"
	}
}

// Rollback runs the inverse operation of one completed migration and removes
// its ledger row so a later run re-applies it. It refuses while any direct
// dependent is still applied; a failed rollback leaves the row COMPLETED.
func (e *Engine) Rollback(ctx context.Context, name string) error {
	def, ok := e.registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown migration: %s", name)
	}
	if def.Rollback == nil {
		return fmt.Errorf("migration %s has no rollback operation", name)
	}

	if err := e.store.Ensure(ctx); err != nil {
		return err
	}

	rec, err := e.store.Get(ctx, def.Name, def.Version)
	if err != nil {
		return err
	}
	if rec == nil || rec.Status != history.StatusCompleted {
		return fmt.Errorf("migration %s@%s is not completed, nothing to roll back", def.Name, def.Version)
	}

	for _, depName := range e.registry.Dependents(def.Name) {
		depDef, ok := e.registry.Get(depName)
		if !ok {
			continue
		}
		depRec, err := e.store.Get(ctx, depDef.Name, depDef.Version)
		if err != nil {
			return err
		}
		if depRec != nil && depRec.Status == history.StatusCompleted {
			return fmt.Errorf("cannot roll back %s: dependent migration %s is still applied", def.Name, depName)
		}
	}

	logger := common.GetLogger().WithComponent("engine").WithMigration(def.Name, def.Version)
	logger.Info("rolling back migration")

	db := schema.New(e.store.DB(), e.store.Driver())
	if err := def.Rollback.Execute(ctx, db); err != nil {
		return fmt.Errorf("rollback of %s failed: %w", def.Name, err)
	}

	if err := e.store.Delete(ctx, def.Name, def.Version); err != nil {
		return err
	}
	logger.Info("rollback completed")
	return nil
}
