// Package engine runs migrations against a schema store and records them in a
// ledger, one step at a time, under a run lock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/executor"
	"github.com/getpup/schemamigrate/ledger"
	"github.com/getpup/schemamigrate/lock"
	"github.com/getpup/schemamigrate/metrics"
	"github.com/getpup/schemamigrate/planner"
	"github.com/getpup/schemamigrate/store"
)

// DefaultLockKey is the run lock key used when Config.LockKey is empty.
const DefaultLockKey = "schemamigrate"

// ErrUnfinishedMigration indicates a journal intent from an earlier run that
// the ledger does not reflect: that run stopped after touching the schema
// store and before recording the outcome.
var ErrUnfinishedMigration = errors.New("unfinished migration from a previous run")

// Source provides migration definitions in identifier order.
// *registry.Registry implements it.
type Source interface {
	List() ([]schemamigrate.Definition, error)
}

// Config holds configuration for the Engine.
type Config struct {
	// Store is the schema store to migrate (required).
	Store store.SchemaStore

	// Ledger records applied migrations (required). If it also implements
	// ledger.Journal, interrupted steps are detected on the next run.
	Ledger ledger.Ledger

	// Definitions provides the migrations (required).
	Definitions Source

	// Locker serialises runs. If nil, a process-local lock.MutexLocker is used.
	Locker lock.Locker

	// LockKey names the run lock (default: DefaultLockKey). It also labels metrics.
	LockKey string

	// Runner is an optional custom step executor.
	// If nil, an executor.Executor over Store is used.
	Runner executor.Runner

	// Logger is for observability (optional).
	Logger schemamigrate.Logger

	// MetricsEnabled enables Prometheus metrics collection (default: true).
	// Set to false explicitly to disable metrics.
	MetricsEnabled *bool

	// Now returns the time recorded in the ledger (default: time.Now).
	Now func() time.Time
}

// Engine applies and reverts migrations.
type Engine struct {
	config    Config
	executor  executor.Runner
	collector *metrics.Collector
}

// Compile-time check that Engine implements Migrator.
var _ schemamigrate.Migrator = (*Engine)(nil)

// New creates a new Engine with the given configuration.
func New(cfg Config) *Engine {
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultLockKey
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewMutexLocker()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var collector *metrics.Collector
	metricsEnabled := true
	if cfg.MetricsEnabled != nil {
		metricsEnabled = *cfg.MetricsEnabled
	}
	if metricsEnabled {
		collector = metrics.NewCollector(cfg.LockKey)
	}

	exec := cfg.Runner
	if exec == nil {
		exec = executor.New(executor.Config{
			Store:  cfg.Store,
			Logger: cfg.Logger,
		})
	}

	return &Engine{
		config:    cfg,
		executor:  exec,
		collector: collector,
	}
}

// Up applies, in ascending order, every registered migration newer than the
// last applied one and not above target. A zero target means the latest.
//
// The first failing step halts the run and nothing is compensated. The
// returned *schemamigrate.RunError names the migration in progress and the
// last applied one; running Up again resumes from there.
func (e *Engine) Up(ctx context.Context, target schemamigrate.Identifier) (schemamigrate.Result, error) {
	return e.run(ctx, schemamigrate.DirectionUp, target)
}

// Down reverts, in descending order, every applied migration with an
// identifier strictly greater than target. Failure handling matches Up.
func (e *Engine) Down(ctx context.Context, target schemamigrate.Identifier) (schemamigrate.Result, error) {
	return e.run(ctx, schemamigrate.DirectionDown, target)
}

func (e *Engine) run(ctx context.Context, dir schemamigrate.Direction, target schemamigrate.Identifier) (schemamigrate.Result, error) {
	start := time.Now()
	res := schemamigrate.Result{Direction: dir}

	fail := func(inProgress schemamigrate.Identifier, err error) (schemamigrate.Result, error) {
		e.recordFailure(dir, inProgress, err)
		if e.config.Logger != nil {
			e.config.Logger.Error(ctx, "migration run failed",
				"direction", dir,
				"migration", inProgress,
				"lastApplied", res.LastApplied,
				"error", err)
		}
		return res, &schemamigrate.RunError{
			Direction:   dir,
			InProgress:  inProgress,
			LastApplied: res.LastApplied,
			Err:         err,
		}
	}

	release, lost, err := e.lock(ctx)
	if err != nil {
		return fail(0, err)
	}
	defer release()

	applied, err := e.config.Ledger.AppliedIdentifiers(ctx)
	if err != nil {
		return fail(0, &schemamigrate.LedgerError{Op: "read", Err: err})
	}
	res.LastApplied = ledger.LastApplied(applied)

	if err := e.checkIntents(ctx, applied); err != nil {
		return fail(0, err)
	}

	plan, err := e.plan(dir, applied, target)
	if err != nil {
		return fail(0, err)
	}

	if e.collector != nil {
		e.collector.SetPending(len(plan.Steps))
	}
	if plan.Empty() {
		if e.config.Logger != nil {
			e.config.Logger.Info(ctx, "no pending migrations", "direction", dir, "lastApplied", res.LastApplied)
		}
		return res, nil
	}

	if e.config.Logger != nil {
		e.config.Logger.Info(ctx, "migration run starting",
			"direction", dir,
			"steps", len(plan.Steps),
			"lastApplied", res.LastApplied,
			"target", target)
	}

	for _, def := range plan.Steps {
		// Cancellation is honoured between steps only.
		if err := ctx.Err(); err != nil {
			return fail(0, err)
		}
		select {
		case <-lost:
			if e.collector != nil {
				e.collector.IncLockFailures()
			}
			return fail(0, &schemamigrate.LockError{Key: e.config.LockKey, Err: lock.ErrLeaseLost})
		default:
		}

		if err := e.step(ctx, def, dir); err != nil {
			return fail(def.ID, err)
		}

		if dir == schemamigrate.DirectionUp {
			applied[def.ID] = struct{}{}
		} else {
			delete(applied, def.ID)
		}
		res.Executed = append(res.Executed, def.ID)
		res.LastApplied = ledger.LastApplied(applied)

		if e.collector != nil {
			e.collector.SetLastApplied(int64(res.LastApplied))
		}
	}

	if e.collector != nil {
		e.collector.SetPending(0)
		e.collector.ObserveRunDuration(string(dir), time.Since(start).Seconds())
	}
	if e.config.Logger != nil {
		e.config.Logger.Info(ctx, "migration run completed",
			"direction", dir,
			"executed", len(res.Executed),
			"lastApplied", res.LastApplied,
			"duration", time.Since(start))
	}

	return res, nil
}

// step executes one migration and records it. Store and ledger calls run on a
// context that ignores cancellation so a step is never cut short midway.
func (e *Engine) step(ctx context.Context, def schemamigrate.Definition, dir schemamigrate.Direction) error {
	stepCtx := context.WithoutCancel(ctx)
	start := time.Now()

	journal, _ := e.config.Ledger.(ledger.Journal)
	if journal != nil {
		intent := ledger.Intent{ID: def.ID, Direction: dir, StartedAt: e.config.Now()}
		if err := journal.BeginIntent(stepCtx, intent); err != nil {
			return &schemamigrate.LedgerError{Op: "begin_intent", ID: def.ID, Err: err}
		}
	}

	if e.config.Logger != nil {
		e.config.Logger.Debug(ctx, "migration step starting", "migration", def.ID, "name", def.Name, "direction", dir)
	}

	out, err := e.executor.Run(stepCtx, def, dir)
	if err != nil {
		var storeErr *schemamigrate.StoreError
		if errors.As(err, &storeErr) && storeErr.Partial {
			return &schemamigrate.InconsistentStateError{ID: def.ID, Direction: dir, Err: err}
		}
		if endErr := e.endIntent(stepCtx, journal, def.ID); endErr != nil {
			return errors.Join(err, endErr)
		}
		return err
	}

	op := "record_applied"
	if dir == schemamigrate.DirectionUp {
		err = e.config.Ledger.RecordApplied(stepCtx, schemamigrate.LedgerEntry{
			ID:        def.ID,
			Name:      def.Name,
			AppliedAt: e.config.Now(),
		})
	} else {
		op = "record_reverted"
		err = e.config.Ledger.RecordReverted(stepCtx, def.ID)
	}
	if err != nil {
		ledgerErr := &schemamigrate.LedgerError{Op: op, ID: def.ID, Err: err}
		if out.Writes() == 0 {
			if endErr := e.endIntent(stepCtx, journal, def.ID); endErr != nil {
				return errors.Join(ledgerErr, endErr)
			}
			return ledgerErr
		}
		return &schemamigrate.InconsistentStateError{ID: def.ID, Direction: dir, Err: ledgerErr}
	}

	// The ledger reflects the step, so the next run clears a leftover intent.
	if err := e.endIntent(stepCtx, journal, def.ID); err != nil && e.config.Logger != nil {
		e.config.Logger.Error(ctx, "failed to clear migration intent", "migration", def.ID, "error", err)
	}

	if e.collector != nil {
		if dir == schemamigrate.DirectionUp {
			e.collector.IncApplied()
		} else {
			e.collector.IncReverted()
		}
		e.collector.ObserveMigrationDuration(string(dir), time.Since(start).Seconds())
	}
	if e.config.Logger != nil {
		e.config.Logger.Info(ctx, "migration step completed",
			"migration", def.ID,
			"name", def.Name,
			"direction", dir,
			"saved", len(out.Saved),
			"deleted", len(out.Deleted))
	}

	return nil
}

// endIntent clears the intent for id.
func (e *Engine) endIntent(ctx context.Context, journal ledger.Journal, id schemamigrate.Identifier) error {
	if journal == nil {
		return nil
	}
	if err := journal.EndIntent(ctx, id); err != nil {
		return &schemamigrate.LedgerError{Op: "end_intent", ID: id, Err: err}
	}
	return nil
}

// checkIntents refuses to run while an intent from an earlier run is not
// reflected in the ledger. Intents the ledger already reflects are cleared.
func (e *Engine) checkIntents(ctx context.Context, applied map[schemamigrate.Identifier]struct{}) error {
	journal, ok := e.config.Ledger.(ledger.Journal)
	if !ok {
		return nil
	}

	intents, err := journal.Intents(ctx)
	if err != nil {
		return &schemamigrate.LedgerError{Op: "read", Err: err}
	}

	for _, in := range intents {
		_, isApplied := applied[in.ID]
		done := isApplied == (in.Direction == schemamigrate.DirectionUp)
		if !done {
			return &schemamigrate.InconsistentStateError{
				ID:        in.ID,
				Direction: in.Direction,
				Err:       fmt.Errorf("%w: started %s", ErrUnfinishedMigration, in.StartedAt.Format(time.RFC3339)),
			}
		}

		if e.config.Logger != nil {
			e.config.Logger.Info(ctx, "clearing completed migration intent", "migration", in.ID, "direction", in.Direction)
		}
		if err := journal.EndIntent(ctx, in.ID); err != nil {
			return &schemamigrate.LedgerError{Op: "end_intent", ID: in.ID, Err: err}
		}
	}

	return nil
}

func (e *Engine) plan(dir schemamigrate.Direction, applied map[schemamigrate.Identifier]struct{}, target schemamigrate.Identifier) (planner.Plan, error) {
	defs, err := e.config.Definitions.List()
	if err != nil {
		return planner.Plan{}, err
	}

	if dir == schemamigrate.DirectionDown {
		return planner.Down(defs, applied, target)
	}
	return planner.Up(defs, applied, target), nil
}

// lock acquires the run lock. The returned channel is closed if the lock is
// lost before release; it is nil for lockers that cannot lose a hold.
func (e *Engine) lock(ctx context.Context) (func(), <-chan struct{}, error) {
	start := time.Now()

	var (
		release func()
		lost    <-chan struct{}
		err     error
	)
	if w, ok := e.config.Locker.(lock.WatchedLocker); ok {
		release, lost, err = w.AcquireWatched(ctx, e.config.LockKey)
	} else {
		release, err = e.config.Locker.Acquire(ctx, e.config.LockKey)
	}
	if err != nil {
		if e.collector != nil {
			e.collector.IncLockFailures()
		}
		return nil, nil, &schemamigrate.LockError{Key: e.config.LockKey, Err: err}
	}

	if e.collector != nil {
		e.collector.ObserveLockWait(time.Since(start).Seconds())
	}
	return release, lost, nil
}

func (e *Engine) recordFailure(dir schemamigrate.Direction, inProgress schemamigrate.Identifier, err error) {
	if e.collector == nil {
		return
	}
	if errors.Is(err, schemamigrate.ErrInconsistentState) {
		e.collector.IncInconsistentState()
	}
	if inProgress != 0 {
		e.collector.IncFailures(string(dir), failureKind(err))
	}
}

func failureKind(err error) string {
	var (
		validationErr *schemamigrate.ValidationError
		storeErr      *schemamigrate.StoreError
		ledgerErr     *schemamigrate.LedgerError
		definitionErr *schemamigrate.DefinitionError
	)
	switch {
	case errors.Is(err, schemamigrate.ErrInconsistentState):
		return "inconsistent"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &storeErr):
		return "store"
	case errors.As(err, &ledgerErr):
		return "ledger"
	case errors.As(err, &definitionErr):
		return "definition"
	default:
		return "migration"
	}
}
