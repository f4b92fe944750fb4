package etl

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/source"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// State is a step of a pipeline run
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateTransforming
	StatePostTransforming
	StateValidating
	StateLoading
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateTransforming:
		return "transforming"
	case StatePostTransforming:
		return "post_transforming"
	case StateValidating:
		return "validating"
	case StateLoading:
		return "loading"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the run has finished
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// RunReport describes one pipeline run
type RunReport struct {
	RunID       string
	Pipeline    string
	State       State
	Path        []State
	FailedStage State
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
	Loads       map[string]LoadReport
}

// Succeeded reports whether the run reached Done
func (r RunReport) Succeeded() bool {
	return r.State == StateDone
}

// Duration returns how long the run took
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunObserver is told about every finished run, aborted or not.
type RunObserver interface {
	RunFinished(ctx context.Context, report RunReport) error
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSkipExtractionCleanup keeps extracted records after the run
func WithSkipExtractionCleanup(skip bool) Option {
	return func(p *Pipeline) { p.skipExtractionCleanup = skip }
}

// WithSkipStagingCleanup keeps staged entities after the run
func WithSkipStagingCleanup(skip bool) Option {
	return func(p *Pipeline) { p.skipStagingCleanup = skip }
}

// WithExtractionConcurrency bounds how many extraction units run at once.
// Values below 2 keep extraction sequential.
func WithExtractionConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithClock sets the clock used for run and stage timing
func WithClock(clock clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithObserver adds an observer told about every finished run
func WithObserver(o RunObserver) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// Pipeline moves data from the source through extraction and staging into
// production: Idle, Extracting, Transforming, PostTransforming, Validating,
// Loading, Done. Any failing stage moves the run to Aborted after rolling back
// the tiers it touched.
type Pipeline struct {
	name       string
	units      []TransformLoadUnit
	extraction []ExtractionUnit
	hooks      Hooks
	stores     docstore.Provider
	source     source.Client
	logger     ectologger.Logger
	clock      clockwork.Clock
	observers  []RunObserver

	skipExtractionCleanup bool
	skipStagingCleanup    bool
	concurrency           int
}

// NewPipeline creates a pipeline over units. A nil hooks runs no extra checks
func NewPipeline(name string, units []TransformLoadUnit, hooks Hooks, stores docstore.Provider, src source.Client, logger ectologger.Logger, opts ...Option) *Pipeline {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	p := &Pipeline{
		name:        name,
		units:       units,
		extraction:  dedupe(units),
		hooks:       hooks,
		stores:      stores,
		source:      src,
		logger:      logger,
		clock:       clockwork.NewRealClock(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// dedupe collects the union of every unit's extraction dependencies. Units
// with the same name are the same unit.
func dedupe(units []TransformLoadUnit) []ExtractionUnit {
	seen := map[string]bool{}
	var out []ExtractionUnit
	for _, u := range units {
		for _, dep := range u.Dependencies() {
			if seen[dep.Name()] {
				continue
			}
			seen[dep.Name()] = true
			out = append(out, dep)
		}
	}
	return out
}

// Name returns the pipeline name
func (p *Pipeline) Name() string {
	return p.name
}

// Units returns the transform-load units in run order
func (p *Pipeline) Units() []TransformLoadUnit {
	return p.units
}

// ExtractionUnits returns the deduplicated extraction dependencies of every unit
func (p *Pipeline) ExtractionUnits() []ExtractionUnit {
	return p.extraction
}

// Run executes the pipeline once. It never panics and never returns an
// error; the outcome is in the report.
func (p *Pipeline) Run(ctx context.Context) RunReport {
	ctx, span := tracing.StartSpan(ctx, "etl.Pipeline.Run")
	defer span.End()

	report := RunReport{
		RunID:     uuid.NewString(),
		Pipeline:  p.name,
		State:     StateIdle,
		Path:      []State{StateIdle},
		StartedAt: p.clock.Now(),
		Loads:     map[string]LoadReport{},
	}
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"pipeline": p.name,
		"run_id":   report.RunID,
	})
	log.Infof("Running pipeline with %d units and %d extraction units", len(p.units), len(p.extraction))

	// Rollback must still run when ctx is cancelled mid-stage.
	cleanupCtx := context.WithoutCancel(ctx)

	if err := p.stage(ctx, &report, StateExtracting, p.extract); err != nil {
		p.cleanupExtraction(cleanupCtx)
		return p.finish(ctx, report, err)
	}

	if err := p.stage(ctx, &report, StateTransforming, func(ctx context.Context) error {
		return p.withStore(ctx, func(store docstore.Store) error { return p.transform(ctx, store) })
	}); err != nil {
		p.cleanupExtraction(cleanupCtx)
		p.cleanupStaging(cleanupCtx)
		return p.finish(ctx, report, err)
	}

	if err := p.stage(ctx, &report, StatePostTransforming, func(ctx context.Context) error {
		p.cleanupExtraction(cleanupCtx)
		return p.withStore(ctx, func(store docstore.Store) error { return p.hooks.PostTransform(ctx, store) })
	}); err != nil {
		p.cleanupStaging(cleanupCtx)
		return p.finish(ctx, report, err)
	}

	if err := p.stage(ctx, &report, StateValidating, func(ctx context.Context) error {
		return p.withStore(ctx, func(store docstore.Store) error { return p.hooks.Validate(ctx, store) })
	}); err != nil {
		p.cleanupStaging(cleanupCtx)
		return p.finish(ctx, report, err)
	}

	if err := p.stage(ctx, &report, StateLoading, func(ctx context.Context) error {
		return p.withStore(ctx, func(store docstore.Store) error { return p.load(ctx, store, report.Loads) })
	}); err != nil {
		log.WithError(err).Warn("Loading did not complete for every unit")
	}
	p.cleanupStaging(cleanupCtx)

	return p.finish(ctx, report, nil)
}

// stage moves the run into state and runs fn, recovering panics and
// recording how long it took.
func (p *Pipeline) stage(ctx context.Context, report *RunReport, state State, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "etl.Pipeline."+state.String())
	defer span.End()

	report.State = state
	report.Path = append(report.Path, state)

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"pipeline": p.name,
		"run_id":   report.RunID,
		"stage":    state.String(),
	})
	log.Infof("Starting %s", state)

	start := p.clock.Now()
	err := safely(ctx, fn)
	elapsed := p.clock.Since(start)

	if err != nil {
		var stageErr *StageError
		if !errors.As(err, &stageErr) {
			err = &StageError{Stage: state, Err: err}
		}
		metrics.RecordStage(p.name, state.String(), "failed", elapsed.Seconds())
		log.WithError(err).WithField("fault", Classify(err).String()).Errorf("Stage %s failed", state)
		return err
	}

	metrics.RecordStage(p.name, state.String(), "succeeded", elapsed.Seconds())
	log.WithField("duration_ms", elapsed.Milliseconds()).Infof("Finished %s", state)
	return nil
}

// finish records the terminal state. Only an aborting error sets
// FailedStage; a Done run always reports StateIdle there.
func (p *Pipeline) finish(ctx context.Context, report RunReport, err error) RunReport {
	report.Err = err
	report.State = StateDone
	if err != nil {
		report.State = StateAborted
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			report.FailedStage = stageErr.Stage
		}
	}
	report.Path = append(report.Path, report.State)
	report.FinishedAt = p.clock.Now()

	metrics.RecordRun(p.name, report.State.String(), report.Duration().Seconds())

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"pipeline":    p.name,
		"run_id":      report.RunID,
		"state":       report.State.String(),
		"duration_ms": report.Duration().Milliseconds(),
	})
	if err != nil {
		log.WithError(err).WithField("failed_stage", report.FailedStage.String()).Error("Pipeline aborted")
	} else {
		log.Info("Finished running pipeline")
	}

	for _, o := range p.observers {
		if oerr := o.RunFinished(context.WithoutCancel(ctx), report); oerr != nil {
			log.WithError(oerr).Warn("Run observer failed")
		}
	}
	return report
}

// withStore scopes a store handle to fn.
func (p *Pipeline) withStore(ctx context.Context, fn func(store docstore.Store) error) error {
	store, err := p.stores.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			p.logger.WithContext(ctx).WithError(cerr).Warn("Failed to release store handle")
		}
	}()
	return fn(store)
}

func (p *Pipeline) extract(ctx context.Context) error {
	if p.concurrency < 2 || len(p.extraction) < 2 {
		return p.withStore(ctx, func(store docstore.Store) error {
			for i, unit := range p.extraction {
				if err := p.extractUnit(ctx, store, unit, i); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, unit := range p.extraction {
		g.Go(func() error {
			return safely(gctx, func(ctx context.Context) error {
				return p.withStore(ctx, func(store docstore.Store) error {
					return p.extractUnit(ctx, store, unit, i)
				})
			})
		})
	}
	return g.Wait()
}

func (p *Pipeline) extractUnit(ctx context.Context, store docstore.Store, unit ExtractionUnit, i int) error {
	p.logger.WithContext(ctx).WithField("unit", unit.Name()).Infof("Extracting %s (%d/%d)", unit.Name(), i+1, len(p.extraction))
	if err := unit.Extract(ctx, p.source, store); err != nil {
		return &StageError{Stage: StateExtracting, Unit: unit.Name(), Err: err}
	}
	return nil
}

func (p *Pipeline) transform(ctx context.Context, store docstore.Store) error {
	for i, unit := range p.units {
		p.logger.WithContext(ctx).WithField("unit", unit.Name()).Infof("Transforming %s (%d/%d)", unit.Name(), i+1, len(p.units))
		if err := unit.Transform(ctx, store); err != nil {
			return &StageError{Stage: StateTransforming, Unit: unit.Name(), Err: err}
		}
	}
	return nil
}

// load runs every unit even when an earlier one panicked. A unit whose Load
// panics is reported as a single failed load.
func (p *Pipeline) load(ctx context.Context, store docstore.Store, loads map[string]LoadReport) error {
	for i, unit := range p.units {
		log := p.logger.WithContext(ctx).WithField("unit", unit.Name())
		log.Infof("Loading %s (%d/%d)", unit.Name(), i+1, len(p.units))
		err := safely(ctx, func(ctx context.Context) error {
			loads[unit.Name()] = unit.Load(ctx, store)
			return nil
		})
		if err != nil {
			log.WithError(err).Error("Load failed")
			loads[unit.Name()] = LoadReport{Failed: 1}
		}
	}
	return nil
}

func (p *Pipeline) cleanupExtraction(ctx context.Context) {
	log := p.logger.WithContext(ctx).WithField("pipeline", p.name)
	if p.skipExtractionCleanup {
		log.Info("Skipping extraction cleanup")
		return
	}
	log.Infof("Starting extraction cleanup of %d units", len(p.extraction))
	err := safely(ctx, func(ctx context.Context) error {
		return p.withStore(ctx, func(store docstore.Store) error {
			for _, unit := range p.extraction {
				if err := unit.Cleanup(ctx, store); err != nil {
					log.WithError(err).WithField("unit", unit.Name()).Error("Extraction cleanup failed")
				}
			}
			return nil
		})
	})
	if err != nil {
		log.WithError(err).Error("Extraction cleanup failed")
		return
	}
	log.Info("Finished extraction cleanup")
}

func (p *Pipeline) cleanupStaging(ctx context.Context) {
	log := p.logger.WithContext(ctx).WithField("pipeline", p.name)
	if p.skipStagingCleanup {
		log.Info("Skipping staging cleanup")
		return
	}
	log.Infof("Starting staging cleanup of %d units", len(p.units))
	err := safely(ctx, func(ctx context.Context) error {
		return p.withStore(ctx, func(store docstore.Store) error {
			for _, unit := range p.units {
				if err := unit.Cleanup(ctx, store); err != nil {
					log.WithError(err).WithField("unit", unit.Name()).Error("Staging cleanup failed")
				}
			}
			return nil
		})
	})
	if err != nil {
		log.WithError(err).Error("Staging cleanup failed")
		return
	}
	log.Info("Finished staging cleanup")
}

// safely runs fn, turning a panic into an ErrStagePanic error.
func safely(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrStagePanic, r, debug.Stack())
		}
	}()
	return fn(ctx)
}
