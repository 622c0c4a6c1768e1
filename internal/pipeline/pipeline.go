package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/sitesift/internal/model"
)

// State is what flows through a pipeline run. Steps replace Result with
// their output and append their statistics to Run.
type State struct {
	// Run describes the invocation; its ID tags archived pages.
	Run *model.Run

	// Seeds are the crawl roots. Only the crawl step reads them.
	Seeds []model.Seed

	// Result is the current crawl result.
	Result *model.CrawlResult
}

// NewState returns a State for a new run with a fresh Result.
func NewState(runID string, seeds []model.Seed, result *model.CrawlResult) *State {
	if result == nil {
		result = model.NewCrawlResult()
	}
	return &State{
		Run: &model.Run{
			ID:        runID,
			Status:    model.RunRunning,
			StartedAt: time.Now(),
			SeedCount: len(seeds),
		},
		Seeds:  seeds,
		Result: result,
	}
}

// AddStats records the statistics of one step.
func (s *State) AddStats(stats model.StageStats) {
	s.Run.Stats = append(s.Run.Stats, stats)
}

// Step is one stage of the pipeline.
type Step interface {
	// Do runs the stage on st. Per-item failures are handled inside the
	// step; a returned error ends the run.
	Do(ctx context.Context, st *State) error

	// Name returns the stage name.
	Name() string
}

// RunStore persists run metadata.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
}

// Pipeline runs steps in order over one State.
type Pipeline struct {
	steps           []Step
	store           RunStore
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running later steps after one fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithRunStore records the run before the first step and after the last.
func WithRunStore(store RunStore) Option {
	return func(p *Pipeline) {
		p.store = store
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step in order. Cancellation is checked between steps;
// steps check it between their own units of work. The run's status, page
// count and error are updated before Execute returns, and st.Result always
// holds the latest output, partial or not, so the caller can flush it.
func (p *Pipeline) Execute(ctx context.Context, st *State) (err error) {
	run := st.Run
	p.saveRun(ctx, run)
	defer func() {
		run.FinishedAt = time.Now()
		run.PageCount = st.Result.Len()
		switch {
		case err == nil && run.Error == "":
			run.Status = model.RunCompleted
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			run.Status = model.RunInterrupted
		default:
			run.Status = model.RunFailed
		}
		// The run must be recorded even when ctx was cancelled.
		p.saveRun(context.WithoutCancel(ctx), run)
	}()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", err)
			run.Error = err.Error()
			return err
		}

		p.logger.Info("executing step", "step", step.Name(), "run", run.ID, "pages", st.Result.Len())
		if err := step.Do(ctx, st); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "run", run.ID, "error", err)
			run.Error = err.Error()
			run.Stages = append(run.Stages, model.Stage(step.Name()))
			if !p.continueOnError || ctx.Err() != nil {
				return err
			}
			continue
		}
		p.logger.Debug("step completed", "step", step.Name(), "pages", st.Result.Len())
		run.Stages = append(run.Stages, model.Stage(step.Name()))
	}
	return nil
}

func (p *Pipeline) saveRun(ctx context.Context, run *model.Run) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		p.logger.Error("failed to record run", "run", run.ID, "error", err)
	}
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
