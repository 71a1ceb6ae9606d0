package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/papergrab/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the report
// filled in by the previous ones.
type Step interface {
	// Do executes the step. Failures that concern a single document are
	// recorded in the report; a returned error stops the series.
	Do(ctx context.Context, report *model.SeriesReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
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
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence for one series.
//
// Cancellation is checked before each step; steps bound their own waits.
// Every step consumes the output of the one before it, so the first error
// stops the series. It is recorded in the report and returned.
func (p *Pipeline) Execute(ctx context.Context, report *model.SeriesReport) error {
	defer func() {
		report.FinishedAt = time.Now()
	}()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"series", report.Series,
				"reason", err,
			)
			if report.Error == nil {
				report.SetError(err)
			}
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"series", report.Series,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"series", report.Series,
				"error", err,
			)

			if report.Error == nil {
				report.SetError(err)
			}
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"series", report.Series,
		)
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
