package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/papergrab/internal/model"
)

// Runner processes the series of a run one after another.
// The browser belongs to a single navigator, so series never overlap.
type Runner struct {
	// pipeline is reused for every series so the navigator keeps its
	// per-run state (the consent banner is dismissed once).
	pipeline *Pipeline

	profile string
	subject string

	// logger is used for run-level logging.
	logger *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger for the runner.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner for one profile and subject.
func NewRunner(p *Pipeline, profile, subject string, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipeline: p,
		profile:  profile,
		subject:  subject,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Run executes the pipeline for each series in order and returns the run
// summary. The summary is returned even when Run fails.
//
// A series failure is recorded and the run moves on to the next series.
// A fatal error (the browser session could not be acquired) and
// cancellation stop the run and are returned.
func (r *Runner) Run(ctx context.Context, series []string) (*model.RunSummary, error) {
	return r.RunWithCallback(ctx, series, nil)
}

// RunWithCallback is Run with a callback invoked after each series with
// the finished report and its index in series. It is called from the
// runner's goroutine.
func (r *Runner) RunWithCallback(
	ctx context.Context,
	series []string,
	callback func(report *model.SeriesReport, index int),
) (*model.RunSummary, error) {
	summary := model.NewRunSummary(r.profile, r.subject)
	defer summary.Finish()

	r.logger.Info("starting run",
		"profile", r.profile,
		"subject", r.subject,
		"total_series", len(series),
	)
	startTime := time.Now()

	for i, name := range series {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			r.logger.Warn("run cancelled", "remaining", len(series)-i, "reason", err)
			return summary, err
		}

		r.logger.Info("processing series",
			"series", name,
			"index", i+1,
			"total", len(series),
		)

		report := model.NewSeriesReport(r.profile, r.subject, name)
		err := r.pipeline.Execute(ctx, report)
		summary.Add(report)

		if callback != nil {
			callback(report, i)
		}

		switch {
		case err == nil:
			r.logger.Info("series completed",
				"series", name,
				"saved", report.Count(model.DownloadSaved),
				"skipped", report.Count(model.DownloadSkippedExisting),
				"failed", report.Count(model.DownloadFailed),
			)
		case model.IsFatal(err):
			r.logger.Error("aborting run", "series", name, "error", err)
			return summary, err
		case ctx.Err() != nil:
			summary.Cancelled = true
			return summary, ctx.Err()
		default:
			r.logger.Warn("series failed", "series", name, "error", err)
		}
	}

	r.logger.Info("run complete",
		"series", len(series),
		"saved", summary.Saved,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"elapsed", time.Since(startTime),
	)

	return summary, nil
}
