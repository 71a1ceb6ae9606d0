package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/papergrab/internal/browser"
	"github.com/nao1215/papergrab/internal/classify"
	"github.com/nao1215/papergrab/internal/config"
	"github.com/nao1215/papergrab/internal/harvest"
	"github.com/nao1215/papergrab/internal/model"
	"github.com/nao1215/papergrab/internal/retrieve"
	"github.com/nao1215/papergrab/internal/wizard"
)

// NavigateStep drives the wizard to the results state of the series.
// On failure it saves a screenshot and the page source when a diagnostics
// directory is configured.
type NavigateStep struct {
	navigator      *wizard.Navigator
	browser        browser.Browser
	vars           config.Vars
	diagnosticsDir string
	logger         *slog.Logger
}

// NavigateStepOption configures a NavigateStep.
type NavigateStepOption func(*NavigateStep)

// WithDiagnosticsDir enables failure diagnostics below dir.
func WithDiagnosticsDir(dir string) NavigateStepOption {
	return func(s *NavigateStep) {
		s.diagnosticsDir = dir
	}
}

// WithNavigateLogger sets a custom logger for the navigate step.
func WithNavigateLogger(logger *slog.Logger) NavigateStepOption {
	return func(s *NavigateStep) {
		s.logger = logger
	}
}

// NewNavigateStep creates a navigate step. vars carries the run's template
// values; Series is replaced with the report's series on each run.
func NewNavigateStep(n *wizard.Navigator, b browser.Browser, vars config.Vars, opts ...NavigateStepOption) *NavigateStep {
	s := &NavigateStep{
		navigator: n,
		browser:   b,
		vars:      vars,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *NavigateStep) Name() string {
	return "navigate"
}

// Do executes the navigate step.
func (s *NavigateStep) Do(ctx context.Context, report *model.SeriesReport) error {
	vars := s.vars
	vars.Series = report.Series

	res, err := s.navigator.Navigate(ctx, vars)
	if res != nil {
		report.PageURL = res.PageURL
		report.Restarts = res.Restarts
		for _, step := range res.Skipped {
			report.SkippedSteps = append(report.SkippedSteps, step.String())
		}
	}
	if err == nil {
		return nil
	}

	if s.diagnosticsDir != "" && ctx.Err() == nil {
		dir, derr := wizard.CaptureDiagnostics(ctx, s.browser, s.diagnosticsDir, report.Series)
		if dir != "" {
			report.DiagnosticsDir = dir
		}
		if derr != nil {
			s.logger.Warn("diagnostics incomplete", "series", report.Series, "error", derr)
		} else {
			s.logger.Info("saved diagnostics", "series", report.Series, "dir", dir)
		}
	}
	return err
}

// HarvestStep reads the results page and collects its document links.
type HarvestStep struct {
	browser   browser.Browser
	harvester *harvest.Harvester
	logger    *slog.Logger
}

// HarvestStepOption configures a HarvestStep.
type HarvestStepOption func(*HarvestStep)

// WithHarvestLogger sets a custom logger for the harvest step.
func WithHarvestLogger(logger *slog.Logger) HarvestStepOption {
	return func(s *HarvestStep) {
		s.logger = logger
	}
}

// NewHarvestStep creates a harvest step.
func NewHarvestStep(b browser.Browser, h *harvest.Harvester, opts ...HarvestStepOption) *HarvestStep {
	s := &HarvestStep{
		browser:   b,
		harvester: h,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *HarvestStep) Name() string {
	return "harvest"
}

// Do executes the harvest step. The page is scrolled to the bottom first so
// lazily loaded results are present in the source.
func (s *HarvestStep) Do(ctx context.Context, report *model.SeriesReport) error {
	if err := s.browser.ScrollToBottom(ctx); err != nil {
		s.logger.Debug("scroll to bottom failed", "error", err)
	}

	if report.PageURL == "" {
		url, err := s.browser.CurrentURL(ctx)
		if err != nil {
			return fmt.Errorf("failed to read page location: %w", err)
		}
		report.PageURL = url
	}

	source, err := s.browser.PageSource(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page source: %w", err)
	}
	report.PageSource = source

	links, err := s.harvester.Harvest(report.PageURL, source)
	if err != nil {
		return err
	}
	report.Links = links
	report.LinksHarvested = len(links)

	s.logger.Info("harvested links", "series", report.Series, "count", len(links))
	return nil
}

// CaptureSessionStep copies the browser's cookies and user agent into the
// report for the download client.
type CaptureSessionStep struct {
	browser browser.Browser
}

// NewCaptureSessionStep creates a session capture step.
func NewCaptureSessionStep(b browser.Browser) *CaptureSessionStep {
	return &CaptureSessionStep{browser: b}
}

// Name returns the step name.
func (s *CaptureSessionStep) Name() string {
	return "capture_session"
}

// Do executes the session capture step.
func (s *CaptureSessionStep) Do(ctx context.Context, report *model.SeriesReport) error {
	session, err := browser.CaptureSession(ctx, s.browser)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %w", model.ErrSessionAcquisition, err)
	}
	report.Session = session
	return nil
}

// ClassifyStep pairs the harvested links into bundles.
type ClassifyStep struct {
	pairer *classify.Pairer
	logger *slog.Logger
}

// ClassifyStepOption configures a ClassifyStep.
type ClassifyStepOption func(*ClassifyStep)

// WithClassifyLogger sets a custom logger for the classify step.
func WithClassifyLogger(logger *slog.Logger) ClassifyStepOption {
	return func(s *ClassifyStep) {
		s.logger = logger
	}
}

// NewClassifyStep creates a classify step.
func NewClassifyStep(p *classify.Pairer, opts ...ClassifyStepOption) *ClassifyStep {
	s := &ClassifyStep{
		pairer: p,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ClassifyStep) Name() string {
	return "classify"
}

// Do executes the classify step. Bundles are foldered under the subject.
func (s *ClassifyStep) Do(_ context.Context, report *model.SeriesReport) error {
	report.Bundles, report.Ambiguous = s.pairer.Pair(report.Subject, report.Series, report.Links)
	s.logger.Info("paired documents",
		"series", report.Series,
		"bundles", len(report.Bundles),
		"ambiguous", len(report.Ambiguous),
	)
	return nil
}

// RetrieveStep downloads every bundle of the series.
type RetrieveStep struct {
	engine *retrieve.Engine
}

// NewRetrieveStep creates a retrieve step.
func NewRetrieveStep(e *retrieve.Engine) *RetrieveStep {
	return &RetrieveStep{engine: e}
}

// Name returns the step name.
func (s *RetrieveStep) Name() string {
	return "retrieve"
}

// Do executes the retrieve step. An expired session is recorded on the
// report and does not fail the series; cancellation does.
func (s *RetrieveStep) Do(ctx context.Context, report *model.SeriesReport) error {
	if report.Session == nil {
		return fmt.Errorf("%w: no session captured", model.ErrSessionAcquisition)
	}
	results, err := s.engine.Run(ctx, report.Bundles, report.Session)
	report.Downloads = results
	if errors.Is(err, model.ErrSessionExpired) {
		report.SessionExpired = true
		return nil
	}
	return err
}

// DefaultPipeline creates the standard per-series pipeline for profile:
// navigate, harvest, capture session, classify, retrieve.
//
// The browser is shared by every series the pipeline runs; doer performs
// the downloads.
func DefaultPipeline(b browser.Browser, doer retrieve.Doer, cfg *config.Config, profile *config.Profile, opts ...Option) *Pipeline {
	p := New(opts...)
	logger := p.logger

	clicker := wizard.NewClicker(b,
		wizard.WithClickTimeout(cfg.ClickTimeout),
		wizard.WithClickerLogger(logger),
	)
	navigator := wizard.NewNavigator(b, profile,
		wizard.WithStepTimeout(cfg.StepTimeout),
		wizard.WithWizardTimeout(cfg.WizardTimeout),
		wizard.WithConsentTimeout(cfg.ClickTimeout),
		wizard.WithPollInterval(cfg.PollInterval),
		wizard.WithClicker(clicker),
		wizard.WithLogger(logger),
	)

	harvestOpts := []harvest.Option{
		harvest.WithResultsRegion(profile.ResultsRegion),
		harvest.WithTitleSelector(profile.TitleSelector),
	}
	if len(profile.Extensions) > 0 {
		harvestOpts = append(harvestOpts, harvest.WithExtensions(profile.Extensions...))
	}

	var classifierOpts []classify.Option
	if len(profile.IgnoreTerms) > 0 {
		classifierOpts = append(classifierOpts, classify.WithIgnoreTerms(profile.IgnoreTerms))
	}

	engine := retrieve.NewEngine(doer, cfg.DownloadDir,
		retrieve.WithConcurrency(cfg.Concurrency),
		retrieve.WithRequestTimeout(cfg.RequestTimeout),
		retrieve.WithLogger(logger),
	)

	p.AddSteps(
		NewNavigateStep(navigator, b, config.VarsFor(cfg, profile, ""),
			WithDiagnosticsDir(cfg.DiagnosticsDir),
			WithNavigateLogger(logger),
		),
		NewHarvestStep(b, harvest.New(harvestOpts...), WithHarvestLogger(logger)),
		NewCaptureSessionStep(b),
		NewClassifyStep(
			classify.NewPairer(classify.New(classifierOpts...), classify.WithLogger(logger)),
			WithClassifyLogger(logger),
		),
		NewRetrieveStep(engine),
	)

	logger.Debug("pipeline assembled", "steps", p.StepNames())
	return p
}
