package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/papergrab/internal/browser"
	"github.com/nao1215/papergrab/internal/config"
	"github.com/nao1215/papergrab/internal/harvest"
	"github.com/nao1215/papergrab/internal/model"
)

// errDrift signals that the browser left the wizard page.
var errDrift = errors.New("left wizard page")

// Result describes a completed navigation.
type Result struct {
	// PageURL is the location of the results page.
	PageURL string

	// Restarts counts drift-triggered restarts (0 or 1).
	Restarts int

	// Skipped lists optional steps whose target was absent.
	Skipped []model.WizardStep
}

// Navigator walks a qualification profile's wizard steps.
// It owns the browser exclusively while navigating and is not safe for
// concurrent use.
type Navigator struct {
	browser          browser.Browser
	clicker          *Clicker
	profile          *config.Profile
	stepTimeout      time.Duration
	wizardTimeout    time.Duration
	consentTimeout   time.Duration
	pollInterval     time.Duration
	logger           *slog.Logger
	consentDismissed bool
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithStepTimeout bounds locating a step's target and waiting for readiness.
func WithStepTimeout(d time.Duration) Option {
	return func(n *Navigator) {
		n.stepTimeout = d
	}
}

// WithWizardTimeout bounds a whole navigation.
func WithWizardTimeout(d time.Duration) Option {
	return func(n *Navigator) {
		n.wizardTimeout = d
	}
}

// WithConsentTimeout bounds the search for the cookie-consent banner.
func WithConsentTimeout(d time.Duration) Option {
	return func(n *Navigator) {
		n.consentTimeout = d
	}
}

// WithPollInterval sets the re-check period of waits.
func WithPollInterval(d time.Duration) Option {
	return func(n *Navigator) {
		n.pollInterval = d
	}
}

// WithClicker replaces the default clicker.
func WithClicker(c *Clicker) Option {
	return func(n *Navigator) {
		n.clicker = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) {
		n.logger = logger
	}
}

// NewNavigator creates a Navigator for profile on b.
func NewNavigator(b browser.Browser, profile *config.Profile, opts ...Option) *Navigator {
	n := &Navigator{
		browser:        b,
		profile:        profile,
		stepTimeout:    config.DefaultStepTimeout,
		wizardTimeout:  config.DefaultWizardTimeout,
		consentTimeout: config.DefaultClickTimeout,
		pollInterval:   config.DefaultPollInterval,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.clicker == nil {
		n.clicker = NewClicker(b, WithClickerLogger(n.logger))
	}
	return n
}

// Navigate drives the wizard from the base page to the results state.
//
// Errors: ErrSessionAcquisition when the base page cannot be opened (fatal
// for the run), ErrNavigationTimeout for an essential step that failed
// twice, ErrNavigationDrift after a second drift, ErrNavigationIncomplete
// when the results never appeared within the wizard timeout.
func (n *Navigator) Navigate(ctx context.Context, vars config.Vars) (*Result, error) {
	res := &Result{}
	err := n.walk(ctx, vars, model.StepResults, res, func(wctx context.Context) error {
		results, err := config.Expand(n.profile.Results, vars)
		if err != nil {
			return err
		}
		if _, err := n.resolve(wctx, results, n.wizardTimeout); err != nil {
			if errors.Is(err, model.ErrLocatorNotFound) {
				return fmt.Errorf("%w: %w", model.ErrNavigationIncomplete, err)
			}
			return err
		}
		url, err := n.browser.CurrentURL(wctx)
		if err != nil {
			return err
		}
		res.PageURL = url
		return nil
	})
	return res, err
}

// DiscoverSeries drives the wizard up to the subject step and reads the
// series offered there.
func (n *Navigator) DiscoverSeries(ctx context.Context, vars config.Vars) ([]string, error) {
	d := n.profile.Discovery
	if d.Pattern == "" {
		return nil, config.ErrNoSeries
	}

	var series []string
	err := n.walk(ctx, vars, model.StepSubject, &Result{}, func(wctx context.Context) error {
		if err := n.clearSeriesPrelude(wctx, vars); err != nil {
			return err
		}
		source, err := n.browser.PageSource(wctx)
		if err != nil {
			return err
		}
		series, err = harvest.SeriesNames(source, d.Container, d.Pattern, d.Exclude)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("discovered series", "count", len(series), "series", series)
	return series, nil
}

// clearSeriesPrelude clicks the pre-step locators of the series step, such
// as a specification modal, and waits for the series container to fill.
func (n *Navigator) clearSeriesPrelude(ctx context.Context, vars config.Vars) error {
	sc, ok := n.profile.Step(model.StepSeries)
	if !ok || len(sc.Before) == 0 {
		return nil
	}
	if err := n.clickBefore(ctx, sc.Before, vars); err != nil {
		return err
	}
	if c := n.profile.Discovery.Container; c != "" {
		links := model.Locator{Name: "series links", Selectors: []model.Selector{{Kind: model.SelectorCSS, Value: c + " a"}}}
		if _, err := n.resolve(ctx, links, n.stepTimeout); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// walk opens the base page and runs the steps up to last, restarting once
// on drift, then calls done. The whole walk is bounded by the wizard timeout.
func (n *Navigator) walk(ctx context.Context, vars config.Vars, last model.WizardStep, res *Result, done func(context.Context) error) error {
	wctx, cancel := context.WithTimeout(ctx, n.wizardTimeout)
	defer cancel()

	err := n.attempt(wctx, vars, last, res, done)
	if errors.Is(err, errDrift) {
		res.Restarts++
		n.logger.Warn("navigation drift detected, restarting wizard", "error", err)
		err = n.attempt(wctx, vars, last, res, done)
		if errors.Is(err, errDrift) {
			return fmt.Errorf("%w: %w", model.ErrNavigationDrift, err)
		}
	}

	if err != nil && ctx.Err() == nil && errors.Is(wctx.Err(), context.DeadlineExceeded) &&
		!errors.Is(err, model.ErrNavigationIncomplete) {
		return fmt.Errorf("%w: wizard timeout %s elapsed: %w", model.ErrNavigationIncomplete, n.wizardTimeout, err)
	}
	return err
}

func (n *Navigator) attempt(ctx context.Context, vars config.Vars, last model.WizardStep, res *Result, done func(context.Context) error) error {
	if err := n.open(ctx); err != nil {
		return err
	}

	for _, sc := range n.profile.StepsThrough(last) {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := n.step(ctx, sc, vars)
		switch {
		case err == nil:
		case sc.Optional && (errors.Is(err, model.ErrLocatorNotFound) || errors.Is(err, model.ErrNavigationTimeout)):
			n.logger.Info("optional step skipped", "step", sc.Step.String(), "reason", err)
			res.Skipped = append(res.Skipped, sc.Step)
		default:
			return fmt.Errorf("step %s: %w", sc.Step, err)
		}

		if err := n.checkDrift(ctx, sc.Step); err != nil {
			return err
		}
	}

	return done(ctx)
}

// open loads the base page and dismisses the consent banner.
func (n *Navigator) open(ctx context.Context) error {
	if err := n.browser.Navigate(ctx, n.profile.BaseURL); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: open %s: %w", model.ErrSessionAcquisition, n.profile.BaseURL, err)
	}

	if n.consentDismissed || n.profile.Consent.IsZero() {
		return nil
	}
	el, err := n.resolve(ctx, n.profile.Consent, n.consentTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.logger.Debug("no consent banner")
		return nil
	}
	if n.clicker.AttemptClick(ctx, el) {
		n.consentDismissed = true
		n.logger.Debug("consent banner dismissed")
	}
	return nil
}

// step runs one wizard step, re-issuing it once on failure.
func (n *Navigator) step(ctx context.Context, sc config.StepConfig, vars config.Vars) error {
	target, err := config.Expand(sc.Target, vars)
	if err != nil {
		return err
	}
	ready, err := config.Expand(sc.Ready, vars)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.logger.Debug("executing wizard step", "step", sc.Step.String(), "attempt", attempt)

		if err := n.clickBefore(ctx, sc.Before, vars); err != nil {
			return err
		}

		el, err := n.resolve(ctx, target, n.stepTimeout)
		if err != nil {
			if !errors.Is(err, model.ErrLocatorNotFound) {
				return err
			}
			if sc.Optional {
				return err
			}
			lastErr = err
			continue
		}

		if !n.clicker.AttemptClick(ctx, el) {
			lastErr = fmt.Errorf("%w: click on %s did not register", model.ErrNavigationTimeout, target.Name)
			continue
		}

		if ready.IsZero() {
			return nil
		}
		if _, err := n.resolve(ctx, ready, n.stepTimeout); err != nil {
			if !errors.Is(err, model.ErrLocatorNotFound) {
				return err
			}
			lastErr = fmt.Errorf("%w: %s never appeared", model.ErrNavigationTimeout, ready.Name)
			continue
		}
		return nil
	}

	if !errors.Is(lastErr, model.ErrNavigationTimeout) {
		lastErr = fmt.Errorf("%w: %w", model.ErrNavigationTimeout, lastErr)
	}
	return lastErr
}

// clickBefore clicks each pre-step locator that is present right now.
func (n *Navigator) clickBefore(ctx context.Context, locs []model.Locator, vars config.Vars) error {
	for _, loc := range locs {
		expanded, err := config.Expand(loc, vars)
		if err != nil {
			return err
		}
		el, ok := n.locate(ctx, expanded)
		if !ok {
			continue
		}
		if !n.clicker.AttemptClick(ctx, el) {
			n.logger.Debug("pre-step click failed", "locator", loc.Name)
		}
	}
	return ctx.Err()
}

// resolve polls until one of loc's selectors yields a visible element.
func (n *Navigator) resolve(ctx context.Context, loc model.Locator, timeout time.Duration) (browser.Element, error) {
	var found browser.Element
	err := poll(ctx, timeout, n.pollInterval, func(pctx context.Context) bool {
		el, ok := n.locate(pctx, loc)
		if ok {
			found = el
		}
		return ok
	})
	if err == nil {
		return found, nil
	}
	if errors.Is(err, errWaitTimeout) {
		return nil, fmt.Errorf("%w: %s", model.ErrLocatorNotFound, loc.Name)
	}
	return nil, err
}

// locate tries each selector of loc once, in priority order.
func (n *Navigator) locate(ctx context.Context, loc model.Locator) (browser.Element, bool) {
	for i, sel := range loc.Selectors {
		el, err := n.browser.Locate(ctx, sel)
		if err == nil {
			if i > 0 {
				n.logger.Debug("matched fallback selector", "locator", loc.Name, "index", i, "selector", sel.String())
			}
			return el, true
		}
		if !errors.Is(err, browser.ErrNotFound) && ctx.Err() == nil {
			n.logger.Debug("selector failed", "locator", loc.Name, "selector", sel.String(), "error", err)
		}
	}
	return nil, false
}

// checkDrift returns errDrift when the location no longer contains the
// profile's page marker.
func (n *Navigator) checkDrift(ctx context.Context, step model.WizardStep) error {
	if n.profile.PageMarker == "" {
		return nil
	}
	url, err := n.browser.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(url, n.profile.PageMarker) {
		return fmt.Errorf("%w after step %s: at %s", errDrift, step, url)
	}
	return nil
}
