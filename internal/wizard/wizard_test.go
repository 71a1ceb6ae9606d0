package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/papergrab/internal/browser/browsertest"
	"github.com/nao1215/papergrab/internal/config"
	"github.com/nao1215/papergrab/internal/model"
)

const baseURL = "https://portal.test/en/past-papers.html"

func css(v string) model.Locator {
	return model.Locator{Name: v, Selectors: []model.Selector{{Kind: model.SelectorCSS, Value: v}}}
}

var (
	consentSel = model.Selector{Kind: model.SelectorCSS, Value: "#consent"}
	qualSel    = model.Selector{Kind: model.SelectorCSS, Value: "#qual"}
	subjectSel = model.Selector{Kind: model.SelectorText, Tag: "a", Value: "Mathematics"}
	seriesSel  = model.Selector{Kind: model.SelectorText, Tag: "a", Value: "June 2023"}
	filterSel  = model.Selector{Kind: model.SelectorCSS, Value: "#filter"}
	resultsSel = model.Selector{Kind: model.SelectorCSS, Value: "#results a"}
)

var subjectFallbackSel = model.Selector{Kind: model.SelectorXPath, Value: "//a[@data-subject='mathematics']"}

// testProfile is a four-step wizard: qualification, subject, series and an
// optional content-type filter.
func testProfile() *config.Profile {
	return &config.Profile{
		Name:       "test",
		BaseURL:    baseURL,
		PageMarker: "past-papers",
		Consent:    css("#consent"),
		Steps: []config.StepConfig{
			{Step: model.StepQualification, Target: css("#qual"), Ready: model.Locator{Name: "subject link", Selectors: []model.Selector{subjectSel}}},
			{
				Step:   model.StepSubject,
				Target: model.Locator{Name: "subject", Selectors: []model.Selector{
					{Kind: model.SelectorText, Tag: "a", Value: "{{.Subject}}"},
					subjectFallbackSel,
				}},
				Ready: model.Locator{Name: "series link", Selectors: []model.Selector{seriesSel}},
			},
			{
				Step:   model.StepSeries,
				Target: model.Locator{Name: "series", Selectors: []model.Selector{{Kind: model.SelectorText, Tag: "a", Value: "{{.Series}}"}}},
			},
			{Step: model.StepContentType, Target: css("#filter"), Ready: css("#results a"), Optional: true},
		},
		Results: css("#results a"),
		Discovery: config.SeriesDiscovery{
			Container: "#step3",
			Pattern:   config.DefaultSeriesPattern,
			Exclude:   []string{"2019"},
		},
	}
}

var testVars = config.Vars{Qualification: "A Level", Subject: "Mathematics", Letter: "M", Series: "June 2023", ContentType: "Question paper"}

// wizardPage lays out a working wizard on every navigation. Each hook runs
// when the corresponding element is clicked and reveals the next section.
// Tests replace hooks to break the wizard at a given step.
type wizardPage struct {
	qual, subject, series, filter func(f *browsertest.Fake)
}

func workingPage() *wizardPage {
	p := &wizardPage{}
	p.qual = func(f *browsertest.Fake) {
		f.Add(subjectSel, &browsertest.Element{Label: "Mathematics", OnClick: func(f *browsertest.Fake) { p.subject(f) }})
	}
	p.subject = func(f *browsertest.Fake) {
		f.Add(seriesSel, &browsertest.Element{Label: "June 2023", OnClick: func(f *browsertest.Fake) { p.series(f) }})
		f.SetSource(`<div id="step3"><a>June 2023</a><a>November  2022</a><a>June 2019</a></div>`)
	}
	p.series = func(f *browsertest.Fake) {
		f.Add(filterSel, &browsertest.Element{Label: "Question paper", OnClick: func(f *browsertest.Fake) { p.filter(f) }})
	}
	p.filter = func(f *browsertest.Fake) {
		f.Add(resultsSel, &browsertest.Element{Label: "9MA0/01 Question paper"})
	}
	return p
}

func (p *wizardPage) install(f *browsertest.Fake) {
	f.OnNavigate = func(f *browsertest.Fake, _ string) {
		f.Clear()
		f.Add(consentSel, &browsertest.Element{Label: "Accept All Cookies", OnClick: func(f *browsertest.Fake) { f.Remove(consentSel) }})
		f.Add(qualSel, &browsertest.Element{Label: "A Level", OnClick: func(f *browsertest.Fake) { p.qual(f) }})
	}
}

func newTestNavigator(f *browsertest.Fake, opts ...Option) *Navigator {
	return newProfileNavigator(f, testProfile(), opts...)
}

func newProfileNavigator(f *browsertest.Fake, profile *config.Profile, opts ...Option) *Navigator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []Option{
		WithStepTimeout(100 * time.Millisecond),
		WithWizardTimeout(3 * time.Second),
		WithConsentTimeout(50 * time.Millisecond),
		WithPollInterval(5 * time.Millisecond),
		WithLogger(logger),
		WithClicker(NewClicker(f, WithClickTimeout(50*time.Millisecond), WithClickerLogger(logger))),
	}
	return NewNavigator(f, profile, append(base, opts...)...)
}

func TestNavigator_ReachesResults(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	workingPage().install(f)

	res, err := newTestNavigator(f).Navigate(t.Context(), testVars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.PageURL != baseURL {
		t.Errorf("expected page url %q, got %q", baseURL, res.PageURL)
	}
	if res.Restarts != 0 || len(res.Skipped) != 0 {
		t.Errorf("unexpected restarts/skips: %+v", res)
	}

	want := []string{"Accept All Cookies", "A Level", "Mathematics", "June 2023", "Question paper"}
	if diff := cmp.Diff(want, f.Clicks()); diff != "" {
		t.Errorf("click order mismatch (-want +got):\n%s", diff)
	}
}

func TestNavigator_OptionalStepAbsentIsSkipped(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	page := workingPage()
	page.series = func(f *browsertest.Fake) {
		f.Add(resultsSel, &browsertest.Element{Label: "9MA0/01 Question paper"})
	}
	page.install(f)

	res, err := newTestNavigator(f).Navigate(t.Context(), testVars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]model.WizardStep{model.StepContentType}, res.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
}

func TestNavigator_EssentialStepNotFound(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	page := workingPage()
	page.qual = func(*browsertest.Fake) {}
	page.install(f)

	_, err := newTestNavigator(f).Navigate(t.Context(), testVars)
	if !errors.Is(err, model.ErrNavigationTimeout) {
		t.Fatalf("expected ErrNavigationTimeout, got %v", err)
	}
	if model.IsFatal(err) {
		t.Error("a step failure must not be fatal for the run")
	}

	t.Run("target missing entirely", func(t *testing.T) {
		t.Parallel()
		f := browsertest.New()
		f.OnNavigate = func(f *browsertest.Fake, _ string) { f.Clear() }

		_, err := newTestNavigator(f).Navigate(t.Context(), testVars)
		if !errors.Is(err, model.ErrNavigationTimeout) {
			t.Errorf("expected ErrNavigationTimeout, got %v", err)
		}
		if !errors.Is(err, model.ErrLocatorNotFound) {
			t.Errorf("expected ErrLocatorNotFound in chain, got %v", err)
		}
	})
}

func TestNavigator_FallbackSelector(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	page := workingPage()
	page.qual = func(f *browsertest.Fake) {
		// Only the fallback selector of the subject locator matches.
		f.Add(subjectFallbackSel, &browsertest.Element{Label: "Mathematics (fallback)", OnClick: func(f *browsertest.Fake) { page.subject(f) }})
	}
	page.install(f)

	nav := newTestNavigator(f)
	nav.profile.Steps[0].Ready = model.Locator{Name: "subject", Selectors: []model.Selector{subjectSel, subjectFallbackSel}}

	if _, err := nav.Navigate(t.Context(), testVars); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clicks := f.Clicks()
	if len(clicks) < 3 || clicks[2] != "Mathematics (fallback)" {
		t.Errorf("expected fallback subject to be clicked, got %v", clicks)
	}
}

func TestNavigator_RetriesStepOnce(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	page := workingPage()
	var qualClicks atomic.Int32
	reveal := page.qual
	page.qual = func(f *browsertest.Fake) {
		if qualClicks.Add(1) >= 2 {
			reveal(f)
		}
	}
	page.install(f)

	if _, err := newTestNavigator(f).Navigate(t.Context(), testVars); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qualClicks.Load() != 2 {
		t.Errorf("expected qualification to be clicked twice, got %d", qualClicks.Load())
	}
}

func TestNavigator_ClickStrategyFallback(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	page := workingPage()
	page.install(f)
	hook := f.OnNavigate
	f.OnNavigate = func(f *browsertest.Fake, url string) {
		hook(f, url)
		el, _ := f.Locate(context.Background(), qualSel)
		qual := el.(*browsertest.Element)
		qual.FailNative = errors.New("element is covered")
		qual.FailScript = errors.New("script blocked")
	}

	if _, err := newTestNavigator(f).Navigate(t.Context(), testVars); err != nil {
		t.Fatalf("pointer click should have succeeded: %v", err)
	}
}

func TestNavigator_DriftRestartsOnce(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	page := workingPage()
	var drifted atomic.Bool
	series := page.series
	page.series = func(f *browsertest.Fake) {
		if !drifted.Swap(true) {
			f.SetURL("https://portal.test/en/home.html")
			return
		}
		series(f)
	}
	page.install(f)

	res, err := newTestNavigator(f).Navigate(t.Context(), testVars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Restarts != 1 {
		t.Errorf("expected 1 restart, got %d", res.Restarts)
	}
	if n := len(f.Navigations()); n != 2 {
		t.Errorf("expected base page to be loaded twice, got %d", n)
	}
}

func TestNavigator_SecondDriftAborts(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	page := workingPage()
	subject := page.subject
	page.subject = func(f *browsertest.Fake) {
		subject(f)
		f.SetURL("https://portal.test/en/home.html")
	}
	page.install(f)

	_, err := newTestNavigator(f).Navigate(t.Context(), testVars)
	if !errors.Is(err, model.ErrNavigationDrift) {
		t.Fatalf("expected ErrNavigationDrift, got %v", err)
	}
}

func TestNavigator_BasePageUnreachable(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	f.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	_, err := newTestNavigator(f).Navigate(t.Context(), testVars)
	if !errors.Is(err, model.ErrSessionAcquisition) {
		t.Fatalf("expected ErrSessionAcquisition, got %v", err)
	}
	if !model.IsFatal(err) {
		t.Error("session acquisition failure must be fatal")
	}
}

func TestNavigator_ResultsNeverAppear(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	page := workingPage()
	page.filter = func(*browsertest.Fake) {}
	page.install(f)

	_, err := newTestNavigator(f, WithWizardTimeout(600*time.Millisecond)).Navigate(t.Context(), testVars)
	if !errors.Is(err, model.ErrNavigationIncomplete) {
		t.Fatalf("expected ErrNavigationIncomplete, got %v", err)
	}
}

func TestNavigator_Cancelled(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	workingPage().install(f)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := newTestNavigator(f).Navigate(ctx, testVars)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if model.IsFatal(err) {
		t.Error("cancellation is not a session acquisition failure")
	}
}

func TestNavigator_ConsentDismissedOnce(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	workingPage().install(f)
	nav := newTestNavigator(f)

	for range 2 {
		if _, err := nav.Navigate(t.Context(), testVars); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	consent := 0
	for _, c := range f.Clicks() {
		if c == "Accept All Cookies" {
			consent++
		}
	}
	if consent != 1 {
		t.Errorf("expected consent to be clicked once, got %d", consent)
	}
}

func TestNavigator_DiscoverSeries(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	workingPage().install(f)

	series, err := newTestNavigator(f).DiscoverSeries(t.Context(), testVars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"June 2023", "November 2022"}, series); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}

	for _, c := range f.Clicks() {
		if c == "June 2023" {
			t.Error("discovery must stop before the series step")
		}
	}
}

func TestNavigator_DiscoverSeriesWithoutPattern(t *testing.T) {
	t.Parallel()

	f := browsertest.New()
	nav := newTestNavigator(f)
	nav.profile.Discovery.Pattern = ""

	if _, err := nav.DiscoverSeries(t.Context(), testVars); !errors.Is(err, config.ErrNoSeries) {
		t.Errorf("expected ErrNoSeries, got %v", err)
	}
}

// specificationPage opens a specification modal after the subject is
// selected. The series list appears once the modal link is clicked.
func specificationPage() (*wizardPage, model.Selector) {
	modalSel := model.Selector{Kind: model.SelectorXPath, Value: "//h3[contains(., '(2016)')]/ancestor::a"}
	page := workingPage()
	reveal := page.subject
	page.subject = func(f *browsertest.Fake) {
		f.Add(modalSel, &browsertest.Element{Label: "Mathematics A (2016)", OnClick: func(f *browsertest.Fake) {
			f.Remove(modalSel)
			reveal(f)
		}})
	}
	return page, modalSel
}

// specificationProfile is testProfile with the International GCSE modal
// handling: the subject step accepts the modal as ready and the series
// step picks the specification first.
func specificationProfile() *config.Profile {
	p := testProfile()
	choice := model.Locator{Name: "specification choice", Selectors: []model.Selector{
		{Kind: model.SelectorXPath, Value: "{{if .Specification}}//h3[contains(., '{{.Specification}}')]/ancestor::a{{end}}"},
	}}
	p.Steps[1].Ready.Selectors = append(p.Steps[1].Ready.Selectors, choice.Selectors...)
	p.Steps[2].Before = []model.Locator{choice}
	return p
}

func TestNavigator_SpecificationModal(t *testing.T) {
	t.Parallel()

	vars := testVars
	vars.Specification = "(2016)"

	t.Run("modal is answered before the series", func(t *testing.T) {
		t.Parallel()
		f := browsertest.New()
		page, _ := specificationPage()
		page.install(f)

		if _, err := newProfileNavigator(f, specificationProfile()).Navigate(t.Context(), vars); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"Accept All Cookies", "A Level", "Mathematics", "Mathematics A (2016)", "June 2023", "Question paper"}
		if diff := cmp.Diff(want, f.Clicks()); diff != "" {
			t.Errorf("click order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no modal leaves the wizard unchanged", func(t *testing.T) {
		t.Parallel()
		f := browsertest.New()
		workingPage().install(f)

		if _, err := newProfileNavigator(f, specificationProfile()).Navigate(t.Context(), vars); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"Accept All Cookies", "A Level", "Mathematics", "June 2023", "Question paper"}
		if diff := cmp.Diff(want, f.Clicks()); diff != "" {
			t.Errorf("click order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("discovery answers the modal", func(t *testing.T) {
		t.Parallel()
		f := browsertest.New()
		page, _ := specificationPage()
		page.install(f)

		series, err := newProfileNavigator(f, specificationProfile()).DiscoverSeries(t.Context(), vars)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"June 2023", "November 2022"}, series); diff != "" {
			t.Errorf("series mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unset specification never picks a modal entry", func(t *testing.T) {
		t.Parallel()
		f := browsertest.New()
		page, _ := specificationPage()
		page.install(f)

		_, err := newProfileNavigator(f, specificationProfile()).Navigate(t.Context(), testVars)
		if !errors.Is(err, model.ErrNavigationTimeout) {
			t.Fatalf("expected ErrNavigationTimeout, got %v", err)
		}
		for _, c := range f.Clicks() {
			if c == "Mathematics A (2016)" {
				t.Error("modal entry clicked without a specification")
			}
		}
	})
}
