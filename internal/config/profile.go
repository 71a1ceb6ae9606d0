package config

import (
	"fmt"
	"regexp"

	"dario.cat/mergo"
	"github.com/nao1215/papergrab/internal/model"
)

// StepConfig describes one wizard step of a qualification profile.
type StepConfig struct {
	// Step is the wizard state this entry drives.
	Step model.WizardStep `yaml:"step"`

	// Before are locators clicked before the target, if present
	// (e.g. the "Current qualifications" tab). A missing one is ignored.
	Before []model.Locator `yaml:"before,omitempty"`

	// Target is the element to click.
	Target model.Locator `yaml:"target"`

	// Ready is the condition that proves the click took effect.
	// An empty Ready locator means the step is ready as soon as the click lands.
	Ready model.Locator `yaml:"ready,omitempty"`

	// Optional steps are skipped when their target cannot be found.
	Optional bool `yaml:"optional,omitempty"`
}

// SeriesDiscovery describes how to read the list of series from the wizard
// when none are configured.
type SeriesDiscovery struct {
	// Container is the CSS selector of the series list (e.g. "#step3").
	Container string `yaml:"container,omitempty"`

	// Pattern is the regular expression a series name must match.
	Pattern string `yaml:"pattern,omitempty"`

	// Exclude lists substrings that drop a discovered series (e.g. "2019").
	Exclude []string `yaml:"exclude,omitempty"`
}

// Profile is a qualification profile: the selector catalog and step
// sequence for one family of qualifications on the portal.
type Profile struct {
	// Name is the profile key.
	Name string `yaml:"name,omitempty"`

	// BaseURL is the wizard page.
	BaseURL string `yaml:"base_url,omitempty"`

	// PageMarker must be contained in the browser location while the wizard
	// runs. Leaving it signals navigation drift.
	PageMarker string `yaml:"page_marker,omitempty"`

	// Qualification is the text of the qualification choice ("A Level").
	Qualification string `yaml:"qualification,omitempty"`

	// Specification is the default choice of the specification modal some
	// subjects open after selection ("(2016)").
	Specification string `yaml:"specification,omitempty"`

	// Consent is the optional cookie-consent button.
	Consent model.Locator `yaml:"consent,omitempty"`

	// Steps are executed in order.
	Steps []StepConfig `yaml:"steps,omitempty"`

	// Results becomes present once the wizard reached its results state.
	Results model.Locator `yaml:"results,omitempty"`

	// ResultsRegion is the CSS selector of the container holding result links.
	ResultsRegion string `yaml:"results_region,omitempty"`

	// TitleSelector is the CSS selector of the title element inside a result link.
	TitleSelector string `yaml:"title_selector,omitempty"`

	// Extensions are the document file extensions kept by the harvester.
	Extensions []string `yaml:"extensions,omitempty"`

	// IgnoreTerms force a link to be classified as unknown
	// (e.g. "examiner report").
	IgnoreTerms []string `yaml:"ignore_terms,omitempty"`

	// Discovery configures series discovery.
	Discovery SeriesDiscovery `yaml:"discovery,omitempty"`
}

// Step returns the configuration of the given wizard step.
func (p *Profile) Step(step model.WizardStep) (StepConfig, bool) {
	for _, s := range p.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return StepConfig{}, false
}

// StepsThrough returns the steps up to and including last, in order.
func (p *Profile) StepsThrough(last model.WizardStep) []StepConfig {
	var out []StepConfig
	for _, s := range p.Steps {
		if s.Step > last {
			break
		}
		out = append(out, s)
	}
	return out
}

// Validate checks that the profile can drive the navigator.
func (p *Profile) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("%w: %s: no base_url", ErrInvalidProfile, p.Name)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: %s: no steps", ErrInvalidProfile, p.Name)
	}
	if p.Results.IsZero() {
		return fmt.Errorf("%w: %s: no results locator", ErrInvalidProfile, p.Name)
	}

	prev := model.WizardStep(-1)
	for _, s := range p.Steps {
		if s.Step <= prev {
			return fmt.Errorf("%w: %s: step %s out of order", ErrInvalidProfile, p.Name, s.Step)
		}
		prev = s.Step
		if s.Target.IsZero() {
			return fmt.Errorf("%w: %s: step %s has no target", ErrInvalidProfile, p.Name, s.Step)
		}
	}

	if p.Discovery.Pattern != "" {
		if _, err := regexp.Compile(p.Discovery.Pattern); err != nil {
			return fmt.Errorf("%w: %s: discovery pattern: %w", ErrInvalidProfile, p.Name, err)
		}
	}

	for _, loc := range p.locators() {
		for _, sel := range loc.Selectors {
			if _, err := parseSelectorTemplate(loc.Name, sel.Value); err != nil {
				return fmt.Errorf("%w: %s: locator %q: %w", ErrInvalidProfile, p.Name, loc.Name, err)
			}
		}
	}

	return nil
}

// locators returns every locator of the profile.
func (p *Profile) locators() []model.Locator {
	locs := []model.Locator{p.Consent, p.Results}
	for _, s := range p.Steps {
		locs = append(locs, s.Before...)
		locs = append(locs, s.Target, s.Ready)
	}
	return locs
}

// ResolveProfile returns the named profile: the built-in profile of that
// name overlaid with the one from the configuration file. A profile that
// exists only in the file is returned as is.
func ResolveProfile(name string, file *File) (*Profile, error) {
	base, builtin := BuiltinProfile(name)

	var user Profile
	var hasUser bool
	if file != nil {
		user, hasUser = file.Profiles[name]
	}

	if !builtin && !hasUser {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}

	if hasUser {
		if err := mergo.Merge(&base, user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge profile %q: %w", name, err)
		}
	}
	base.Name = name

	if err := base.Validate(); err != nil {
		return nil, err
	}
	return &base, nil
}
