package model

import (
	"fmt"
	"strings"
)

// WizardStep is one state of the past-papers selection wizard.
// Steps are ordered; the navigator advances monotonically through them
// but may re-issue a step once or restart from StepQualification on drift.
type WizardStep int

const (
	// StepQualification selects the qualification family (e.g. "A Level").
	StepQualification WizardStep = iota

	// StepSubjectLetter selects the initial letter in the subject grid.
	StepSubjectLetter

	// StepSubject selects the subject itself (e.g. "Mathematics").
	StepSubject

	// StepSeries selects the exam series (e.g. "June 2023").
	StepSeries

	// StepContentType applies the document-type filter (e.g. "Question paper").
	StepContentType

	// StepResults is the terminal state in which result links are present.
	StepResults
)

// wizardStepNames maps steps to the names used in configuration files.
var wizardStepNames = map[WizardStep]string{
	StepQualification: "qualification",
	StepSubjectLetter: "subject_letter",
	StepSubject:       "subject",
	StepSeries:        "series",
	StepContentType:   "content_type",
	StepResults:       "results",
}

// String returns the configuration name of the step.
func (s WizardStep) String() string {
	if name, ok := wizardStepNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseWizardStep converts a configuration name into a WizardStep.
func ParseWizardStep(name string) (WizardStep, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for step, stepName := range wizardStepNames {
		if stepName == normalized {
			return step, nil
		}
	}
	return 0, fmt.Errorf("unknown wizard step %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s WizardStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so steps can be
// written by name in YAML.
func (s *WizardStep) UnmarshalText(text []byte) error {
	step, err := ParseWizardStep(string(text))
	if err != nil {
		return err
	}
	*s = step
	return nil
}

// SelectorKind is the matching strategy of a Selector.
type SelectorKind string

const (
	// SelectorText matches elements by their visible text.
	SelectorText SelectorKind = "text"

	// SelectorAttribute matches elements by an attribute value.
	SelectorAttribute SelectorKind = "attribute"

	// SelectorCSS is a raw CSS selector.
	SelectorCSS SelectorKind = "css"

	// SelectorXPath is a raw XPath expression.
	SelectorXPath SelectorKind = "xpath"
)

// Selector is a single way of finding an element on the page.
// Value may contain template variables such as {{.Subject}}; they are
// expanded by the navigator before the selector reaches the browser.
type Selector struct {
	// Kind is the matching strategy.
	Kind SelectorKind `yaml:"by" json:"by"`

	// Value is the text, attribute value, CSS selector or XPath expression.
	Value string `yaml:"value" json:"value"`

	// Tag restricts text and attribute matches to one element name.
	Tag string `yaml:"tag,omitempty" json:"tag,omitempty"`

	// Attribute is the attribute name for SelectorAttribute.
	Attribute string `yaml:"attribute,omitempty" json:"attribute,omitempty"`

	// Exact requires the whole normalized text to equal Value.
	Exact bool `yaml:"exact,omitempty" json:"exact,omitempty"`

	// Within limits text and attribute matches to descendants of the
	// element with this class name (e.g. "findpastpapers").
	Within string `yaml:"within,omitempty" json:"within,omitempty"`
}

// String returns a compact description for logs.
func (s Selector) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.Value)
}

// Locator is a named logical target with a priority-ordered list of
// selectors. Selectors[0] is the primary; the rest are fallbacks.
type Locator struct {
	// Name describes the target in logs ("subject link").
	Name string `yaml:"name" json:"name"`

	// Selectors are tried in order until one matches a visible element.
	Selectors []Selector `yaml:"selectors" json:"selectors"`
}

// IsZero reports whether the locator has no selectors at all.
func (l Locator) IsZero() bool {
	return len(l.Selectors) == 0
}
