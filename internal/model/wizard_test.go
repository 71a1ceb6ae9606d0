package model

import "testing"

func TestWizardStepString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		step     WizardStep
		expected string
	}{
		{StepQualification, "qualification"},
		{StepSubjectLetter, "subject_letter"},
		{StepSubject, "subject"},
		{StepSeries, "series"},
		{StepContentType, "content_type"},
		{StepResults, "results"},
		{WizardStep(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if got := tc.step.String(); got != tc.expected {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
		})
	}
}

func TestParseWizardStep(t *testing.T) {
	t.Parallel()

	t.Run("round trips every step", func(t *testing.T) {
		t.Parallel()
		for step := StepQualification; step <= StepResults; step++ {
			got, err := ParseWizardStep(step.String())
			if err != nil {
				t.Fatalf("unexpected error for %s: %v", step, err)
			}
			if got != step {
				t.Errorf("expected %v, got %v", step, got)
			}
		}
	})

	t.Run("accepts surrounding whitespace and upper case", func(t *testing.T) {
		t.Parallel()
		got, err := ParseWizardStep("  Content_Type ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != StepContentType {
			t.Errorf("expected content_type, got %v", got)
		}
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		t.Parallel()
		if _, err := ParseWizardStep("checkout"); err == nil {
			t.Error("expected error for unknown step")
		}
	})
}

func TestWizardStepUnmarshalText(t *testing.T) {
	t.Parallel()

	var step WizardStep
	if err := step.UnmarshalText([]byte("series")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step != StepSeries {
		t.Errorf("expected series, got %v", step)
	}
}

func TestLocatorIsZero(t *testing.T) {
	t.Parallel()

	if !(Locator{Name: "empty"}).IsZero() {
		t.Error("locator without selectors should be zero")
	}
	loc := Locator{Selectors: []Selector{{Kind: SelectorCSS, Value: "#step3"}}}
	if loc.IsZero() {
		t.Error("locator with a selector should not be zero")
	}
	if got := loc.Selectors[0].String(); got != "css:#step3" {
		t.Errorf("unexpected selector string %q", got)
	}
}
