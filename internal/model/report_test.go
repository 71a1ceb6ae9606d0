package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestRunSummaryAdd(t *testing.T) {
	t.Parallel()

	ok := NewSeriesReport("a-level", "Mathematics", "June 2023")
	ok.Bundles = []PaperBundle{{Code: "9MA0-01"}, {Code: "9MA0-02"}}
	ok.Ambiguous = []string{"Examiner report"}
	ok.Downloads = []DownloadResult{
		{Code: "9MA0-01", Kind: KindQuestionPaper, Outcome: Saved()},
		{Code: "9MA0-01", Kind: KindMarkingScheme, Outcome: SkippedExisting()},
		{Code: "9MA0-02", Kind: KindQuestionPaper, Ref: DocumentRef{Href: "https://x/b.pdf"}, Outcome: FailedStatus(404, "HTTP 404")},
	}

	broken := NewSeriesReport("a-level", "Mathematics", "June 2022")
	broken.SetError(fmt.Errorf("step subject: %w", ErrNavigationTimeout))

	summary := NewRunSummary("a-level", "Mathematics")
	summary.Add(ok)
	summary.Add(broken)
	summary.Finish()

	if summary.SeriesProcessed != 2 || summary.SeriesFailed != 1 {
		t.Errorf("unexpected series counts: %d processed, %d failed", summary.SeriesProcessed, summary.SeriesFailed)
	}
	if summary.BundlesFound != 2 {
		t.Errorf("expected 2 bundles, got %d", summary.BundlesFound)
	}
	if summary.Saved != 1 || summary.Skipped != 1 || summary.Failed != 1 {
		t.Errorf("unexpected outcome counts: %+v", summary)
	}
	if len(summary.Series[0].Failures) != 1 || summary.Series[0].Failures[0].Reason != "HTTP 404" {
		t.Errorf("failure reason not recorded: %+v", summary.Series[0].Failures)
	}
	if summary.Series[1].Error == "" {
		t.Error("series error message should be recorded")
	}
	if summary.Duration() < 0 {
		t.Error("duration should not be negative")
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	if !IsFatal(fmt.Errorf("open base page: %w", ErrSessionAcquisition)) {
		t.Error("wrapped session acquisition error should be fatal")
	}
	for _, err := range []error{ErrNavigationTimeout, ErrNavigationIncomplete, ErrDownloadFailed, errors.New("other")} {
		if IsFatal(err) {
			t.Errorf("%v should not be fatal", err)
		}
	}
}

func TestDownloadOutcomeIsAuthFailure(t *testing.T) {
	t.Parallel()

	if !FailedStatus(403, "HTTP 403").IsAuthFailure() {
		t.Error("403 should be an auth failure")
	}
	if FailedStatus(500, "HTTP 500").IsAuthFailure() {
		t.Error("500 should not be an auth failure")
	}
	if Saved().IsAuthFailure() {
		t.Error("saved is not a failure")
	}
}
