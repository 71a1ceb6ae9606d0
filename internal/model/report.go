package model

import "time"

// SeriesReport is the result of running the pipeline for one exam series.
// Pipeline steps fill it in as they run.
type SeriesReport struct {
	// === Identity ===

	// Profile is the qualification profile name (e.g. "a-level").
	Profile string `json:"profile"`

	// Subject is the subject the wizard selected.
	Subject string `json:"subject"`

	// Series is the exam series (e.g. "June 2023").
	Series string `json:"series"`

	// StartedAt is when processing of the series began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when processing of the series ended.
	FinishedAt time.Time `json:"finished_at"`

	// === Wizard ===

	// PageURL is the location of the results page.
	PageURL string `json:"page_url,omitempty"`

	// PageSource is the results page markup. It is not serialized.
	PageSource string `json:"-"`

	// Restarts is how many times drift forced a restart of the wizard.
	Restarts int `json:"restarts"`

	// SkippedSteps lists optional steps whose target was absent.
	SkippedSteps []string `json:"skipped_steps,omitempty"`

	// === Harvest & classification ===

	// Links are the harvested anchors. They are not serialized.
	Links []RawLink `json:"-"`

	// LinksHarvested is len(Links), kept for output.
	LinksHarvested int `json:"links_harvested"`

	// Ambiguous lists the titles dropped as CLASSIFICATION_AMBIGUOUS.
	Ambiguous []string `json:"ambiguous,omitempty"`

	// Bundles are the paired documents.
	Bundles []PaperBundle `json:"bundles,omitempty"`

	// === Retrieval ===

	// Session is the captured browser session. It is not serialized.
	Session *Session `json:"-"`

	// Downloads holds one result per document.
	Downloads []DownloadResult `json:"downloads,omitempty"`

	// SessionExpired is set when every attempted download failed with 401/403.
	SessionExpired bool `json:"session_expired"`

	// === State ===

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// DiagnosticsDir is where the screenshot and page dump were written
	// after a wizard failure.
	DiagnosticsDir string `json:"diagnostics_dir,omitempty"`

	// Error is the error that stopped the series. It is not serialized.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewSeriesReport creates a report for one series.
func NewSeriesReport(profile, subject, series string) *SeriesReport {
	return &SeriesReport{
		Profile:   profile,
		Subject:   subject,
		Series:    series,
		StartedAt: time.Now(),
	}
}

// Failed reports whether the series stopped with an error.
func (r *SeriesReport) Failed() bool {
	return r.Error != nil
}

// SetError records err as the series error.
func (r *SeriesReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Count returns the number of downloads with the given status.
func (r *SeriesReport) Count(status DownloadStatus) int {
	n := 0
	for _, d := range r.Downloads {
		if d.Outcome.Status == status {
			n++
		}
	}
	return n
}
