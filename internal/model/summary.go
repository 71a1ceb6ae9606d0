package model

import "time"

// RunSummary is the user-visible summary of a whole run: series processed,
// bundles found and document outcomes with failure reasons.
type RunSummary struct {
	// RunID identifies the run in the download ledger.
	RunID int64 `json:"run_id,omitempty"`

	// Profile is the qualification profile used.
	Profile string `json:"profile"`

	// Subject is the selected subject.
	Subject string `json:"subject"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended.
	FinishedAt time.Time `json:"finished_at"`

	// SeriesProcessed is the number of series attempted.
	SeriesProcessed int `json:"series_processed"`

	// SeriesFailed is the number of series that stopped with an error.
	SeriesFailed int `json:"series_failed"`

	// BundlesFound is the total number of bundles across all series.
	BundlesFound int `json:"bundles_found"`

	// Saved is the number of documents written.
	Saved int `json:"saved"`

	// Skipped is the number of documents already present.
	Skipped int `json:"skipped"`

	// Failed is the number of documents that could not be fetched.
	Failed int `json:"failed"`

	// Cancelled is true if the run was interrupted.
	Cancelled bool `json:"cancelled"`

	// Series holds one entry per series in processing order.
	Series []SeriesSummary `json:"series"`
}

// SeriesSummary condenses one SeriesReport.
type SeriesSummary struct {
	Series         string          `json:"series"`
	Bundles        int             `json:"bundles"`
	Saved          int             `json:"saved"`
	Skipped        int             `json:"skipped"`
	Failed         int             `json:"failed"`
	Ambiguous      int             `json:"ambiguous"`
	SessionExpired bool            `json:"session_expired"`
	Error          string          `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
	Failures       []FailureDetail `json:"failures,omitempty"`
}

// FailureDetail is one failed document with its reason.
type FailureDetail struct {
	Code   PaperCode `json:"code"`
	Kind   string    `json:"kind"`
	Href   string    `json:"href"`
	Reason string    `json:"reason"`
}

// NewRunSummary creates an empty summary.
func NewRunSummary(profile, subject string) *RunSummary {
	return &RunSummary{
		Profile:   profile,
		Subject:   subject,
		StartedAt: time.Now(),
	}
}

// Add folds a finished series report into the summary.
func (s *RunSummary) Add(r *SeriesReport) {
	entry := SeriesSummary{
		Series:         r.Series,
		Bundles:        len(r.Bundles),
		Saved:          r.Count(DownloadSaved),
		Skipped:        r.Count(DownloadSkippedExisting),
		Failed:         r.Count(DownloadFailed),
		Ambiguous:      len(r.Ambiguous),
		SessionExpired: r.SessionExpired,
		Error:          r.ErrorMessage,
	}
	for _, d := range r.Downloads {
		if d.Outcome.Status != DownloadFailed {
			continue
		}
		entry.Failures = append(entry.Failures, FailureDetail{
			Code:   d.Code,
			Kind:   d.Kind.String(),
			Href:   d.Ref.Href,
			Reason: d.Outcome.Reason,
		})
	}

	s.SeriesProcessed++
	if r.Failed() {
		s.SeriesFailed++
	}
	s.BundlesFound += entry.Bundles
	s.Saved += entry.Saved
	s.Skipped += entry.Skipped
	s.Failed += entry.Failed
	s.Series = append(s.Series, entry)
}

// Finish stamps the end time.
func (s *RunSummary) Finish() {
	s.FinishedAt = time.Now()
}

// Duration returns how long the run took.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
