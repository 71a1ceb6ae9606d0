package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Profile.Validate. Callers match them with errors.Is.
var (
	// ErrNoSubject is returned when no subject is configured.
	ErrNoSubject = errors.New("no subject specified: use --subject or set defaults.subject")

	// ErrInvalidConcurrency is returned when the download concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTimeout is returned when any timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidPollInterval is returned when the poll interval is not positive.
	ErrInvalidPollInterval = errors.New("invalid poll interval: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoDownloadDir is returned when the download directory is empty.
	ErrNoDownloadDir = errors.New("no download directory specified")

	// ErrUnknownProfile is returned when a profile name matches neither a
	// built-in profile nor one from the configuration file.
	ErrUnknownProfile = errors.New("unknown qualification profile")

	// ErrNoSeries is returned when no series are configured and the profile
	// cannot discover them.
	ErrNoSeries = errors.New("no series specified and profile has no series discovery pattern")

	// ErrInvalidProfile is returned when a profile is structurally broken
	// (no base URL, no steps, no results locator, bad template).
	ErrInvalidProfile = errors.New("invalid qualification profile")
)
