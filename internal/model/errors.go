package model

import "errors"

// Error taxonomy shared by the navigator, the pairer and the retrieval engine.
// Only ErrSessionAcquisition aborts a whole run; everything else is local to
// one series or one document.
var (
	// ErrNavigationTimeout is returned when a wizard step's readiness
	// condition is never satisfied.
	ErrNavigationTimeout = errors.New("wizard step timed out")

	// ErrLocatorNotFound is returned when every selector of a locator
	// failed to match a visible element.
	ErrLocatorNotFound = errors.New("locator not found")

	// ErrNavigationIncomplete is returned when the results container did not
	// appear within the overall wizard timeout.
	ErrNavigationIncomplete = errors.New("wizard did not reach results")

	// ErrNavigationDrift is returned when the browser left the wizard page
	// twice in one series.
	ErrNavigationDrift = errors.New("navigation drifted away from the wizard page")

	// ErrClassificationAmbiguous marks a link whose kind could not be determined.
	ErrClassificationAmbiguous = errors.New("document kind is ambiguous")

	// ErrDownloadFailed is returned for a failed document fetch.
	ErrDownloadFailed = errors.New("download failed")

	// ErrSessionExpired is raised once when every attempted download of a
	// batch failed with an authorization status.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionAcquisition is returned when the browser cannot be started or
	// the base page cannot be reached. It aborts the run.
	ErrSessionAcquisition = errors.New("failed to acquire browser session")
)

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSessionAcquisition)
}
