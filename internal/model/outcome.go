package model

// DownloadStatus is the result category of one document fetch.
type DownloadStatus int

const (
	// DownloadSaved means the document was fetched and written.
	DownloadSaved DownloadStatus = iota

	// DownloadSkippedExisting means the target file was already present
	// and no network call was made.
	DownloadSkippedExisting

	// DownloadFailed means the fetch or the write failed. No file was left
	// at the target path.
	DownloadFailed
)

// String returns a human-readable representation of the status.
func (s DownloadStatus) String() string {
	switch s {
	case DownloadSaved:
		return "SAVED"
	case DownloadSkippedExisting:
		return "SKIPPED_EXISTING"
	case DownloadFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DownloadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DownloadOutcome is the per-document result of the retrieval engine.
type DownloadOutcome struct {
	// Status is the outcome category.
	Status DownloadStatus `json:"status"`

	// Reason explains a failure. Empty unless Status is DownloadFailed.
	Reason string `json:"reason,omitempty"`

	// StatusCode is the HTTP status when a response was received.
	StatusCode int `json:"status_code,omitempty"`
}

// Saved returns a SAVED outcome.
func Saved() DownloadOutcome {
	return DownloadOutcome{Status: DownloadSaved}
}

// SkippedExisting returns a SKIPPED_EXISTING outcome.
func SkippedExisting() DownloadOutcome {
	return DownloadOutcome{Status: DownloadSkippedExisting}
}

// Failed returns a FAILED outcome carrying the reason.
func Failed(reason string) DownloadOutcome {
	return DownloadOutcome{Status: DownloadFailed, Reason: reason}
}

// FailedStatus returns a FAILED outcome for an HTTP status response.
func FailedStatus(code int, reason string) DownloadOutcome {
	return DownloadOutcome{Status: DownloadFailed, Reason: reason, StatusCode: code}
}

// IsAuthFailure reports whether the outcome failed with 401 or 403.
func (o DownloadOutcome) IsAuthFailure() bool {
	return o.Status == DownloadFailed && (o.StatusCode == 401 || o.StatusCode == 403)
}

// DownloadResult ties an outcome to the document it belongs to.
type DownloadResult struct {
	// Code is the bundle the document belongs to.
	Code PaperCode `json:"code"`

	// Kind is the document kind.
	Kind DocumentKind `json:"kind"`

	// Ref is the fetched document.
	Ref DocumentRef `json:"ref"`

	// Path is the target file path.
	Path string `json:"path"`

	// Outcome is what happened.
	Outcome DownloadOutcome `json:"outcome"`
}
