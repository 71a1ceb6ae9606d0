package report

import (
	"io"

	"github.com/nao1215/papergrab/internal/model"
)

// Writer defines the interface for summary output.
type Writer interface {
	// Write outputs the summary to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(summary *model.RunSummary) (int, error)
}

// MultiWriter writes to multiple Writers, e.g. the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(summary *model.RunSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// status returns a one-line state of the run.
func status(summary *model.RunSummary) string {
	switch {
	case summary.Cancelled:
		return "Cancelled (partial results)"
	case summary.SeriesFailed > 0:
		return "Finished with errors"
	case summary.Failed > 0:
		return "Finished with failed downloads"
	default:
		return "Complete"
	}
}

// sessionExpired reports whether any series saw its session expire.
func sessionExpired(summary *model.RunSummary) bool {
	for _, s := range summary.Series {
		if s.SessionExpired {
			return true
		}
	}
	return false
}
