package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/papergrab/internal/model"
)

// SimpleWriter outputs a plain-text summary for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the URL of each failed document.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeTotals(&sb, summary)
	w.writeSeries(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      PAPERGRAB RUN SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if summary.RunID != 0 {
		fmt.Fprintf(sb, "Run:       #%d\n", summary.RunID)
	}
	fmt.Fprintf(sb, "Profile:   %s\n", summary.Profile)
	fmt.Fprintf(sb, "Subject:   %s\n", summary.Subject)
	fmt.Fprintf(sb, "Started:   %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:  %s\n", summary.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:    %s\n", status(summary))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTotals(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nTOTALS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  SERIES:   %d (%d failed)\n", summary.SeriesProcessed, summary.SeriesFailed)
	fmt.Fprintf(sb, "  BUNDLES:  %d\n", summary.BundlesFound)
	fmt.Fprintf(sb, "  SAVED:    %d\n", summary.Saved)
	fmt.Fprintf(sb, "  SKIPPED:  %d\n", summary.Skipped)
	fmt.Fprintf(sb, "  FAILED:   %d\n", summary.Failed)
	sb.WriteString("\n")

	if sessionExpired(summary) {
		sb.WriteString("  [!] The portal refused every download of a series; the browser\n")
		sb.WriteString("      session has likely expired. Re-run to start a fresh session.\n\n")
	}
}

func (w *SimpleWriter) writeSeries(sb *strings.Builder, summary *model.RunSummary) {
	if len(summary.Series) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nSERIES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, s := range summary.Series {
		indicator := "ok"
		if s.Error != "" || s.Failed > 0 {
			indicator = "!!"
		}
		fmt.Fprintf(sb, "[%s] %s\n", indicator, s.Series)
		fmt.Fprintf(sb, "    bundles %d, saved %d, skipped %d, failed %d\n",
			s.Bundles, s.Saved, s.Skipped, s.Failed)
		if s.Ambiguous > 0 {
			fmt.Fprintf(sb, "    %d link(s) dropped as ambiguous\n", s.Ambiguous)
		}
		if s.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", s.Error)
		}
		for _, f := range s.Failures {
			fmt.Fprintf(sb, "    * %s %s: %s\n", f.Code, f.Kind, f.Reason)
			if w.verbose {
				fmt.Fprintf(sb, "      %s\n", f.Href)
			}
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
