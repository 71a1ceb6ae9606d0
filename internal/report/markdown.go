package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/papergrab/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeTotals(md, summary)
	w.writeSeries(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.RunSummary) {
	md.H1("papergrab Run Summary")
	md.PlainText("")

	rows := [][]string{
		{"Profile", "`" + summary.Profile + "`"},
		{"Subject", summary.Subject},
		{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Status", w.getStatusText(summary)},
	}
	if summary.RunID != 0 {
		rows = append([][]string{{"Run", "#" + strconv.FormatInt(summary.RunID, 10)}}, rows...)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on summary state.
func (w *MarkdownWriter) getStatusText(summary *model.RunSummary) string {
	switch {
	case summary.Cancelled:
		return "⚠️ " + status(summary)
	case summary.SeriesFailed > 0 || summary.Failed > 0:
		return "❌ " + status(summary)
	default:
		return "✅ " + status(summary)
	}
}

// writeTotals writes the outcome counts, a chart and an alert.
func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Totals")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Series processed", strconv.Itoa(summary.SeriesProcessed)},
			{"Series failed", strconv.Itoa(summary.SeriesFailed)},
			{"Bundles found", strconv.Itoa(summary.BundlesFound)},
			{"🟢 Saved", strconv.Itoa(summary.Saved)},
			{"⚪ Skipped (already present)", strconv.Itoa(summary.Skipped)},
			{"🔴 Failed", strconv.Itoa(summary.Failed)},
		},
	})
	md.PlainText("")

	if summary.Saved+summary.Skipped+summary.Failed > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of document outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Document Outcomes"),
		piechart.WithShowData(true),
	)

	if summary.Saved > 0 {
		chart.LabelAndIntValue("Saved", uint64(summary.Saved))
	}
	if summary.Skipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(summary.Skipped))
	}
	if summary.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(summary.Failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the worst outcome of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.RunSummary) {
	switch {
	case summary.Cancelled:
		md.Caution("The run was cancelled. Re-running resumes where it stopped; saved documents are skipped.")
	case sessionExpired(summary):
		md.Warning("The portal refused every download of a series. The browser session has likely expired.")
	case summary.SeriesFailed > 0:
		md.Importantf("%d series could not be processed. See the series table for the reason.", summary.SeriesFailed)
	case summary.Failed > 0:
		md.Notef("%d document(s) failed to download.", summary.Failed)
	default:
		md.Tip("Every document was saved or already present.")
	}
	md.PlainText("")
}

// writeSeries writes one row per series.
func (w *MarkdownWriter) writeSeries(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Series")
	md.PlainText("")

	if len(summary.Series) == 0 {
		md.PlainText("No series were processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Series))
	for i, s := range summary.Series {
		errText := s.Error
		if errText == "" {
			errText = "-"
		}
		rows[i] = []string{
			s.Series,
			strconv.Itoa(s.Bundles),
			strconv.Itoa(s.Saved),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Ambiguous),
			truncateString(errText, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Series", "Bundles", "Saved", "Skipped", "Failed", "Ambiguous", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures lists failed documents grouped by series.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.RunSummary) {
	if summary.Failed == 0 {
		return
	}

	md.H2("Failed Documents")
	md.PlainText("")

	for _, s := range summary.Series {
		if len(s.Failures) == 0 {
			continue
		}

		md.H3(s.Series)
		md.PlainText("")

		rows := make([][]string, len(s.Failures))
		for i, f := range s.Failures {
			rows[i] = []string{
				string(f.Code),
				f.Kind,
				truncateString(f.Reason, 50),
				truncateString(f.Href, 60),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Code", "Kind", "Reason", "URL"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the summary footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by [papergrab](https://github.com/nao1215/papergrab)*")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
