// Package report writes run summaries.
//
// Writers render a model.RunSummary in one format each:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: Markdown with tables and an outcome chart
//   - JSONWriter / FullJSONWriter: JSON for scripts
//
// Writers implement the Writer interface and can be combined with MultiWriter.
package report
