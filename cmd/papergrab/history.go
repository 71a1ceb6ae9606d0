package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/nao1215/papergrab/internal/config"
	"github.com/nao1215/papergrab/internal/database"
	"github.com/nao1215/papergrab/internal/model"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs recorded in the download ledger",
		Long: `History lists the runs recorded in the download ledger, newest first.

With a run ID it prints the stored summary of that run, in the same
formats as fetch. --failed lists the documents of the run that could not
be downloaded, with their reasons.

Examples:
  # List the last 10 runs
  papergrab history

  # Show the summary of run 12
  papergrab history 12

  # List the failed downloads of run 12
  papergrab history 12 --failed

  # Markdown summary of run 12
  papergrab history 12 -m`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", 10,
		"Number of runs to list (0 lists all)")
	cmd.Flags().Bool("failed", false,
		"List the failed downloads of the run")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the download ledger")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	failed, err := flags.GetBool("failed")
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return config.ErrConflictingReportFormats
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	ledger, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("no download history found (run fetch first): %w", err)
	}
	defer ledger.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if len(args) == 0 {
		if failed {
			return errors.New("--failed requires a run ID")
		}
		runs, err := ledger.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		printRuns(out, runs)
		return nil
	}

	runID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || runID <= 0 {
		return fmt.Errorf("invalid run ID: %q", args[0])
	}

	if failed {
		records, err := ledger.QueryDownloads(ctx, database.DownloadFilter{
			RunID:        runID,
			Status:       model.DownloadFailed,
			FilterStatus: true,
		})
		if err != nil {
			return err
		}
		printFailedDownloads(out, runID, records)
		return nil
	}

	summary, err := ledger.GetRunSummary(ctx, runID)
	if err != nil {
		return err
	}
	if summary == nil {
		return fmt.Errorf("run %d not found or not finished", runID)
	}
	_, err = newReportWriter(cfg, out).Write(summary)
	return err
}

// printRuns prints one line per run.
func printRuns(out io.Writer, runs []database.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tPROFILE\tSUBJECT\tSERIES\tSAVED\tSKIPPED\tFAILED\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Profile,
			r.Subject,
			r.SeriesProcessed,
			r.Saved,
			r.Skipped,
			r.Failed,
			runState(r),
		)
	}
	tw.Flush()
}

// runState describes how a recorded run ended.
func runState(r database.RunRecord) string {
	switch {
	case r.FinishedAt.IsZero():
		return "incomplete"
	case r.Cancelled:
		return "cancelled"
	case r.Failed > 0:
		return "failures"
	default:
		return "ok"
	}
}

// printFailedDownloads prints the failed documents of a run with their reasons.
func printFailedDownloads(out io.Writer, runID int64, records []database.DownloadRecord) {
	if len(records) == 0 {
		fmt.Fprintf(out, "Run %d has no failed downloads.\n", runID)
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIES\tCODE\tKIND\tSTATUS\tREASON\tURL")
	for _, r := range records {
		status := "-"
		if r.StatusCode > 0 {
			status = strconv.Itoa(r.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Series, r.Code, r.Kind, status, r.Reason, r.Href)
	}
	tw.Flush()
}
