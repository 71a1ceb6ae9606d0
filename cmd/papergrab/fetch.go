package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/papergrab/internal/browser"
	"github.com/nao1215/papergrab/internal/config"
	"github.com/nao1215/papergrab/internal/database"
	"github.com/nao1215/papergrab/internal/model"
	"github.com/nao1215/papergrab/internal/pipeline"
	"github.com/nao1215/papergrab/internal/report"
	"github.com/nao1215/papergrab/internal/retrieve"
	"github.com/nao1215/papergrab/internal/wizard"
	"github.com/spf13/cobra"
)

// newBrowser starts the browser session of a run. Tests replace it.
var newBrowser = func(ctx context.Context, opts browser.Options) (browser.Browser, error) {
	return browser.NewChrome(ctx, opts)
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the papers of a subject for one or more exam series",
		Long: `Fetch opens the past-papers wizard, selects the qualification, subject,
exam series and document type, and downloads every question paper and
marking scheme found on the results page.

Series are processed one after another in a single browser session.
When no series are given, the series offered by the wizard are used.

Examples:
  # Fetch one series of A Level Mathematics
  papergrab fetch --subject Mathematics --series "June 2023"

  # Fetch several series into a custom directory
  papergrab fetch -s Physics --series "June 2023" --series "November 2022" -d ~/papers

  # Use the International GCSE profile and show the browser
  papergrab fetch -P international-gcse -s Chemistry --headless=false

  # Write a Markdown summary to a file
  papergrab fetch -s Biology -m -o reports/biology.md`,
		Args: cobra.NoArgs,
		RunE: runFetchCmd,
	}

	// Wizard selection flags
	cmd.Flags().StringP("profile", "P", config.DefaultProfile,
		"Qualification profile (a-level, international-gcse or one from the config file)")
	cmd.Flags().StringP("subject", "s", "",
		"Subject as shown on the portal (e.g. Mathematics)")
	cmd.Flags().String("letter", "",
		"Letter of the subject grid (default: first letter of the subject)")
	cmd.Flags().StringSlice("series", nil,
		"Exam series to fetch, repeatable (default: every series the wizard offers)")
	cmd.Flags().String("qualification", "",
		"Override the qualification label of the profile")
	cmd.Flags().String("specification", "",
		"Specification picked when a subject offers several (default: the profile's, e.g. \"(2016)\")")
	cmd.Flags().String("content-type", config.DefaultContentType,
		"Document-type filter selected before harvesting")
	cmd.Flags().String("base-url", "",
		"Override the wizard start page of the profile")

	// Download flags
	cmd.Flags().StringP("output-dir", "d", config.DefaultDownloadDir,
		"Base directory of the paper layout")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Parallel downloads per series")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy for downloads (e.g. 127.0.0.1:1080)")

	// Timeout flags
	cmd.Flags().Duration("step-timeout", config.DefaultStepTimeout,
		"Time to wait for the target of a wizard step")
	cmd.Flags().Duration("click-timeout", config.DefaultClickTimeout,
		"Time budget of one click attempt")
	cmd.Flags().Duration("wizard-timeout", config.DefaultWizardTimeout,
		"Time budget of a whole wizard run")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout,
		"Time budget of one document download")

	// Browser flags
	cmd.Flags().Bool("headless", true,
		"Run the browser without a window")
	cmd.Flags().String("chrome-path", "",
		"Chrome or Chromium executable (default: found on PATH)")
	cmd.Flags().String("diagnostics-dir", "",
		"Save a screenshot and page dump when the wizard fails")

	// Ledger flags
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the download ledger")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the download ledger")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .papergrab.yaml in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runFetchCmd executes the fetch command.
func runFetchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runFetch(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags the user set, in that order of precedence.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(f)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	stringFlags := map[string]*string{
		"profile":         &cfg.Profile,
		"subject":         &cfg.Subject,
		"letter":          &cfg.SubjectLetter,
		"qualification":   &cfg.Qualification,
		"content-type":    &cfg.ContentType,
		"specification":   &cfg.Specification,
		"base-url":        &cfg.BaseURL,
		"output-dir":      &cfg.DownloadDir,
		"proxy":           &cfg.ProxyAddress,
		"chrome-path":     &cfg.ChromePath,
		"diagnostics-dir": &cfg.DiagnosticsDir,
		"db-dir":          &cfg.DBDir,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	durationFlags := map[string]*time.Duration{
		"step-timeout":    &cfg.StepTimeout,
		"click-timeout":   &cfg.ClickTimeout,
		"wizard-timeout":  &cfg.WizardTimeout,
		"request-timeout": &cfg.RequestTimeout,
	}
	for name, dst := range durationFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetDuration(name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("series") {
		if cfg.Series, err = flags.GetStringSlice("series"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("headless") {
		if cfg.Headless, err = flags.GetBool("headless"); err != nil {
			return nil, err
		}
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogJSON = getLogJSONFlag(cmd)

	return cfg, nil
}

// runFetch executes a whole run and writes its summary to out.
func runFetch(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	profile, err := cfg.ResolveProfile()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger.Info("starting run",
		"profile", profile.Name,
		"subject", cfg.Subject,
		"series", cfg.Series,
		"downloadDir", cfg.DownloadDir,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var ledger *database.Ledger
	if cfg.SaveToDB {
		ledger, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer ledger.Close()
		logger.Info("database opened", "path", ledger.Path())
	}

	client, err := retrieve.NewClient(cfg.ProxyAddress, cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("failed to create download client: %w", err)
	}

	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.ExecPath = cfg.ChromePath
	opts.Logger = logger
	b, err := newBrowser(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrSessionAcquisition, err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	series := cfg.Series
	if len(series) == 0 {
		fmt.Fprintln(out, "Discovering exam series...")
		series, err = discoverSeries(ctx, b, cfg, profile, logger)
		if err != nil {
			return fmt.Errorf("failed to discover series: %w", err)
		}
		if len(series) == 0 {
			return fmt.Errorf("the wizard offered no exam series for %s", cfg.Subject)
		}
	}

	p := pipeline.DefaultPipeline(b, client.HTTPClient(), cfg, profile,
		pipeline.WithLogger(logger),
	)
	runner := pipeline.NewRunner(p, profile.Name, cfg.Subject, pipeline.WithRunnerLogger(logger))

	var runID int64
	if ledger != nil {
		runID, err = ledger.BeginRun(ctx, model.NewRunSummary(profile.Name, cfg.Subject))
		if err != nil {
			logger.Error("failed to record run", "error", err)
			ledger = nil
		}
	}

	fmt.Fprintf(out, "Fetching %s %s: %d series\n\n", profile.Name, cfg.Subject, len(series))

	summary, runErr := runner.RunWithCallback(ctx, series, func(r *model.SeriesReport, index int) {
		printSeriesProgress(out, r, index, len(series))
		if ledger == nil {
			return
		}
		// The run context may already be cancelled; the outcome is still recorded.
		if err := ledger.RecordSeries(context.WithoutCancel(ctx), runID, r); err != nil {
			logger.Error("failed to record series", "series", r.Series, "error", err)
		}
	})
	summary.RunID = runID

	if ledger != nil {
		if err := ledger.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
			logger.Error("failed to finish run record", "error", err)
		}
	}

	fmt.Fprintln(out)
	if err := outputReport(cfg, summary, out); err != nil {
		logger.Error("report failed", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// discoverSeries reads the exam series the wizard offers for the subject.
func discoverSeries(ctx context.Context, b browser.Browser, cfg *config.Config, profile *config.Profile, logger *slog.Logger) ([]string, error) {
	clicker := wizard.NewClicker(b,
		wizard.WithClickTimeout(cfg.ClickTimeout),
		wizard.WithClickerLogger(logger),
	)
	navigator := wizard.NewNavigator(b, profile,
		wizard.WithStepTimeout(cfg.StepTimeout),
		wizard.WithWizardTimeout(cfg.WizardTimeout),
		wizard.WithConsentTimeout(cfg.ClickTimeout),
		wizard.WithPollInterval(cfg.PollInterval),
		wizard.WithClicker(clicker),
		wizard.WithLogger(logger),
	)
	return navigator.DiscoverSeries(ctx, config.VarsFor(cfg, profile, ""))
}

// printSeriesProgress prints one line per finished series.
func printSeriesProgress(out io.Writer, r *model.SeriesReport, index, total int) {
	if r.Failed() {
		fmt.Fprintf(out, "[%d/%d] %s failed: %s\n", index+1, total, r.Series, r.ErrorMessage)
		return
	}
	fmt.Fprintf(out, "[%d/%d] %s: %d bundle(s), %d saved, %d skipped, %d failed\n",
		index+1, total, r.Series,
		len(r.Bundles),
		r.Count(model.DownloadSaved),
		r.Count(model.DownloadSkippedExisting),
		r.Count(model.DownloadFailed),
	)
}

// outputReport writes the run summary in the requested format to out.
// With cfg.ReportFile set, the report goes to the file and out receives the
// plain-text summary.
func outputReport(cfg *config.Config, summary *model.RunSummary, out io.Writer) error {
	if cfg.ReportFile == "" {
		_, err := newReportWriter(cfg, out).Write(summary)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list portal URLs and local paths; keep them owner-readable.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := report.NewMultiWriter(
		report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)),
		newReportWriter(cfg, f),
	)
	if _, err := w.Write(summary); err != nil {
		return err
	}
	fmt.Fprintf(out, "Report written to %s\n", cfg.ReportFile)
	return nil
}

// newReportWriter selects the writer for the configured report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
