package config

import (
	"path/filepath"
	"time"
	"unicode"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "papergrab"

	// DefaultProfile is the qualification profile used when none is given.
	DefaultProfile = "a-level"

	// DefaultContentType is the document-type filter clicked in the wizard.
	DefaultContentType = "Question paper"

	// DefaultDownloadDir is where papers are stored, relative to the cwd.
	DefaultDownloadDir = "papers"

	// DefaultConcurrency is the number of parallel downloads.
	// Kept small to stay polite to the portal.
	DefaultConcurrency = 4

	// DefaultStepTimeout bounds locating a step target and waiting for its
	// readiness condition.
	DefaultStepTimeout = 15 * time.Second

	// DefaultClickTimeout bounds each click strategy.
	DefaultClickTimeout = 5 * time.Second

	// DefaultWizardTimeout bounds the whole wizard run for one series.
	DefaultWizardTimeout = 60 * time.Second

	// DefaultRequestTimeout bounds each document download.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultPollInterval is how often waits re-check their predicate.
	DefaultPollInterval = 250 * time.Millisecond
)

// Config holds all run options for papergrab.
// It is populated from the configuration file and CLI flags and passed
// through the application explicitly rather than held in globals.
type Config struct {
	// Profile is the qualification profile name ("a-level", "international-gcse").
	Profile string

	// BaseURL overrides the profile's wizard page URL when set.
	BaseURL string

	// Qualification overrides the profile's qualification text when set.
	Qualification string

	// Subject is the subject to select, e.g. "Mathematics".
	Subject string

	// SubjectLetter is the letter-grid key. Derived from Subject when empty.
	SubjectLetter string

	// Series lists the exam series to fetch ("June 2023").
	// When empty the series are discovered from the wizard.
	Series []string

	// ContentType is the document-type filter text.
	ContentType string

	// Specification overrides the profile's specification choice when set.
	Specification string

	// DownloadDir is the base directory of the paper layout.
	DownloadDir string

	// Concurrency is the number of parallel downloads per series.
	Concurrency int

	// StepTimeout bounds each wizard step.
	StepTimeout time.Duration

	// ClickTimeout bounds each click strategy.
	ClickTimeout time.Duration

	// WizardTimeout bounds reaching the results state of one series.
	WizardTimeout time.Duration

	// RequestTimeout bounds each document download.
	RequestTimeout time.Duration

	// PollInterval is the re-check period of bounded waits.
	PollInterval time.Duration

	// Headless runs the browser without a window.
	Headless bool

	// ChromePath is an explicit browser executable. Empty means auto-detect.
	ChromePath string

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") used for downloads.
	ProxyAddress string

	// DiagnosticsDir receives screenshots and page dumps when a series fails
	// inside the wizard. Empty disables diagnostics.
	DiagnosticsDir string

	// DBDir is the directory of the download ledger database.
	DBDir string

	// SaveToDB records runs and outcomes in the ledger.
	SaveToDB bool

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON selects the JSON log handler.
	LogJSON bool

	// JSONReport prints the run summary as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the run summary as Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the summary to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is the explicit configuration file path.
	ConfigFilePath string

	// File is the loaded configuration file, if any.
	File *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Profile:        DefaultProfile,
		ContentType:    DefaultContentType,
		DownloadDir:    DefaultDownloadDir,
		Concurrency:    DefaultConcurrency,
		StepTimeout:    DefaultStepTimeout,
		ClickTimeout:   DefaultClickTimeout,
		WizardTimeout:  DefaultWizardTimeout,
		RequestTimeout: DefaultRequestTimeout,
		PollInterval:   DefaultPollInterval,
		Headless:       true,
		DiagnosticsDir: filepath.Join(XDGCacheDir(), "diagnostics"),
		DBDir:          XDGDataDir(),
		SaveToDB:       true,
	}
}

// XDGDataDir returns the XDG data directory for papergrab.
// On Linux: ~/.local/share/papergrab
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for papergrab.
// On Linux: ~/.config/papergrab
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for papergrab.
// On Linux: ~/.cache/papergrab
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Letter returns the subject-grid letter: SubjectLetter if set,
// otherwise the upper-cased first letter of Subject.
func (c *Config) Letter() string {
	if c.SubjectLetter != "" {
		return c.SubjectLetter
	}
	for _, r := range c.Subject {
		return string(unicode.ToUpper(r))
	}
	return ""
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Subject == "" {
		return ErrNoSubject
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.StepTimeout <= 0 || c.ClickTimeout <= 0 || c.WizardTimeout <= 0 || c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.DownloadDir == "" {
		return ErrNoDownloadDir
	}

	return nil
}
