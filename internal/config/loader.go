package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".papergrab.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Defaults are run settings read from the configuration file.
// Zero values leave the built-in default untouched.
type Defaults struct {
	Profile        string        `yaml:"profile,omitempty"`
	BaseURL        string        `yaml:"base_url,omitempty"`
	Qualification  string        `yaml:"qualification,omitempty"`
	Subject        string        `yaml:"subject,omitempty"`
	SubjectLetter  string        `yaml:"subject_letter,omitempty"`
	Series         []string      `yaml:"series,omitempty"`
	ContentType    string        `yaml:"content_type,omitempty"`
	Specification  string        `yaml:"specification,omitempty"`
	DownloadDir    string        `yaml:"download_dir,omitempty"`
	Concurrency    int           `yaml:"concurrency,omitempty"`
	StepTimeout    time.Duration `yaml:"step_timeout,omitempty"`
	ClickTimeout   time.Duration `yaml:"click_timeout,omitempty"`
	WizardTimeout  time.Duration `yaml:"wizard_timeout,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	Headless       *bool         `yaml:"headless,omitempty"`
	ChromePath     string        `yaml:"chrome_path,omitempty"`
	Proxy          string        `yaml:"proxy,omitempty"`
	DiagnosticsDir string        `yaml:"diagnostics_dir,omitempty"`
}

// File represents the structure of the .papergrab.yaml configuration file.
type File struct {
	// Defaults are run settings applied before CLI flags.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Profiles are qualification profiles keyed by name. A profile with the
	// name of a built-in one is overlaid on it.
	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// LoadConfigFile loads the configuration file at path.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Profiles == nil {
		cf.Profiles = make(map[string]Profile)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .papergrab.yaml in the current directory
// 3. Look for .papergrab.yaml in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ApplyFile copies the file defaults into c. Fields left empty in the file
// keep their current value.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f
	d := f.Defaults

	setString(&c.Profile, d.Profile)
	setString(&c.BaseURL, d.BaseURL)
	setString(&c.Qualification, d.Qualification)
	setString(&c.Subject, d.Subject)
	setString(&c.SubjectLetter, d.SubjectLetter)
	setString(&c.ContentType, d.ContentType)
	setString(&c.Specification, d.Specification)
	setString(&c.DownloadDir, d.DownloadDir)
	setString(&c.ChromePath, d.ChromePath)
	setString(&c.ProxyAddress, d.Proxy)
	setString(&c.DiagnosticsDir, d.DiagnosticsDir)

	if len(d.Series) > 0 {
		c.Series = append([]string(nil), d.Series...)
	}
	if d.Concurrency != 0 {
		c.Concurrency = d.Concurrency
	}
	if d.StepTimeout != 0 {
		c.StepTimeout = d.StepTimeout
	}
	if d.ClickTimeout != 0 {
		c.ClickTimeout = d.ClickTimeout
	}
	if d.WizardTimeout != 0 {
		c.WizardTimeout = d.WizardTimeout
	}
	if d.RequestTimeout != 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if d.Headless != nil {
		c.Headless = *d.Headless
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ResolveProfile returns the run's qualification profile with BaseURL
// overrides applied, and checks that the series can be determined.
func (c *Config) ResolveProfile() (*Profile, error) {
	p, err := ResolveProfile(c.Profile, c.File)
	if err != nil {
		return nil, err
	}
	if c.BaseURL != "" {
		p.BaseURL = c.BaseURL
	}
	if len(c.Series) == 0 && p.Discovery.Pattern == "" {
		return nil, ErrNoSeries
	}
	return p, nil
}
