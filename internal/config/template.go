package config

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/nao1215/papergrab/internal/model"
)

// Vars are the values substituted into selector templates.
type Vars struct {
	Qualification string
	Subject       string
	Letter        string
	Series        string
	ContentType   string

	// Specification picks one of several specifications offered for a
	// subject, e.g. "(2016)". Empty when the profile offers no choice.
	Specification string
}

// templateFuncs are available to selector templates.
var templateFuncs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// parseSelectorTemplate parses one selector value.
func parseSelectorTemplate(name, value string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(value)
}

// Expand returns a copy of loc with every selector value rendered against vars.
// A selector whose value renders empty is dropped, so a template such as
// "{{if .Specification}}...{{end}}" disables itself when the value is unset.
func Expand(loc model.Locator, vars Vars) (model.Locator, error) {
	out := model.Locator{
		Name:      loc.Name,
		Selectors: make([]model.Selector, 0, len(loc.Selectors)),
	}
	for _, sel := range loc.Selectors {
		if !strings.Contains(sel.Value, "{{") {
			out.Selectors = append(out.Selectors, sel)
			continue
		}
		tmpl, err := parseSelectorTemplate(loc.Name, sel.Value)
		if err != nil {
			return model.Locator{}, fmt.Errorf("locator %q: %w", loc.Name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, vars); err != nil {
			return model.Locator{}, fmt.Errorf("locator %q: %w", loc.Name, err)
		}
		if buf.Len() == 0 {
			continue
		}
		sel.Value = buf.String()
		out.Selectors = append(out.Selectors, sel)
	}
	return out, nil
}

// VarsFor builds the template values for one series of a run.
func VarsFor(cfg *Config, profile *Profile, series string) Vars {
	qualification := profile.Qualification
	if cfg.Qualification != "" {
		qualification = cfg.Qualification
	}
	specification := profile.Specification
	if cfg.Specification != "" {
		specification = cfg.Specification
	}
	return Vars{
		Qualification: qualification,
		Subject:       cfg.Subject,
		Letter:        cfg.Letter(),
		Series:        series,
		ContentType:   cfg.ContentType,
		Specification: specification,
	}
}
