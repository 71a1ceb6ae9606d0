package config

import (
	"sort"

	"github.com/nao1215/papergrab/internal/model"
)

// PastPapersURL is the portal page hosting the past-papers wizard.
const PastPapersURL = "https://qualifications.pearson.com/en/support/support-topics/exams/past-papers.html"

// DefaultSeriesPattern matches exam series names such as "June 2023".
const DefaultSeriesPattern = `(?i)(June|January|November|May|October|Summer|Winter)\s*20\d{2}`

// wizardContainer is the class of the element wrapping the wizard.
const wizardContainer = "findpastpapers"

// DefaultIGCSESpecification is the specification picked when an
// International GCSE subject offers more than one.
const DefaultIGCSESpecification = "(2016)"

// specificationChoice is the link of the specification modal. It renders
// empty, and is therefore dropped, when no specification is set.
var specificationChoice = model.Locator{
	Name: "specification choice",
	Selectors: []model.Selector{
		{Kind: model.SelectorXPath, Value: "{{if .Specification}}//h3[contains(., '{{.Specification}}')]/ancestor::a{{end}}"},
	},
}

// builtinProfiles returns fresh copies of every built-in profile.
// Each call allocates so callers may merge into the result freely.
func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"a-level":            pearsonProfile("a-level", "A Level"),
		"international-gcse": igcseProfile(),
	}
}

// BuiltinProfile returns a copy of the named built-in profile.
func BuiltinProfile(name string) (Profile, bool) {
	p, ok := builtinProfiles()[name]
	return p, ok
}

// BuiltinProfileNames returns the sorted names of the built-in profiles.
func BuiltinProfileNames() []string {
	profiles := builtinProfiles()
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// pearsonProfile builds the selector catalog of the past-papers wizard.
// Both qualification families share the wizard and differ only in the
// qualification choice.
func pearsonProfile(name, qualification string) Profile {
	return Profile{
		Name:          name,
		BaseURL:       PastPapersURL,
		PageMarker:    "past-papers",
		Qualification: qualification,
		Consent: model.Locator{
			Name: "cookie consent",
			Selectors: []model.Selector{
				{Kind: model.SelectorCSS, Value: "#onetrust-accept-btn-handler"},
				{Kind: model.SelectorText, Tag: "button", Value: "Accept All Cookies"},
			},
		},
		Steps: []StepConfig{
			{
				Step: model.StepQualification,
				Target: model.Locator{
					Name: "qualification",
					Selectors: []model.Selector{
						{Kind: model.SelectorText, Within: wizardContainer, Value: "{{.Qualification}}"},
						{Kind: model.SelectorXPath, Value: "//div[contains(@class, 'findpastpapers')]//*[contains(text(), '{{.Qualification}}') and not(ancestor::select)]"},
					},
				},
				Ready: model.Locator{
					Name: "subject letter grid",
					Selectors: []model.Selector{
						{Kind: model.SelectorXPath, Value: "//div[contains(@class, 'findpastpapers')]//li[string-length(normalize-space(.)) = 1]"},
						{Kind: model.SelectorText, Within: wizardContainer, Tag: "a", Value: "Current qualifications"},
					},
				},
			},
			{
				Step: model.StepSubjectLetter,
				Before: []model.Locator{{
					Name: "current qualifications tab",
					Selectors: []model.Selector{
						{Kind: model.SelectorText, Within: wizardContainer, Tag: "a", Value: "Current qualifications"},
					},
				}},
				Target: model.Locator{
					Name: "subject letter",
					Selectors: []model.Selector{
						{Kind: model.SelectorText, Within: wizardContainer, Tag: "li", Value: "{{.Letter}}", Exact: true},
						{Kind: model.SelectorXPath, Value: "//div[contains(@class, 'findpastpapers')]//li[(text()='{{.Letter}}' or normalize-space(.)='{{.Letter}}')]"},
					},
				},
				Ready: model.Locator{
					Name: "subject link",
					Selectors: []model.Selector{
						{Kind: model.SelectorText, Within: wizardContainer, Tag: "a", Value: "{{.Subject}}"},
					},
				},
				Optional: true,
			},
			{
				Step: model.StepSubject,
				Target: model.Locator{
					Name: "subject",
					Selectors: []model.Selector{
						{Kind: model.SelectorText, Within: wizardContainer, Tag: "a", Value: "{{.Subject}}"},
						{Kind: model.SelectorXPath, Value: "//div[contains(@class, 'findpastpapers')]//a[contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), '{{lower .Subject}}')]"},
						{Kind: model.SelectorXPath, Value: "//a[normalize-space(.)='{{.Subject}}']"},
					},
				},
				Ready: model.Locator{
					Name: "series list",
					Selectors: []model.Selector{
						{Kind: model.SelectorCSS, Value: "#step3 a"},
						{Kind: model.SelectorXPath, Value: "//div[contains(@class, 'findpastpapers')]//a[contains(text(), ' 20')]"},
					},
				},
			},
			{
				Step: model.StepSeries,
				Target: model.Locator{
					Name: "series",
					Selectors: []model.Selector{
						{Kind: model.SelectorText, Tag: "a", Value: "{{.Series}}"},
						{Kind: model.SelectorXPath, Value: "//div[@id='step3']//a[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), '{{lower .Series}}')]"},
					},
				},
				Ready: model.Locator{
					Name: "content type filter",
					Selectors: []model.Selector{
						{Kind: model.SelectorXPath, Value: "//li[contains(., '{{.ContentType}}')] | //span[contains(text(), '{{.ContentType}}')]"},
						{Kind: model.SelectorCSS, Value: "#resultsTable"},
					},
				},
			},
			{
				Step: model.StepContentType,
				Target: model.Locator{
					Name: "content type",
					Selectors: []model.Selector{
						{Kind: model.SelectorXPath, Value: "//li[contains(., '{{.ContentType}}')] | //span[contains(text(), '{{.ContentType}}')]"},
						{Kind: model.SelectorText, Tag: "label", Value: "{{.ContentType}}"},
					},
				},
				Ready: model.Locator{
					Name: "filtered results",
					Selectors: []model.Selector{
						{Kind: model.SelectorCSS, Value: "#resultsTable a.result-item"},
					},
				},
				Optional: true,
			},
		},
		Results: model.Locator{
			Name: "results",
			Selectors: []model.Selector{
				{Kind: model.SelectorCSS, Value: "#resultsTable a.result-item"},
				{Kind: model.SelectorXPath, Value: "//a[contains(@href, '.pdf')]"},
			},
		},
		ResultsRegion: "#resultsTable",
		TitleSelector: ".doc-title",
		Extensions:    []string{".pdf", ".doc", ".docx"},
		IgnoreTerms:   []string{"examiner report", "examiners report", "examiners' report", "grade boundaries"},
		Discovery: SeriesDiscovery{
			Container: "#step3",
			Pattern:   DefaultSeriesPattern,
		},
	}
}

// igcseProfile is the Pearson wizard for International GCSE. Some subjects
// open a modal listing their specifications after selection; the subject
// step is ready once either the modal or the series list shows, and the
// series step picks the specification first when the modal is up.
func igcseProfile() Profile {
	p := pearsonProfile("international-gcse", "International GCSE")
	p.Specification = DefaultIGCSESpecification
	for i := range p.Steps {
		switch p.Steps[i].Step {
		case model.StepSubject:
			p.Steps[i].Ready.Selectors = append(p.Steps[i].Ready.Selectors, specificationChoice.Selectors...)
		case model.StepSeries:
			p.Steps[i].Before = append(p.Steps[i].Before, specificationChoice)
		}
	}
	return p
}
