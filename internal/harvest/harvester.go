package harvest

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/papergrab/internal/model"
	"golang.org/x/net/html"
)

// DefaultExtensions are the document extensions kept when no others are configured.
var DefaultExtensions = []string{".pdf", ".doc", ".docx"}

// Harvester extracts document anchors from a page.
type Harvester struct {
	extensions    []string
	resultsRegion string
	titleSelector string
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithExtensions sets the document extensions to keep. Matching ignores case.
func WithExtensions(exts ...string) Option {
	return func(h *Harvester) {
		if len(exts) == 0 {
			return
		}
		h.extensions = make([]string, 0, len(exts))
		for _, e := range exts {
			e = strings.ToLower(strings.TrimSpace(e))
			if e != "" && !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			h.extensions = append(h.extensions, e)
		}
	}
}

// WithResultsRegion keeps every anchor inside the region matched by this
// CSS selector, whatever its extension.
func WithResultsRegion(selector string) Option {
	return func(h *Harvester) {
		h.resultsRegion = selector
	}
}

// WithTitleSelector takes link text from this element inside the anchor
// when it is present.
func WithTitleSelector(selector string) Option {
	return func(h *Harvester) {
		h.titleSelector = selector
	}
}

// New creates a Harvester.
func New(opts ...Option) *Harvester {
	h := &Harvester{extensions: DefaultExtensions}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Harvest returns the document links of source in document order.
// Relative hrefs are resolved against pageURL. A repeated href keeps its
// first occurrence.
func (h *Harvester) Harvest(pageURL, source string) ([]model.RawLink, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page source: %w", err)
	}

	inRegion := make(map[*html.Node]bool)
	if h.resultsRegion != "" {
		doc.Find(h.resultsRegion).Find("a").Each(func(_ int, s *goquery.Selection) {
			inRegion[s.Get(0)] = true
		})
	}

	seen := make(map[string]bool)
	links := make([]model.RawLink, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := resolveURL(base, href)
		if resolved == nil {
			return
		}
		if !inRegion[s.Get(0)] && !h.hasDocumentExtension(resolved) {
			return
		}

		abs := resolved.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		links = append(links, model.RawLink{Href: abs, Text: h.linkText(s)})
	})

	return links, nil
}

// linkText returns the title element's text when configured and present,
// otherwise the anchor text, whitespace-collapsed.
func (h *Harvester) linkText(s *goquery.Selection) string {
	if h.titleSelector != "" {
		if title := s.Find(h.titleSelector).First(); title.Length() > 0 {
			if text := collapse(title.Text()); text != "" {
				return text
			}
		}
	}
	if text := collapse(s.Text()); text != "" {
		return text
	}
	if title, ok := s.Attr("title"); ok {
		return collapse(title)
	}
	return ""
}

func (h *Harvester) hasDocumentExtension(u *url.URL) bool {
	ext := strings.ToLower(path.Ext(u.Path))
	for _, e := range h.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// resolveURL resolves href against base. It returns nil for hrefs that
// do not point at a fetchable resource.
func resolveURL(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil
	}
	resolved.Fragment = ""
	return resolved
}

// collapse trims s and folds runs of whitespace into one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
