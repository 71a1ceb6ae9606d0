package harvest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SeriesNames returns the exam series offered in source.
//
// Anchor texts inside container (the whole document when empty) are matched
// against pattern; the matched part is the series name. Names containing any
// of exclude are dropped. Duplicates keep their first position.
func SeriesNames(source, container, pattern string, exclude []string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid series pattern: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page source: %w", err)
	}

	scope := doc.Selection
	if container != "" {
		scope = doc.Find(container)
	}

	seen := make(map[string]bool)
	names := make([]string, 0)
	scope.Find("a").Each(func(_ int, s *goquery.Selection) {
		match := re.FindString(collapse(s.Text()))
		if match == "" || seen[match] || excluded(match, exclude) {
			return
		}
		seen[match] = true
		names = append(names, match)
	})
	return names, nil
}

func excluded(name string, exclude []string) bool {
	for _, e := range exclude {
		if e != "" && strings.Contains(name, e) {
			return true
		}
	}
	return false
}
