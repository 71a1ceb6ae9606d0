package classify

import (
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"github.com/nao1215/papergrab/internal/model"
	"golang.org/x/crypto/sha3"
	"golang.org/x/text/cases"
)

// DefaultIgnoreTerms are phrases that mark a link as neither a question
// paper nor a marking scheme, even when the title says "paper".
var DefaultIgnoreTerms = []string{
	"examiner report",
	"examiners report",
	"examiners' report",
	"grade boundaries",
}

// syntheticSlugLength bounds the slug part of a synthetic code, in runes.
const syntheticSlugLength = 30

var (
	// formatAnnotation matches "(PDF, 1.2MB)", "(pdf)", "(Word 200 KB)".
	formatAnnotation = regexp.MustCompile(`(?i)\(\s*(?:pdf|docx?|word)\b[^)]*\)`)

	// sizeAnnotation matches a bare or bracketed file size such as "200KB".
	sizeAnnotation = regexp.MustCompile(`(?i)\(?\s*\b\d+(?:\.\d+)?\s*(?:kb|mb|gb)\b\s*\)?`)

	// codeToken matches a code-shaped token and its optional suffix,
	// e.g. "9MA0/01", "WMA11-01", "4MA1/1F", "9MA0_01". A suffix starts
	// with a digit, so "9MA0_QP" has none. Boundaries are checked by
	// ExtractCode, since '_' must count as one.
	codeToken = regexp.MustCompile(`([A-Z0-9]{4,})(?:[/_-]([0-9][A-Z0-9]{0,2}))?`)

	// The short forms "qp" and "ms" must stand alone between
	// non-alphanumeric characters, so "9MA0_01_QP" is a question paper
	// while "forms" is not a marking scheme.
	questionPaper = regexp.MustCompile(`(?i)question\s+paper|(?:^|[^a-z0-9])qp(?:[^a-z0-9]|$)`)
	markingScheme = regexp.MustCompile(`(?i)mark(?:ing)?\s+scheme|(?:^|[^a-z0-9])ms(?:[^a-z0-9]|$)`)
	bareWordPaper = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])paper(?:[^a-z0-9]|$)`)

	// kindWords are removed from a title before it is turned into a
	// synthetic code, so the question paper and marking scheme of the same
	// title share one code. The boundary characters are kept.
	kindWords = regexp.MustCompile(`(?i)question\s+paper|mark(?:ing)?\s+scheme|(^|[^a-z0-9])(?:qp|ms)([^a-z0-9]|$)`)
)

// Record is one classified link.
type Record struct {
	Code  model.PaperCode
	Kind  model.DocumentKind
	Title string
	Href  string

	// Synthetic is set when Code was derived from the title.
	Synthetic bool
}

// Ref returns the document reference of the record.
func (r Record) Ref() model.DocumentRef {
	return model.DocumentRef{Href: r.Href, Title: r.Title}
}

// Classifier classifies harvested links.
type Classifier struct {
	ignoreTerms []string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithIgnoreTerms replaces the phrases that force a link to UNKNOWN.
// Matching is case-insensitive under Unicode case folding.
func WithIgnoreTerms(terms []string) Option {
	return func(c *Classifier) {
		fold := cases.Fold()
		c.ignoreTerms = make([]string, 0, len(terms))
		for _, t := range terms {
			if t = fold.String(strings.TrimSpace(t)); t != "" {
				c.ignoreTerms = append(c.ignoreTerms, t)
			}
		}
	}
}

// New creates a Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{}
	WithIgnoreTerms(DefaultIgnoreTerms)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify derives the paper code, document kind and cleaned title of link.
// It never fails: a link without a code-shaped token gets a synthetic code.
func (c *Classifier) Classify(link model.RawLink) Record {
	title := Clean(link.Text)
	rec := Record{
		Kind:  c.Kind(title),
		Title: title,
		Href:  link.Href,
	}
	if code, ok := ExtractCode(title); ok {
		rec.Code = code
	} else {
		rec.Code = SyntheticCode(title)
		rec.Synthetic = true
	}
	return rec
}

// Kind classifies a cleaned title.
func (c *Classifier) Kind(title string) model.DocumentKind {
	folded := cases.Fold().String(title)
	for _, term := range c.ignoreTerms {
		if strings.Contains(folded, term) {
			return model.KindUnknown
		}
	}

	switch {
	case questionPaper.MatchString(title):
		return model.KindQuestionPaper
	case markingScheme.MatchString(title):
		return model.KindMarkingScheme
	case bareWordPaper.MatchString(title):
		return model.KindQuestionPaper
	default:
		return model.KindUnknown
	}
}

// Clean removes format and size annotations from link text and collapses
// whitespace.
func Clean(text string) string {
	text = formatAnnotation.ReplaceAllString(text, " ")
	text = sizeAnnotation.ReplaceAllString(text, " ")
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimRight(text, " -:|,")
}

// ExtractCode returns the first code-shaped token of title with "/" and
// "_" normalized to "-". A token must contain at least one digit and at
// least one letter, so bare years such as "2023" are not codes.
//
// A resit "R" closing an all-digit suffix is not part of the code:
// "9MA0/01R" yields "9MA0-01", the code of the paper it resits.
func ExtractCode(title string) (model.PaperCode, bool) {
	for _, m := range codeToken.FindAllStringSubmatchIndex(title, -1) {
		start, end := m[2], m[3]
		token := title[start:end]
		if !isCode(token) || !isBoundary(title, start-1) || !isBoundary(title, end) {
			continue
		}
		code := token
		if m[4] >= 0 && isBoundary(title, m[5]) {
			code += "-" + withoutResit(title[m[4]:m[5]])
		}
		return model.PaperCode(code), true
	}
	return "", false
}

// isBoundary reports whether title[i] is outside the title or is not an
// ASCII letter or digit.
func isBoundary(title string, i int) bool {
	if i < 0 || i >= len(title) {
		return true
	}
	c := title[i]
	return !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9')
}

func withoutResit(suffix string) string {
	digits, ok := strings.CutSuffix(suffix, "R")
	if !ok || digits == "" {
		return suffix
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return suffix
		}
	}
	return digits
}

func isCode(token string) bool {
	var digit, letter bool
	for _, r := range token {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLetter(r):
			letter = true
		}
	}
	return digit && letter
}

// SyntheticCode derives a code from a title without a code-shaped token.
//
// The code is the title with the document-kind words removed, truncated to
// 30 characters with spaces turned into underscores, followed by "-" and the
// first 8 hex digits of the SHA3-256 of the lowercased stripped title.
// Titles sharing a long prefix therefore stay apart, while the question
// paper and marking scheme of one title still pair.
func SyntheticCode(title string) model.PaperCode {
	stripped := strings.Join(strings.Fields(kindWords.ReplaceAllString(title, "$1 $2")), " ")
	stripped = strings.Trim(stripped, " -:|,")

	var sb strings.Builder
	n := 0
	for _, r := range stripped {
		if n == syntheticSlugLength {
			break
		}
		n++
		switch {
		case r == ' ':
			sb.WriteByte('_')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			sb.WriteRune(r)
		}
	}
	slug := strings.Trim(sb.String(), "_")
	if slug == "" {
		slug = "untitled"
	}

	sum := sha3.Sum256([]byte(strings.ToLower(stripped)))
	return model.PaperCode(slug + "-" + hex.EncodeToString(sum[:])[:8])
}
