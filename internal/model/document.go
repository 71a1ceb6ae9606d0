package model

// RawLink is a candidate document anchor taken from the results page.
// It only lives for one pipeline invocation and is discarded after
// classification.
type RawLink struct {
	// Href is the absolute URL of the anchor.
	Href string `json:"href"`

	// Text is the whitespace-collapsed display text.
	Text string `json:"text"`
}

// PaperCode is the normalized identifier of one physical paper,
// e.g. "9MA0-01". Links sharing a code belong to the same bundle.
type PaperCode string

// String returns the code as a plain string.
func (c PaperCode) String() string {
	return string(c)
}

// DocumentKind says whether a document is a question paper or a marking scheme.
type DocumentKind int

const (
	// KindUnknown is assigned to links that match neither kind.
	// They are excluded from bundles.
	KindUnknown DocumentKind = iota

	// KindQuestionPaper is a question paper.
	KindQuestionPaper

	// KindMarkingScheme is a marking scheme (mark scheme).
	KindMarkingScheme
)

// String returns a human-readable representation of the kind.
func (k DocumentKind) String() string {
	switch k {
	case KindQuestionPaper:
		return "QUESTION_PAPER"
	case KindMarkingScheme:
		return "MARKING_SCHEME"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k DocumentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Subfolder returns the directory name used for documents of this kind
// inside a bundle folder.
func (k DocumentKind) Subfolder() string {
	switch k {
	case KindQuestionPaper:
		return "paper"
	case KindMarkingScheme:
		return "marking_scheme"
	default:
		return ""
	}
}

// FilePrefix returns the file name prefix for documents of this kind.
func (k DocumentKind) FilePrefix() string {
	switch k {
	case KindQuestionPaper:
		return "Question_Paper"
	case KindMarkingScheme:
		return "Marking_Scheme"
	default:
		return ""
	}
}

// DocumentRef points at one downloadable document. It is owned by its PaperBundle.
type DocumentRef struct {
	// Href is the absolute download URL.
	Href string `json:"href"`

	// Title is the cleaned link text.
	Title string `json:"title"`
}

// PaperBundle groups every document that shares one paper code.
// A bundle without marking schemes is valid; not every paper publishes one.
type PaperBundle struct {
	// Code is the shared paper code.
	Code PaperCode `json:"code"`

	// FolderName is the relative directory of the bundle,
	// "<subject>/<series>/Paper <code>".
	FolderName string `json:"folder_name"`

	// QuestionPapers are kept in harvest order.
	QuestionPapers []DocumentRef `json:"question_papers"`

	// MarkingSchemes are kept in harvest order.
	MarkingSchemes []DocumentRef `json:"marking_schemes"`
}

// Documents returns the references of the given kind.
func (b *PaperBundle) Documents(kind DocumentKind) []DocumentRef {
	switch kind {
	case KindQuestionPaper:
		return b.QuestionPapers
	case KindMarkingScheme:
		return b.MarkingSchemes
	default:
		return nil
	}
}

// Add appends a reference to the sequence of the given kind.
// Unknown kinds are ignored.
func (b *PaperBundle) Add(kind DocumentKind, ref DocumentRef) {
	switch kind {
	case KindQuestionPaper:
		b.QuestionPapers = append(b.QuestionPapers, ref)
	case KindMarkingScheme:
		b.MarkingSchemes = append(b.MarkingSchemes, ref)
	}
}

// Len returns the number of documents in the bundle.
func (b *PaperBundle) Len() int {
	return len(b.QuestionPapers) + len(b.MarkingSchemes)
}
