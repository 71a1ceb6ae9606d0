package classify

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/nao1215/papergrab/internal/model"
)

// DefaultFileExtension is used when the document URL has no known extension.
const DefaultFileExtension = ".pdf"

// resitMarker matches a resit marker such as "1R" or "02R", standing alone
// or closing a paper code suffix as in "9MA0/01R".
var resitMarker = regexp.MustCompile(`(?:^|[^A-Za-z0-9])([0-9]+R)(?:[^A-Za-z0-9]|$)`)

// knownExtensions may replace DefaultFileExtension in file names.
var knownExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

// FolderName returns the bundle directory "<root>/<series>/Paper <code>",
// relative to the download directory. root is the subject, or the
// qualification when no subject applies. Each element is sanitized but
// otherwise kept as given, so the result is a pure function of its inputs.
func FolderName(root, series string, code model.PaperCode) string {
	return filepath.Join(
		pathElement(root),
		pathElement(series),
		pathElement("Paper "+code.String()),
	)
}

// FileName returns the file name of a document within its bundle:
// "<prefix>_<code>[_<resit>][_<index>]<ext>". index is 1-based and only
// written when the bundle holds more than one document of the kind.
func FileName(kind model.DocumentKind, code model.PaperCode, ref model.DocumentRef, index, total int) string {
	var sb strings.Builder
	sb.WriteString(kind.FilePrefix())
	sb.WriteByte('_')
	sb.WriteString(code.String())
	if resit := ResitMarker(ref.Title); resit != "" {
		sb.WriteByte('_')
		sb.WriteString(resit)
	}
	if total > 1 {
		sb.WriteByte('_')
		sb.WriteString(strconv.Itoa(index))
	}
	sb.WriteString(extension(ref.Href))
	return Sanitize(sb.String())
}

// ResitMarker returns the first resit marker of a title, or "" when there
// is none. "9MA0/01R Question paper" has the marker "01R".
func ResitMarker(title string) string {
	if m := resitMarker.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}

// Sanitize keeps letters, digits, spaces, '-', '_' and '.' and trims
// leading and trailing spaces. Every other character is dropped.
func Sanitize(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		}
	}
	return strings.Trim(sb.String(), " ")
}

// pathElement sanitizes one directory name. "." and ".." become empty so
// a bundle never leaves the download directory.
func pathElement(name string) string {
	s := Sanitize(name)
	if s == "." || s == ".." {
		return ""
	}
	return s
}

func extension(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return DefaultFileExtension
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if knownExtensions[ext] {
		return ext
	}
	return DefaultFileExtension
}
