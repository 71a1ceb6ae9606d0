package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/papergrab/internal/model"
)

// Query is a compiled selector ready for the DOM.
type Query struct {
	// Expr is a CSS selector or an XPath expression.
	Expr string

	// XPath is true when Expr is XPath.
	XPath bool
}

// ErrInvalidSelector is returned by Compile for unusable selectors.
var ErrInvalidSelector = errors.New("invalid selector")

// Compile turns a selector into a CSS or XPath query.
//
// Text selectors become XPath: an exact match compares the whitespace-
// normalized text, otherwise the text must contain the value. Elements
// inside <select> never match because options are not clickable.
// Attribute selectors become CSS.
func Compile(sel model.Selector) (Query, error) {
	if strings.TrimSpace(sel.Value) == "" {
		return Query{}, fmt.Errorf("%w: empty value", ErrInvalidSelector)
	}

	tag := sel.Tag
	if tag == "" {
		tag = "*"
	}

	switch sel.Kind {
	case model.SelectorText:
		prefix := "//"
		if sel.Within != "" {
			prefix = "//*[contains(concat(' ', normalize-space(@class), ' '), " + xpathLiteral(" "+sel.Within+" ") + ")]//"
		}
		var cond string
		switch {
		case sel.Exact:
			cond = "normalize-space(.)=" + xpathLiteral(sel.Value)
		case tag == "*":
			cond = "contains(text(), " + xpathLiteral(sel.Value) + ")"
		default:
			cond = "contains(normalize-space(.), " + xpathLiteral(sel.Value) + ")"
		}
		return Query{Expr: prefix + tag + "[" + cond + " and not(ancestor::select)]", XPath: true}, nil

	case model.SelectorAttribute:
		if sel.Attribute == "" {
			return Query{}, fmt.Errorf("%w: attribute selector without attribute name", ErrInvalidSelector)
		}
		expr := ""
		if sel.Tag != "" {
			expr = sel.Tag
		}
		expr += "[" + sel.Attribute + "=" + cssString(sel.Value) + "]"
		if sel.Within != "" {
			expr = "." + sel.Within + " " + expr
		}
		return Query{Expr: expr}, nil

	case model.SelectorCSS:
		expr := sel.Value
		if sel.Within != "" {
			expr = "." + sel.Within + " " + expr
		}
		return Query{Expr: expr}, nil

	case model.SelectorXPath:
		return Query{Expr: sel.Value, XPath: true}, nil

	default:
		return Query{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidSelector, sel.Kind)
	}
}

// xpathLiteral quotes s as an XPath 1.0 string literal.
// XPath has no escapes, so a value holding both quote kinds is built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// cssString quotes s as a CSS string.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
