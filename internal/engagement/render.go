package engagement

import (
	"html"
	"regexp"
	"strings"
)

// placeholder matches {token} where token is an identifier. Braces with
// spaces or punctuation inside (inline CSS, prose) are left alone.
var placeholder = regexp.MustCompile(`\{[A-Za-z][A-Za-z0-9]*\}`)

// MissingValue replaces any placeholder that has no computed value.
const MissingValue = "None yet"

// Render substitutes every placeholder in content. A token present in vals
// is replaced by its value, even an empty one; any other token becomes
// MissingValue, so rendered output never contains a literal {token}.
func Render(content string, vals map[string]string) string {
	return placeholder.ReplaceAllStringFunc(content, func(tok string) string {
		if v, ok := vals[tok[1:len(tok)-1]]; ok {
			return v
		}
		return MissingValue
	})
}

// HasPlaceholders reports whether s still contains a {token}.
func HasPlaceholders(s string) bool {
	return placeholder.MatchString(s)
}

// braces keeps user text from reading as a placeholder once it is inside
// a rendered body.
var braces = strings.NewReplacer("{", "&#123;", "}", "&#125;")

// EscapeText makes user-written text safe to place in an HTML mail body.
func EscapeText(s string) string {
	return braces.Replace(html.EscapeString(s))
}
