package engagement

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/sakif/starlit/internal/catalog"
)

// Skin wraps content in the theme's inline styles with a random prefix
// and suffix. Style keys are camelCase in the catalog and emitted as
// kebab-case CSS properties in sorted order.
func Skin(theme catalog.MailTheme, content string, r Rand) string {
	keys := make([]string, 0, len(theme.Styles))
	for k := range theme.Styles {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	decls := make([]string, 0, len(keys))
	for _, k := range keys {
		decls = append(decls, fmt.Sprintf("%s: %s", kebab(k), theme.Styles[k]))
	}

	prefix, _ := pick(r, theme.ContentPrefixes)
	suffix, _ := pick(r, theme.ContentSuffixes)

	return fmt.Sprintf("<div style=\"%s\">\n%s\n%s\n%s\n</div>", strings.Join(decls, "; "), prefix, content, suffix)
}

func kebab(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
