package spell

import (
	"net/url"
	"regexp"
)

// placeholderPattern matches {{name}} template placeholders. Braces that do not
// wrap one or more word characters are not placeholders.
var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// HasPlaceholder reports whether s contains at least one {{name}} placeholder.
func HasPlaceholder(s string) bool {
	return placeholderPattern.MatchString(s)
}

// Placeholders returns the placeholder names in s in order of first use.
func Placeholders(s string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(s, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// NeedsInterpolation reports whether the URL, the body or any header value of
// the action contains a placeholder.
func (a HTTPAction) NeedsInterpolation() bool {
	if HasPlaceholder(a.URL) || HasPlaceholder(a.Body) {
		return true
	}
	for _, v := range a.Headers {
		if HasPlaceholder(v) {
			return true
		}
	}
	return false
}

// ValidateURLTemplate checks a URL that may carry placeholders anywhere,
// including the host, by substituting them before parsing. Form front ends
// call it before handing a candidate to Validate, which checks the URL as
// written.
func ValidateURLTemplate(raw string) bool {
	if raw == "" {
		return false
	}
	probe := placeholderPattern.ReplaceAllString(raw, "test")
	u, err := url.Parse(probe)
	if err != nil {
		return false
	}
	return u.IsAbs() && (u.Host != "" || u.Opaque != "")
}
