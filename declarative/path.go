package declarative

import (
	"regexp"
	"strings"
)

// pathKey is a named capture slot of a compiled path pattern, in match
// order.
type pathKey struct {
	name     string
	optional bool
}

var (
	paramRe        = regexp.MustCompile(`(/)?(\.)?:(\w+)(\(.*?\))?(\?)?(\*)?`)
	escapeRe       = regexp.MustCompile(`([/.])`)
	formatSuffixRe = regexp.MustCompile(`(/|\.:\w+\?)$`)
)

// compilePath converts an Express-style pattern ("/users/:id") into a
// matcher plus the ordered list of named parameter slots. Supported syntax:
// optional segments (":id?"), custom per-segment capture groups
// (":id([0-9]+)"), star suffixes (":path*") and bare "*" wildcards.
// Matching is case-insensitive unless sensitive is set; a trailing slash is
// tolerated unless strict is set.
func compilePath(path string, sensitive, strict bool) (*regexp.Regexp, []pathKey, error) {
	var keys []pathKey

	if !strict {
		path += "/?"
	}
	path = strings.ReplaceAll(path, "/(", "(?:/")

	path = paramRe.ReplaceAllStringFunc(path, func(m string) string {
		sub := paramRe.FindStringSubmatch(m)
		slash, format, key, capture, optional, star := sub[1], sub[2], sub[3], sub[4], sub[5], sub[6]
		keys = append(keys, pathKey{name: key, optional: optional != ""})

		var b strings.Builder
		if optional == "" {
			b.WriteString(slash)
		}
		b.WriteString("(?:")
		if optional != "" {
			b.WriteString(slash)
		}
		b.WriteString(format)
		switch {
		case capture != "":
			b.WriteString(capture)
		case format != "":
			b.WriteString("([^/.]+?)")
		default:
			b.WriteString("([^/]+?)")
		}
		b.WriteString(")")
		b.WriteString(optional)
		if star != "" {
			b.WriteString("(/*)?")
		}
		return b.String()
	})

	path = escapeRe.ReplaceAllString(path, `\$1`)
	path = strings.ReplaceAll(path, "*", "(.*)")

	expr := "^" + path + "$"
	if !sensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, nil, err
	}
	return re, keys, nil
}

// pathToFormat appends an optional ".:format?" suffix so "/users/42.json"
// matches a "/users/:id" rule. Patterns already ending in a slash or a
// format-style parameter are left alone.
func pathToFormat(path string) string {
	if formatSuffixRe.MatchString(path) {
		return path
	}
	return path + ".:format?"
}
