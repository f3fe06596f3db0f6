// Package normalize cleans raw quote fragments into canonical strings.
package normalize

import (
	"regexp"
	"strings"
)

// ws matches every rune unicode.IsSpace reports, so collapsing with it and
// trimming with strings.TrimSpace agree.
const ws = `\s\v\x{85}\p{Z}`

var (
	smartDoubleQuotes = strings.NewReplacer(
		"“", "",
		"”", "",
		"„", "",
		"‟", "",
	)
	smartSingleQuotes = strings.NewReplacer(
		"‘", "'",
		"’", "'",
		"‚", "'",
		"‛", "'",
	)
	leadingDash  = regexp.MustCompile(`^[` + ws + `\x{2013}\x{2014}\x{2015}]+`)
	whitespace   = regexp.MustCompile(`[` + ws + `]+`)
	trailingDash = regexp.MustCompile(`[` + ws + `\x{2013}\x{2014}\x{2015}-]+$`)
)

// Quote normalizes a raw quote body. The result never has surrounding
// whitespace and Quote(Quote(s)) == Quote(s). An empty result means the
// fragment held no usable quote.
func Quote(raw string) string {
	s := smartDoubleQuotes.Replace(raw)
	s = smartSingleQuotes.Replace(s)
	s = leadingDash.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	// an attribution separator is sometimes captured with the body
	s = trailingDash.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
