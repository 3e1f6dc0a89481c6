// Package normalize builds comparable keys from free-text UK addresses.
package normalize

import (
	"regexp"
	"strings"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

var rePunctuation = regexp.MustCompile(`[.,'"#();:]`)

// Applied in order. No replacement produces a token another rule matches.
var synonymRules = []rule{
	{regexp.MustCompile(`\bAPARTMENT\b`), "FLAT"},
	{regexp.MustCompile(`\bAPT\b`), "FLAT"},
	{regexp.MustCompile(`\bUNIT\b`), "FLAT"},
	{regexp.MustCompile(`\bFLOOR\b`), ""},
	{regexp.MustCompile(`\bGROUND\b`), "GND"},
}

// Address canonicalizes raw address text: upper case, punctuation stripped,
// unit synonyms folded, whitespace collapsed. Address(Address(s)) == Address(s).
func Address(raw string) string {
	s := strings.ToUpper(raw)
	s = rePunctuation.ReplaceAllString(s, "")
	for _, r := range synonymRules {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return strings.Join(strings.Fields(s), " ")
}

// Join normalizes the non-blank parts of a multi-line address as one string
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return Address(strings.Join(kept, " "))
}
