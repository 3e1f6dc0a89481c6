// Package postcode canonicalizes UK postcodes and decides which belong to London.
package postcode

import (
	"regexp"
	"strings"
)

var (
	// Outward code, optional space, inward code
	rePostcode = regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]? \d[ABD-HJLNP-UW-Z]{2}$`)
	reDistrict = regexp.MustCompile(`^([A-Z]+\d+)`)
	reArea     = regexp.MustCompile(`^([A-Z]+)`)
)

// Canonical upper-cases a postcode and leaves exactly one space before the
// inward code. Returns "" when nothing usable remains.
func Canonical(raw string) string {
	compact := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if len(compact) < 5 {
		return compact
	}
	return compact[:len(compact)-3] + " " + compact[len(compact)-3:]
}

// Valid reports whether p is a canonical, well-formed UK postcode
func Valid(p string) bool {
	return rePostcode.MatchString(p)
}

// District returns the outward code up to its numeric part, e.g. "E14" for
// "E14 8JX" and "SW1" for "SW1A 1AA".
func District(p string) (string, bool) {
	m := reDistrict.FindStringSubmatch(p)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Area returns the leading letters, e.g. "SW" for "SW1A 1AA"
func Area(p string) (string, bool) {
	m := reArea.FindStringSubmatch(p)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// AllowList holds the postcode areas treated as London
type AllowList struct {
	areas map[string]struct{}
}

func NewAllowList(areas []string) *AllowList {
	l := &AllowList{areas: make(map[string]struct{}, len(areas))}
	for _, a := range areas {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a != "" {
			l.areas[a] = struct{}{}
		}
	}
	return l
}

// Contains matches the whole area, so "EX" is not mistaken for "E".
func (l *AllowList) Contains(p string) bool {
	area, ok := Area(p)
	if !ok {
		return false
	}
	_, found := l.areas[area]
	return found
}

func (l *AllowList) Len() int {
	return len(l.areas)
}
