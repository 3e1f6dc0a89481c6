package csvparse

import (
	"strings"
	"unicode"
)

// Header maps canonical column names to positions, resolved once per file
type Header struct {
	index map[string]int
}

// CanonicalColumn upper-cases a column name and folds every run of other
// characters into a single underscore, trimmed at both ends
func CanonicalColumn(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteRune('_')
			pending = false
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// ResolveHeader builds a Header and checks that every required column is
// present. The first occurrence of a duplicated column wins.
func ResolveHeader(columns []string, required ...string) (*Header, error) {
	h := &Header{index: make(map[string]int, len(columns))}
	for i, col := range columns {
		key := CanonicalColumn(col)
		if key == "" {
			continue
		}
		if _, seen := h.index[key]; !seen {
			h.index[key] = i
		}
	}

	for _, name := range required {
		if _, ok := h.index[CanonicalColumn(name)]; !ok {
			return nil, &MissingRequiredColumnError{Column: CanonicalColumn(name)}
		}
	}
	return h, nil
}

// Index returns the position of a column, or -1 when absent
func (h *Header) Index(name string) int {
	if i, ok := h.index[CanonicalColumn(name)]; ok {
		return i
	}
	return -1
}

// Value returns the trimmed value of a column in row, or "" when the column
// is absent or the row is short
func (h *Header) Value(row []string, name string) string {
	return Field(row, h.Index(name))
}

// Field returns the trimmed field at i, or "" when out of range
func Field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
