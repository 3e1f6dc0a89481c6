package csvparse

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Plain fields",
			input:    "a,b,c",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "Quoted field containing delimiter",
			input:    `"{1}","500000","FLAT 2, 10","HIGH STREET"`,
			expected: []string{"{1}", "500000", "FLAT 2, 10", "HIGH STREET"},
		},
		{
			name:     "Empty fields kept",
			input:    `"a",,"",d`,
			expected: []string{"a", "", "", "d"},
		},
		{
			name:     "Trailing delimiter yields empty last field",
			input:    "a,b,",
			expected: []string{"a", "b", ""},
		},
		{
			name:     "Carriage return stripped",
			input:    "a,b\r",
			expected: []string{"a", "b"},
		},
		{
			name:     "Doubled quotes toggle twice",
			input:    `"THE ""OLD"" HOUSE",x`,
			expected: []string{"THE OLD HOUSE", "x"},
		},
		{
			name:     "Non ascii preserved",
			input:    "café,ü",
			expected: []string{"café", "ü"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitLine(tt.input, ','))
		})
	}
}

func TestSplitLineOtherDelimiter(t *testing.T) {
	assert.Equal(t, []string{"a", "b;c", "d"}, SplitLine(`a	"b;c"	d`, '\t'))
}

func TestScannerSkipsBlankLines(t *testing.T) {
	input := "a,b\n\n   \nc,\"d,e\"\n"
	s := NewScanner(strings.NewReader(input), ',')

	var rows [][]string
	var lines []int
	for s.Next() {
		rows = append(rows, s.Fields())
		lines = append(lines, s.Line())
	}
	require.NoError(t, s.Err())

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d,e"}}, rows)
	assert.Equal(t, []int{1, 4}, lines)
}

func TestCanonicalColumn(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"total-floor-area", "TOTAL_FLOOR_AREA"},
		{"TOTAL_FLOOR_AREA", "TOTAL_FLOOR_AREA"},
		{" Total Floor Area ", "TOTAL_FLOOR_AREA"},
		{`"POSTCODE"`, "POSTCODE"},
		{"\ufeffLMK_KEY", "LMK_KEY"},
		{"address1", "ADDRESS1"},
		{"TOTAL.FLOOR.AREA", "TOTAL_FLOOR_AREA"},
		{"total / floor / area", "TOTAL_FLOOR_AREA"},
		{"lodgement__date_", "LODGEMENT_DATE"},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalColumn(tt.input))
		})
	}
}

func TestResolveHeader(t *testing.T) {
	header := []string{"lmk-key", "address1", "postcode", "total-floor-area", "postcode"}

	h, err := ResolveHeader(header, "POSTCODE", "TOTAL_FLOOR_AREA")
	require.NoError(t, err)

	assert.Equal(t, 2, h.Index("postcode"))
	assert.Equal(t, 3, h.Index("Total Floor Area"))
	assert.Equal(t, -1, h.Index("UPRN"))

	row := []string{"k", " 1 HIGH ST ", "E14 8JX", "40"}
	assert.Equal(t, "1 HIGH ST", h.Value(row, "ADDRESS1"))
	assert.Equal(t, "", h.Value(row, "UPRN"))
	assert.Equal(t, "", h.Value([]string{"k"}, "POSTCODE"))
}

func TestResolveHeaderMissingRequiredColumn(t *testing.T) {
	_, err := ResolveHeader([]string{"postcode", "address1"}, "POSTCODE", "total-floor-area")
	require.Error(t, err)

	var missing *MissingRequiredColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "TOTAL_FLOOR_AREA", missing.Column)
	assert.Contains(t, err.Error(), "TOTAL_FLOOR_AREA")
}

func TestScannerOversizedLine(t *testing.T) {
	input := "a,b\n" + strings.Repeat("x", maxLineSize+10) + "\nc,d"
	s := NewScanner(strings.NewReader(input), ',')

	var rows [][]string
	var lines []int
	for s.Next() {
		rows = append(rows, s.Fields())
		lines = append(lines, s.Line())
	}
	require.NoError(t, s.Err())

	assert.Equal(t, [][]string{{"a", "b"}, nil, {"c", "d"}}, rows)
	assert.Equal(t, []int{1, 2, 3}, lines)
}

func TestScannerLastLineWithoutNewline(t *testing.T) {
	s := NewScanner(strings.NewReader("a,b\nc,d"), ',')

	require.True(t, s.Next())
	require.True(t, s.Next())
	assert.Equal(t, []string{"c", "d"}, s.Fields())
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
}
