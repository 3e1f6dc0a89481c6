// Package index groups building records by postcode for candidate lookup.
package index

import (
	"sort"

	"londonsqft/server/internal/models"
)

// PostcodeIndex is built once per match pass and read-only afterwards
type PostcodeIndex struct {
	byPostcode map[string][]models.BuildingRecord
	size       int
}

// New indexes records by their canonical postcode, keeping input order
// within each postcode.
func New(records []models.BuildingRecord) *PostcodeIndex {
	idx := &PostcodeIndex{byPostcode: make(map[string][]models.BuildingRecord)}
	for _, r := range records {
		idx.Add(r)
	}
	return idx
}

// Add appends one record
func (idx *PostcodeIndex) Add(r models.BuildingRecord) {
	idx.byPostcode[r.Postcode] = append(idx.byPostcode[r.Postcode], r)
	idx.size++
}

// Candidates returns the records sharing postcode. The slice must not be modified.
func (idx *PostcodeIndex) Candidates(postcode string) []models.BuildingRecord {
	return idx.byPostcode[postcode]
}

// Len is the number of indexed records
func (idx *PostcodeIndex) Len() int {
	return idx.size
}

// PostcodeCount is the number of distinct postcodes
func (idx *PostcodeIndex) PostcodeCount() int {
	return len(idx.byPostcode)
}

// Postcodes returns the distinct postcodes in ascending order
func (idx *PostcodeIndex) Postcodes() []string {
	keys := make([]string, 0, len(idx.byPostcode))
	for k := range idx.byPostcode {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
