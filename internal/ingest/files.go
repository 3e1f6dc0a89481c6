// Package ingest turns raw price paid and energy certificate files into
// typed records.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MissingInputFileError reports an input path that does not exist or holds
// nothing to read. It fails the stage that needs the file.
type MissingInputFileError struct {
	Path string
}

func (e *MissingInputFileError) Error() string {
	return fmt.Sprintf("input file not found: %s", e.Path)
}

// Counts summarises one pass over a source
type Counts struct {
	Read      int `json:"read"`
	Malformed int `json:"malformed"`
	Filtered  int `json:"filtered"`
	Accepted  int `json:"accepted"`
}

// Skipped is every row that was read but not accepted
func (c Counts) Skipped() int {
	return c.Malformed + c.Filtered
}

// Add accumulates another file's counts
func (c *Counts) Add(other Counts) {
	c.Read += other.Read
	c.Malformed += other.Malformed
	c.Filtered += other.Filtered
	c.Accepted += other.Accepted
}

// CheckFiles verifies every path exists and is a regular file
func CheckFiles(paths []string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
			return &MissingInputFileError{Path: p}
		}
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
	}
	return nil
}

// BuildingFiles lists the certificate files (csv or zip) in dir, sorted by
// name so imports happen in a stable order.
func BuildingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingInputFileError{Path: dir}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".zip":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, &MissingInputFileError{Path: filepath.Join(dir, "*.csv")}
	}
	sort.Strings(files)
	return files, nil
}
