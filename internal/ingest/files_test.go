package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"southwark.csv", "camden.ZIP", "notes.txt", "barnet.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0755))

	files, err := BuildingFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "barnet.csv"),
		filepath.Join(dir, "camden.ZIP"),
		filepath.Join(dir, "southwark.csv"),
	}, files)
}

func TestBuildingFilesMissing(t *testing.T) {
	var missing *MissingInputFileError

	_, err := BuildingFiles(filepath.Join(t.TempDir(), "epc"))
	assert.ErrorAs(t, err, &missing)

	_, err = BuildingFiles(t.TempDir())
	assert.ErrorAs(t, err, &missing)
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "pp-2024.csv")
	require.NoError(t, os.WriteFile(present, nil, 0644))

	assert.NoError(t, CheckFiles([]string{present}))

	absent := filepath.Join(dir, "pp-2025.csv")
	err := CheckFiles([]string{present, absent})
	var missing *MissingInputFileError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, absent, missing.Path)
	assert.Equal(t, "input file not found: "+absent, err.Error())

	assert.ErrorAs(t, CheckFiles([]string{dir}), &missing)
}

func TestCountsAdd(t *testing.T) {
	total := Counts{Read: 3, Malformed: 1, Accepted: 2}
	total.Add(Counts{Read: 5, Filtered: 2, Malformed: 1, Accepted: 2})
	assert.Equal(t, Counts{Read: 8, Malformed: 2, Filtered: 2, Accepted: 4}, total)
}
