package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"londonsqft/server/internal/models"
)

func TestDownstream(t *testing.T) {
	tests := []struct {
		stage    models.Stage
		expected []models.Stage
	}{
		{models.StageParseTransactions, []models.Stage{models.StageMatch, models.StageAggregate, models.StageExport}},
		{models.StageParseBuildings, []models.Stage{models.StageMatch, models.StageAggregate, models.StageExport}},
		{models.StageMatch, []models.Stage{models.StageAggregate, models.StageExport}},
		{models.StageAggregate, []models.Stage{models.StageExport}},
		{models.StageExport, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			assert.Equal(t, tt.expected, Downstream(tt.stage))
		})
	}
}

func TestRequires(t *testing.T) {
	assert.Empty(t, Requires(models.StageParseTransactions))
	assert.Equal(t, []models.Stage{models.StageParseTransactions, models.StageParseBuildings}, Requires(models.StageMatch))
}
