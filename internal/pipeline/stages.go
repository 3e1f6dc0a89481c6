package pipeline

import "londonsqft/server/internal/models"

// requires lists the stages whose output a stage reads
var requires = map[models.Stage][]models.Stage{
	models.StageMatch:     {models.StageParseTransactions, models.StageParseBuildings},
	models.StageAggregate: {models.StageMatch},
	models.StageExport:    {models.StageAggregate},
}

// Requires returns the direct requirements of stage
func Requires(stage models.Stage) []models.Stage {
	return requires[stage]
}

// Downstream returns every stage that directly or transitively requires
// stage, in execution order.
func Downstream(stage models.Stage) []models.Stage {
	affected := map[models.Stage]bool{stage: true}
	var out []models.Stage
	for _, s := range models.Stages {
		for _, r := range requires[s] {
			if affected[r] {
				affected[s] = true
				out = append(out, s)
				break
			}
		}
	}
	return out
}
