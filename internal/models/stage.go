package models

import "time"

// Stage names a step of the batch pipeline
type Stage string

const (
	StageParseTransactions Stage = "parse-transactions"
	StageParseBuildings    Stage = "parse-buildings"
	StageMatch             Stage = "match"
	StageAggregate         Stage = "aggregate"
	StageExport            Stage = "export"
)

// Stages lists every stage in execution order
var Stages = []Stage{
	StageParseTransactions,
	StageParseBuildings,
	StageMatch,
	StageAggregate,
	StageExport,
}

// ParseStage resolves a stage from its name
func ParseStage(name string) (Stage, bool) {
	for _, s := range Stages {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

type StageState string

const (
	StateNotStarted StageState = "not_started"
	StateRunning    StageState = "running"
	StateCompleted  StageState = "completed"
)

// StageStatus is the persisted progress record of one stage
type StageStatus struct {
	Stage       Stage      `json:"stage"`
	State       StageState `json:"state"`
	RowsRead    int        `json:"rows_read"`
	RowsSkipped int        `json:"rows_skipped"`
	RowsWritten int        `json:"rows_written"`
	MatchRate   float64    `json:"match_rate,omitempty"`
	Detail      string     `json:"detail,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
