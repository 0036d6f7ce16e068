package models

// ModuleStatistics summarizes a user's learning items in one module
type ModuleStatistics struct {
	ModuleID         string  `json:"module_id"`
	Items            int     `json:"items"`
	Reviewed         int     `json:"reviewed"`
	Due              int     `json:"due"`
	Mastered         int     `json:"mastered"`
	TotalRepetitions int     `json:"total_repetitions"`
	AverageRetention float64 `json:"average_retention"`
}
