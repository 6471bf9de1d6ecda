package model

import "time"

// QualityReport summarises a persisted batch. It is derived data and is only
// written out when a caller asks for it.
type QualityReport struct {
	Path                 string         `json:"path"`
	RecordCount          int            `json:"record_count"`
	Columns              []string       `json:"columns"`
	NullCounts           map[string]int `json:"null_counts"` // only columns with at least one null.
	NegativeCount        int            `json:"negative_count"`
	NegativeByParameter  map[string]int `json:"negative_by_parameter"`
	MinTimestamp         *time.Time     `json:"min_timestamp"`
	MaxTimestamp         *time.Time     `json:"max_timestamp"`
	CountsByParameter    map[string]int `json:"counts_by_parameter"`
	Stations             []string       `json:"stations"`
	ParametersPresent    []string       `json:"parameters_present"`
	ParametersExpected   []string       `json:"parameters_expected,omitempty"`
	MissingParameters    []string       `json:"missing_parameters,omitempty"`
	UnexpectedParameters []string       `json:"unexpected_parameters,omitempty"`
}

// TotalNulls sums the per-column null counts.
func (r *QualityReport) TotalNulls() int {
	total := 0
	for _, n := range r.NullCounts {
		total += n
	}
	return total
}
