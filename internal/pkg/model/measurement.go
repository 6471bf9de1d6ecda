package model

import "time"

type Column string

func (c Column) String() string {
	return string(c)
}

const (
	ColumnTimestamp Column = "timestamp"
	ColumnParameter Column = "parameter"
	ColumnValue     Column = "value"
	ColumnUnit      Column = "unit"
	ColumnStation   Column = "station"
)

// Columns is the persisted column order.
var Columns = []Column{
	ColumnTimestamp,
	ColumnParameter,
	ColumnValue,
	ColumnUnit,
	ColumnStation,
}

// Measurement is a single reading. A nil Timestamp or Value means the source
// record did not carry a usable field; the row is still kept.
type Measurement struct {
	Timestamp *time.Time `json:"timestamp"`
	Parameter string     `json:"parameter"`
	Value     *float64   `json:"value"`
	Unit      string     `json:"unit"`
	Station   string     `json:"station"`
}

type Measurements []Measurement

// MeasurementBatch holds everything one fetch invocation produced.
type MeasurementBatch struct {
	Station      string       `json:"station"`
	WindowStart  time.Time    `json:"window_start"`
	WindowEnd    time.Time    `json:"window_end"`
	Measurements Measurements `json:"measurements"`
}

func (b *MeasurementBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Measurements)
}

// BatchSummary is what the fetch command logs once a batch is persisted.
type BatchSummary struct {
	Station  string `json:"station"`
	Path     string `json:"path"`
	Rows     int    `json:"rows"`
	Requests int    `json:"requests"`
	Skipped  int    `json:"skipped"`
	Checksum string `json:"checksum"`
}
