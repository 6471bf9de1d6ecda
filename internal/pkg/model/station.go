package model

import (
	"time"
	_ "time/tzdata" // station time zones must resolve on hosts without zoneinfo.

	"github.com/samber/lo"
)

// StationConfig describes one monitoring station and the sensors fetched for it.
// Values are created once from the registry and never mutated afterwards.
type StationConfig struct {
	Key        string         `yaml:"-" json:"key"`
	Label      string         `yaml:"label" json:"label"`
	LocationID int64          `yaml:"location_id" json:"location_id"`
	TimeZone   string         `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	Sensors    []SensorConfig `yaml:"sensors" json:"sensors"`
}

type SensorConfig struct {
	Parameter string `yaml:"parameter" json:"parameter"`
	SensorID  int64  `yaml:"sensor_id" json:"sensor_id"`
	Unit      string `yaml:"unit" json:"unit"` // used when the API omits units.
}

// Parameters returns the monitored parameter names in configured order.
func (s StationConfig) Parameters() []string {
	return lo.Map(s.Sensors, func(sc SensorConfig, _ int) string {
		return sc.Parameter
	})
}

// Location is the zone that offset-less local timestamps of this station are
// read in. It is UTC when no zone is configured or the name does not resolve.
func (s StationConfig) Location() *time.Location {
	if s.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
