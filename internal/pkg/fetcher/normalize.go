package fetcher

import (
	"time"

	"github.com/anicoll/airquality-integration/internal/pkg/model"
	"github.com/anicoll/airquality-integration/internal/pkg/openaq"
)

// localLayout is how the API reports station-local time when it omits the offset.
const localLayout = "2006-01-02T15:04:05"

// normalize maps one API record onto the tabular schema. Fields that are
// missing or cannot be parsed become nil; the record itself is never dropped.
func normalize(rec openaq.MeasurementRecord, station string, loc *time.Location, sensor model.SensorConfig) model.Measurement {
	m := model.Measurement{
		Timestamp: recordTime(rec, loc),
		Parameter: sensor.Parameter,
		Value:     rec.Value.Ptr(),
		Unit:      sensor.Unit,
		Station:   station,
	}
	if rec.Parameter != nil && rec.Parameter.Units != "" {
		m.Unit = rec.Parameter.Units
	}
	return m
}

// recordTime prefers the UTC end of the period and falls back to its local
// time. A local time without an offset is read in loc.
func recordTime(rec openaq.MeasurementRecord, loc *time.Location) *time.Time {
	if rec.Period == nil || rec.Period.DatetimeTo == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	dt := rec.Period.DatetimeTo
	if t, err := time.Parse(time.RFC3339, dt.UTC); err == nil {
		return utc(t)
	}
	if dt.Local == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, dt.Local); err == nil {
		return utc(t)
	}
	if t, err := time.ParseInLocation(localLayout, dt.Local, loc); err == nil {
		return utc(t)
	}
	return nil
}

func utc(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
