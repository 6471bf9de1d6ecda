// Package quality audits a persisted measurement file. It only reports; what
// to do about a bad report is up to the caller.
package quality

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/anicoll/airquality-integration/internal/pkg/metrics"
	"github.com/anicoll/airquality-integration/internal/pkg/model"
	"github.com/anicoll/airquality-integration/internal/pkg/storage"
	"github.com/anicoll/airquality-integration/pkg/atomicfile"
)

type checker struct {
	logger  *zap.Logger
	metrics *metrics.Recorder
	read    func(path string) (*storage.Table, error)
	lookup  func(key string) (model.StationConfig, bool)
}

type Option func(*checker)

func WithLogger(logger *zap.Logger) Option {
	return func(c *checker) {
		c.logger = logger
	}
}

func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *checker) {
		c.metrics = rec
	}
}

// WithStations lets Check find the expected parameters of the station named in
// the file's metadata when the caller passes none.
func WithStations(lookup func(key string) (model.StationConfig, bool)) Option {
	return func(c *checker) {
		c.lookup = lookup
	}
}

func New(opts ...Option) *checker {
	c := &checker{
		logger:  zap.L(),
		metrics: metrics.Nop(),
		read:    storage.ReadFile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reads inputPath and summarises it. When expected is nil the station
// recorded in the file is looked up instead; if that is unknown too the
// parameter set difference is skipped. The input file is never modified.
func (c *checker) Check(ctx context.Context, inputPath string, expected *model.StationConfig) (*model.QualityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	table, err := c.read(inputPath)
	if err != nil {
		c.metrics.Step("check", err, time.Since(start))
		return nil, err
	}

	if expected == nil && c.lookup != nil && table.Station != "" {
		if st, ok := c.lookup(table.Station); ok {
			expected = &st
		} else {
			c.logger.Debug("station of file not in registry", zap.String("station", table.Station))
		}
	}

	report := Summarize(inputPath, table, expected)
	c.metrics.Step("check", nil, time.Since(start))
	c.metrics.Records("checked", report.RecordCount)

	fields := []zap.Field{
		zap.String("path", inputPath),
		zap.Int("records", report.RecordCount),
		zap.Int("nulls", report.TotalNulls()),
		zap.Int("negatives", report.NegativeCount),
		zap.Strings("parameters", report.ParametersPresent),
	}
	if report.MinTimestamp != nil {
		fields = append(fields, zap.Time("min_timestamp", *report.MinTimestamp), zap.Time("max_timestamp", *report.MaxTimestamp))
	}
	c.logger.Info("quality report", fields...)
	if len(report.MissingParameters) > 0 {
		c.logger.Warn("expected parameters missing from file", zap.Strings("missing", report.MissingParameters))
	}
	return report, nil
}

// Summarize computes the report for an already loaded table.
func Summarize(path string, table *storage.Table, expected *model.StationConfig) *model.QualityReport {
	report := &model.QualityReport{
		Path:                path,
		RecordCount:         len(table.Measurements),
		Columns:             slices.Clone(table.Columns),
		NullCounts:          map[string]int{},
		NegativeByParameter: map[string]int{},
		CountsByParameter:   map[string]int{},
	}

	nulls := func(col model.Column, isNull bool) {
		if isNull {
			report.NullCounts[col.String()]++
		}
	}
	stations := map[string]struct{}{}

	for _, m := range table.Measurements {
		nulls(model.ColumnTimestamp, m.Timestamp == nil)
		nulls(model.ColumnParameter, m.Parameter == "")
		nulls(model.ColumnValue, m.Value == nil)
		nulls(model.ColumnUnit, m.Unit == "")
		nulls(model.ColumnStation, m.Station == "")

		if m.Parameter != "" {
			report.CountsByParameter[m.Parameter]++
		}
		if m.Station != "" {
			stations[m.Station] = struct{}{}
		}
		if m.Value != nil && *m.Value < 0 && model.NonNegative(m.Parameter) {
			report.NegativeCount++
			report.NegativeByParameter[m.Parameter]++
		}
		if m.Timestamp != nil {
			ts := *m.Timestamp
			if report.MinTimestamp == nil || ts.Before(*report.MinTimestamp) {
				report.MinTimestamp = &ts
			}
			if report.MaxTimestamp == nil || ts.After(*report.MaxTimestamp) {
				report.MaxTimestamp = &ts
			}
		}
	}

	report.Stations = sortedKeys(stations)
	report.ParametersPresent = sortedKeys(report.CountsByParameter)
	if expected != nil {
		report.ParametersExpected = expected.Parameters()
		report.MissingParameters, report.UnexpectedParameters = lo.Difference(report.ParametersExpected, report.ParametersPresent)
		slices.Sort(report.MissingParameters)
		slices.Sort(report.UnexpectedParameters)
	}
	return report
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

// WriteJSON stores the report at path, replacing any previous report.
func WriteJSON(report *model.QualityReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	err = atomicfile.Write(path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
	if err != nil {
		return &storage.PersistenceError{Path: path, Op: "write report", Err: err}
	}
	return nil
}
