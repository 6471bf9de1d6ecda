// Package fetcher pulls one station's readings for a time window from the
// measurement API and persists them as a single batch file.
package fetcher

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/airquality-integration/internal/pkg/metrics"
	"github.com/anicoll/airquality-integration/internal/pkg/model"
	"github.com/anicoll/airquality-integration/internal/pkg/openaq"
	"github.com/anicoll/airquality-integration/internal/pkg/storage"
	"github.com/anicoll/airquality-integration/pkg/checksum"
)

type pageSource interface {
	Measurements(ctx context.Context, sensorID int64, from, to time.Time) iter.Seq2[openaq.Page, error]
}

type archiver interface {
	Publish(ctx context.Context, batch *model.MeasurementBatch) error
}

type service struct {
	source  pageSource
	archive archiver
	logger  *zap.Logger
	metrics *metrics.Recorder
	write   func(path string, batch *model.MeasurementBatch) error
}

type Option func(*service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *service) {
		s.metrics = rec
	}
}

// WithArchive mirrors every persisted batch into a.
func WithArchive(a archiver) Option {
	return func(s *service) {
		s.archive = a
	}
}

func New(source pageSource, opts ...Option) *service {
	s := &service{
		source:  source,
		logger:  zap.L(),
		metrics: metrics.Nop(),
		write:   storage.WriteFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch retrieves every configured sensor of station within window and
// replaces outputPath with the result. Any sensor failing aborts the whole
// invocation before anything is written.
func (s *service) Fetch(ctx context.Context, station model.StationConfig, window Window, outputPath string) (*model.MeasurementBatch, *model.BatchSummary, error) {
	if err := window.Validate(); err != nil {
		return nil, nil, err
	}
	logger := s.logger.With(zap.String("station", station.Key), zap.Stringer("window", window))

	start := time.Now()
	batch, summary, err := s.collect(ctx, station, window, logger)
	s.metrics.Step("fetch", err, time.Since(start))
	if err != nil {
		return nil, nil, err
	}
	if batch.Len() == 0 {
		logger.Warn("no measurements returned for window, writing empty batch")
	}

	start = time.Now()
	err = s.write(outputPath, batch)
	s.metrics.Step("persist", err, time.Since(start))
	if err != nil {
		return nil, nil, err
	}
	summary.Path = outputPath
	summary.Rows = batch.Len()
	summary.Checksum, err = checksum.File(outputPath)
	if err != nil {
		return nil, nil, &storage.PersistenceError{Path: outputPath, Op: "checksum", Err: err}
	}
	logger.Info("batch persisted",
		zap.String("path", outputPath),
		zap.Int("rows", summary.Rows),
		zap.Int("requests", summary.Requests),
		zap.Int("skipped", summary.Skipped),
		zap.String("checksum", summary.Checksum))

	if s.archive != nil {
		start = time.Now()
		err = s.archive.Publish(ctx, batch)
		s.metrics.Step("archive", err, time.Since(start))
		if err != nil {
			return nil, nil, &storage.PersistenceError{Path: outputPath, Op: "archive", Err: err}
		}
		s.metrics.Records("archived", batch.Len())
	}
	return batch, summary, nil
}

func (s *service) collect(ctx context.Context, station model.StationConfig, window Window, logger *zap.Logger) (*model.MeasurementBatch, *model.BatchSummary, error) {
	batch := &model.MeasurementBatch{
		Station:     station.Key,
		WindowStart: window.Start.UTC(),
		WindowEnd:   window.End.UTC(),
	}
	summary := &model.BatchSummary{Station: station.Key}

	loc := station.Location()
	for _, sensor := range station.Sensors {
		fetched, skipped := 0, 0
		for page, err := range s.source.Measurements(ctx, sensor.SensorID, window.Start, window.End) {
			summary.Requests++
			if err != nil {
				return nil, nil, stationError(err, station.Key)
			}
			for _, rec := range page.Results {
				m := normalize(rec, station.Key, loc, sensor)
				if m.Timestamp != nil && !window.Contains(*m.Timestamp) {
					skipped++
					continue
				}
				batch.Measurements = append(batch.Measurements, m)
				fetched++
			}
		}
		logger.Debug("sensor fetched",
			zap.String("parameter", sensor.Parameter),
			zap.Int64("sensor_id", sensor.SensorID),
			zap.Int("records", fetched),
			zap.Int("skipped", skipped))
		if skipped > 0 {
			logger.Warn("records outside window skipped",
				zap.String("parameter", sensor.Parameter),
				zap.Int("skipped", skipped))
		}
		summary.Skipped += skipped
		s.metrics.Records("fetched", fetched)
		s.metrics.Records("skipped", skipped)
	}
	return batch, summary, nil
}

func stationError(err error, station string) error {
	var fe *openaq.FetchError
	if errors.As(err, &fe) {
		tagged := *fe
		tagged.Station = station
		return &tagged
	}
	return err
}
