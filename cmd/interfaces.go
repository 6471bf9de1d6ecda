package cmd

import (
	"context"
	"iter"
	"time"

	"github.com/anicoll/airquality-integration/internal/pkg/fetcher"
	"github.com/anicoll/airquality-integration/internal/pkg/model"
	"github.com/anicoll/airquality-integration/internal/pkg/openaq"
)

// Fetcher is what the fetch command expects from the fetcher service.
type Fetcher interface {
	Fetch(ctx context.Context, station model.StationConfig, window fetcher.Window, outputPath string) (*model.MeasurementBatch, *model.BatchSummary, error)
}

// Checker is what the quality command expects from the quality checker.
type Checker interface {
	Check(ctx context.Context, inputPath string, expected *model.StationConfig) (*model.QualityReport, error)
}

// Discoverer is the part of the API client the discover command uses.
type Discoverer interface {
	Locations(ctx context.Context, name string) ([]openaq.Location, error)
	LocationSensors(ctx context.Context, locationID int64) ([]openaq.SensorInfo, error)
}

// APIClient is the full remote API surface: discovery plus paged readings.
type APIClient interface {
	Discoverer
	Measurements(ctx context.Context, sensorID int64, from, to time.Time) iter.Seq2[openaq.Page, error]
}
