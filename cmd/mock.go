package cmd

import (
	"context"

	"github.com/anicoll/airquality-integration/internal/pkg/fetcher"
	"github.com/anicoll/airquality-integration/internal/pkg/model"
	"github.com/anicoll/airquality-integration/internal/pkg/openaq"
)

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, station model.StationConfig, window fetcher.Window, outputPath string) (*model.MeasurementBatch, *model.BatchSummary, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, station model.StationConfig, window fetcher.Window, outputPath string) (*model.MeasurementBatch, *model.BatchSummary, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, station, window, outputPath)
	}
	return &model.MeasurementBatch{Station: station.Key}, &model.BatchSummary{Station: station.Key, Path: outputPath}, nil
}

// MockChecker is a mock implementation of the Checker interface.
type MockChecker struct {
	CheckFunc func(ctx context.Context, inputPath string, expected *model.StationConfig) (*model.QualityReport, error)
}

func (m *MockChecker) Check(ctx context.Context, inputPath string, expected *model.StationConfig) (*model.QualityReport, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, inputPath, expected)
	}
	return &model.QualityReport{Path: inputPath}, nil
}

// MockDiscoverer is a mock implementation of the Discoverer interface.
type MockDiscoverer struct {
	LocationsFunc       func(ctx context.Context, name string) ([]openaq.Location, error)
	LocationSensorsFunc func(ctx context.Context, locationID int64) ([]openaq.SensorInfo, error)
}

func (m *MockDiscoverer) Locations(ctx context.Context, name string) ([]openaq.Location, error) {
	if m.LocationsFunc != nil {
		return m.LocationsFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockDiscoverer) LocationSensors(ctx context.Context, locationID int64) ([]openaq.SensorInfo, error) {
	if m.LocationSensorsFunc != nil {
		return m.LocationSensorsFunc(ctx, locationID)
	}
	return nil, nil
}
