package database

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/anicoll/airquality-integration/internal/pkg/database/migration"
	"github.com/anicoll/airquality-integration/internal/pkg/model"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("airquality"),
		tcpostgres.WithUsername("airquality"),
		tcpostgres.WithPassword("airquality"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pg)
	require.NoError(t, err)

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migration.Migrate(dsn, "../../../migrations"))
	// applying twice is a no-op.
	require.NoError(t, migration.Migrate(dsn, "../../../migrations"))
	return dsn
}

func TestWriteBatch_ReplacesWindow(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(7 * 24 * time.Hour)
	batch := &model.MeasurementBatch{
		Station:     "kossutha",
		WindowStart: start,
		WindowEnd:   end,
		Measurements: model.Measurements{
			{Timestamp: lo.ToPtr(start.Add(time.Hour)), Parameter: "pm25", Value: lo.ToPtr(12.5), Unit: "µg/m³", Station: "kossutha"},
			{Timestamp: lo.ToPtr(start.Add(2 * time.Hour)), Parameter: "pm10", Value: nil, Unit: "µg/m³", Station: "kossutha"},
			{Timestamp: nil, Parameter: "pm10", Value: lo.ToPtr(3.0), Unit: "µg/m³", Station: "kossutha"},
		},
	}

	n, err := db.WriteBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = db.WriteBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	total, err := db.CountMeasurements(ctx, "kossutha")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total, "rewriting a window must not duplicate rows")

	got, err := db.GetMeasurements(ctx, "kossutha", start, end)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pm25", got[0].Parameter)
	assert.Equal(t, 12.5, *got[0].Value)
	assert.Nil(t, got[1].Value)
	assert.True(t, start.Equal(got[0].WindowStart))

	removed, err := db.Cleanup(ctx, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}
