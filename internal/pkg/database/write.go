package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/airquality-integration/internal/pkg/model"
)

var measurementColumns = []string{"station", "parameter", "time_stamp", "value", "unit", "window_start", "window_end"}

// WriteBatch replaces the station's rows for the batch window with the batch.
// Running it twice for the same window leaves one copy of the data.
func (db *Database) WriteBatch(ctx context.Context, batch *model.MeasurementBatch) (int64, error) {
	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	start, end := batch.WindowStart.UTC(), batch.WindowEnd.UTC()
	if _, err := tx.Exec(ctx, `
		DELETE FROM measurement
		WHERE station = $1
		  AND (time_stamp BETWEEN $2 AND $3
		   OR (time_stamp IS NULL AND window_start = $2 AND window_end = $3))
	`, batch.Station, start, end); err != nil {
		return 0, err
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"measurement"}, measurementColumns,
		pgx.CopyFromSlice(batch.Len(), func(i int) ([]any, error) {
			m := batch.Measurements[i]
			var ts *time.Time
			if m.Timestamp != nil {
				utc := m.Timestamp.UTC()
				ts = &utc
			}
			return []any{m.Station, m.Parameter, ts, m.Value, m.Unit, start, end}, nil
		}))
	if err != nil {
		return 0, err
	}

	return n, tx.Commit(ctx)
}
