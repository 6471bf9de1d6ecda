package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetMeasurements returns the archived rows of a station with a timestamp in
// [from, to], oldest first.
func (db *Database) GetMeasurements(ctx context.Context, station string, from, to time.Time) (Measurements, error) {
	const query = `
	SELECT id, station, parameter, time_stamp, value, unit, window_start, window_end
	FROM measurement
	WHERE station = $1 AND time_stamp BETWEEN $2 AND $3
	ORDER BY time_stamp, parameter, id;
	`

	rows, err := db.conn.Query(ctx, query, station, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMeasurements(rows)
}

// CountMeasurements counts every archived row of a station, including rows
// without a timestamp.
func (db *Database) CountMeasurements(ctx context.Context, station string) (int64, error) {
	var n int64
	err := db.conn.QueryRow(ctx, `SELECT count(*) FROM measurement WHERE station = $1`, station).Scan(&n)
	return n, err
}

func scanMeasurements(rows pgx.Rows) (Measurements, error) {
	var measurements Measurements
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.Id, &m.Station, &m.Parameter, &m.TimeStamp, &m.Value, &m.Unit, &m.WindowStart, &m.WindowEnd); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}

	if err := rows.Err(); err != nil {
		if err == pgx.ErrNoRows {
			return measurements, nil
		}
		return nil, err
	}

	return measurements, nil
}
