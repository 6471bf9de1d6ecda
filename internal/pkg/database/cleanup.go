package database

import (
	"context"
	"time"
)

// Cleanup removes archived rows whose window ended before cutoff.
func (db *Database) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.conn.Exec(ctx, "DELETE FROM measurement WHERE window_end < $1", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
