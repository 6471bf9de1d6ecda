package database

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
)

// Database mirrors measurement batches into Postgres. The schema is owned by
// the migrations folder, see the migration package.
type Database struct {
	conn *pgx.Conn
	io.Closer
}

func NewDatabase(conn *pgx.Conn) *Database {
	return &Database{
		conn: conn,
	}
}

// Connect opens a single connection to dsn.
func Connect(ctx context.Context, dsn string) (*Database, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewDatabase(conn), nil
}

func (db *Database) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close(context.Background())
}

type Measurement struct {
	Id          int64      `json:"id"`
	Station     string     `json:"station"`
	Parameter   string     `json:"parameter"`
	TimeStamp   *time.Time `json:"timestamp"`
	Value       *float64   `json:"value"`
	Unit        string     `json:"unit"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
}
type Measurements []Measurement
