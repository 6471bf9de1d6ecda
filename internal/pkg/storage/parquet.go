// Package storage persists measurement batches as Parquet files, one row per
// measurement.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/samber/lo"

	"github.com/anicoll/airquality-integration/internal/pkg/model"
	"github.com/anicoll/airquality-integration/pkg/atomicfile"
)

const (
	metaStation     = "airq.station"
	metaWindowStart = "airq.window_start"
	metaWindowEnd   = "airq.window_end"
)

// row is the on-disk layout. Pointer fields are optional columns.
type row struct {
	Timestamp *time.Time `parquet:"timestamp"`
	Parameter string     `parquet:"parameter"`
	Value     *float64   `parquet:"value"`
	Unit      string     `parquet:"unit"`
	Station   string     `parquet:"station"`
}

// Table is the content of a measurement file.
type Table struct {
	Columns      []string
	Station      string
	WindowStart  *time.Time
	WindowEnd    *time.Time
	Measurements model.Measurements
}

type encoder func(w io.Writer, rows []row, opts ...parquet.WriterOption) error

func encodeParquet(w io.Writer, rows []row, opts ...parquet.WriterOption) error {
	pw := parquet.NewGenericWriter[row](w, opts...)
	if _, err := pw.Write(rows); err != nil {
		return err
	}
	return pw.Close()
}

// WriteFile replaces path with the batch. Readers observe either the previous
// file or the complete new one. Identical batches produce identical bytes.
func WriteFile(path string, batch *model.MeasurementBatch) error {
	return writeFile(path, batch, encodeParquet)
}

func writeFile(path string, batch *model.MeasurementBatch, encode encoder) error {
	if batch == nil {
		return &PersistenceError{Path: path, Op: "write", Err: errors.New("nil batch")}
	}
	rows := lo.Map(batch.Measurements, func(m model.Measurement, _ int) row {
		return toRow(m)
	})
	opts := []parquet.WriterOption{
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata(metaStation, batch.Station),
		parquet.KeyValueMetadata(metaWindowStart, batch.WindowStart.UTC().Format(time.RFC3339)),
		parquet.KeyValueMetadata(metaWindowEnd, batch.WindowEnd.UTC().Format(time.RFC3339)),
	}
	err := atomicfile.Write(path, func(w io.Writer) error {
		return encode(w, rows, opts...)
	})
	if err != nil {
		return &PersistenceError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// ReadFile loads a file written by WriteFile.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, &CorruptFileError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &CorruptFileError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &CorruptFileError{Path: path, Err: errors.New("is a directory")}
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, &CorruptFileError{Path: path, Err: err}
	}
	columns := lo.Map(pf.Schema().Fields(), func(field parquet.Field, _ int) string {
		return field.Name()
	})
	if missing, _ := lo.Difference(lo.Map(model.Columns, func(c model.Column, _ int) string { return c.String() }), columns); len(missing) > 0 {
		return nil, &CorruptFileError{Path: path, Err: fmt.Errorf("missing columns %v", missing)}
	}

	rows, err := parquet.Read[row](f, info.Size())
	if err != nil {
		return nil, &CorruptFileError{Path: path, Err: err}
	}

	table := &Table{
		Columns:      columns,
		Measurements: lo.Map(rows, func(r row, _ int) model.Measurement { return fromRow(r) }),
	}
	table.Station, _ = pf.Lookup(metaStation)
	table.WindowStart = lookupTime(pf, metaWindowStart)
	table.WindowEnd = lookupTime(pf, metaWindowEnd)
	return table, nil
}

func lookupTime(pf *parquet.File, key string) *time.Time {
	v, ok := pf.Lookup(key)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

func toRow(m model.Measurement) row {
	r := row{
		Parameter: m.Parameter,
		Value:     m.Value,
		Unit:      m.Unit,
		Station:   m.Station,
	}
	if m.Timestamp != nil {
		r.Timestamp = lo.ToPtr(m.Timestamp.UTC())
	}
	return r
}

func fromRow(r row) model.Measurement {
	m := model.Measurement{
		Parameter: r.Parameter,
		Value:     r.Value,
		Unit:      r.Unit,
		Station:   r.Station,
	}
	if r.Timestamp != nil {
		m.Timestamp = lo.ToPtr(r.Timestamp.UTC())
	}
	return m
}
