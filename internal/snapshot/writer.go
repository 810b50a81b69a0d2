package snapshot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/observability"
)

// Entry is one snapshot file in a directory.
type Entry struct {
	Version Version
	Path    string
}

// WriteError reports that a snapshot could not be persisted.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write snapshot %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Option configures optional behaviour for the Writer and Resolver.
type Option func(*options)

type options struct {
	logger *zap.Logger
	now    func() time.Time
}

// WithLogger overrides the logger used to report progress and skipped files.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the clock used to date new snapshots.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Writer persists tables as versioned CSV snapshots.
type Writer struct {
	dir    string
	layout Layout
	opts   options
}

// NewWriter constructs a Writer targeting dir.
func NewWriter(dir string, layout Layout, opts ...Option) *Writer {
	return &Writer{dir: dir, layout: layout, opts: buildOptions(opts)}
}

// Write renders the table and stores it under the next free name for today. The table is
// encoded in memory first so the file is written in one shot; a failed write removes the
// partial file.
func (w *Writer) Write(ctx context.Context, table domain.Table) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return Entry{}, &WriteError{Path: w.dir, Err: err}
	}
	if !info.IsDir() {
		return Entry{}, &WriteError{Path: w.dir, Err: fmt.Errorf("not a directory")}
	}

	payload, err := encodeCSV(table)
	if err != nil {
		return Entry{}, &WriteError{Path: w.dir, Err: err}
	}

	now := w.opts.now()
	f, version, err := CreateNext(w.dir, w.layout, now)
	if err != nil {
		return Entry{}, &WriteError{Path: w.dir, Err: err}
	}
	path := f.Name()

	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return Entry{}, &WriteError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return Entry{}, &WriteError{Path: path, Err: err}
	}

	observability.RecordSnapshotWritten(now, version.Seq)
	w.opts.logger.Info("snapshot written",
		zap.String("path", path),
		zap.String("date", version.DateString()),
		zap.Int("version", version.Seq),
		zap.Int("rows", table.Len()),
	)
	return Entry{Version: version, Path: path}, nil
}

func encodeCSV(table domain.Table) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(table.Columns); err != nil {
		return nil, err
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadTable loads a snapshot CSV back into a table.
func ReadTable(path string) (domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return domain.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return domain.Table{}, fmt.Errorf("read %s: missing header", path)
	}

	columns := records[0]
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(columns))
		copy(row, rec)
		rows = append(rows, row)
	}
	return domain.Table{Columns: columns, Rows: rows}, nil
}
