// Package coros turns the .fit activity files exported from a Coros watch into one snapshot
// table with a row per recorded sample.
package coros

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tormoder/fit"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/observability"
)

// SourceFileColumn names the file a record row was decoded from.
const SourceFileColumn = "source_file"

// Invalid markers of the FIT base types used by record messages.
const (
	invalidUint8  = 0xFF
	invalidSint8  = 0x7F
	invalidUint16 = 0xFFFF
	invalidUint32 = 0xFFFFFFFF
)

// Result summarises one directory conversion.
type Result struct {
	Table   domain.Table
	Files   int
	Skipped int
	Records int
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger overrides the converter logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// WithClock overrides the clock stamped into loaded_date.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		c.now = now
	}
}

// Converter decodes FIT files and concatenates their record messages.
type Converter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewConverter builds a Converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertDir decodes every .fit file directly under dir in name order. Files that cannot be
// decoded, or that are not activity files, are logged and counted as skipped.
func (c *Converter) ConvertDir(ctx context.Context, dir string) (Result, error) {
	ctx, span := observability.Tracer("coros").Start(ctx, "coros.convert")
	defer span.End()

	files, err := listFitFiles(dir)
	if err != nil {
		return Result{}, err
	}
	span.SetAttributes(attribute.Int("coros.files", len(files)))

	result := Result{Files: len(files)}
	var rows []domain.Activity
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		records, err := decodeFile(path)
		if err != nil {
			result.Skipped++
			c.logger.Warn("skipping fit file", zap.String("file", filepath.Base(path)), zap.Error(err))
			continue
		}
		c.logger.Debug("decoded fit file", zap.String("file", filepath.Base(path)), zap.Int("records", len(records)))
		rows = append(rows, records...)
	}

	result.Records = len(rows)
	result.Table = domain.NewTable(rows, c.now())
	c.logger.Info("fit files converted",
		zap.Int("files", result.Files),
		zap.Int("skipped", result.Skipped),
		zap.Int("records", result.Records))
	return result, nil
}

func listFitFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fit directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".fit") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func decodeFile(path string) ([]domain.Activity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeRecords(f, filepath.Base(path))
}

// DecodeRecords decodes one FIT activity stream into rows, one per record message, each
// tagged with source.
func DecodeRecords(r io.Reader, source string) ([]domain.Activity, error) {
	file, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	activity, err := file.Activity()
	if err != nil {
		return nil, fmt.Errorf("not an activity file: %w", err)
	}

	rows := make([]domain.Activity, 0, len(activity.Records))
	for _, rec := range activity.Records {
		if rec == nil {
			continue
		}
		fields := recordFields(rec)
		fields = append(fields, domain.Field{Name: SourceFileColumn, Value: source})
		rows = append(rows, domain.Activity{Fields: fields})
	}
	return rows, nil
}

// recordFields renders the valid fields of a record message. Scales and offsets follow the
// FIT profile: distance in cm, altitude in 1/5 m offset by 500 m, speed in mm/s.
func recordFields(rec *fit.RecordMsg) []domain.Field {
	var fields []domain.Field
	add := func(name, value string) {
		fields = append(fields, domain.Field{Name: name, Value: value})
	}

	if !rec.Timestamp.IsZero() {
		add("timestamp", rec.Timestamp.UTC().Format(time.RFC3339))
	}
	if lat := rec.PositionLat.Degrees(); !math.IsNaN(lat) {
		add("position_lat", formatFloat(lat))
	}
	if long := rec.PositionLong.Degrees(); !math.IsNaN(long) {
		add("position_long", formatFloat(long))
	}
	if rec.Distance != invalidUint32 {
		add("distance", formatFloat(float64(rec.Distance)/100))
	}
	if rec.Altitude != invalidUint16 {
		add("altitude", formatFloat(float64(rec.Altitude)/5-500))
	}
	if rec.EnhancedAltitude != invalidUint32 {
		add("enhanced_altitude", formatFloat(float64(rec.EnhancedAltitude)/5-500))
	}
	if rec.Speed != invalidUint16 {
		add("speed", formatFloat(float64(rec.Speed)/1000))
	}
	if rec.EnhancedSpeed != invalidUint32 {
		add("enhanced_speed", formatFloat(float64(rec.EnhancedSpeed)/1000))
	}
	if rec.HeartRate != invalidUint8 {
		add("heart_rate", strconv.Itoa(int(rec.HeartRate)))
	}
	if rec.Cadence != invalidUint8 {
		add("cadence", strconv.Itoa(int(rec.Cadence)))
	}
	if rec.Power != invalidUint16 {
		add("power", strconv.Itoa(int(rec.Power)))
	}
	if rec.Temperature != invalidSint8 {
		add("temperature", strconv.Itoa(int(rec.Temperature)))
	}
	return fields
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
