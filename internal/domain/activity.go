// Package domain defines the activity records exported from Strava and the tabular snapshot built from them.
package domain

import (
	"strconv"
	"time"
)

// LoadedDateColumn is appended to every exported row and holds the export wall-clock time.
const LoadedDateColumn = "loaded_date"

// Field is one attribute of an upstream activity object, rendered as CSV cell text.
type Field struct {
	Name  string
	Value string
}

// Activity represents one tracked activity as returned by the activities endpoint.
// Fields keep the order in which the endpoint emitted them.
type Activity struct {
	Fields []Field
}

// Get returns the cell text of the named field.
func (a Activity) Get(name string) (string, bool) {
	for _, f := range a.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// ID returns the upstream activity identifier, or 0 when absent or not numeric.
func (a Activity) ID() int64 {
	raw, ok := a.Get("id")
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Name returns the activity title.
func (a Activity) Name() string {
	v, _ := a.Get("name")
	return v
}

// Type returns the legacy activity type (Run, Ride, ...).
func (a Activity) Type() string {
	v, _ := a.Get("type")
	return v
}

// SportType returns the detailed sport type.
func (a Activity) SportType() string {
	v, _ := a.Get("sport_type")
	return v
}

// StartDateLocal parses start_date_local, returning the zero time when missing or malformed.
func (a Activity) StartDateLocal() time.Time {
	raw, ok := a.Get("start_date_local")
	if !ok || raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Float returns a numeric field, reporting false when missing, empty or not a number.
func (a Activity) Float(name string) (float64, bool) {
	raw, ok := a.Get(name)
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
