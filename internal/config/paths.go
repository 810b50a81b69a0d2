package config

import (
	"path/filepath"
	"time"
)

// DateLayout is the calendar-date format used in snapshot and log file names.
const DateLayout = "2006-01-02"

// Paths groups the directories a pipeline run reads from and writes to.
type Paths struct {
	Base string
	Data string
	Logs string
	// CorosFit holds the raw .fit files exported from a Coros watch.
	CorosFit string
	// CorosData receives the combined Coros record snapshots.
	CorosData string
}

// CivilDate truncates t to its local calendar date, expressed as midnight UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Local().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today formats the local calendar date of now.
func Today(now time.Time) string {
	return CivilDate(now).Format(DateLayout)
}

// Resolve joins name onto the base directory unless it is already absolute.
func (p Paths) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.Base, name)
}
