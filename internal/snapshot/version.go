// Package snapshot persists exported activity tables as dated, versioned CSV files and
// resolves the most recent one from a directory.
package snapshot

import (
	"fmt"
	"time"

	"github.com/alainabartfeld/strava-activities/internal/config"
)

// Version identifies a snapshot within its directory: the calendar date it was written on and
// its per-day sequence number.
type Version struct {
	// Date is midnight UTC of the calendar date encoded in the file name.
	Date time.Time
	// Seq is the per-day version. A file without a numeric suffix carries Seq 1.
	Seq int
	// Suffixed reports whether Seq came from an explicit _N suffix.
	Suffixed bool
}

// DateString formats the calendar date as YYYY-MM-DD.
func (v Version) DateString() string {
	return v.Date.Format(config.DateLayout)
}

// Compare orders versions by date, then sequence, then suffixed after bare. The last rule
// places "<date>_1" after "<date>", which the writer creates first.
func (v Version) Compare(o Version) int {
	switch {
	case v.Date.Before(o.Date):
		return -1
	case v.Date.After(o.Date):
		return 1
	case v.Seq < o.Seq:
		return -1
	case v.Seq > o.Seq:
		return 1
	case v.Suffixed == o.Suffixed:
		return 0
	case !v.Suffixed:
		return -1
	default:
		return 1
	}
}

func (v Version) String() string {
	if v.Suffixed {
		return fmt.Sprintf("%s_%d", v.DateString(), v.Seq)
	}
	return v.DateString()
}
