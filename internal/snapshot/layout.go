package snapshot

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alainabartfeld/strava-activities/internal/config"
)

// Layout is the file naming grammar <prefix>_<YYYY-MM-DD>[_<version>]<ext>.
type Layout struct {
	Prefix string
	Ext    string
}

// CSVLayout returns the snapshot layout for the given prefix.
func CSVLayout(prefix string) Layout {
	return Layout{Prefix: prefix, Ext: ".csv"}
}

// LogLayout returns the run log layout for the given prefix.
func LogLayout(prefix string) Layout {
	return Layout{Prefix: prefix, Ext: ".log"}
}

// MalformedNameError describes a file whose name does not follow the layout.
type MalformedNameError struct {
	Name   string
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed snapshot name %q: %s", e.Name, e.Reason)
}

// Format renders the file name of v.
func (l Layout) Format(v Version) string {
	return l.Prefix + "_" + v.String() + l.Ext
}

// HasExt reports whether name carries the layout's extension.
func (l Layout) HasExt(name string) bool {
	return strings.HasSuffix(name, l.Ext)
}

// Parse recovers the version encoded in a file name. The segment after the date is the
// version when it is all digits; otherwise the file counts as version 1.
func (l Layout) Parse(name string) (Version, error) {
	base := filepath.Base(name)
	if !l.HasExt(base) {
		return Version{}, &MalformedNameError{Name: base, Reason: "unexpected extension"}
	}
	stem := strings.TrimSuffix(base, l.Ext)

	head := l.Prefix + "_"
	if !strings.HasPrefix(stem, head) {
		return Version{}, &MalformedNameError{Name: base, Reason: "missing prefix " + l.Prefix}
	}
	parts := strings.Split(strings.TrimPrefix(stem, head), "_")

	date, err := time.Parse(config.DateLayout, parts[0])
	if err != nil {
		return Version{}, &MalformedNameError{Name: base, Reason: "first segment is not a YYYY-MM-DD date"}
	}

	v := Version{Date: date, Seq: 1}
	if len(parts) > 1 && isDigits(parts[1]) {
		if seq, err := strconv.Atoi(parts[1]); err == nil {
			v.Seq = seq
			v.Suffixed = true
		}
	}
	return v, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
