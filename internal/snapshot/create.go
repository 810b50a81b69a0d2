package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/alainabartfeld/strava-activities/internal/config"
)

// maxDailyVersions bounds the suffix search for a single day.
const maxDailyVersions = 100000

// CreateNext creates the first free file for today's date in dir: the bare name, then _1, _2,
// and so on. Files are opened with O_EXCL, so an existing file is never truncated.
func CreateNext(dir string, layout Layout, now time.Time) (*os.File, Version, error) {
	date := config.CivilDate(now)
	for n := 0; n < maxDailyVersions; n++ {
		v := Version{Date: date, Seq: 1}
		if n > 0 {
			v = Version{Date: date, Seq: n, Suffixed: true}
		}
		path := filepath.Join(dir, layout.Format(v))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, v, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return nil, Version{}, err
	}
	return nil, Version{}, fmt.Errorf("no free %s name left for %s in %s", layout.Ext, date.Format(config.DateLayout), dir)
}
