package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/observability"
)

// ErrNoSnapshot is returned by callers that treat an empty catalog as fatal.
var ErrNoSnapshot = errors.New("no snapshot found")

// Catalog is the set of well-formed snapshots found in a directory, in file name order.
type Catalog []Entry

// Scan lists dir and parses every file carrying the layout's extension. Files whose names do
// not parse are logged and left out of the catalog.
func Scan(dir string, layout Layout, logger *zap.Logger) (Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	catalog := make(Catalog, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || !layout.HasExt(de.Name()) {
			continue
		}
		v, err := layout.Parse(de.Name())
		if err != nil {
			observability.RecordMalformedSnapshotName()
			logger.Warn("skipping malformed snapshot name", zap.String("file", de.Name()), zap.Error(err))
			continue
		}
		catalog = append(catalog, Entry{Version: v, Path: filepath.Join(dir, de.Name())})
	}
	return catalog, nil
}

// Latest selects the entry with the greatest date and, among that date's entries, the
// greatest version. It reports false for an empty catalog.
func (c Catalog) Latest() (Entry, bool) {
	if len(c) == 0 {
		return Entry{}, false
	}

	latestDate := c[0].Version.Date
	for _, e := range c[1:] {
		if e.Version.Date.After(latestDate) {
			latestDate = e.Version.Date
		}
	}

	var (
		best  Entry
		found bool
	)
	for _, e := range c {
		if !e.Version.Date.Equal(latestDate) {
			continue
		}
		// >= keeps the last seen entry on an exact tie.
		if !found || e.Version.Compare(best.Version) >= 0 {
			best = e
			found = true
		}
	}
	return best, found
}

// Resolver finds the most recent snapshot in a directory. The catalog is rebuilt on every
// call; nothing is cached between reads.
type Resolver struct {
	dir    string
	layout Layout
	opts   options
}

// NewResolver constructs a Resolver over dir.
func NewResolver(dir string, layout Layout, opts ...Option) *Resolver {
	return &Resolver{dir: dir, layout: layout, opts: buildOptions(opts)}
}

// Catalog scans the directory.
func (r *Resolver) Catalog(ctx context.Context) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Scan(r.dir, r.layout, r.opts.logger)
}

// Latest returns the most recent snapshot. An empty catalog is not an error: it yields
// ok == false.
func (r *Resolver) Latest(ctx context.Context) (Entry, bool, error) {
	catalog, err := r.Catalog(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := catalog.Latest()
	if !ok {
		r.opts.logger.Warn("no valid snapshot found", zap.String("dir", r.dir))
		return Entry{}, false, nil
	}
	r.opts.logger.Info("resolved latest snapshot",
		zap.String("path", entry.Path),
		zap.String("date", entry.Version.DateString()),
		zap.Int("version", entry.Version.Seq),
	)
	return entry, true, nil
}
