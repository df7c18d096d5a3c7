// Package syncer wires the pool selector, expected-count fetcher, local
// inventory builder, crawler, and reconciler into the top-level sync
// lifecycle, including its config, locking, and logging setup.
package syncer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/mediamirror/mediamirror/internal/crawl"
	"github.com/mediamirror/mediamirror/internal/download"
	"github.com/mediamirror/mediamirror/internal/fetch"
	"github.com/mediamirror/mediamirror/internal/inventory"
	"github.com/mediamirror/mediamirror/internal/poolselect"
	"github.com/mediamirror/mediamirror/internal/reconcile"
	"github.com/mediamirror/mediamirror/internal/scanlist"
)

const (
	localFilesDBName = ".localfiles.db"
	tempFilesDBName  = ".tempfiles.db"
	lockFileName     = ".mediamirror.lock"
	// legacyDropFolder is a top-level directory the reference deployment
	// always expects under the media root regardless of --paths selection;
	// it is created (with a warning, not an error) if absent.
	legacyDropFolder = "115"
)

// Options mirrors the sync subcommand's CLI flags. --debug and
// --verbose-errors are handled entirely by the caller (cfg.Log.Level and
// error formatting, respectively) before/after Run, so neither appears here.
type Options struct {
	Location string // DB storage directory; "" means MediaRoot
	Count    int64  // concurrency override; <=0 means use Config.Concurrency
	ForceDB  bool   // --db
	NFO      bool
	URL      string // --url, overrides pool selection
	Purge    bool   // --purge, default true
	All      bool   // --all
	PathsArg string // --paths, bitmap or file path
}

// Run executes one full sync lifecycle: lock acquisition, pool selection,
// expected-count fetch, optional local-inventory (re)generation, crawl,
// reconciliation, and database rotation.
func Run(ctx context.Context, cfg *Config, opts Options) error {
	if err := cfg.Log.Apply(); err != nil {
		return err
	}

	location := opts.Location
	if location == "" {
		location = cfg.MediaRoot
	}
	if err := os.MkdirAll(location, 0o755); err != nil {
		return errors.Wrap(err, "create db location directory")
	}

	lockPath := filepath.Join(location, lockFileName)
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, "open lock file")
	}
	defer lockFile.Close()

	fl := Flock{lockFile}
	if err := fl.Lock(); err != nil {
		return errors.Wrap(err, "another sync run holds the lock")
	}
	defer fl.Unlock() //nolint:errcheck

	pool := cfg.Pool
	all := opts.All
	purge := opts.Purge
	forceDB := opts.ForceDB
	selectedDefaults := cfg.SelectedPaths

	if all {
		pool = excludeFirst(pool)
		selectedDefaults = CanonicalPaths
		if purge {
			forceDB = true
		}
	}

	selectedPaths, err := ResolvePaths(opts.PathsArg, selectedDefaults)
	if err != nil {
		return err
	}

	if err := checkSelectedPathsExist(cfg.MediaRoot, selectedPaths); err != nil {
		return err
	}
	if err := ensureLegacyDropFolder(cfg.MediaRoot); err != nil {
		slog.Warn("could not create legacy drop folder", "error", err)
	}

	tlsConfig, err := cfg.TLS.BuildTLSConfig()
	if err != nil {
		return err
	}

	concurrency := int64(cfg.Concurrency)
	if opts.Count > 0 {
		concurrency = opts.Count
	}
	f := fetch.New(concurrency, tlsConfig)

	pickedURL := opts.URL
	if pickedURL == "" {
		pickedURL, err = poolselect.Select(ctx, f, pool, cfg.Sentinel)
		if err != nil {
			return errors.Wrap(err, "no reachable server in pool")
		}
	}

	rootMode := isRootPath(pickedURL)
	if (purge || forceDB) && !rootMode {
		return errors.New("--purge or --db requires a root-mode URL (path \"/\")")
	}

	slog.Info("sync starting", "url", pickedURL, "paths", len(selectedPaths), "purge", purge)

	localPath := filepath.Join(location, localFilesDBName)
	tempPath := filepath.Join(location, tempFilesDBName)

	// The expected count only matters to the purge path (both the reseed
	// threshold below and the reconciler's safety gate), and is only ever
	// meaningful against the root-mode listing, so it is skipped otherwise.
	expected := -1
	if purge && rootMode {
		expected = scanlist.Count(ctx, f, pickedURL, cfg.MediaRoot, selectedPaths)
		slog.Info("expected file count", "count", expected)
	}

	var localDB *inventory.DB
	if purge {
		localDB, err = openOrRebuildLocal(ctx, localPath, cfg.MediaRoot, selectedPaths, forceDB, expected)
		if err != nil {
			return err
		}
		defer localDB.Close()
	}

	remoteDB, err := inventory.Create(tempPath)
	if err != nil {
		return err
	}
	defer remoteDB.Close()

	dl := download.New(f, cfg.MediaRoot, cfg.Log.ShouldShowProgress())

	c := &crawl.Crawler{
		Fetcher:       f,
		Downloader:    dl,
		RemoteDB:      remoteDB,
		MediaRoot:     cfg.MediaRoot,
		NFOEnabled:    opts.NFO || cfg.NFOEnabled,
		SelectedPaths: selectedPaths,
	}
	if err := c.Run(ctx, pickedURL); err != nil {
		return errors.Wrap(err, "crawl")
	}

	if !purge || !rootMode {
		return nil
	}

	res, err := reconcile.Run(ctx, localDB, remoteDB, cfg.MediaRoot, selectedPaths, expected)
	if err != nil {
		return errors.Wrap(err, "reconcile")
	}
	if !res.Purged {
		slog.Warn("purge skipped by safety gate", "gap", res.Gap)
		return nil
	}
	slog.Info("purge complete", "removed", len(res.RemovedKeys), "errors", len(res.Errors))

	localDB.Close()
	remoteDB.Close()

	if all {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove local db")
		}
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove temp db")
		}
		return nil
	}

	return inventory.Rotate(location, tempPath, localPath)
}

// reseedThreshold is the row-count divergence (against the expected count)
// beyond which the local inventory is rebuilt from a filesystem walk rather
// than reused.
const reseedThreshold = 1000

// openOrRebuildLocal implements the local-inventory half of the database
// state machine: build fresh if absent (State A), if forceDB requests a
// clean regeneration (State C), or if an existing DB's distinct-filename
// count has drifted from the expected count by more than reseedThreshold
// (State B reseed); otherwise reuse the existing database across runs
// (State B).
func openOrRebuildLocal(ctx context.Context, localPath, mediaRoot string, selectedPaths []string, forceDB bool, expected int) (*inventory.DB, error) {
	_, statErr := os.Stat(localPath)
	absent := os.IsNotExist(statErr)
	needsBuild := absent || forceDB

	if !needsBuild {
		existing, err := inventory.Open(localPath)
		if err != nil {
			return nil, err
		}
		count, err := existing.Count(ctx)
		if err != nil {
			existing.Close()
			return nil, err
		}
		if expected > 0 && abs(count-expected) > reseedThreshold {
			slog.Warn("local inventory diverged from expected count, reseeding", "local", count, "expected", expected)
			existing.Close()
			needsBuild = true
		} else {
			return existing, nil
		}
	}

	db, err := inventory.Create(localPath)
	if err != nil {
		return nil, err
	}
	if err := inventory.BuildLocal(ctx, db, mediaRoot, selectedPaths); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "build local inventory")
	}
	return db, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func checkSelectedPathsExist(mediaRoot string, selectedPaths []string) error {
	for _, p := range selectedPaths {
		decoded, err := decodePathSegment(p)
		if err != nil {
			return errors.Wrap(err, "decode selected path "+p)
		}
		full := filepath.Join(mediaRoot, decoded)
		if _, err := os.Stat(full); err != nil {
			return errors.Wrap(err, "selected path does not exist under media root: "+p)
		}
	}
	return nil
}

func ensureLegacyDropFolder(mediaRoot string) error {
	dir := filepath.Join(mediaRoot, legacyDropFolder)
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	slog.Warn("legacy drop folder missing, creating it", "path", dir)
	return os.MkdirAll(dir, 0o755)
}

func excludeFirst(pool []string) []string {
	if len(pool) <= 1 {
		return nil
	}
	out := make([]string, len(pool)-1)
	copy(out, pool[1:])
	return out
}
