// Package reconcile compares the local and remote inventories and purges
// local files no longer present remotely, gated by a gap-tolerance safety
// check against the authoritative expected count.
package reconcile

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/mediamirror/mediamirror/internal/inventory"
)

// GapTolerance is the smallest |len(T) - expectedCount| at which the
// reconciler refuses to purge, presuming a large deficit means a broken
// crawl rather than a legitimate mass deletion.
const GapTolerance = 10

// excludedDirs mirrors internal/inventory's excluded-folder set: these
// directory names are never swept even if they end up empty.
var excludedDirs = map[string]bool{
	".sync": true,
}

// Result summarizes one reconciliation pass.
type Result struct {
	Purged      bool
	Gap         int
	RemovedKeys []string
	Errors      []error
}

// Run loads the local and remote filename sets from localDB/remoteDB,
// checks the gap-tolerance gate against expectedCount, and if it passes,
// removes every file present locally but absent remotely, then sweeps
// resulting empty directories under selectedPaths.
//
// A non-positive expectedCount, or a gap at or above GapTolerance, skips
// the purge entirely and returns Result{Purged: false}; this is not an
// error, it is the gate doing its job.
func Run(ctx context.Context, localDB, remoteDB *inventory.DB, mediaRoot string, selectedPaths []string, expectedCount int) (Result, error) {
	local, err := localDB.Filenames(ctx)
	if err != nil {
		return Result{}, err
	}
	remote, err := remoteDB.Filenames(ctx)
	if err != nil {
		return Result{}, err
	}

	gap := abs(len(remote) - expectedCount)
	if expectedCount <= 0 || gap >= GapTolerance {
		slog.Error("reconcile: purge skipped by safety gate",
			"expected", expectedCount, "observed", len(remote), "gap", gap)
		return Result{Purged: false, Gap: gap}, nil
	}
	if gap > 0 {
		slog.Warn("reconcile: proceeding with nonzero gap", "gap", gap, "tolerance", GapTolerance)
	}

	res := Result{Purged: true, Gap: gap}
	for f := range local {
		if _, ok := remote[f]; ok {
			continue
		}
		path := filepath.Join(mediaRoot, f)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Error("reconcile: failed to remove stale file", "path", path, "error", err)
			res.Errors = append(res.Errors, err)
			continue
		}
		res.RemovedKeys = append(res.RemovedKeys, f)
	}

	for _, p := range selectedPaths {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			slog.Error("reconcile: skipping sweep of path with bad encoding", "path", p, "error", err)
			res.Errors = append(res.Errors, err)
			continue
		}
		root := filepath.Join(mediaRoot, decoded)
		if err := sweepEmptyDirs(root); err != nil {
			slog.Error("reconcile: error sweeping empty directories", "root", root, "error", err)
			res.Errors = append(res.Errors, err)
		}
	}

	return res, nil
}

// sweepEmptyDirs removes empty directories under root, post-order, so a
// directory that becomes empty only after its children are pruned is
// itself removed on the way back up. Directories named in excludedDirs are
// never descended into or removed.
func sweepEmptyDirs(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if excludedDirs[e.Name()] {
			continue
		}
		if err := sweepEmptyDirs(filepath.Join(root, e.Name())); err != nil {
			return err
		}
	}

	entries, err = os.ReadDir(root)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		if err := os.Remove(root); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
