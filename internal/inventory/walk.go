package inventory

import (
	"context"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// excludedDirs lists directory basenames the local-inventory walk never
// descends into.
var excludedDirs = map[string]bool{
	".sync": true,
}

// excludedExts lists file extensions the local-inventory walk ignores, so
// that sidecar subtitle files are never purge candidates.
var excludedExts = map[string]bool{
	".ass": true,
	".srt": true,
	".ssa": true,
}

const localInsertBatchSize = 500

// BuildLocal walks join(mediaRoot, url_decode(p)) for each selected path p
// and inserts one row per eligible regular file into db, batching inserts.
//
// Skipped: directories named in excludedDirs (not descended into), files
// whose basename starts with ".", and files whose lowercased extension is
// in excludedExts.
func BuildLocal(ctx context.Context, db *DB, mediaRoot string, selectedPaths []string) error {
	var batch []Row

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := db.InsertBatch(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, p := range selectedPaths {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			slog.Warn("inventory: skipping path with bad encoding", "path", p, "error", err)
			continue
		}
		root := filepath.Join(mediaRoot, decoded)

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// A vanished or unreadable entry; log and keep walking.
				slog.Warn("inventory: walk error, skipping", "path", path, "error", err)
				return nil
			}

			base := d.Name()
			if d.IsDir() {
				if path != root && excludedDirs[base] {
					return filepath.SkipDir
				}
				return nil
			}

			if strings.HasPrefix(base, ".") {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(base))
			if excludedExts[ext] {
				return nil
			}

			if !utf8.ValidString(path) {
				slog.Warn("inventory: skipping non-UTF-8 path", "path", path)
				return nil
			}

			rel := strings.TrimPrefix(path, mediaRoot)
			batch = append(batch, Row{Filename: rel})
			if len(batch) >= localInsertBatchSize {
				if ferr := flush(); ferr != nil {
					return ferr
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return flush()
}
