// Package inventory implements the local and remote inventory databases:
// a single SQLite table, `files(filename TEXT, timestamp INTEGER NULL,
// filesize INTEGER NULL)`, used both for the on-disk walk (local inventory)
// and the crawl's observed set (remote inventory).
package inventory

import (
	"context"
	"database/sql"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS files (
	filename TEXT,
	timestamp INTEGER NULL,
	filesize INTEGER NULL
)`

// Row is one entry of the inventory: a filename key plus optional metadata.
// Local-inventory rows only ever populate Filename; Timestamp/Size are left
// at zero since the local builder only needs the key for set comparison.
type Row struct {
	Filename  string
	Timestamp int64
	Size      int64
}

// DB wraps one inventory SQLite database. Writes are serialized with a
// mutex around the executemany+commit pair, since the remote-inventory
// handle is shared by every concurrent crawl task.
type DB struct {
	path  string
	sqlDB *sql.DB
	mu    sync.Mutex
}

// Create recreates a fresh database at path (removing any existing file)
// and creates the files table. Used for tempfiles.db, which is recreated
// every run.
func Create(path string) (*DB, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "inventory: remove existing db")
	}
	return openAndInit(path)
}

// Open opens an existing database at path, creating the table if absent.
// Used for localfiles.db across runs where it is reused rather than
// regenerated.
func Open(path string) (*DB, error) {
	return openAndInit(path)
}

func openAndInit(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "inventory: open")
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "inventory: create table")
	}
	return &DB{path: path, sqlDB: sqlDB}, nil
}

// Path returns the filesystem path of the underlying database file.
func (d *DB) Path() string { return d.path }

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.sqlDB.Close()
}

// InsertBatch inserts rows atomically: one prepared single-row INSERT,
// executed once per row inside a single transaction, guarded by a mutex so
// concurrent crawl branches can share one DB handle safely.
func (d *DB) InsertBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "inventory: begin tx")
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO files (filename, timestamp, filesize) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return errors.Wrap(err, "inventory: prepare")
	}

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Filename, r.Timestamp, r.Size); err != nil {
			stmt.Close()
			tx.Rollback() //nolint:errcheck
			return errors.Wrap(err, "inventory: exec")
		}
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "inventory: commit")
	}
	return nil
}

// Filenames returns the set of distinct filenames currently stored,
// collapsing any duplicate inserts into the comparison set.
func (d *DB) Filenames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := d.sqlDB.QueryContext(ctx, "SELECT DISTINCT filename FROM files")
	if err != nil {
		return nil, errors.Wrap(err, "inventory: query")
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			return nil, errors.Wrap(err, "inventory: scan")
		}
		set[fn] = struct{}{}
	}
	return set, rows.Err()
}

// Count returns the number of distinct filenames stored.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.sqlDB.QueryRowContext(ctx, "SELECT COUNT(DISTINCT filename) FROM files").Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "inventory: count")
	}
	return n, nil
}

// Rotate deletes the old database file at localPath and renames tempPath
// into localPath; it works on paths only and closes no database handle. It
// fsyncs the containing directory afterward so
// the rename is durable (mirrors the teacher's Storage.Save +
// DirSyncTree/replaceLink pattern for atomic on-disk handoff).
func Rotate(dir string, tempPath, localPath string) error {
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "inventory: remove old local db")
	}
	if err := os.Rename(tempPath, localPath); err != nil {
		return errors.Wrap(err, "inventory: rename temp to local")
	}
	return DirSync(dir)
}

// DirSync calls fsync(2) on the directory to persist directory-entry
// changes made by Create/Rename, the same correctness requirement the
// teacher documents in its own dirsync.go.
func DirSync(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "inventory: opendir for fsync")
	}
	defer f.Close()
	return f.Sync()
}
