/*
Package mediamirror is an incremental mirror synchronizer for a remote media
library exposed as an HTTP-served directory tree (Apache/nginx autoindex
style).

It crawls the selected top-level paths of a remote server, downloads files
that are missing or stale, records the remote inventory in a local SQLite
database, and purges local files that no longer exist remotely, within
safety bounds.

The main packages are:

	github.com/mediamirror/mediamirror/internal/listing     - autoindex HTML listing parser
	github.com/mediamirror/mediamirror/internal/fetch       - shared HTTP client with global concurrency gate
	github.com/mediamirror/mediamirror/internal/freshness   - per-file staleness decision
	github.com/mediamirror/mediamirror/internal/download    - streaming file downloader
	github.com/mediamirror/mediamirror/internal/crawl       - recursive crawl scheduler
	github.com/mediamirror/mediamirror/internal/inventory   - local/remote inventory databases
	github.com/mediamirror/mediamirror/internal/poolselect  - server pool liveness probe
	github.com/mediamirror/mediamirror/internal/scanlist    - expected-count reference listing
	github.com/mediamirror/mediamirror/internal/reconcile   - safe purge of stale local files
	github.com/mediamirror/mediamirror/internal/syncer      - configuration and top-level orchestration
	github.com/mediamirror/mediamirror/cmd/mediamirror      - command-line interface
*/
package mediamirror
