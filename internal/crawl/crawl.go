// Package crawl implements the recursive directory-listing crawler: the
// fan-out scheduler that drives the Fetcher, Listing Parser, Downloader and
// Remote Inventory writer over a tree of directory listings.
package crawl

import (
	"context"
	"net/url"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mediamirror/mediamirror/internal/download"
	"github.com/mediamirror/mediamirror/internal/fetch"
	"github.com/mediamirror/mediamirror/internal/freshness"
	"github.com/mediamirror/mediamirror/internal/inventory"
	"github.com/mediamirror/mediamirror/internal/listing"
)

// Crawler recursively walks a remote autoindex tree, downloading stale files
// and recording the remote inventory as it goes.
type Crawler struct {
	Fetcher       *fetch.Fetcher
	Downloader    *download.Downloader // nil disables downloading (media collection off)
	RemoteDB      *inventory.DB        // nil disables remote-inventory recording
	MediaRoot     string
	NFOEnabled    bool
	SelectedPaths []string // only consulted at depth 0, root mode
}

// Run crawls starting from rootURL. When rootURL's path is "/" (root mode),
// "/" itself is not fetched: the selected top-level paths are crawled in
// sequence, one top-level subtree fully drained before the next begins,
// bounding memory to a single subtree. Otherwise rootURL's own listing is
// fetched and crawled, and SelectedPaths is not consulted.
func (c *Crawler) Run(ctx context.Context, rootURL string) error {
	base, err := url.Parse(rootURL)
	if err != nil {
		return errors.Wrap(err, "crawl: parse root url")
	}

	if base.Path != "/" && base.Path != "" {
		return c.crawl(ctx, rootURL, 0)
	}

	for _, p := range c.SelectedPaths {
		child, err := base.Parse(p)
		if err != nil {
			return errors.Wrap(err, "crawl: resolve top-level path "+p)
		}
		if err := c.crawl(ctx, child.String(), 1); err != nil {
			return err
		}
	}
	return nil
}

// crawl fetches and parses one listing URL at the given depth, recursing
// into its subdirectories. depth is 0 only for a non-root URL handed over
// by Run; depth 0's root-mode special case (skip parsing, seed children
// from SelectedPaths) is handled by Run, which never fetches "/" itself.
func (c *Crawler) crawl(ctx context.Context, u string, depth int) error {
	body, err := c.Fetcher.Fetch(ctx, u)
	if err != nil {
		// Transport/decode errors are treated as an empty listing; the
		// crawl continues elsewhere.
		return nil
	}

	base, err := url.Parse(u)
	if err != nil {
		return nil
	}
	files, dirs := listing.Parse(body, base)

	if len(files) > 0 {
		if c.Downloader != nil {
			stale := c.staleSubset(files)
			if len(stale) > 0 {
				if err := c.Downloader.Batch(ctx, stale); err != nil {
					return err
				}
			}
		}
		if c.RemoteDB != nil {
			rows := make([]inventory.Row, 0, len(files))
			for _, f := range files {
				rows = append(rows, inventory.Row{Filename: f.Path, Timestamp: f.ModTime, Size: f.Size})
			}
			if err := c.RemoteDB.InsertBatch(ctx, rows); err != nil {
				return err
			}
		}
	}

	if len(dirs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range dirs {
		d := d
		g.Go(func() error {
			return c.crawl(gctx, d.AbsURL, depth+1)
		})
	}
	return g.Wait()
}

func (c *Crawler) staleSubset(files []listing.RemoteFile) []listing.RemoteFile {
	var stale []listing.RemoteFile
	for _, f := range files {
		ff := freshness.File{RelPath: f.Path, ModTime: f.ModTime, Size: f.Size}
		if freshness.NeedDownload(ff, c.MediaRoot, c.NFOEnabled) {
			stale = append(stale, f)
		}
	}
	return stale
}
