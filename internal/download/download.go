// Package download streams remote files onto the local mirror tree.
package download

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mediamirror/mediamirror/internal/fetch"
	"github.com/mediamirror/mediamirror/internal/listing"
)

// maxInFlight bounds the number of download tasks live at once within a
// single directory's batch, independent of the fetcher's global GET
// semaphore.
const maxInFlight = 100

// Downloader streams remote files to the local media root, sharing the
// Fetcher's global concurrency gate with listing fetches.
type Downloader struct {
	fetcher      *fetch.Fetcher
	mediaRoot    string
	showProgress bool
}

// New builds a Downloader. showProgress mirrors the teacher's
// "ShouldShowProgress" convention: bars are only drawn when the configured
// log level is quiet enough that they won't be interleaved with log lines.
func New(f *fetch.Fetcher, mediaRoot string, showProgress bool) *Downloader {
	return &Downloader{fetcher: f, mediaRoot: mediaRoot, showProgress: showProgress}
}

// Batch downloads every file in files concurrently, bounded by maxInFlight
// in-flight tasks. A single file's failure is logged and skipped; it never
// fails the batch.
func (d *Downloader) Batch(ctx context.Context, files []listing.RemoteFile) error {
	if len(files) == 0 {
		return nil
	}

	var bar *pb.ProgressBar
	if d.showProgress {
		bar = pb.New(len(files)).SetTemplateString(
			`{{ "downloading:" }} {{ bar . }} {{percent . }} {{counters . }}`)
		bar.Start()
		defer bar.Finish()
	}

	g, ctx := errgroup.WithContext(ctx)
	slots := make(chan struct{}, maxInFlight)

	for _, rf := range files {
		rf := rf

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		g.Go(func() error {
			defer func() { <-slots }()
			if err := d.one(ctx, rf); err != nil {
				slog.Warn("download failed, skipping", "url", rf.AbsURL, "error", err)
			}
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}

	return g.Wait()
}

// one downloads a single file, creating parent directories as needed.
func (d *Downloader) one(ctx context.Context, rf listing.RemoteFile) error {
	localPath := filepath.Join(d.mediaRoot, strings.TrimPrefix(rf.Path, "/"))
	dir := filepath.Dir(localPath)

	// mode 0777 with umask 0, so the mirror tree stays world-writable.
	oldUmask := syscall.Umask(0)
	err := os.MkdirAll(dir, 0o777)
	syscall.Umask(oldUmask)
	if err != nil {
		return errors.Wrap(err, "mkdir parent")
	}

	resp, release, err := d.fetcher.GetStream(ctx, rf.AbsURL)
	if err != nil {
		return errors.Wrap(err, "get")
	}
	defer release()
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		slog.Warn("download: non-200 status, skipping", "url", rf.AbsURL, "status", resp.StatusCode)
		return nil
	}

	tmp, err := os.CreateTemp(dir, ".mediamirror-dl-*")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName) //nolint:errcheck
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write body")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp")
	}
	if err := os.Chmod(tmpName, 0o777); err != nil {
		return errors.Wrap(err, "chmod")
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		return errors.Wrap(err, "rename into place")
	}
	tmpName = ""
	return nil
}
