// Package scanlist fetches and counts entries from the remote
// ".scan.list.gz" reference listing, the authoritative source for the
// purge safety gate's expected file count.
package scanlist

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/mediamirror/mediamirror/internal/fetch"
)

// CacheName is the cached copy of the remote reference listing kept under
// the media root, overwritten on every run.
const CacheName = ".scan.list.gz"

// lineRe matches one scan-list line: "YYYY-MM-DD HH:MM /path".
var lineRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2} /(.*)$`)

// hiddenRe matches a path with a dot-prefixed segment after its first "/"
// (a dot-prefixed first segment is not matched); such paths are excluded
// from the count.
var hiddenRe = regexp.MustCompile(`^.*?/\..*$`)

// Count downloads "<baseURL>.scan.list.gz" via f, saving a copy to
// mediaRoot/CacheName (overwriting any previous copy) before decompressing
// it, and counts lines whose path starts with one of the url-decoded
// selectedPaths and is not itself hidden. Returns -1 on fetch failure (a
// negative count short-circuits the purge safety gate downstream, same as
// an outright fetch error would).
func Count(ctx context.Context, f *fetch.Fetcher, baseURL, mediaRoot string, selectedPaths []string) int {
	resp, release, err := f.GetStream(ctx, strings.TrimSuffix(baseURL, "/")+"/.scan.list.gz")
	if err != nil {
		slog.Warn("scanlist: fetch failed", "url", baseURL, "error", err)
		return -1
	}
	defer release()
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		slog.Warn("scanlist: non-200 status", "url", baseURL, "status", resp.StatusCode)
		return -1
	}

	decoded := make([]string, 0, len(selectedPaths))
	for _, p := range selectedPaths {
		d, err := url.PathUnescape(p)
		if err != nil {
			slog.Warn("scanlist: skipping unparsable selected path", "path", p, "error", err)
			continue
		}
		decoded = append(decoded, d)
	}

	cachePath := filepath.Join(mediaRoot, CacheName)
	cacheFile, err := os.Create(cachePath)
	if err != nil {
		slog.Warn("scanlist: could not open cache file for writing", "path", cachePath, "error", err)
		return -1
	}
	defer cacheFile.Close()

	gz, err := gzip.NewReader(io.TeeReader(resp.Body, cacheFile))
	if err != nil {
		slog.Warn("scanlist: not a valid gzip stream", "url", baseURL, "error", err)
		return -1
	}
	defer gz.Close()

	count := 0
	sc := bufio.NewScanner(gz)
	// The scan list can run to hundreds of thousands of entries; grow past
	// bufio.Scanner's default 64KiB token limit for unusually long lines.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		file := m[1]
		if hiddenRe.MatchString(file) {
			continue
		}
		if matchesAny(file, decoded) {
			count++
		}
	}
	if err := sc.Err(); err != nil {
		slog.Error("scanlist: error reading decompressed stream", "url", baseURL, "error", err)
	}

	return count
}

func matchesAny(file string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(file, p) {
			return true
		}
	}
	return false
}
