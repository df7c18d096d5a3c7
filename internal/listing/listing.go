// Package listing parses Apache/nginx-style HTML autoindex pages into the
// files and subdirectories they list.
package listing

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	parentLink  = "../"
	sentinel    = "scan.list"
	timeLayout  = "02-Jan-2006 15:04"
)

// RemoteFile is one file entry found in a directory listing.
type RemoteFile struct {
	AbsURL  string // absolute URL, joined against the listing's base URL
	Path    string // URL-decoded path portion of AbsURL; leading "/" retained
	ModTime int64  // unix seconds, parsed from the listing's date/time column
	Size    int64  // textual size column, parsed as integer
}

// RemoteDir is a subdirectory link found in a directory listing.
type RemoteDir struct {
	AbsURL string // absolute URL, ending with "/"
}

// Parse extracts the files and subdirectories referenced by anchors in body,
// resolving relative hrefs against base. Parse is pure: it performs no I/O.
//
// Per-anchor failures (a bad timestamp, a missing size column) are logged
// and that row is skipped; Parse never aborts because of one bad row.
func Parse(body string, base *url.URL) (files []RemoteFile, dirs []RemoteDir) {
	z := html.NewTokenizer(strings.NewReader(body))

	var (
		curHref   string
		haveLink  bool
		capturing bool
		tail      strings.Builder
	)

	flush := func() {
		if haveLink {
			handleAnchor(curHref, tail.String(), base, &files, &dirs)
		}
		tail.Reset()
		haveLink = false
		capturing = false
		curHref = ""
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			flush()
			for _, a := range tok.Attr {
				if a.Key == "href" {
					curHref = a.Val
					break
				}
			}
			haveLink = true
		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == "a" {
				capturing = true
			}
		case html.TextToken:
			if capturing {
				tail.WriteString(string(z.Text()))
			}
		}
	}
	flush()

	return files, dirs
}

func handleAnchor(href, tail string, base *url.URL, files *[]RemoteFile, dirs *[]RemoteDir) {
	if href == "" || href == parentLink || href == sentinel {
		return
	}

	ref, err := url.Parse(href)
	if err != nil {
		slog.Warn("listing: skipping anchor with unparsable href", "href", href, "error", err)
		return
	}
	abs := base.ResolveReference(ref)

	if strings.HasSuffix(href, "/") {
		*dirs = append(*dirs, RemoteDir{AbsURL: abs.String()})
		return
	}

	mtime, size, err := parseTail(tail)
	if err != nil {
		slog.Warn("listing: skipping row with unparsable tail", "href", href, "tail", strings.TrimSpace(tail), "error", err)
		return
	}

	*files = append(*files, RemoteFile{
		AbsURL:  abs.String(),
		Path:    abs.Path,
		ModTime: mtime,
		Size:    size,
	})
}

// parseTail parses a row's trailing text, expected to be of the form
// "<DD-Mon-YYYY> <HH:MM> <size>", into a unix timestamp (UTC-naive, as the
// listing carries no timezone) and an integer size.
func parseTail(tail string) (mtimeUnix int64, size int64, err error) {
	fields := strings.Fields(tail)
	if len(fields) < 3 {
		return 0, 0, errBadTail("expected date, time and size fields")
	}

	// The month-name table is pinned to English by time.Parse regardless of
	// host locale; Go's time package has no locale-dependent month names.
	t, err := time.Parse(timeLayout, fields[0]+" "+fields[1])
	if err != nil {
		return 0, 0, err
	}

	sizeStr := fields[2]
	sz, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, 0, err
	}

	return t.Unix(), sz, nil
}

type errBadTail string

func (e errBadTail) Error() string { return string(e) }
