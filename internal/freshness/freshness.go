// Package freshness decides, for a single remote file, whether it needs to
// be (re)downloaded against what is already on disk.
package freshness

import (
	"os"
	"path/filepath"
	"strings"
)

// File is the minimal remote-file description the oracle needs.
type File struct {
	RelPath string // path with the media root prefix stripped; leading "/" retained
	ModTime int64  // unix seconds
	Size    int64
}

// NeedDownload reports whether f must be (re)downloaded into media root m.
//
// Rules:
//  1. missing locally               -> true
//  2. ".nfo" and NFO disabled       -> false (only reached once the
//     existence check above has already passed)
//  3. size equal and local mtime >= remote mtime -> false
//  4. otherwise                     -> true
func NeedDownload(f File, mediaRoot string, nfoEnabled bool) bool {
	p := filepath.Join(mediaRoot, strings.TrimPrefix(f.RelPath, "/"))

	st, err := os.Stat(p)
	if err != nil {
		return true
	}

	if !nfoEnabled && strings.HasSuffix(strings.ToLower(p), ".nfo") {
		return false
	}

	curSize := st.Size()
	curMtime := st.ModTime().Unix()

	if curSize == f.Size && curMtime >= f.ModTime {
		return false
	}
	return true
}
