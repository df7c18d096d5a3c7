package syncer

import (
	"bufio"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// CanonicalPaths is the fixed, ordered list of top-level path segments the
// "--paths" bitmap form indexes into (bit i, counting from the least
// significant bit, selects CanonicalPaths[i]). Order matches the
// reference deployment's own top-level folder listing.
var CanonicalPaths = []string{
	quotePath("PikPak/"),
	quotePath("动漫/"),
	quotePath("每日更新/"),
	quotePath("电影/"),
	quotePath("电视剧/"),
	quotePath("纪录片/"),
	quotePath("纪录片（已刮削）/"),
	quotePath("综艺/"),
	quotePath("音乐/"),
	quotePath("📺画质演示测试（4K，8K，HDR，Dolby）/"),
}

// quotePath percent-encodes each path segment while leaving "/" separators
// literal, matching Python's urllib.parse.quote(path, safe='/') used to
// build the reference deployment's selected-paths list.
func quotePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// ResolvePaths turns a "--paths" argument into a concrete list of selected
// top-level path segments. arg may be:
//
//   - an integer bitmap over CanonicalPaths (bit i, counting from the least
//     significant bit, selects CanonicalPaths[i]); or
//   - a path to a file listing one unencoded path per line, each of which
//     must prefix-match (URL-encoded) one of CanonicalPaths.
//
// An empty arg returns defaultPaths unchanged.
func ResolvePaths(arg string, defaultPaths []string) ([]string, error) {
	if arg == "" {
		return defaultPaths, nil
	}

	// Base 0 lets Go's own integer literal rules decide: a "0b..." prefix
	// (as used in the bitmap examples) parses as binary, "0x..." as hex,
	// "0o..." or a bare leading "0" as octal, and anything else as decimal.
	if bitmap, err := strconv.ParseUint(arg, 0, 64); err == nil {
		return resolveBitmap(bitmap)
	}

	return resolveFile(arg)
}

func resolveBitmap(bitmap uint64) ([]string, error) {
	var selected []string
	nbits := len(CanonicalPaths)
	for i := 0; i < nbits; i++ {
		// bit i, counting from the LSB, selects path i; written as a binary
		// literal, the last canonical path's bit comes first.
		if bitmap&(1<<uint(i)) != 0 {
			selected = append(selected, CanonicalPaths[i])
		}
	}
	if bitmap>>uint(nbits) != 0 {
		return nil, errors.New("paths bitmap: out-of-range bit set beyond the canonical path list")
	}
	return selected, nil
}

func resolveFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open paths file")
	}
	defer f.Close()

	var selected []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		encoded := quotePath(line)
		matched := false
		for _, c := range CanonicalPaths {
			if strings.HasPrefix(c, encoded) || strings.HasPrefix(encoded, c) {
				selected = append(selected, c)
				matched = true
				break
			}
		}
		if !matched {
			return nil, errors.New("paths file: line does not match any canonical path: " + line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read paths file")
	}
	return selected, nil
}
