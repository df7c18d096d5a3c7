package syncer

import "net/url"

// isRootPath reports whether rawURL's path component is "/", the mode in
// which --purge and --db are permitted.
func isRootPath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Path == "/" || u.Path == ""
}

// decodePathSegment percent-decodes one selected-path segment.
func decodePathSegment(p string) (string, error) {
	return url.PathUnescape(p)
}
