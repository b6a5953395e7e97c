package tmdb

import "strings"

const (
	PosterSize  = "w200"
	ProfileSize = "w185"
)

// ImageURL joins the CDN base, a size token and a relative image path. an
// empty path yields an empty URL.
func ImageURL(base, size, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + size + path
}
