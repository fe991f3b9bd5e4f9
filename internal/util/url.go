// url.go — URL parsing utilities: path extraction and reference resolution.
package util

import (
	"net/url"
	"strings"
)

// ExtractURLPath extracts the path portion from a URL string, stripping query
// parameters and fragments. Returns "/" if the URL has no path component.
// Unparseable input is returned with any query or fragment cut off.
func ExtractURLPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	path := parsed.Path
	if path == "" {
		return "/"
	}
	return path
}

// ResolveReference resolves ref (absolute, root-relative or relative) against
// base. Returns "" for data:, blob: and javascript: references and for input
// that cannot be parsed.
func ResolveReference(base, ref string) string {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	for _, scheme := range []string{"data:", "blob:", "javascript:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if refURL.IsAbs() {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Scheme == "" {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}
