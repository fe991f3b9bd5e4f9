// headers.go — Case-insensitive HTTP header mapping.
package types

import "strings"

// Headers maps lower-cased header names to values. Build with NewHeaders so
// lookups stay case-insensitive.
type Headers map[string]string

// NewHeaders copies src with lower-cased keys. Later duplicates (by case
// folding) overwrite earlier ones.
func NewHeaders(src map[string]string) Headers {
	if len(src) == 0 {
		return nil
	}
	h := make(Headers, len(src))
	for k, v := range src {
		h[strings.ToLower(k)] = v
	}
	return h
}

// Get returns the value for name regardless of case.
func (h Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	if v, ok := h[strings.ToLower(name)]; ok {
		return v
	}
	// Tolerate maps built without NewHeaders.
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
