// Package fallback resolves a value from an ordered list of candidate
// sources, taking the first non-empty one. Role and display-name lookups
// use it instead of repeating inline conditional chains.
package fallback

import "strings"

// First returns the first candidate that is non-empty after trimming
// whitespace, or def when every candidate is empty.
func First(def string, candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return def
}

// Source lazily produces a candidate value. Sources that require a
// lookup (a profile fetch, a cache read) are only evaluated if every
// earlier candidate came up empty.
type Source func() string

// Resolve evaluates sources in order and returns the first non-empty
// result, or def when all are empty.
func Resolve(def string, sources ...Source) string {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if v := src(); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return def
}
