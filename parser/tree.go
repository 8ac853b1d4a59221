package parser

import "github.com/cespare/xxhash/v2"

// Tree is a fully parsed template: its root IR node list plus the content
// fingerprint used as the parsed-template cache key (spec.md §3 "immutable
// byte sequence with an associated content fingerprint").
type Tree struct {
	Root        []Node
	Fingerprint uint64
	Diagnostics []Diagnostic
}

// Fingerprint hashes src with xxhash64, matching the cache-key contract of
// spec.md §3 and §4.2 (compiled fragments are keyed by (hash(source),
// namespace) using the same primitive).
func Fingerprint(src string) uint64 {
	return xxhash.Sum64String(src)
}
