package cache

import (
	"net/url"
	"strings"
)

const (
	NamespaceIdentity = "identity"
	NamespaceMatchIDs = "match_ids"
	NamespaceMatch    = "match"
)

// Key joins namespace and parts with ':'. Every part is query-escaped, so a
// part containing ':' can never shift the boundary between two parts.
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(url.QueryEscape(p))
	}
	return b.String()
}
