package server

import "strings"

// Resolver maps a source IP to a category label before the request is
// recorded. Implementations must be safe for concurrent use.
type Resolver interface {
	Resolve(ip string) string
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ip string) string

func (f ResolverFunc) Resolve(ip string) string {
	return f(ip)
}

// StaticResolver categorizes by longest matching IP prefix from a
// fixed table, e.g. {"203.0.113.": "AU"}.
type StaticResolver struct {
	prefixes map[string]string
}

// NewStaticResolver builds a resolver from a prefix table. A nil or
// empty table resolves everything to "".
func NewStaticResolver(table map[string]string) *StaticResolver {
	prefixes := make(map[string]string, len(table))
	for prefix, label := range table {
		prefixes[prefix] = label
	}
	return &StaticResolver{prefixes: prefixes}
}

// Resolve returns the label of the longest prefix matching ip, or "".
func (r *StaticResolver) Resolve(ip string) string {
	best := ""
	label := ""
	for prefix, l := range r.prefixes {
		if strings.HasPrefix(ip, prefix) && len(prefix) > len(best) {
			best = prefix
			label = l
		}
	}
	return label
}
