package sink

import "strings"

// ExactFilter accepts only the given source string verbatim.
func ExactFilter(source string) Filter {
	return func(r Record) bool {
		return r.Source == source
	}
}

// PrefixFilter accepts any source beginning with prefix.
func PrefixFilter(prefix string) Filter {
	return func(r Record) bool {
		return strings.HasPrefix(r.Source, prefix)
	}
}

// AnyFilter accepts every record unconditionally. Useful as a single
// catch-all filter when a sink otherwise wants cache bookkeeping (e.g.
// to later layer DisableCache semantics) rather than the zero-filter
// fast path in base.Loggable.
func AnyFilter() Filter {
	return func(Record) bool {
		return true
	}
}
