package reconcile

import "strings"

// CompareModified orders two modification timestamps. A nil timestamp sorts
// before every non-nil one; two nil timestamps are equal. Non-nil values are
// canonical ISO-8601 strings (model.TimeLayout) and compare lexicographically.
//
// It returns -1 when a is older than b, 0 when equal and +1 when a is newer.
func CompareModified(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return strings.Compare(*a, *b)
}

// supersedes reports whether incoming should replace existing. Equal
// timestamps apply, so an identical redelivery rewrites identical content.
func supersedes(incoming, existing *string) bool {
	return CompareModified(incoming, existing) >= 0
}
