package reservation

import "strings"

// splitPattern reports whether pattern ends in the only wildcard form
// spec §9 allows — a trailing-segment wildcard, e.g. "src/*" — and
// returns the literal prefix it stands for. Non-wildcard patterns
// return their own text as the prefix for convenience, though callers
// must still branch on isWildcard: a literal only matches itself.
func splitPattern(pattern string) (isWildcard bool, prefix string) {
	if pattern == "*" {
		return true, ""
	}
	if strings.HasSuffix(pattern, "/*") {
		return true, strings.TrimSuffix(pattern, "*")
	}
	return false, pattern
}

// patternsOverlap implements spec §4.4's reservation conflict
// predicate: two path patterns "share any path" if every path one
// could match, the other could too for at least one concrete path.
func patternsOverlap(a, b string) bool {
	aWild, aPrefix := splitPattern(a)
	bWild, bPrefix := splitPattern(b)
	switch {
	case !aWild && !bWild:
		return a == b
	case aWild && !bWild:
		return strings.HasPrefix(b, aPrefix)
	case !aWild && bWild:
		return strings.HasPrefix(a, bPrefix)
	default:
		return strings.HasPrefix(aPrefix, bPrefix) || strings.HasPrefix(bPrefix, aPrefix)
	}
}
