package shared

// PageSize is the allocation granularity inside the hole.
const PageSize = 4096

// AlignUp rounds n up to the next multiple of PageSize.
func AlignUp(n uint64) uint64 {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// AlignDown rounds n down to a multiple of PageSize.
func AlignDown(n uint64) uint64 {
	return n &^ (PageSize - 1)
}

// Overlaps reports whether the half-open intervals [a,b) and [c,d) overlap.
// An empty interval starting inside the other one counts as overlapping.
func Overlaps(a, b, c, d uint64) bool {
	if a <= c && c < b {
		return true
	}
	if a < d && d <= b {
		return true
	}
	if c <= a && a < d {
		return true
	}
	return c < b && b <= d
}
