package search

// paginate returns the zero-based page of items. Out-of-range pages are
// empty; callers report the total separately.
func paginate[T any](items []T, page, size int) []T {
	if page < 0 || size <= 0 {
		return []T{}
	}
	if page >= (len(items)+size-1)/size {
		return []T{}
	}
	start := page * size
	end := min(start+size, len(items))
	return items[start:end]
}
