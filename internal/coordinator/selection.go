package coordinator

// DefaultSkipPages is the number of leading pages the local fallback
// leaves out. Rolls open with a cover and an index page that carry no
// cards; this is a document convention, not something detected.
const DefaultSkipPages = 2

// SelectPages returns the 1-based pages the local fallback processes.
func SelectPages(total, skip int) []int {
	if skip < 0 {
		skip = 0
	}
	var pages []int
	for p := skip + 1; p <= total; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Batches splits pages into consecutive groups of at most size.
func Batches(pages []int, size int) [][]int {
	if size <= 0 {
		size = 1
	}
	var out [][]int
	for len(pages) > 0 {
		n := size
		if n > len(pages) {
			n = len(pages)
		}
		out = append(out, pages[:n:n])
		pages = pages[n:]
	}
	return out
}
