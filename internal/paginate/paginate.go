// Package paginate computes page metadata from totals and windows, and the
// item allocation across groups under a global cap.
package paginate

// Meta is the pagination metadata returned alongside results.
// PreviousPage and NextPage are nil at the ends.
type Meta struct {
	Total        int  `json:"total"`
	Page         int  `json:"page"`
	Size         int  `json:"size"`
	Pages        int  `json:"pages"`
	PreviousPage *int `json:"previous_page"`
	NextPage     *int `json:"next_page"`
}

// Clamp bounds a requested window: limit into [1, maxLimit] and offset to
// at least zero. A maxLimit below 1 leaves the upper bound open.
func Clamp(limit, offset, maxLimit int) (int, int) {
	if limit < 1 {
		limit = 1
	}
	if maxLimit >= 1 && limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Plan computes page metadata.
//
//	pages = max(1, ceil(total / size))
//	page  = clamp(floor(offset / size) + 1, 1, pages)
//
// size is limit (at least 1).
func Plan(total, limit, offset int) Meta {
	size, offset := Clamp(limit, offset, 0)
	if total < 0 {
		total = 0
	}

	pages := max(1, (total+size-1)/size)
	page := min(max(offset/size+1, 1), pages)

	m := Meta{
		Total: total,
		Page:  page,
		Size:  size,
		Pages: pages,
	}
	if page > 1 {
		prev := page - 1
		m.PreviousPage = &prev
	}
	if page < pages {
		next := page + 1
		m.NextPage = &next
	}
	return m
}

// Eligible returns how many items a window yields from total records:
// min(limit, max(total-offset, 0)).
func Eligible(total, limit, offset int) int {
	return min(limit, max(total-offset, 0))
}

// Allocate decides how many items each group receives, in group order,
// when the sum across groups may not exceed maxTotal.
//
// Each group is admitted with its eligible count while the running total
// stays within maxTotal. The first group that would push the total past
// maxTotal receives only the remainder (and is omitted when the remainder
// is zero); every later group is omitted. truncated is true exactly when
// this early stop left eligible items behind.
//
// take has one entry per admitted group; len(take) <= len(eligible).
func Allocate(eligible []int, maxTotal int) (take []int, truncated bool) {
	take = make([]int, 0, len(eligible))
	running := 0

	for i, n := range eligible {
		if n < 0 {
			n = 0
		}
		if running+n <= maxTotal {
			take = append(take, n)
			running += n
			continue
		}

		if rest := maxTotal - running; rest > 0 {
			take = append(take, rest)
		}
		return take, hasItems(eligible[i:])
	}
	return take, false
}

func hasItems(counts []int) bool {
	for _, n := range counts {
		if n > 0 {
			return true
		}
	}
	return false
}
