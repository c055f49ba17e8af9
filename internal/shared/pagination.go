package shared

// PagedResult wraps one page of a filtered listing.
type PagedResult[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// NormalizePage clamps page/size to sane values: page is 0-based,
// size defaults to 10 and is capped at 200.
func NormalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size < 1 {
		size = 10
	}
	if size > 200 {
		size = 200
	}
	return page, size
}

// PageOffset converts 0-based page/size into a SQL offset.
func PageOffset(page, size int) int {
	return page * size
}
