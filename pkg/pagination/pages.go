package pagination

import (
	"encoding/json"
	"strconv"
)

// Ellipsis is the label rendered for a gap in the page window.
const Ellipsis = "…"

// TotalPages returns ceil(items / perPage). Zero items give zero pages.
func TotalPages(items, perPage int) int {
	if items <= 0 || perPage <= 0 {
		return 0
	}
	return (items + perPage - 1) / perPage
}

// Bounds returns the half-open index range [start, end) of page within a list
// of n items, clamped to the list.
func Bounds(page, perPage, n int) (start, end int) {
	if page < 1 || perPage <= 0 {
		return 0, 0
	}
	start = (page - 1) * perPage
	if start > n {
		start = n
	}
	end = start + perPage
	if end > n {
		end = n
	}
	return start, end
}

// Slice returns the items on page as a view into items. The capacity is
// clipped so appending to the result cannot overwrite the next page.
func Slice[T any](items []T, page, perPage int) []T {
	start, end := Bounds(page, perPage, len(items))
	return items[start:end:end]
}

// HasPrev reports whether a previous page exists.
func HasPrev(current int) bool {
	return current > 1
}

// HasNext reports whether a next page exists.
func HasNext(current, total int) bool {
	return current < total
}

// PageItem is one entry of the page strip: a page number or an ellipsis.
type PageItem struct {
	Page     int
	Ellipsis bool
}

// String renders the item label.
func (p PageItem) String() string {
	if p.Ellipsis {
		return Ellipsis
	}
	return strconv.Itoa(p.Page)
}

// MarshalJSON encodes pages as numbers and gaps as the ellipsis string.
func (p PageItem) MarshalJSON() ([]byte, error) {
	if p.Ellipsis {
		return json.Marshal(Ellipsis)
	}
	return json.Marshal(p.Page)
}

// Window returns the page strip for total pages when current is selected.
//
//	total <= 5          1 2 3 4 5
//	current <= 3        1 2 3 4 … T
//	current >= total-2  1 … T-3 T-2 T-1 T
//	otherwise           1 … C-1 C C+1 … T
func Window(total, current int) []PageItem {
	if total <= 0 {
		return []PageItem{}
	}

	if total <= 5 {
		return pages(1, total)
	}

	gap := PageItem{Ellipsis: true}
	switch {
	case current <= 3:
		return append(pages(1, 4), gap, PageItem{Page: total})
	case current >= total-2:
		return append([]PageItem{{Page: 1}, gap}, pages(total-3, total)...)
	default:
		items := append([]PageItem{{Page: 1}, gap}, pages(current-1, current+1)...)
		return append(items, gap, PageItem{Page: total})
	}
}

func pages(from, to int) []PageItem {
	items := make([]PageItem, 0, to-from+1)
	for p := from; p <= to; p++ {
		items = append(items, PageItem{Page: p})
	}
	return items
}
