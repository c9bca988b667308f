// Package pagination slices the materialized pet list into pages on the client.
//
// Page math is pure: TotalPages, Slice and Window derive everything from the
// list length, the page size and the current page. An empty list has zero
// pages, so no page strip is shown for it.
//
// Controller guards page transitions. A request is accepted only when no
// transition is pending, the target differs from the current page and lies in
// [1, total]. An accepted request holds a short settle delay before committing,
// so the loading state is perceivable. Requests made during the delay are
// dropped, not queued; only shutdown cancels the delay.
//
// Example usage:
//
//	ctrl := pagination.NewController(500 * time.Millisecond)
//	ctrl.Request(ctx, current, total, 3, func(page int) { commit(page) })
//	window := pagination.Window(total, current) // [1 2 3 4 … 10]
package pagination
