// Package filter defines the immutable query state shown by the browser.
package filter

import (
	"fmt"
	"strconv"

	"github.com/Sternrassler/petstore-browser/pkg/catalog"
)

// ItemsPerPage is the page size selected by the user.
type ItemsPerPage int

// Supported page sizes.
const (
	ItemsPerPage3  ItemsPerPage = 3
	ItemsPerPage6  ItemsPerPage = 6
	ItemsPerPage9  ItemsPerPage = 9
	ItemsPerPage20 ItemsPerPage = 20
)

// PageSizes lists the selectable page sizes in display order.
var PageSizes = []ItemsPerPage{ItemsPerPage3, ItemsPerPage6, ItemsPerPage9, ItemsPerPage20}

// Valid reports whether n is a supported page size.
func (n ItemsPerPage) Valid() bool {
	switch n {
	case ItemsPerPage3, ItemsPerPage6, ItemsPerPage9, ItemsPerPage20:
		return true
	default:
		return false
	}
}

// ParseItemsPerPage converts an integer into a supported page size.
func ParseItemsPerPage(v int) (ItemsPerPage, error) {
	n := ItemsPerPage(v)
	if !n.Valid() {
		return 0, fmt.Errorf("unsupported items per page %d", v)
	}
	return n, nil
}

// String implements fmt.Stringer.
func (n ItemsPerPage) String() string {
	return strconv.Itoa(int(n))
}

// State is the current query. It is a value: every With* method returns a copy.
// CurrentPage resets to 1 whenever Status or ItemsPerPage is set.
type State struct {
	Status       catalog.Status `json:"status"`
	ItemsPerPage ItemsPerPage   `json:"itemsPerPage"`
	CurrentPage  int            `json:"currentPage"`
}

// Default returns the initial query: available pets, six per page, page 1.
func Default() State {
	return State{
		Status:       catalog.StatusAvailable,
		ItemsPerPage: ItemsPerPage6,
		CurrentPage:  1,
	}
}

// WithStatus returns a copy filtered by status, back on page 1.
func (s State) WithStatus(status catalog.Status) State {
	s.Status = status
	s.CurrentPage = 1
	return s
}

// WithItemsPerPage returns a copy with a new page size, back on page 1.
func (s State) WithItemsPerPage(n ItemsPerPage) State {
	s.ItemsPerPage = n
	s.CurrentPage = 1
	return s
}

// WithPage returns a copy on page. Pages below 1 clamp to 1.
func (s State) WithPage(page int) State {
	if page < 1 {
		page = 1
	}
	s.CurrentPage = page
	return s
}

// Validate checks every field.
func (s State) Validate() error {
	if !s.Status.Valid() {
		return fmt.Errorf("unknown pet status %q", s.Status)
	}
	if !s.ItemsPerPage.Valid() {
		return fmt.Errorf("unsupported items per page %d", s.ItemsPerPage)
	}
	if s.CurrentPage < 1 {
		return fmt.Errorf("current page must be >= 1 (got %d)", s.CurrentPage)
	}
	return nil
}
