package app

import (
	"github.com/Sternrassler/petstore-browser/pkg/catalog"
	"github.com/Sternrassler/petstore-browser/pkg/filter"
	"github.com/Sternrassler/petstore-browser/pkg/pagination"
)

// Snapshot is what the presentation layer renders. TotalPages and PageWindow
// describe the visible list and are empty while Error is set; TotalItems is
// the size of the last loaded list.
type Snapshot struct {
	IsOnline          bool                  `json:"isOnline"`
	Filter            filter.State          `json:"filterState"`
	Pets              []catalog.Pet         `json:"pets"`
	TotalPages        int                   `json:"totalPages"`
	TotalItems        int                   `json:"totalItems"`
	Loading           bool                  `json:"loading"`
	PaginationLoading bool                  `json:"paginationLoading"`
	Error             string                `json:"error,omitempty"`
	CanRetry          bool                  `json:"canRetry"`
	PageWindow        []pagination.PageItem `json:"pageWindow"`
}
