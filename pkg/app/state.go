// Package app is the composition root of the browser core. State owns the
// query, the connectivity flag and the materialized pet list, turns user
// intents into fetch cycles and exposes a consistent Snapshot.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/petstore-browser/pkg/catalog"
	"github.com/Sternrassler/petstore-browser/pkg/fetch"
	"github.com/Sternrassler/petstore-browser/pkg/filter"
	"github.com/Sternrassler/petstore-browser/pkg/logging"
	"github.com/Sternrassler/petstore-browser/pkg/pagination"
	"github.com/rs/zerolog"
)

// Connectivity is the published online flag State depends on.
type Connectivity interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
	Start(ctx context.Context) error
	Stop()
}

// Config holds State options.
type Config struct {
	// Initial query. Zero value means filter.Default().
	Initial filter.State

	// SettleDelay held before a page change commits.
	SettleDelay time.Duration
}

// DefaultConfig returns the default query and a 500ms settle delay.
func DefaultConfig() Config {
	return Config{
		Initial:     filter.Default(),
		SettleDelay: pagination.DefaultSettleDelay,
	}
}

// State is safe for concurrent use.
type State struct {
	conn   Connectivity
	orch   *fetch.Orchestrator
	pager  *pagination.Controller
	logger zerolog.Logger

	// intentMu serializes intents so that reading the query and triggering
	// its cycle happen as one step.
	intentMu sync.Mutex

	mu      sync.Mutex
	query   filter.State
	online  bool
	pets    []catalog.Pet
	loading bool
	errMsg  string

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	started     bool
}

// New wires the state to a fetcher and a connectivity source.
func New(fetcher fetch.Fetcher, conn Connectivity, cfg Config) (*State, error) {
	if conn == nil {
		return nil, fmt.Errorf("connectivity is required")
	}
	if cfg.Initial == (filter.State{}) {
		cfg.Initial = filter.Default()
	}
	if err := cfg.Initial.Validate(); err != nil {
		return nil, fmt.Errorf("invalid initial query: %w", err)
	}

	s := &State{
		conn:   conn,
		pager:  pagination.NewController(cfg.SettleDelay),
		logger: logging.NewLogger("app-state"),
		query:  cfg.Initial,
		online: conn.IsOnline(),
		pets:   []catalog.Pet{},
	}

	orch, err := fetch.New(fetcher, s.IsOnline, s.apply)
	if err != nil {
		return nil, err
	}
	s.orch = orch
	return s, nil
}

// Start subscribes to connectivity, starts the monitor and runs the initial
// load. ctx bounds every fetch and page transition until Stop.
func (s *State) Start(ctx context.Context) error {
	s.intentMu.Lock()
	defer s.intentMu.Unlock()

	if s.started {
		return fmt.Errorf("app state already started")
	}
	s.started = true

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.unsubscribe = s.conn.Subscribe(s.onConnectivity)
	if err := s.conn.Start(s.ctx); err != nil {
		s.unsubscribe()
		s.cancel()
		return fmt.Errorf("start connectivity monitor: %w", err)
	}

	s.mu.Lock()
	s.online = s.conn.IsOnline()
	query := s.query
	s.mu.Unlock()

	s.logger.Info().
		Str("status", string(query.Status)).
		Int("items_per_page", int(query.ItemsPerPage)).
		Bool("online", s.IsOnline()).
		Msg("App state started")

	s.orch.Trigger(s.ctx, query, fetch.TriggerInitial)
	return nil
}

// Stop unregisters listeners, stops the monitor, abandons pending page
// transitions and discards in-flight fetches.
func (s *State) Stop() {
	s.intentMu.Lock()
	if !s.started || s.cancel == nil {
		s.intentMu.Unlock()
		return
	}
	cancel, unsubscribe := s.cancel, s.unsubscribe
	s.cancel = nil
	s.intentMu.Unlock()

	unsubscribe()
	s.conn.Stop()
	s.orch.Close()
	cancel()
	s.pager.Wait()
	s.orch.Wait()

	s.logger.Info().Msg("App state stopped")
}

// ChangeStatus filters by status and returns to page 1. Selecting the current
// status re-fetches.
func (s *State) ChangeStatus(status catalog.Status) error {
	if !status.Valid() {
		return fmt.Errorf("unsupported status %q", status)
	}
	return s.update(func(q filter.State) filter.State { return q.WithStatus(status) })
}

// ChangeItemsPerPage sets the page size and returns to page 1.
func (s *State) ChangeItemsPerPage(n filter.ItemsPerPage) error {
	if !n.Valid() {
		return fmt.Errorf("unsupported items per page %d", n)
	}
	return s.update(func(q filter.State) filter.State { return q.WithItemsPerPage(n) })
}

// ChangePage requests a page transition. It reports whether the request was
// accepted; rejected requests have no effect. An accepted page commits after
// the settle delay and starts a fetch cycle for the new query, unless the
// status or page size changed in the meantime or the page no longer exists.
// Requests are rejected while an error replaces the list.
func (s *State) ChangePage(page int) (bool, error) {
	s.intentMu.Lock()
	defer s.intentMu.Unlock()

	if !s.started || s.cancel == nil {
		return false, fmt.Errorf("app state not started")
	}

	s.mu.Lock()
	requested := s.query
	total := s.visiblePagesLocked()
	s.mu.Unlock()

	ctx := s.ctx
	return s.pager.Request(ctx, requested.CurrentPage, total, page, func(page int) {
		s.commitPage(ctx, requested, page)
	}), nil
}

// Retry starts a new cycle for the current query. While offline the cycle
// fails immediately without calling the catalog.
func (s *State) Retry() error {
	s.intentMu.Lock()
	defer s.intentMu.Unlock()

	if !s.started || s.cancel == nil {
		return fmt.Errorf("app state not started")
	}

	s.mu.Lock()
	query := s.query
	s.mu.Unlock()

	s.orch.Trigger(s.ctx, query, fetch.TriggerRetry)
	return nil
}

func (s *State) update(change func(filter.State) filter.State) error {
	s.intentMu.Lock()
	defer s.intentMu.Unlock()

	if !s.started || s.cancel == nil {
		return fmt.Errorf("app state not started")
	}

	s.mu.Lock()
	query := change(s.query)
	s.mu.Unlock()

	s.orch.Trigger(s.ctx, query, fetch.TriggerFilter)
	return nil
}

// commitPage applies page to the query the request was made against. A
// status or page size change since then supersedes the transition.
func (s *State) commitPage(ctx context.Context, requested filter.State, page int) {
	s.intentMu.Lock()
	defer s.intentMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	current := s.query
	total := s.visiblePagesLocked()
	s.mu.Unlock()

	if current.Status != requested.Status || current.ItemsPerPage != requested.ItemsPerPage || page > total {
		s.logger.Debug().
			Int("page", page).
			Int("total", total).
			Str("status", string(current.Status)).
			Msg("Superseded page change dropped")
		return
	}
	query := current.WithPage(page)

	s.orch.Trigger(ctx, query, fetch.TriggerFilter)
}

// apply is the orchestrator sink and the only writer of query and results.
func (s *State) apply(u fetch.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.query = u.Filter

	if u.Loading {
		s.loading = true
		s.errMsg = ""
		s.pets = []catalog.Pet{}
		return
	}

	s.loading = false
	if u.Result.OK() {
		s.pets = u.Result.Pets
		s.errMsg = ""
		s.logger.Info().
			Uint64("epoch", uint64(u.Epoch)).
			Str("status", string(u.Filter.Status)).
			Int("count", len(u.Result.Pets)).
			Msg("Pets loaded")
		return
	}

	s.pets = []catalog.Pet{}
	s.errMsg = u.Result.Err.UserMessage()
	s.logger.Warn().
		Uint64("epoch", uint64(u.Epoch)).
		Str("status", string(u.Filter.Status)).
		Str("kind", string(u.Result.Err.Kind)).
		Str("error", s.errMsg).
		Msg("Fetch failed")
}

// onConnectivity shows the offline message while offline and clears it, and
// only it, when connectivity returns.
func (s *State) onConnectivity(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = online
	switch {
	case !online:
		s.errMsg = catalog.MessageOffline
	case s.errMsg == catalog.MessageOffline:
		s.errMsg = ""
	}
}

// IsOnline returns the connectivity flag as last observed by State.
func (s *State) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// visiblePagesLocked returns the page count of the list as shown: zero while
// an error replaces it. s.mu must be held.
func (s *State) visiblePagesLocked() int {
	if s.errMsg != "" {
		return 0
	}
	return pagination.TotalPages(len(s.pets), int(s.query.ItemsPerPage))
}

// Snapshot returns a consistent read-only view of the state.
func (s *State) Snapshot() Snapshot {
	paginating := s.pager.Pending()

	s.mu.Lock()
	defer s.mu.Unlock()

	totalPages := s.visiblePagesLocked()

	// An error replaces the list.
	pets := []catalog.Pet{}
	if s.errMsg == "" {
		pets = pagination.Slice(s.pets, s.query.CurrentPage, int(s.query.ItemsPerPage))
	}

	return Snapshot{
		IsOnline:          s.online,
		Filter:            s.query,
		Pets:              pets,
		TotalPages:        totalPages,
		TotalItems:        len(s.pets),
		Loading:           s.loading,
		PaginationLoading: paginating,
		Error:             s.errMsg,
		CanRetry:          s.errMsg != "" && s.online,
		PageWindow:        pagination.Window(totalPages, s.query.CurrentPage),
	}
}
