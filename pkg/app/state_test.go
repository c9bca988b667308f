package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/petstore-browser/pkg/catalog"
	"github.com/Sternrassler/petstore-browser/pkg/filter"
)

// fakeConnectivity is a Connectivity driven by Set.
type fakeConnectivity struct {
	mu      sync.Mutex
	online  bool
	subs    map[int]func(bool)
	nextID  int
	started bool
	stopped bool
}

func newFakeConnectivity(online bool) *fakeConnectivity {
	return &fakeConnectivity{online: online, subs: make(map[int]func(bool))}
}

func (c *fakeConnectivity) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *fakeConnectivity) Subscribe(fn func(bool)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *fakeConnectivity) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *fakeConnectivity) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *fakeConnectivity) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Set publishes online when it differs from the current value.
func (c *fakeConnectivity) Set(online bool) {
	c.mu.Lock()
	if c.online == online {
		c.mu.Unlock()
		return
	}
	c.online = online
	fns := make([]func(bool), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// stubFetcher serves canned pets per status with optional delays.
type stubFetcher struct {
	calls atomic.Int32

	mu     sync.Mutex
	pets   map[catalog.Status][]catalog.Pet
	delays map[catalog.Status]time.Duration
	err    *catalog.Error
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pets: map[catalog.Status][]catalog.Pet{
			catalog.StatusAvailable: makePets(1, 14, catalog.StatusAvailable),
			catalog.StatusPending:   makePets(100, 3, catalog.StatusPending),
			catalog.StatusSold:      makePets(200, 7, catalog.StatusSold),
		},
		delays: make(map[catalog.Status]time.Duration),
	}
}

func (f *stubFetcher) setDelay(status catalog.Status, d time.Duration) {
	f.mu.Lock()
	f.delays[status] = d
	f.mu.Unlock()
}

func (f *stubFetcher) setError(err *catalog.Error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *stubFetcher) Fetch(ctx context.Context, status catalog.Status) catalog.Result {
	f.calls.Add(1)

	f.mu.Lock()
	delay, pets, err := f.delays[status], f.pets[status], f.err
	f.mu.Unlock()

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return catalog.Failure(&catalog.Error{Kind: catalog.KindUnknown, Err: ctx.Err()})
	}
	if err != nil {
		return catalog.Failure(err)
	}
	return catalog.Success(pets)
}

func makePets(firstID, n int, status catalog.Status) []catalog.Pet {
	pets := make([]catalog.Pet, n)
	for i := range pets {
		pets[i] = catalog.Pet{ID: int64(firstID + i), Status: status}
	}
	return pets
}

func newStartedState(t *testing.T, fetcher *stubFetcher, conn *fakeConnectivity, delay time.Duration) *State {
	t.Helper()

	cfg := DefaultConfig()
	cfg.SettleDelay = delay
	s, err := New(fetcher, conn, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func waitSettled(t *testing.T, s *State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := s.Snapshot()
		if !snap.Loading && !snap.PaginationLoading {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("state did not settle: %+v", snap)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(newStubFetcher(), nil, DefaultConfig()); err == nil || err.Error() != "connectivity is required" {
		t.Errorf("New() error = %v, want connectivity is required", err)
	}
	if _, err := New(nil, newFakeConnectivity(true), DefaultConfig()); err == nil || err.Error() != "fetcher is required" {
		t.Errorf("New() error = %v, want fetcher is required", err)
	}

	cfg := DefaultConfig()
	cfg.Initial = filter.State{Status: "lost", ItemsPerPage: 6, CurrentPage: 1}
	if _, err := New(newStubFetcher(), newFakeConnectivity(true), cfg); err == nil {
		t.Error("New() with invalid initial query error = nil")
	}
}

func TestStart_InitialLoad(t *testing.T) {
	fetcher := newStubFetcher()
	s := newStartedState(t, fetcher, newFakeConnectivity(true), 0)

	snap := waitSettled(t, s)
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	if snap.Filter != filter.Default() {
		t.Errorf("Filter = %+v, want default", snap.Filter)
	}
	if snap.TotalItems != 14 || snap.TotalPages != 3 {
		t.Errorf("TotalItems/TotalPages = %d/%d, want 14/3", snap.TotalItems, snap.TotalPages)
	}
	if len(snap.Pets) != 6 || snap.Pets[0].ID != 1 {
		t.Errorf("Pets = %+v, want first six available pets", snap.Pets)
	}
	if snap.Error != "" || snap.CanRetry {
		t.Errorf("Error/CanRetry = %q/%v, want none", snap.Error, snap.CanRetry)
	}
	if len(snap.PageWindow) != 3 {
		t.Errorf("PageWindow = %v, want three pages", snap.PageWindow)
	}
}

func TestChangeStatus_ResetsPageAndRefetches(t *testing.T) {
	fetcher := newStubFetcher()
	s := newStartedState(t, fetcher, newFakeConnectivity(true), 0)
	waitSettled(t, s)

	if ok, err := s.ChangePage(2); err != nil || !ok {
		t.Fatalf("ChangePage(2) = %v, %v, want accepted", ok, err)
	}
	if snap := waitSettled(t, s); snap.Filter.CurrentPage != 2 {
		t.Fatalf("CurrentPage = %d, want 2", snap.Filter.CurrentPage)
	}

	if err := s.ChangeStatus(catalog.StatusSold); err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	snap := waitSettled(t, s)
	if snap.Filter.Status != catalog.StatusSold || snap.Filter.CurrentPage != 1 {
		t.Errorf("Filter = %+v, want sold page 1", snap.Filter)
	}
	if snap.TotalItems != 7 || snap.TotalPages != 2 {
		t.Errorf("TotalItems/TotalPages = %d/%d, want 7/2", snap.TotalItems, snap.TotalPages)
	}
}

func TestChangeStatus_SameStatusRefetchesConsistently(t *testing.T) {
	fetcher := newStubFetcher()
	s := newStartedState(t, fetcher, newFakeConnectivity(true), 0)
	first := waitSettled(t, s)

	for i := 0; i < 3; i++ {
		if err := s.ChangeStatus(catalog.StatusAvailable); err != nil {
			t.Fatalf("ChangeStatus() error = %v", err)
		}
		snap := waitSettled(t, s)
		if snap.Filter != first.Filter || snap.TotalItems != first.TotalItems || len(snap.Pets) != len(first.Pets) {
			t.Errorf("round %d snapshot = %+v, want same as initial %+v", i, snap, first)
		}
	}
	if got := fetcher.calls.Load(); got != 4 {
		t.Errorf("fetch calls = %d, want 4 (initial + 3 re-fetches)", got)
	}
}

func TestChangeItemsPerPage(t *testing.T) {
	s := newStartedState(t, newStubFetcher(), newFakeConnectivity(true), 0)
	waitSettled(t, s)

	if err := s.ChangeItemsPerPage(filter.ItemsPerPage3); err != nil {
		t.Fatalf("ChangeItemsPerPage() error = %v", err)
	}
	snap := waitSettled(t, s)
	if snap.Filter.ItemsPerPage != filter.ItemsPerPage3 || snap.TotalPages != 5 || len(snap.Pets) != 3 {
		t.Errorf("snapshot = %+v, want 3 per page over 5 pages", snap)
	}

	if err := s.ChangeItemsPerPage(7); err == nil {
		t.Error("ChangeItemsPerPage(7) error = nil, want error")
	}
	if err := s.ChangeStatus("lost"); err == nil {
		t.Error(`ChangeStatus("lost") error = nil, want error`)
	}
}

func TestRapidFilterChanges_LastWins(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.setDelay(catalog.StatusAvailable, 120*time.Millisecond)
	fetcher.setDelay(catalog.StatusPending, 60*time.Millisecond)
	fetcher.setDelay(catalog.StatusSold, 10*time.Millisecond)

	s := newStartedState(t, fetcher, newFakeConnectivity(true), 0)

	// Each change lands before the previous fetch resolves; older ones
	// complete after newer ones.
	for _, status := range []catalog.Status{catalog.StatusPending, catalog.StatusAvailable, catalog.StatusSold} {
		if err := s.ChangeStatus(status); err != nil {
			t.Fatalf("ChangeStatus(%s) error = %v", status, err)
		}
	}

	waitSettled(t, s)
	time.Sleep(200 * time.Millisecond)

	snap := s.Snapshot()
	if snap.Filter.Status != catalog.StatusSold {
		t.Errorf("Filter.Status = %s, want sold", snap.Filter.Status)
	}
	if snap.TotalItems != 7 {
		t.Errorf("TotalItems = %d, want 7 (sold)", snap.TotalItems)
	}
	for _, p := range snap.Pets {
		if p.Status != catalog.StatusSold {
			t.Fatalf("pet %d has status %s, want sold", p.ID, p.Status)
		}
	}
}

func TestRetry_OfflineShortCircuit(t *testing.T) {
	fetcher := newStubFetcher()
	s := newStartedState(t, fetcher, newFakeConnectivity(false), 0)

	waitSettled(t, s)
	if err := s.Retry(); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	snap := waitSettled(t, s)

	if got := fetcher.calls.Load(); got != 0 {
		t.Errorf("fetch calls = %d, want 0", got)
	}
	if snap.Error != catalog.MessageOffline {
		t.Errorf("Error = %q, want %q", snap.Error, catalog.MessageOffline)
	}
	if snap.CanRetry {
		t.Error("CanRetry = true while offline")
	}
	if len(snap.Pets) != 0 {
		t.Errorf("Pets = %v, want none", snap.Pets)
	}
}

func TestConnectivity_OfflineMessagePolicy(t *testing.T) {
	fetcher := newStubFetcher()
	conn := newFakeConnectivity(true)
	s := newStartedState(t, fetcher, conn, 0)
	waitSettled(t, s)

	conn.Set(false)
	snap := s.Snapshot()
	if snap.IsOnline || snap.Error != catalog.MessageOffline {
		t.Errorf("after offline: IsOnline=%v Error=%q, want false/%q", snap.IsOnline, snap.Error, catalog.MessageOffline)
	}
	if len(snap.Pets) != 0 {
		t.Errorf("Pets shown alongside error: %v", snap.Pets)
	}

	conn.Set(true)
	snap = s.Snapshot()
	if !snap.IsOnline || snap.Error != "" {
		t.Errorf("after online: IsOnline=%v Error=%q, want true and cleared", snap.IsOnline, snap.Error)
	}
	if snap.TotalItems != 14 {
		t.Errorf("TotalItems = %d, want materialized list kept", snap.TotalItems)
	}
}

func TestConnectivity_RealErrorSurvivesReconnect(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.setError(catalog.NewHTTPError(500, "500 Internal Server Error"))
	conn := newFakeConnectivity(true)
	s := newStartedState(t, fetcher, conn, 0)

	snap := waitSettled(t, s)
	want := "HTTP error! status: 500"
	if snap.Error != want || !snap.CanRetry {
		t.Fatalf("Error/CanRetry = %q/%v, want %q/true", snap.Error, snap.CanRetry, want)
	}

	s.onConnectivity(true)
	if got := s.Snapshot().Error; got != want {
		t.Errorf("Error after online notification = %q, want %q kept", got, want)
	}

	conn.Set(false)
	conn.Set(true)
	if got := s.Snapshot().Error; got != "" {
		t.Errorf("Error after reconnect = %q, want offline message cleared", got)
	}

	fetcher.setError(nil)
	if err := s.Retry(); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if snap := waitSettled(t, s); snap.Error != "" || snap.TotalItems != 14 {
		t.Errorf("after successful retry: %+v", snap)
	}
}

func TestChangePage_PendingRequestsAreDropped(t *testing.T) {
	fetcher := newStubFetcher()
	s := newStartedState(t, fetcher, newFakeConnectivity(true), 50*time.Millisecond)
	waitSettled(t, s)

	ok, err := s.ChangePage(2)
	if err != nil || !ok {
		t.Fatalf("ChangePage(2) = %v, %v, want accepted", ok, err)
	}
	if !s.Snapshot().PaginationLoading {
		t.Error("PaginationLoading = false during settle")
	}
	if ok, _ := s.ChangePage(3); ok {
		t.Error("ChangePage(3) accepted while a transition is pending")
	}

	snap := waitSettled(t, s)
	if snap.Filter.CurrentPage != 2 {
		t.Errorf("CurrentPage = %d, want 2", snap.Filter.CurrentPage)
	}
	if len(snap.Pets) != 6 || snap.Pets[0].ID != 7 {
		t.Errorf("Pets = %+v, want available pets 7..12", snap.Pets)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2 (initial + committed page)", got)
	}
}

func TestChangePage_Bounds(t *testing.T) {
	s := newStartedState(t, newStubFetcher(), newFakeConnectivity(true), 0)
	waitSettled(t, s)

	for _, page := range []int{0, 1, 4, -1} {
		if ok, _ := s.ChangePage(page); ok {
			t.Errorf("ChangePage(%d) accepted, want rejected", page)
		}
	}
	if ok, _ := s.ChangePage(3); !ok {
		t.Error("ChangePage(3) rejected, want accepted")
	}
	if snap := waitSettled(t, s); snap.Filter.CurrentPage != 3 || len(snap.Pets) != 2 {
		t.Errorf("last page snapshot = %+v, want page 3 with 2 pets", snap)
	}
}

func TestSnapshot_EmptyListHasNoPages(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pets[catalog.StatusPending] = nil
	s := newStartedState(t, fetcher, newFakeConnectivity(true), 0)
	waitSettled(t, s)

	if err := s.ChangeStatus(catalog.StatusPending); err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	snap := waitSettled(t, s)
	if snap.TotalPages != 0 || snap.TotalItems != 0 || len(snap.PageWindow) != 0 {
		t.Errorf("snapshot = %+v, want zero pages", snap)
	}
	if snap.Pets == nil {
		t.Error("Pets = nil, want empty slice")
	}
	if ok, _ := s.ChangePage(1); ok {
		t.Error("ChangePage(1) accepted on an empty list")
	}
}

func TestLifecycle(t *testing.T) {
	conn := newFakeConnectivity(true)
	s, err := New(newStubFetcher(), conn, DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Retry(); err == nil {
		t.Error("Retry() before Start error = nil")
	}
	if _, err := s.ChangePage(2); err == nil {
		t.Error("ChangePage() before Start error = nil")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil")
	}
	if conn.subscribers() != 1 || !conn.started {
		t.Errorf("subscribers=%d started=%v, want 1/true", conn.subscribers(), conn.started)
	}

	s.Stop()
	s.Stop()
	if conn.subscribers() != 0 || !conn.stopped {
		t.Errorf("subscribers=%d stopped=%v after Stop, want 0/true", conn.subscribers(), conn.stopped)
	}
	if err := s.ChangeStatus(catalog.StatusSold); err == nil {
		t.Error("ChangeStatus() after Stop error = nil")
	}
}

func TestStop_AbandonsPendingPage(t *testing.T) {
	fetcher := newStubFetcher()
	cfg := DefaultConfig()
	cfg.SettleDelay = time.Hour
	s, err := New(fetcher, newFakeConnectivity(true), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitSettled(t, s)

	if ok, _ := s.ChangePage(2); !ok {
		t.Fatal("ChangePage(2) rejected")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked on a pending page transition")
	}
	if got := s.Snapshot().Filter.CurrentPage; got != 1 {
		t.Errorf("CurrentPage = %d after Stop, want 1", got)
	}
}

func TestChangePage_SupersededByFilterChange(t *testing.T) {
	tests := []struct {
		name   string
		change func(*State) error
		want   filter.State
	}{
		{
			name:   "status change",
			change: func(s *State) error { return s.ChangeStatus(catalog.StatusPending) },
			want:   filter.State{Status: catalog.StatusPending, ItemsPerPage: filter.ItemsPerPage6, CurrentPage: 1},
		},
		{
			name:   "page size change",
			change: func(s *State) error { return s.ChangeItemsPerPage(filter.ItemsPerPage20) },
			want:   filter.State{Status: catalog.StatusAvailable, ItemsPerPage: filter.ItemsPerPage20, CurrentPage: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newStubFetcher()
			s := newStartedState(t, fetcher, newFakeConnectivity(true), 100*time.Millisecond)
			waitSettled(t, s)

			if ok, _ := s.ChangePage(3); !ok {
				t.Fatal("ChangePage(3) rejected")
			}
			if err := tt.change(s); err != nil {
				t.Fatalf("change error = %v", err)
			}

			snap := waitSettled(t, s)
			if snap.Filter != tt.want {
				t.Errorf("Filter = %+v, want %+v", snap.Filter, tt.want)
			}
			if snap.Filter.CurrentPage > snap.TotalPages {
				t.Errorf("CurrentPage %d outside [1,%d]", snap.Filter.CurrentPage, snap.TotalPages)
			}
			if len(snap.Pets) == 0 {
				t.Error("Pets empty after filter change, want first page")
			}
			if got := fetcher.calls.Load(); got != 2 {
				t.Errorf("fetch calls = %d, want 2 (initial + filter change)", got)
			}
		})
	}
}

func TestStop_InFlightFetchLeavesNoError(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.setDelay(catalog.StatusAvailable, time.Hour)

	s, err := New(fetcher, newFakeConnectivity(true), DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for fetcher.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	s.Stop()

	snap := s.Snapshot()
	if snap.Error != "" {
		t.Errorf("Error = %q after Stop, want none", snap.Error)
	}
	if !snap.Loading {
		t.Error("Loading = false, canceled fetch was published")
	}
}

func TestSnapshot_ErrorHidesPagination(t *testing.T) {
	conn := newFakeConnectivity(true)
	s := newStartedState(t, newStubFetcher(), conn, 0)
	waitSettled(t, s)

	conn.Set(false)
	snap := s.Snapshot()
	if snap.TotalPages != 0 || len(snap.PageWindow) != 0 || len(snap.Pets) != 0 {
		t.Errorf("snapshot while offline = %+v, want no pages", snap)
	}
	if ok, _ := s.ChangePage(2); ok {
		t.Error("ChangePage(2) accepted while an error replaces the list")
	}

	conn.Set(true)
	snap = s.Snapshot()
	if snap.TotalPages != 3 || len(snap.PageWindow) != 3 {
		t.Errorf("snapshot after reconnect = %+v, want 3 pages", snap)
	}
	if ok, _ := s.ChangePage(2); !ok {
		t.Error("ChangePage(2) rejected after reconnect")
	}
	waitSettled(t, s)
}
