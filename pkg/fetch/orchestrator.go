// Package fetch runs catalog fetches for the current query so that only the
// most recently triggered cycle ever reaches the application state.
//
// Every Trigger starts a new epoch. The loading update for the epoch is
// delivered synchronously; the result is delivered when the fetch settles,
// and only if no newer epoch was started in the meantime. Superseded fetches
// are not aborted, their results are discarded.
package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/petstore-browser/pkg/catalog"
	"github.com/Sternrassler/petstore-browser/pkg/filter"
	"github.com/Sternrassler/petstore-browser/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petstore_fetch_cycles_total",
		Help: "Total fetch cycles started by trigger",
	}, []string{"trigger"})

	staleDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "petstore_fetch_stale_discarded_total",
		Help: "Total fetch results discarded because a newer cycle started",
	})

	offlineShortCircuit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "petstore_fetch_offline_shortcircuit_total",
		Help: "Total fetch cycles answered offline without calling the catalog",
	})
)

// Fetcher loads pets for a status. Implementations never panic and always
// return a Success or a typed Failure.
type Fetcher interface {
	Fetch(ctx context.Context, status catalog.Status) catalog.Result
}

// Epoch identifies one fetch cycle. Epochs increase monotonically.
type Epoch uint64

// Trigger names what started a cycle.
type Trigger string

// Cycle triggers.
const (
	TriggerInitial Trigger = "initial"
	TriggerFilter  Trigger = "filter"
	TriggerRetry   Trigger = "retry"
)

// Update is delivered to the sink. A loading update carries the query that
// started the cycle; a settled update carries the same query and the result.
type Update struct {
	Epoch   Epoch
	Trigger Trigger
	Filter  filter.State
	Loading bool
	Result  catalog.Result
}

// Sink receives updates. It is called with the orchestrator lock held and
// must not call back into the Orchestrator.
type Sink func(Update)

// Orchestrator serializes fetch cycles.
type Orchestrator struct {
	fetcher Fetcher
	online  func() bool
	sink    Sink
	logger  zerolog.Logger

	mu     sync.Mutex
	epoch  Epoch
	closed bool
	wg     sync.WaitGroup
}

// New creates an orchestrator. online reports the current connectivity.
func New(fetcher Fetcher, online func() bool, sink Sink) (*Orchestrator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if online == nil {
		return nil, fmt.Errorf("online func is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	return &Orchestrator{
		fetcher: fetcher,
		online:  online,
		sink:    sink,
		logger:  logging.NewLogger("fetch-orchestrator"),
	}, nil
}

// Trigger starts a cycle for query and returns its epoch. The loading update
// is delivered before Trigger returns. When offline the cycle settles
// immediately with the offline failure and the catalog is not called.
// ctx bounds the fetch itself. After Close, Trigger is a no-op returning 0.
func (o *Orchestrator) Trigger(ctx context.Context, query filter.State, trigger Trigger) Epoch {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return 0
	}

	o.epoch++
	epoch := o.epoch
	cyclesTotal.WithLabelValues(string(trigger)).Inc()

	o.logger.Debug().
		Uint64("epoch", uint64(epoch)).
		Str("trigger", string(trigger)).
		Str("status", string(query.Status)).
		Int("page", query.CurrentPage).
		Msg("Fetch cycle started")

	o.sink(Update{Epoch: epoch, Trigger: trigger, Filter: query, Loading: true})

	if !o.online() {
		offlineShortCircuit.Inc()
		o.logger.Debug().Uint64("epoch", uint64(epoch)).Msg("Offline, catalog not called")
		o.sink(Update{
			Epoch:   epoch,
			Trigger: trigger,
			Filter:  query,
			Result:  catalog.Failure(catalog.NewOfflineError()),
		})
		return epoch
	}

	o.wg.Add(1)
	go o.run(ctx, epoch, query, trigger)
	return epoch
}

func (o *Orchestrator) run(ctx context.Context, epoch Epoch, query filter.State, trigger Trigger) {
	defer o.wg.Done()

	result := o.fetcher.Fetch(ctx, query.Status)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || epoch != o.epoch {
		staleDiscarded.Inc()
		o.logger.Debug().
			Uint64("epoch", uint64(epoch)).
			Uint64("latest", uint64(o.epoch)).
			Msg("Stale fetch result discarded")
		return
	}

	o.sink(Update{Epoch: epoch, Trigger: trigger, Filter: query, Result: result})
}

// Latest returns the most recent epoch, or 0 before the first Trigger.
func (o *Orchestrator) Latest() Epoch {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch
}

// Wait blocks until every started fetch has settled.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close makes every outstanding cycle stale. Nothing is delivered to the sink
// after Close returns, so callers may cancel the fetch context afterwards
// without the cancellation surfacing as a failure. Use Wait to join the
// in-flight fetches.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}
