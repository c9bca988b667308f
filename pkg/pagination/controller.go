package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/petstore-browser/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultSettleDelay is the hold time before a page change commits.
const DefaultSettleDelay = 500 * time.Millisecond

var pageChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "petstore_page_changes_total",
	Help: "Total page change requests by result",
}, []string{"result"})

// Controller serializes page transitions. At most one transition is pending.
type Controller struct {
	delay  time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	pending bool
	wg      sync.WaitGroup
}

// NewController creates a controller with the given settle delay. A negative
// delay is treated as zero.
func NewController(delay time.Duration) *Controller {
	if delay < 0 {
		delay = 0
	}
	return &Controller{
		delay:  delay,
		logger: logging.NewLogger("pagination"),
	}
}

// Pending reports whether a transition is waiting for its settle delay.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Request asks to move from current to page out of total pages. It returns
// false without side effects when the request is rejected. When accepted,
// commit runs once after the settle delay, and Pending stays true until it
// returns. Cancelling ctx abandons the transition without committing.
func (c *Controller) Request(ctx context.Context, current, total, page int, commit func(page int)) bool {
	c.mu.Lock()
	if c.pending || page == current || page < 1 || page > total {
		pending := c.pending
		c.mu.Unlock()

		pageChangesTotal.WithLabelValues("rejected").Inc()
		c.logger.Debug().
			Int("page", page).
			Int("current", current).
			Int("total", total).
			Bool("pending", pending).
			Msg("Page change rejected")
		return false
	}
	c.pending = true
	c.wg.Add(1)
	c.mu.Unlock()

	pageChangesTotal.WithLabelValues("accepted").Inc()
	go c.settle(ctx, page, commit)
	return true
}

func (c *Controller) settle(ctx context.Context, page int, commit func(page int)) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
	}()

	timer := time.NewTimer(c.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.logger.Debug().Int("page", page).Msg("Page change abandoned on shutdown")
		return
	case <-timer.C:
	}

	commit(page)
	c.logger.Debug().Int("page", page).Msg("Page change committed")
}

// Wait blocks until every accepted transition has committed or been abandoned.
func (c *Controller) Wait() {
	c.wg.Wait()
}
