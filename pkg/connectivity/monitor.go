package connectivity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/petstore-browser/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "petstore_connectivity_online",
		Help: "1 when the catalog is considered reachable, 0 otherwise",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petstore_connectivity_transitions_total",
		Help: "Total published connectivity transitions by new state",
	}, []string{"state"})

	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petstore_connectivity_probes_total",
		Help: "Total connectivity probes by result",
	}, []string{"result"})
)

// Config holds the monitor timing.
type Config struct {
	// Interval between periodic probes.
	Interval time.Duration

	// DebounceWindow coalesces bursts of environment events.
	DebounceWindow time.Duration
}

// DefaultConfig probes every 10 seconds and debounces events over 500ms.
func DefaultConfig() Config {
	return Config{
		Interval:       10 * time.Second,
		DebounceWindow: 500 * time.Millisecond,
	}
}

type subscriber struct {
	id int
	fn func(bool)
}

type probeOutcome struct {
	seq    uint64
	result ProbeResult
}

// Monitor publishes a single deduplicated online flag.
type Monitor struct {
	env    Environment
	prober Prober
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	online      bool
	lastProbe   ProbeResult
	subscribers []subscriber
	nextID      int
	started     bool
	cancel      context.CancelFunc
	stopEnv     func()

	events chan bool
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor. The initial state is the environment's last
// known value.
func NewMonitor(env Environment, prober Prober, cfg Config) (*Monitor, error) {
	if env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if prober == nil {
		return nil, fmt.Errorf("prober is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("probe interval must be positive (got %s)", cfg.Interval)
	}
	if cfg.DebounceWindow < 0 {
		return nil, fmt.Errorf("debounce window must not be negative (got %s)", cfg.DebounceWindow)
	}

	online := env.Online()
	onlineGauge.Set(boolGauge(online))

	return &Monitor{
		env:    env,
		prober: prober,
		cfg:    cfg,
		logger: logging.NewLogger("connectivity"),
		online: online,
		events: make(chan bool, 16),
	}, nil
}

// IsOnline returns the published state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// LastProbe returns the most recent probe outcome, if any probe has finished.
func (m *Monitor) LastProbe() (ProbeResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProbe, !m.lastProbe.CheckedAt.IsZero()
}

// Subscribe registers fn for state changes. fn runs on the monitor goroutine
// and must not block. The returned function unregisters fn.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subscribers {
				if s.id == id {
					m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// Start registers the environment watcher and starts the probe loop. The first
// probe runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("connectivity monitor already started")
	}
	m.started = true

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.stopEnv = m.env.Watch(func(online bool) {
		select {
		case m.events <- online:
		case <-ctx.Done():
		}
	})

	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info().
		Bool("online", m.online).
		Dur("interval", m.cfg.Interval).
		Dur("debounce", m.cfg.DebounceWindow).
		Msg("Connectivity monitor started")
	return nil
}

// Stop ends the probe loop, unregisters the environment watcher and waits for
// in-flight probes. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, stopEnv := m.cancel, m.stopEnv
	m.cancel, m.stopEnv = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	stopEnv()
	m.wg.Wait()

	m.logger.Info().Msg("Connectivity monitor stopped")
}

// run is the only writer of the published state.
func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	results := make(chan probeOutcome)

	var (
		seq         uint64
		cancelProbe context.CancelFunc = func() {}
		debounce    *time.Timer
		debounceC   <-chan time.Time
		candidate   bool
	)
	defer func() {
		cancelProbe()
		if debounce != nil {
			debounce.Stop()
		}
	}()

	startProbe := func(reason string) {
		cancelProbe()
		seq++
		mySeq := seq

		probeCtx, cancel := context.WithCancel(ctx)
		cancelProbe = cancel

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			result := m.probe(probeCtx, reason)
			select {
			case results <- probeOutcome{seq: mySeq, result: result}:
			case <-ctx.Done():
			}
		}()
	}

	startProbe("startup")

	for {
		select {
		case <-ctx.Done():
			return

		case online := <-m.events:
			candidate = online
			if debounce == nil {
				debounce = time.NewTimer(m.cfg.DebounceWindow)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(m.cfg.DebounceWindow)
			}
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			if candidate {
				startProbe("environment")
				continue
			}
			// Offline wins without a probe; anything still in flight is stale.
			cancelProbe()
			seq++
			m.publish(false, "environment")

		case <-ticker.C:
			startProbe("interval")

		case out := <-results:
			if out.seq != seq {
				m.logger.Debug().Uint64("seq", out.seq).Msg("Superseded probe result dropped")
				continue
			}
			m.publish(out.result.OK, "probe")
		}
	}
}

// probe checks reachability, skipping the request when the environment
// already reports offline.
func (m *Monitor) probe(ctx context.Context, reason string) ProbeResult {
	var result ProbeResult
	if !m.env.Online() {
		result = ProbeResult{OK: false, Error: "environment offline", CheckedAt: time.Now()}
		probesTotal.WithLabelValues("skipped").Inc()
	} else {
		result = m.prober.Probe(ctx)
		if result.CheckedAt.IsZero() {
			result.CheckedAt = time.Now()
		}
		if result.OK {
			probesTotal.WithLabelValues("ok").Inc()
		} else {
			probesTotal.WithLabelValues("failed").Inc()
		}
	}

	m.mu.Lock()
	m.lastProbe = result
	m.mu.Unlock()

	m.logger.Debug().
		Str("reason", reason).
		Str("target", result.Target).
		Bool("ok", result.OK).
		Dur("latency", result.Latency).
		Str("error", result.Error).
		Msg("Connectivity probe finished")
	return result
}

// publish notifies subscribers when online differs from the published state.
func (m *Monitor) publish(online bool, source string) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := append([]subscriber(nil), m.subscribers...)
	m.mu.Unlock()

	onlineGauge.Set(boolGauge(online))
	transitionsTotal.WithLabelValues(stateLabel(online)).Inc()
	m.logger.Info().
		Bool("online", online).
		Str("source", source).
		Msg("Network status changed")

	for _, s := range subs {
		s.fn(online)
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func stateLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
