package connectivity

import (
	"context"
	"net"
	"sync"
	"time"
)

// Environment reports host level connectivity: the last known value and a
// stream of change events.
type Environment interface {
	// Online returns the last known connectivity.
	Online() bool

	// Watch registers fn for connectivity events and returns a function that
	// unregisters it.
	Watch(fn func(online bool)) (stop func())
}

// ManualEnvironment is an Environment driven by Set. Embedding applications use
// it to forward platform events; tests use it to script them.
type ManualEnvironment struct {
	mu       sync.Mutex
	online   bool
	watchers map[int]func(bool)
	nextID   int
}

// NewManualEnvironment returns an environment with the given initial value.
func NewManualEnvironment(online bool) *ManualEnvironment {
	return &ManualEnvironment{online: online, watchers: make(map[int]func(bool))}
}

// Online implements Environment.
func (e *ManualEnvironment) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// Watch implements Environment.
func (e *ManualEnvironment) Watch(fn func(online bool)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.watchers[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.watchers, id)
			e.mu.Unlock()
		})
	}
}

// Set records online and emits an event to every watcher. Repeated values are
// emitted too, like platform events.
func (e *ManualEnvironment) Set(online bool) {
	e.mu.Lock()
	e.online = online
	fns := make([]func(bool), 0, len(e.watchers))
	for _, fn := range e.watchers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// WatcherCount returns the number of registered watchers.
func (e *ManualEnvironment) WatcherCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.watchers)
}

// InterfaceEnvironment derives connectivity from the host network interfaces:
// online when at least one interface that is up and not loopback has an
// address. Each watcher gets its own polling loop that emits on change.
type InterfaceEnvironment struct {
	interval time.Duration
	check    func() bool
}

// NewInterfaceEnvironment returns an environment polling every interval.
func NewInterfaceEnvironment(interval time.Duration) *InterfaceEnvironment {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &InterfaceEnvironment{interval: interval, check: hostHasNetwork}
}

// Online implements Environment.
func (e *InterfaceEnvironment) Online() bool {
	return e.check()
}

// Watch implements Environment.
func (e *InterfaceEnvironment) Watch(fn func(online bool)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	last := e.check()

	go func() {
		defer close(done)

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if now := e.check(); now != last {
					last = now
					fn(now)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func hostHasNetwork() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
