// Package connectivity decides whether the catalog API is reachable.
//
// A Monitor fuses three kinds of signal into one deduplicated online flag:
//
//   - environment events (Environment.Watch): an offline event is published
//     after the debounce window without probing; an online event only
//     schedules a probe
//   - a periodic timer that probes once at start and then on every tick
//   - the probe itself (Prober): reachable within the timeout means online,
//     anything else means offline
//
// Environment events are coalesced over the debounce window so flapping
// produces one evaluation. A newer probe supersedes an older one still in
// flight, and an offline event supersedes any probe in flight. Subscribers are
// notified on the monitor goroutine, in order, and only when the flag changes.
//
// Example usage:
//
//	env := connectivity.NewInterfaceEnvironment(2 * time.Second)
//	prober, _ := connectivity.NewHTTPProber(connectivity.DefaultProbeConfig(url))
//	mon, _ := connectivity.NewMonitor(env, prober, connectivity.DefaultConfig())
//	unsubscribe := mon.Subscribe(func(online bool) { ... })
//	mon.Start(ctx)
//	defer mon.Stop()
package connectivity
