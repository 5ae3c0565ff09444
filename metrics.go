package ripple

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on dispatcher and reloader events.
type MetricsProvider interface {
	// OnCycleProcessed is called after a cycle ran to completion.
	// Handlers is the number of handlers that actually ran.
	OnCycleProcessed(handlers int, duration time.Duration)

	// OnCycleSkipped is called when strict mode drops a cycle with no changes.
	OnCycleSkipped()

	// OnCycleCoalesced is called when a deferred cycle supersedes a pending one.
	OnCycleCoalesced()

	// OnHandlerVetoed is called when a validator rejects a handler.
	OnHandlerVetoed(group GroupKey)

	// OnHandlerFailed is called when a handler returns an error.
	OnHandlerFailed(group GroupKey)

	// OnRerender is called each time the re-render action runs.
	OnRerender()

	// OnStateChange is called when a reloader transitions between states.
	OnStateChange(from, to State)

	// OnProcessSuccess is called when a bindings document is applied.
	OnProcessSuccess(duration time.Duration)

	// OnProcessFailure is called when a bindings document is rejected.
	// Stage is "decode", "validate" or "apply".
	OnProcessFailure(stage string, duration time.Duration)

	// OnChangeReceived is called when raw bindings arrive from the watcher.
	OnChangeReceived()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnCycleProcessed(_ int, _ time.Duration)    {}
func (NoOpMetricsProvider) OnCycleSkipped()                            {}
func (NoOpMetricsProvider) OnCycleCoalesced()                          {}
func (NoOpMetricsProvider) OnHandlerVetoed(_ GroupKey)                 {}
func (NoOpMetricsProvider) OnHandlerFailed(_ GroupKey)                 {}
func (NoOpMetricsProvider) OnRerender()                                {}
func (NoOpMetricsProvider) OnStateChange(_, _ State)                   {}
func (NoOpMetricsProvider) OnProcessSuccess(_ time.Duration)           {}
func (NoOpMetricsProvider) OnProcessFailure(_ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnChangeReceived()                          {}
