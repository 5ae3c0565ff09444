package ripple

import "github.com/zoobzio/capitan"

// Dispatcher signals.
var (
	// DispatcherConfigured is emitted when a new registry replaces the old one.
	DispatcherConfigured = capitan.NewSignal(
		"ripple.dispatcher.configured",
		"Callback registry replaced",
	)

	// DispatcherConfigureFailed is emitted when declarations are rejected.
	DispatcherConfigureFailed = capitan.NewSignal(
		"ripple.dispatcher.configure.failed",
		"Callback declarations rejected",
	)
)

// Cycle signals.
var (
	// CycleReceived is emitted when the host reports a batch of changes.
	CycleReceived = capitan.NewSignal(
		"ripple.cycle.received",
		"Change batch received",
	)

	// CycleCoalesced is emitted when a pending deferred cycle is replaced by a newer one.
	CycleCoalesced = capitan.NewSignal(
		"ripple.cycle.coalesced",
		"Pending cycle superseded",
	)

	// CycleSkipped is emitted when a cycle is dropped without running handlers.
	CycleSkipped = capitan.NewSignal(
		"ripple.cycle.skipped",
		"Cycle skipped",
	)

	// CycleCompleted is emitted after handlers, the post-cycle hook and the re-render ran.
	CycleCompleted = capitan.NewSignal(
		"ripple.cycle.completed",
		"Cycle completed",
	)

	// CycleFailed is emitted when a handler error aborts a cycle.
	CycleFailed = capitan.NewSignal(
		"ripple.cycle.failed",
		"Cycle aborted by handler error",
	)
)

// Handler signals.
var (
	// HandlerInvoked is emitted after a handler returns successfully.
	HandlerInvoked = capitan.NewSignal(
		"ripple.handler.invoked",
		"Handler invoked",
	)

	// HandlerVetoed is emitted when a validator rejects a handler for the cycle.
	HandlerVetoed = capitan.NewSignal(
		"ripple.handler.vetoed",
		"Handler vetoed by validator",
	)

	// HandlerFailed is emitted when a handler returns an error.
	HandlerFailed = capitan.NewSignal(
		"ripple.handler.failed",
		"Handler returned an error",
	)
)

// RerenderRequested is emitted each time the re-render action is invoked.
var RerenderRequested = capitan.NewSignal(
	"ripple.rerender.requested",
	"Re-render action invoked",
)

// Reloader lifecycle signals.
var (
	// ReloaderStarted is emitted when a Reloader begins watching.
	ReloaderStarted = capitan.NewSignal(
		"ripple.reloader.started",
		"Reloader watching started",
	)

	// ReloaderStopped is emitted when a Reloader stops watching.
	ReloaderStopped = capitan.NewSignal(
		"ripple.reloader.stopped",
		"Reloader watching stopped",
	)

	// ReloaderStateChanged is emitted when a Reloader transitions between states.
	ReloaderStateChanged = capitan.NewSignal(
		"ripple.reloader.state.changed",
		"Reloader state transition",
	)
)

// Bindings processing signals.
var (
	// BindingsReceived is emitted when raw data is received from the watcher.
	BindingsReceived = capitan.NewSignal(
		"ripple.bindings.received",
		"Raw bindings received from watcher",
	)

	// BindingsDecodeFailed is emitted when the codec cannot decode a document.
	BindingsDecodeFailed = capitan.NewSignal(
		"ripple.bindings.decode.failed",
		"Bindings decode failed",
	)

	// BindingsValidationFailed is emitted when a document fails validation.
	BindingsValidationFailed = capitan.NewSignal(
		"ripple.bindings.validation.failed",
		"Bindings validation failed",
	)

	// BindingsApplyFailed is emitted when resolution or Configure fails.
	BindingsApplyFailed = capitan.NewSignal(
		"ripple.bindings.apply.failed",
		"Bindings apply failed",
	)

	// BindingsApplied is emitted when a document replaced the registry.
	BindingsApplied = capitan.NewSignal(
		"ripple.bindings.applied",
		"Bindings applied successfully",
	)
)
