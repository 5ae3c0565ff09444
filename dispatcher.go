package ripple

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// DefaultRerenderDebounce is the default delay of TriggerRerenderDebounced.
const DefaultRerenderDebounce = 10 * time.Millisecond

// FieldSource is implemented by hosts that can report the current value of
// a field. RunAllHandlersNow uses it to fill the synthetic batch.
type FieldSource interface {
	FieldValue(field string) (any, bool)
}

// RunOptions controls RunAllHandlersNow.
type RunOptions struct {
	// SkipValidators runs every handler regardless of its validators.
	SkipValidators bool
}

// Dispatcher decides, once per update cycle, which registered handlers run
// for a host and signals a single re-render afterwards.
type Dispatcher[H any] struct {
	host             H
	rerender         func(context.Context)
	debounce         time.Duration
	rerenderDebounce time.Duration
	strict           bool
	clock            clockz.Clock
	onCycle          func(context.Context, H, ChangeBatch)
	metrics          MetricsProvider

	registry     atomic.Pointer[Registry[H]]
	lastError    atomic.Pointer[error]
	errorHistory *ring[error]

	mu        sync.Mutex
	cycles    *debouncer[deferredCycle]
	rerenders *debouncer[context.Context]
}

// deferredCycle carries the latest arguments of a debounced ProcessCycle.
type deferredCycle struct {
	ctx   context.Context
	batch ChangeBatch
}

// New creates a Dispatcher for host. The rerender action runs after every
// processed cycle; a nil action is replaced by a no-op.
//
// The dispatcher starts with an empty registry: every cycle is processed
// with zero handlers until Configure is called.
//
// Example:
//
//	d := ripple.New(form, func(context.Context) { view.Refresh() }).
//	    Debounce(20 * time.Millisecond)
//
//	err := d.Configure(ctx, ripple.Groups[*Form]{
//	    {Fields: []string{"name", "surname"}, Callback: updateFullName},
//	})
func New[H any](host H, rerender func(context.Context)) *Dispatcher[H] {
	if rerender == nil {
		rerender = func(context.Context) {}
	}
	d := &Dispatcher[H]{
		host:             host,
		rerender:         rerender,
		rerenderDebounce: DefaultRerenderDebounce,
		strict:           true,
		clock:            clockz.RealClock,
	}
	d.registry.Store(emptyRegistry[H]())
	return d
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Debounce defers ProcessCycle dispatch by d. Calls arriving within the
// window collapse into one dispatch using the batch of the last call.
// Default: 0 (dispatch synchronously). Must be called before use.
func (d *Dispatcher[H]) Debounce(delay time.Duration) *Dispatcher[H] {
	d.debounce = delay
	return d
}

// RerenderDebounce sets the delay used by TriggerRerenderDebounced.
// Default: DefaultRerenderDebounce. Must be called before use.
func (d *Dispatcher[H]) RerenderDebounce(delay time.Duration) *Dispatcher[H] {
	d.rerenderDebounce = delay
	return d
}

// Strict controls cycles where no field changed. In strict mode (default)
// they are skipped entirely: no handlers, no post-cycle hook, no re-render.
// Otherwise they are dispatched with zero handlers and still re-render.
func (d *Dispatcher[H]) Strict(strict bool) *Dispatcher[H] {
	d.strict = strict
	return d
}

// Clock sets a custom clock for debounce timers.
// Use this with clockz.FakeClock for deterministic tests.
// Must be called before use.
func (d *Dispatcher[H]) Clock(clock clockz.Clock) *Dispatcher[H] {
	d.clock = clock
	return d
}

// OnCycle sets a hook invoked with the full batch after the handlers of a
// processed cycle ran and before the re-render. Skipped or failed cycles do
// not reach it.
func (d *Dispatcher[H]) OnCycle(fn func(ctx context.Context, host H, batch ChangeBatch)) *Dispatcher[H] {
	d.onCycle = fn
	return d
}

// Metrics sets a metrics provider for observability integration.
func (d *Dispatcher[H]) Metrics(provider MetricsProvider) *Dispatcher[H] {
	d.metrics = provider
	return d
}

// ErrorHistorySize sets the number of recent cycle errors to retain.
// Use 0 (default) to only retain the most recent error via LastError().
func (d *Dispatcher[H]) ErrorHistorySize(n int) *Dispatcher[H] {
	d.errorHistory = newRing[error](n)
	return d
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Configure replaces the registry with one built from decls. The previous
// registry is discarded as a whole; a cycle already running keeps using the
// registry it started with. Malformed declarations leave the current
// registry untouched. A nil decls clears every registration.
func (d *Dispatcher[H]) Configure(ctx context.Context, decls Declarations[H]) error {
	reg, err := NewRegistry(decls)
	if err != nil {
		capitan.Emit(ctx, DispatcherConfigureFailed,
			KeyError.Field(err.Error()),
		)
		return fmt.Errorf("configure: %w", err)
	}

	d.registry.Store(reg)
	capitan.Emit(ctx, DispatcherConfigured,
		KeyGroups.Field(reg.Len()),
		KeyHandlers.Field(reg.HandlerCount()),
	)
	return nil
}

// Registry returns the registry currently in effect.
func (d *Dispatcher[H]) Registry() *Registry[H] {
	return d.registry.Load()
}

// Host returns the host the dispatcher was created for.
func (d *Dispatcher[H]) Host() H {
	return d.host
}

// -----------------------------------------------------------------------------
// Cycles
// -----------------------------------------------------------------------------

// ProcessCycle normalizes the raw changes of one host update and dispatches
// them. It returns the normalized batch.
//
// Without a debounce the cycle runs synchronously and a handler error is
// returned. With a debounce the dispatch is deferred, coalescing with later
// calls, and errors are only reported through LastError and ErrorHistory.
func (d *Dispatcher[H]) ProcessCycle(ctx context.Context, raw map[string]RawChange) (ChangeBatch, error) {
	batch := Normalize(raw)
	capitan.Emit(ctx, CycleReceived,
		KeyFields.Field(len(batch)),
		KeyChanged.Field(len(batch.Changed())),
	)

	if d.debounce > 0 {
		if d.cycleDebouncer().call(deferredCycle{ctx: ctx, batch: batch}) {
			capitan.Emit(ctx, CycleCoalesced, KeyDebounce.Field(d.debounce))
			if d.metrics != nil {
				d.metrics.OnCycleCoalesced()
			}
		}
		return batch, nil
	}

	return batch, d.dispatch(ctx, batch)
}

// dispatch runs one cycle: handlers, post-cycle hook, then a single
// re-render. A handler error aborts the cycle before the hook and the
// re-render.
func (d *Dispatcher[H]) dispatch(ctx context.Context, batch ChangeBatch) error {
	if d.strict && !batch.AnyChanged() {
		capitan.Emit(ctx, CycleSkipped, KeyReason.Field("unchanged"))
		if d.metrics != nil {
			d.metrics.OnCycleSkipped()
		}
		return nil
	}

	start := d.clock.Now()
	reg := d.registry.Load()
	ran, err := d.invoke(ctx, reg.plan(batch), batch, false)
	if err != nil {
		d.setError(err)
		capitan.Emit(ctx, CycleFailed,
			KeyHandlers.Field(ran),
			KeyError.Field(err.Error()),
		)
		return err
	}

	if d.onCycle != nil {
		d.onCycle(ctx, d.host, batch)
	}
	d.TriggerRerenderNow(ctx)

	elapsed := d.clock.Since(start)
	capitan.Emit(ctx, CycleCompleted,
		KeyHandlers.Field(ran),
		KeyDuration.Field(elapsed),
	)
	if d.metrics != nil {
		d.metrics.OnCycleProcessed(ran, elapsed)
	}
	return nil
}

// runDeferred is the fire function of the cycle debouncer.
func (d *Dispatcher[H]) runDeferred(c deferredCycle) {
	if err := c.ctx.Err(); err != nil {
		capitan.Emit(c.ctx, CycleSkipped, KeyReason.Field("canceled"))
		return
	}
	_ = d.dispatch(c.ctx, c.batch) //nolint:errcheck // Errors stored via setError
}

// RunAllHandlersNow runs every registered handler once, synchronously, in
// registration order. Every watched field is reported present and unchanged,
// with its value taken from the host when it implements FieldSource. Fields
// the host cannot report, and every field of a host that does not implement
// FieldSource, carry nil as both Previous and Current.
// Validators still gate handlers unless opts.SkipValidators is set. The
// re-render action is not invoked.
func (d *Dispatcher[H]) RunAllHandlersNow(ctx context.Context, opts RunOptions) error {
	reg := d.registry.Load()
	batch := d.unchangedBatch(reg)
	if _, err := d.invoke(ctx, reg.planAll(), batch, opts.SkipValidators); err != nil {
		d.setError(err)
		return err
	}
	return nil
}

func (d *Dispatcher[H]) unchangedBatch(reg *Registry[H]) ChangeBatch {
	src, hasSource := any(d.host).(FieldSource)
	fields := reg.WatchedFields()
	batch := make(ChangeBatch, len(fields))
	for _, f := range fields {
		var v any
		if hasSource {
			v, _ = src.FieldValue(f)
		}
		batch[f] = FieldChange{Previous: v, Current: v}
	}
	return batch
}

// -----------------------------------------------------------------------------
// Re-render
// -----------------------------------------------------------------------------

// TriggerRerenderNow invokes the re-render action immediately.
func (d *Dispatcher[H]) TriggerRerenderNow(ctx context.Context) {
	capitan.Emit(ctx, RerenderRequested, KeyMode.Field("immediate"))
	if d.metrics != nil {
		d.metrics.OnRerender()
	}
	d.rerender(ctx)
}

// TriggerRerenderDebounced schedules the re-render action. Calls within the
// RerenderDebounce window collapse into one re-render.
func (d *Dispatcher[H]) TriggerRerenderDebounced(ctx context.Context) {
	d.rerenderDebouncer().call(ctx)
}

// Stop discards pending debounced cycles and re-renders.
func (d *Dispatcher[H]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cycles != nil {
		d.cycles.stop()
	}
	if d.rerenders != nil {
		d.rerenders.stop()
	}
}

// Pending reports whether a debounced cycle or re-render is waiting to fire.
func (d *Dispatcher[H]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return (d.cycles != nil && d.cycles.isPending()) ||
		(d.rerenders != nil && d.rerenders.isPending())
}

func (d *Dispatcher[H]) cycleDebouncer() *debouncer[deferredCycle] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cycles == nil {
		d.cycles = newDebouncer(d.clock, d.debounce, d.runDeferred)
	}
	return d.cycles
}

func (d *Dispatcher[H]) rerenderDebouncer() *debouncer[context.Context] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rerenders == nil {
		d.rerenders = newDebouncer(d.clock, d.rerenderDebounce, func(ctx context.Context) {
			capitan.Emit(ctx, RerenderRequested, KeyMode.Field("debounced"))
			if d.metrics != nil {
				d.metrics.OnRerender()
			}
			d.rerender(ctx)
		})
	}
	return d.rerenders
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// LastError returns the last cycle error, or nil if none occurred.
func (d *Dispatcher[H]) LastError() error {
	ptr := d.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent cycle errors, oldest first.
// Returns nil if error history is not enabled (see ErrorHistorySize).
func (d *Dispatcher[H]) ErrorHistory() []error {
	return d.errorHistory.all()
}

func (d *Dispatcher[H]) setError(err error) {
	e := err
	d.lastError.Store(&e)
	d.errorHistory.push(err)
}
