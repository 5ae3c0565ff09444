package ripple

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// DefaultDebounce is the default debounce duration for bindings reloads.
const DefaultDebounce = 100 * time.Millisecond

// Reloader keeps a Dispatcher's registry in sync with a bindings document.
//
// Each document flows through decode, validate, resolve and Configure. If
// any step fails the registry built from the previous valid document stays
// in effect and the Reloader reports a degraded state while it keeps
// watching.
type Reloader[H any] struct {
	dispatcher     *Dispatcher[H]
	catalog        Catalog[H]
	watcher        Watcher
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	clock          clockz.Clock
	codec          Codec
	metrics        MetricsProvider
	onStop         func(State)
	pipeline       pipz.Chainable[*ReloadRequest[H]]

	state        atomic.Int32
	current      atomic.Pointer[Bindings]
	lastError    atomic.Pointer[error]
	errorHistory *ring[error]

	mu      sync.Mutex
	started bool

	// For sync mode: channel to receive changes
	changes <-chan []byte
}

// NewReloader creates a Reloader that configures d from documents emitted by
// watcher, resolving names against catalog. Options wrap the apply step with
// pipeline middleware; instance configuration uses chainable methods.
//
// Example:
//
//	r := ripple.NewReloader(d, file.New("bindings.yaml"), ripple.Catalog[*Form]{
//	    Handlers: map[string]ripple.HandlerFunc[*Form]{"fullName": updateFullName},
//	}, ripple.WithTimeout[*Form](time.Second)).Codec(ripple.YAMLCodec{})
//
//	if err := r.Start(ctx); err != nil {
//	    log.Printf("initial bindings failed: %v", err)
//	}
func NewReloader[H any](d *Dispatcher[H], watcher Watcher, catalog Catalog[H], opts ...ReloaderOption[H]) *Reloader[H] {
	r := &Reloader[H]{
		dispatcher: d,
		catalog:    catalog,
		watcher:    watcher,
		debounce:   DefaultDebounce,
		clock:      clockz.RealClock,
		codec:      JSONCodec{},
	}
	r.pipeline = buildPipeline(r.applyTerminal(), opts)
	r.state.Store(int32(StateLoading))
	return r
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Debounce sets the debounce duration for bindings changes.
// Changes arriving within this duration are coalesced into a single reload.
// Default: 100ms. Must be called before Start().
func (r *Reloader[H]) Debounce(d time.Duration) *Reloader[H] {
	r.debounce = d
	return r
}

// SyncMode enables synchronous processing for testing.
// In sync mode, Start only processes the initial document; use Process to
// consume later ones. Must be called before Start().
func (r *Reloader[H]) SyncMode() *Reloader[H] {
	r.syncMode = true
	return r
}

// Clock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic debounce testing.
// Must be called before Start().
func (r *Reloader[H]) Clock(clock clockz.Clock) *Reloader[H] {
	r.clock = clock
	return r
}

// Codec sets the codec for decoding bindings documents.
// Default: JSONCodec. Must be called before Start().
func (r *Reloader[H]) Codec(codec Codec) *Reloader[H] {
	r.codec = codec
	return r
}

// StartupTimeout sets the maximum duration to wait for the initial document
// from the watcher. Default: no timeout. Must be called before Start().
func (r *Reloader[H]) StartupTimeout(d time.Duration) *Reloader[H] {
	r.startupTimeout = d
	return r
}

// Metrics sets a metrics provider for observability integration.
// Must be called before Start().
func (r *Reloader[H]) Metrics(provider MetricsProvider) *Reloader[H] {
	r.metrics = provider
	return r
}

// OnStop sets a callback invoked with the final state when the Reloader
// stops watching. Must be called before Start().
func (r *Reloader[H]) OnStop(fn func(State)) *Reloader[H] {
	r.onStop = fn
	return r
}

// ErrorHistorySize sets the number of recent errors to retain.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Start().
func (r *Reloader[H]) ErrorHistorySize(n int) *Reloader[H] {
	r.errorHistory = newRing[error](n)
	return r
}

// State returns the current state of the Reloader.
func (r *Reloader[H]) State() State {
	return State(r.state.Load())
}

// Current returns the last applied bindings and true, or the zero value and
// false if no document has been applied.
func (r *Reloader[H]) Current() (Bindings, bool) {
	ptr := r.current.Load()
	if ptr == nil {
		return Bindings{}, false
	}
	return *ptr, true
}

// LastError returns the last error encountered, or nil if no error occurred.
func (r *Reloader[H]) LastError() error {
	ptr := r.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns the recent error history, oldest first.
// Returns nil if error history is not enabled (see ErrorHistorySize).
func (r *Reloader[H]) ErrorHistory() []error {
	return r.errorHistory.all()
}

// Start begins watching for bindings. It blocks until the first document is
// processed (success or failure), then continues watching asynchronously.
//
// If the initial document fails, Start returns the error but keeps watching
// in the background for valid updates.
//
// Start can only be called once. Subsequent calls return an error.
func (r *Reloader[H]) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("reloader already started")
	}
	r.started = true
	r.mu.Unlock()

	capitan.Emit(ctx, ReloaderStarted,
		KeyDebounce.Field(r.debounce),
	)

	changes, err := r.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	startupCtx := ctx
	if r.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = r.clock.WithTimeout(ctx, r.startupTimeout)
		defer cancel()
	}

	var initialErr error
	select {
	case <-startupCtx.Done():
		if r.startupTimeout > 0 && errors.Is(startupCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("startup timeout: watcher did not emit initial bindings within %v", r.startupTimeout)
		}
		return startupCtx.Err()
	case raw, ok := <-changes:
		if !ok {
			return errors.New("watcher closed before emitting initial bindings")
		}
		r.received(ctx)
		initialErr = r.process(ctx, raw)
	}

	if r.syncMode {
		r.changes = changes
		return initialErr
	}

	go r.watch(ctx, changes)

	return initialErr
}

// Process reads and processes the next document from the watcher.
// Only available in sync mode. Returns false if no document is available
// or the channel is closed.
func (r *Reloader[H]) Process(ctx context.Context) bool {
	if !r.syncMode {
		return false
	}

	select {
	case raw, ok := <-r.changes:
		if !ok {
			return false
		}
		r.received(ctx)
		_ = r.process(ctx, raw) //nolint:errcheck // Errors stored via setError
		return true
	default:
		return false
	}
}

func (r *Reloader[H]) received(ctx context.Context) {
	capitan.Emit(ctx, BindingsReceived)
	if r.metrics != nil {
		r.metrics.OnChangeReceived()
	}
}

// process runs a single bindings document through the pipeline.
func (r *Reloader[H]) process(ctx context.Context, raw []byte) error {
	start := r.clock.Now()
	oldState := r.State()

	out, err := r.pipeline.Process(ctx, &ReloadRequest[H]{Raw: raw})
	if err != nil {
		stage, sig := "apply", BindingsApplyFailed
		var se *stageError
		if errors.As(err, &se) {
			stage, sig = se.stage, se.signal
		}
		r.fail(ctx, oldState, sig, stage, start, err)
		return err
	}

	doc := out.Bindings
	r.current.Store(&doc)
	r.lastError.Store(nil)
	r.errorHistory.clear()
	r.transitionState(ctx, oldState, StateHealthy)
	capitan.Emit(ctx, BindingsApplied,
		KeyGroups.Field(len(doc.Groups)),
	)
	if r.metrics != nil {
		r.metrics.OnProcessSuccess(r.clock.Since(start))
	}
	return nil
}

func (r *Reloader[H]) fail(ctx context.Context, oldState State, sig capitan.Signal, stage string, start time.Time, err error) {
	r.setError(err)
	r.transitionState(ctx, oldState, r.failureState())
	capitan.Emit(ctx, sig,
		KeyError.Field(err.Error()),
	)
	if r.metrics != nil {
		r.metrics.OnProcessFailure(stage, r.clock.Since(start))
	}
}

// failureState returns Empty until a document has been applied, Degraded
// afterwards.
func (r *Reloader[H]) failureState() State {
	if r.current.Load() == nil {
		return StateEmpty
	}
	return StateDegraded
}

// transitionState updates the state and emits a state change event if changed.
func (r *Reloader[H]) transitionState(ctx context.Context, oldState, newState State) {
	if oldState == newState {
		return
	}
	r.state.Store(int32(newState))
	capitan.Emit(ctx, ReloaderStateChanged,
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	if r.metrics != nil {
		r.metrics.OnStateChange(oldState, newState)
	}
}

func (r *Reloader[H]) setError(err error) {
	e := err
	r.lastError.Store(&e)
	r.errorHistory.push(err)
}

// watch processes documents from the watcher channel with debouncing.
func (r *Reloader[H]) watch(ctx context.Context, changes <-chan []byte) {
	defer func() {
		finalState := r.State()
		capitan.Emit(ctx, ReloaderStopped,
			KeyState.Field(finalState.String()),
		)
		if r.onStop != nil {
			r.onStop(finalState)
		}
	}()

	var (
		timer      clockz.Timer
		pending    []byte
		hasPending bool
	)

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case raw, ok := <-changes:
			if !ok {
				if hasPending {
					_ = r.process(ctx, pending) //nolint:errcheck // Errors stored via setError
				}
				return
			}

			r.received(ctx)
			pending = raw
			hasPending = true

			if timer == nil {
				timer = r.clock.NewTimer(r.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(r.debounce)
			}

		case <-timerC:
			if hasPending {
				_ = r.process(ctx, pending) //nolint:errcheck // Errors stored via setError
				hasPending = false
			}
		}
	}
}
