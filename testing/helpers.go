// Package testing provides test utilities and helpers for ripple dispatchers
// and reloaders.
package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/ripple"
)

// TestForm is a standard host for testing dispatchers. It implements
// ripple.FieldSource.
type TestForm struct {
	Name    string
	Surname string
	Email   string
}

// FieldValue implements ripple.FieldSource.
func (f *TestForm) FieldValue(field string) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "surname":
		return f.Surname, true
	case "email":
		return f.Email, true
	}
	return nil, false
}

// Recorder records handler invocations and re-renders.
type Recorder struct {
	mu        sync.Mutex
	calls     []string
	batches   []ripple.ChangeBatch
	rerenders int
}

// Handler returns a handler that records name with the batch it received.
func (r *Recorder) Handler(name string) ripple.HandlerFunc[*TestForm] {
	return func(_ context.Context, _ *TestForm, batch ripple.ChangeBatch) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		r.batches = append(r.batches, batch)
		return nil
	}
}

// Callback wraps Handler(name) in a *ripple.Callback, so several groups can
// share it as one handler.
func (r *Recorder) Callback(name string) *ripple.Callback[*TestForm] {
	return &ripple.Callback[*TestForm]{Handle: r.Handler(name)}
}

// Rerender is a re-render action counting its invocations.
func (r *Recorder) Rerender(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rerenders++
}

// Calls returns the recorded handler names in invocation order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// Batches returns the batches handed to recorded handlers.
func (r *Recorder) Batches() []ripple.ChangeBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ripple.ChangeBatch, len(r.batches))
	copy(out, r.batches)
	return out
}

// Rerenders returns the number of re-renders.
func (r *Recorder) Rerenders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rerenders
}

// Reset clears everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.batches = nil
	r.rerenders = 0
}

// Catalog returns a catalog with one recording handler per name and the
// validators "always" and "never".
func (r *Recorder) Catalog(names ...string) ripple.Catalog[*TestForm] {
	c := ripple.Catalog[*TestForm]{
		Handlers: make(map[string]ripple.HandlerFunc[*TestForm], len(names)),
		Validators: map[string]ripple.ValidatorFunc[*TestForm]{
			"always": func(context.Context, *TestForm, ripple.ChangeBatch) bool { return true },
			"never":  func(context.Context, *TestForm, ripple.ChangeBatch) bool { return false },
		},
	}
	for _, name := range names {
		c.Handlers[name] = r.Handler(name)
	}
	return c
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForState waits until the reloader reaches the expected state or timeout occurs.
func WaitForState[H any](t *testing.T, r *ripple.Reloader[H], expected ripple.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return r.State() == expected
	})
}

// RequireState fails the test immediately if the reloader is not in the expected state.
func RequireState[H any](t *testing.T, r *ripple.Reloader[H], expected ripple.State) {
	t.Helper()
	if got := r.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// RequireCalls fails the test if the recorder did not see exactly want, in order.
func RequireCalls(t *testing.T, rec *Recorder, want ...string) {
	t.Helper()
	got := rec.Calls()
	if len(got) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, got)
		}
	}
}

// NewTestDispatcher creates a dispatcher for a fresh TestForm whose
// re-render action is recorded.
func NewTestDispatcher(t *testing.T) (*ripple.Dispatcher[*TestForm], *Recorder) {
	t.Helper()
	rec := &Recorder{}
	return ripple.New(&TestForm{}, rec.Rerender), rec
}

// NewTestReloader creates a sync mode reloader for d fed by the returned
// channel.
func NewTestReloader(t *testing.T, d *ripple.Dispatcher[*TestForm], catalog ripple.Catalog[*TestForm]) (*ripple.Reloader[*TestForm], chan<- []byte) {
	t.Helper()
	ch := make(chan []byte, 10)
	r := ripple.NewReloader(d, ripple.NewSyncChannelWatcher(ch), catalog).SyncMode()
	return r, ch
}
