package ripple

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// form is a test host with two observable fields.
type form struct {
	Name    string
	Surname string

	mu    sync.Mutex
	calls []string
}

func (f *form) FieldValue(field string) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "surname":
		return f.Surname, true
	}
	return nil, false
}

func (f *form) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *form) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// rerenderCounter counts re-render requests.
type rerenderCounter struct {
	mu sync.Mutex
	n  int
	ch chan struct{}
}

func newRerenderCounter() *rerenderCounter {
	return &rerenderCounter{ch: make(chan struct{}, 16)}
}

func (c *rerenderCounter) rerender(context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *rerenderCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func changed(prev, curr any) RawChange {
	return RawChange{Previous: prev, Current: curr}
}

func TestDispatcher_GroupFiresOnceWithFullBatch(t *testing.T) {
	ctx := context.Background()
	host := &form{}
	counter := newRerenderCounter()

	var got []ChangeBatch
	cb := func(_ context.Context, f *form, batch ChangeBatch) error {
		f.record("cb")
		got = append(got, batch)
		return nil
	}

	d := New(host, counter.rerender)
	if err := d.Configure(ctx, Groups[*form]{{Fields: []string{"name", "surname"}, Callback: cb}}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	batch, err := d.ProcessCycle(ctx, map[string]RawChange{
		"surname": changed("", "quesada"),
	})
	if err != nil {
		t.Fatalf("ProcessCycle failed: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected cb once, got %d", len(got))
	}
	if c, ok := got[0].Get("surname"); !ok || !c.DidChange() {
		t.Error("expected surname to be changed in the handler batch")
	}
	if got[0].Has("name") {
		t.Error("expected name to be absent from the batch")
	}
	if !batch.Has("surname") {
		t.Error("expected returned batch to carry surname")
	}
	if counter.count() != 1 {
		t.Errorf("expected 1 re-render, got %d", counter.count())
	}
}

func TestDispatcher_BothFieldsChangedStillOnce(t *testing.T) {
	ctx := context.Background()
	host := &form{}
	counter := newRerenderCounter()

	d := New(host, counter.rerender)
	err := d.Configure(ctx, Groups[*form]{{
		Fields: []string{"name", "surname"},
		Callback: func(_ context.Context, f *form, _ ChangeBatch) error {
			f.record("cb")
			return nil
		},
	}})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if _, err := d.ProcessCycle(ctx, map[string]RawChange{
		"name":    changed("", "ana"),
		"surname": changed("", "quesada"),
	}); err != nil {
		t.Fatalf("ProcessCycle failed: %v", err)
	}

	if calls := host.recorded(); len(calls) != 1 {
		t.Errorf("expected cb exactly once, got %d", len(calls))
	}
	if counter.count() != 1 {
		t.Errorf("expected 1 re-render, got %d", counter.count())
	}
}

func TestDispatcher_HandlerReceivesHost(t *testing.T) {
	ctx := context.Background()
	host := &form{Name: "ana"}

	var seen *form
	d := New(host, nil)
	_ = d.Configure(ctx, Watches[*form]{
		"name": func(_ context.Context, f *form, _ ChangeBatch) error {
			seen = f
			return nil
		},
	})

	if _, err := d.ProcessCycle(ctx, map[string]RawChange{"name": changed("", "ana")}); err != nil {
		t.Fatalf("ProcessCycle failed: %v", err)
	}
	if seen != host {
		t.Error("expected handler to receive the host")
	}
	if d.Host() != host {
		t.Error("expected Host() to return the host")
	}
}

func TestDispatcher_OverlappingGroupsRequireAllValidators(t *testing.T) {
	ctx := context.Background()

	var runs int
	shared := &Callback[*form]{Handle: func(context.Context, *form, ChangeBatch) error {
		runs++
		return nil
	}}

	var allowA, allowB bool
	var evalA, evalB int
	validA := func(context.Context, *form, ChangeBatch) bool { evalA++; return allowA }
	validB := func(context.Context, *form, ChangeBatch) bool { evalB++; return allowB }

	d := New(&form{}, nil)
	err := d.Configure(ctx, Groups[*form]{
		{Fields: []string{"name"}, Callback: shared, Validate: validA},
		{Fields: []string{"surname"}, Callback: shared, Validate: validB},
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	both := map[string]RawChange{
		"name":    changed("a", "b"),
		"surname": changed("a", "b"),
	}

	allowA, allowB = true, false
	if _, err := d.ProcessCycle(ctx, both); err != nil {
		t.Fatal(err)
	}
	if runs != 0 {
		t.Errorf("expected handler vetoed by second validator, ran %d", runs)
	}

	allowA, allowB = true, true
	if _, err := d.ProcessCycle(ctx, both); err != nil {
		t.Fatal(err)
	}
	if runs != 1 {
		t.Errorf("expected handler once when both validators pass, ran %d", runs)
	}

	// Only the first group triggers: only its validator is consulted.
	evalA, evalB = 0, 0
	allowA, allowB = true, false
	if _, err := d.ProcessCycle(ctx, map[string]RawChange{"name": changed("b", "c")}); err != nil {
		t.Fatal(err)
	}
	if runs != 2 {
		t.Errorf("expected handler to run with only its triggered validator, ran %d", runs)
	}
	if evalA != 1 || evalB != 0 {
		t.Errorf("expected only validator A evaluated, got A=%d B=%d", evalA, evalB)
	}
}

func TestDispatcher_VetoSkipsOnlyThatHandler(t *testing.T) {
	ctx := context.Background()
	host := &form{}

	d := New(host, nil)
	err := d.Configure(ctx, Groups[*form]{
		{Fields: []string{"name"}, Callback: Callback[*form]{
			Handle:   func(_ context.Context, f *form, _ ChangeBatch) error { f.record("vetoed"); return nil },
			Validate: func(context.Context, *form, ChangeBatch) bool { return false },
		}},
		{Fields: []string{"name", "surname"}, Callback: func(_ context.Context, f *form, _ ChangeBatch) error {
			f.record("runs")
			return nil
		}},
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if _, err := d.ProcessCycle(ctx, map[string]RawChange{"name": changed("", "x")}); err != nil {
		t.Fatal(err)
	}
	if calls := host.recorded(); len(calls) != 1 || calls[0] != "runs" {
		t.Errorf("expected only the unvetoed handler, got %v", calls)
	}
}

func TestDispatcher_InvocationOrderFollowsRegistration(t *testing.T) {
	ctx := context.Background()
	host := &form{}

	mk := func(name string) HandlerFunc[*form] {
		return func(_ context.Context, f *form, _ ChangeBatch) error {
			f.record(name)
			return nil
		}
	}
	first, second, third := &Callback[*form]{Handle: mk("first")}, &Callback[*form]{Handle: mk("second")}, &Callback[*form]{Handle: mk("third")}

	d := New(host, nil)
	err := d.Configure(ctx, Groups[*form]{
		{Fields: []string{"c"}, Callback: first},
		{Fields: []string{"a"}, Callback: second},
		{Fields: []string{"b"}, Callback: third},
		{Fields: []string{"d"}, Callback: first},
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if _, err := d.ProcessCycle(ctx, map[string]RawChange{
		"d": changed(1, 2),
		"b": changed(1, 2),
		"a": changed(1, 2),
	}); err != nil {
		t.Fatal(err)
	}

	// a (position 1), b (position 2), d (position 3); c never triggered.
	want := []string{"second", "third", "first"}
	got := host.recorded()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDispatcher_StrictSkipsUnchangedCycles(t *testing.T) {
	ctx := context.Background()
	counter := newRerenderCounter()

	var runs, hooks int
	d := New(&form{}, counter.rerender).
		OnCycle(func(context.Context, *form, ChangeBatch) { hooks++ })
	_ = d.Configure(ctx, Watches[*form]{
		"name": func(context.Context, *form, ChangeBatch) error { runs++; return nil },
	})

	unchanged := map[string]RawChange{
		"name":    changed("ana", "ana"),
		"surname": {Current: "x", First: true},
	}
	if _, err := d.ProcessCycle(ctx, unchanged); err != nil {
		t.Fatal(err)
	}

	if runs != 0 || hooks != 0 || counter.count() != 0 {
		t.Errorf("expected nothing to run, got runs=%d hooks=%d rerenders=%d", runs, hooks, counter.count())
	}
}

func TestDispatcher_NonStrictStillRerenders(t *testing.T) {
	ctx := context.Background()
	counter := newRerenderCounter()

	var runs, hooks int
	d := New(&form{}, counter.rerender).
		Strict(false).
		OnCycle(func(context.Context, *form, ChangeBatch) { hooks++ })
	_ = d.Configure(ctx, Watches[*form]{
		"name": func(context.Context, *form, ChangeBatch) error { runs++; return nil },
	})

	if _, err := d.ProcessCycle(ctx, map[string]RawChange{"name": changed("ana", "ana")}); err != nil {
		t.Fatal(err)
	}

	if runs != 0 {
		t.Errorf("expected no handler, got %d", runs)
	}
	if hooks != 1 {
		t.Errorf("expected hook once, got %d", hooks)
	}
	if counter.count() != 1 {
		t.Errorf("expected 1 re-render, got %d", counter.count())
	}
}

func TestDispatcher_UnconfiguredIsNoOp(t *testing.T) {
	ctx := context.Background()
	counter := newRerenderCounter()
	d := New(&form{}, counter.rerender)

	if _, err := d.ProcessCycle(ctx, map[string]RawChange{"name": changed("", "x")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counter.count() != 1 {
		t.Errorf("expected re-render for changed cycle, got %d", counter.count())
	}
	if err := d.RunAllHandlersNow(ctx, RunOptions{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDispatcher_UnknownFieldsNeverMatch(t *testing.T) {
	ctx := context.Background()
	var runs int
	d := New(&form{}, nil)
	_ = d.Configure(ctx, Watches[*form]{
		"nickname": func(context.Context, *form, ChangeBatch) error { runs++; return nil },
	})

	if _, err := d.ProcessCycle(ctx, map[string]RawChange{"name": changed("", "x")}); err != nil {
		t.Fatal(err)
	}
	if runs != 0 {
		t.Errorf("expected no runs, got %d", runs)
	}
}

func TestDispatcher_HandlerErrorAbortsCycle(t *testing.T) {
	ctx := context.Background()
	host := &form{}
	counter := newRerenderCounter()
	boom := errors.New("boom")

	var hooks int
	d := New(host, counter.rerender).
		ErrorHistorySize(4).
		OnCycle(func(context.Context, *form, ChangeBatch) { hooks++ })
	err := d.Configure(ctx, Groups[*form]{
		{Fields: []string{"name"}, Callback: func(_ context.Context, f *form, _ ChangeBatch) error {
			f.record("first")
			return boom
		}},
		{Fields: []string{"surname"}, Callback: func(_ context.Context, f *form, _ ChangeBatch) error {
			f.record("second")
			return nil
		}},
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	_, err = d.ProcessCycle(ctx, map[string]RawChange{
		"name":    changed("", "a"),
		"surname": changed("", "b"),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var herr *HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("expected *HandlerError, got %T", err)
	}
	if herr.Group.String() != "name" {
		t.Errorf("expected failing group name, got %q", herr.Group)
	}

	if calls := host.recorded(); len(calls) != 1 || calls[0] != "first" {
		t.Errorf("expected remaining handlers skipped, got %v", calls)
	}
	if hooks != 0 || counter.count() != 0 {
		t.Errorf("expected no hook/re-render after failure, got hooks=%d rerenders=%d", hooks, counter.count())
	}
	if !errors.Is(d.LastError(), boom) {
		t.Errorf("expected LastError to be boom, got %v", d.LastError())
	}
	if len(d.ErrorHistory()) != 1 {
		t.Errorf("expected 1 error in history, got %d", len(d.ErrorHistory()))
	}
}

func TestDispatcher_ConfigureReplacesAcrossShapes(t *testing.T) {
	ctx := context.Background()
	host := &form{}

	d := New(host, nil)
	err := d.Configure(ctx, Watches[*form]{
		"name": func(_ context.Context, f *form, _ ChangeBatch) error { f.record("mapping"); return nil },
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	before := d.Registry().Keys()

	err = d.Configure(ctx, Groups[*form]{
		{Fields: []string{"name"}, Callback: func(_ context.Context, f *form, _ ChangeBatch) error {
			f.record("list")
			return nil
		}},
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	after := d.Registry().Keys()

	if len(before) != 1 || len(after) != 1 || before[0] != after[0] {
		t.Fatalf("expected the same group key, got %v and %v", before, after)
	}

	if _, err := d.ProcessCycle(ctx, map[string]RawChange{"name": changed("", "x")}); err != nil {
		t.Fatal(err)
	}
	if calls := host.recorded(); len(calls) != 1 || calls[0] != "list" {
		t.Errorf("expected only the second configuration to run, got %v", calls)
	}
}

func TestDispatcher_ConfigureFailureKeepsRegistry(t *testing.T) {
	ctx := context.Background()
	d := New(&form{}, nil)
	_ = d.Configure(ctx, Watches[*form]{"name": noopHandler})
	reg := d.Registry()

	err := d.Configure(ctx, Watches[*form]{"name": 42})
	if !errors.Is(err, ErrMalformedCallback) {
		t.Fatalf("expected ErrMalformedCallback, got %v", err)
	}
	if d.Registry() != reg {
		t.Error("expected registry to be unchanged after failed Configure")
	}

	if err := d.Configure(ctx, nil); err != nil {
		t.Fatalf("unexpected error clearing: %v", err)
	}
	if d.Registry().Len() != 0 {
		t.Error("expected Configure(nil) to clear the registry")
	}
}

func TestDispatcher_RunAllHandlersNow(t *testing.T) {
	ctx := context.Background()
	host := &form{Name: "ana", Surname: "quesada"}
	counter := newRerenderCounter()

	var batches []ChangeBatch
	shared := &Callback[*form]{
		Handle: func(_ context.Context, f *form, b ChangeBatch) error {
			f.record("shared")
			batches = append(batches, b)
			return nil
		},
	}

	d := New(host, counter.rerender)
	err := d.Configure(ctx, Groups[*form]{
		{Fields: []string{"name"}, Callback: shared},
		{Fields: []string{"surname"}, Callback: shared},
		{Fields: []string{"nickname"}, Callback: func(_ context.Context, f *form, _ ChangeBatch) error {
			f.record("nickname")
			return nil
		}},
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if err := d.RunAllHandlersNow(ctx, RunOptions{}); err != nil {
		t.Fatalf("RunAllHandlersNow failed: %v", err)
	}

	if calls := host.recorded(); len(calls) != 2 || calls[0] != "shared" || calls[1] != "nickname" {
		t.Errorf("expected each distinct handler once, got %v", calls)
	}
	if counter.count() != 0 {
		t.Errorf("expected no re-render, got %d", counter.count())
	}

	b := batches[0]
	for _, f := range []string{"name", "surname", "nickname"} {
		c, ok := b.Get(f)
		if !ok {
			t.Fatalf("expected %s in synthetic batch", f)
		}
		if c.Changed || c.First {
			t.Errorf("%s: expected unchanged, not first: %+v", f, c)
		}
		if c.Previous != c.Current {
			t.Errorf("%s: expected previous == current", f)
		}
	}
	if c, _ := b.Get("name"); c.Current != "ana" {
		t.Errorf("expected name value from host, got %v", c.Current)
	}
	if c, _ := b.Get("nickname"); c.Current != nil {
		t.Errorf("expected nil for field unknown to the host, got %v", c.Current)
	}
}

// opaque is a host that cannot report field values.
type opaque struct{}

func TestDispatcher_RunAllHandlersNowWithoutFieldSource(t *testing.T) {
	ctx := context.Background()

	var got ChangeBatch
	d := New(&opaque{}, nil)
	_ = d.Configure(ctx, Groups[*opaque]{{
		Fields: []string{"name", "surname"},
		Callback: func(_ context.Context, _ *opaque, b ChangeBatch) error {
			got = b
			return nil
		},
	}})

	if err := d.RunAllHandlersNow(ctx, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"name", "surname"} {
		c, ok := got.Get(f)
		if !ok {
			t.Fatalf("expected %s in synthetic batch", f)
		}
		if c.Previous != nil || c.Current != nil || c.Changed || c.First {
			t.Errorf("%s: expected nil unchanged values, got %+v", f, c)
		}
	}
}

func TestDispatcher_RunAllHandlersNowValidators(t *testing.T) {
	ctx := context.Background()
	host := &form{}

	d := New(host, nil)
	_ = d.Configure(ctx, Watches[*form]{
		"name": Callback[*form]{
			Handle:   func(_ context.Context, f *form, _ ChangeBatch) error { f.record("gated"); return nil },
			Validate: func(context.Context, *form, ChangeBatch) bool { return false },
		},
	})

	if err := d.RunAllHandlersNow(ctx, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if len(host.recorded()) != 0 {
		t.Error("expected validator to gate the handler")
	}

	if err := d.RunAllHandlersNow(ctx, RunOptions{SkipValidators: true}); err != nil {
		t.Fatal(err)
	}
	if calls := host.recorded(); len(calls) != 1 || calls[0] != "gated" {
		t.Errorf("expected handler to run when skipping validators, got %v", calls)
	}
}

func TestDispatcher_TriggerRerenderNow(t *testing.T) {
	counter := newRerenderCounter()
	d := New(&form{}, counter.rerender)

	d.TriggerRerenderNow(context.Background())
	d.TriggerRerenderNow(context.Background())

	if counter.count() != 2 {
		t.Errorf("expected 2 immediate re-renders, got %d", counter.count())
	}
}

type countingMetrics struct {
	NoOpMetricsProvider
	mu        sync.Mutex
	processed int
	skipped   int
	vetoed    int
	failed    int
	rerenders int
	coalesced int
}

func (m *countingMetrics) OnCycleProcessed(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
}

func (m *countingMetrics) OnCycleSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped++
}

func (m *countingMetrics) OnCycleCoalesced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coalesced++
}

func (m *countingMetrics) OnHandlerVetoed(GroupKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vetoed++
}

func (m *countingMetrics) OnHandlerFailed(GroupKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

func (m *countingMetrics) OnRerender() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rerenders++
}

func TestDispatcher_Metrics(t *testing.T) {
	ctx := context.Background()
	metrics := &countingMetrics{}

	d := New(&form{}, nil).Metrics(metrics)
	_ = d.Configure(ctx, Groups[*form]{
		{Fields: []string{"name"}, Callback: Callback[*form]{
			Handle:   noopHandler,
			Validate: func(context.Context, *form, ChangeBatch) bool { return false },
		}},
		{Fields: []string{"surname"}, Callback: func(context.Context, *form, ChangeBatch) error {
			return errors.New("fail")
		}},
	})

	_, _ = d.ProcessCycle(ctx, map[string]RawChange{"name": changed(1, 2)})
	_, _ = d.ProcessCycle(ctx, map[string]RawChange{"name": changed(1, 1)})
	_, _ = d.ProcessCycle(ctx, map[string]RawChange{"surname": changed(1, 2)})

	if metrics.processed != 1 {
		t.Errorf("expected 1 processed cycle, got %d", metrics.processed)
	}
	if metrics.skipped != 1 {
		t.Errorf("expected 1 skipped cycle, got %d", metrics.skipped)
	}
	if metrics.vetoed != 1 {
		t.Errorf("expected 1 veto, got %d", metrics.vetoed)
	}
	if metrics.failed != 1 {
		t.Errorf("expected 1 failure, got %d", metrics.failed)
	}
	if metrics.rerenders != 1 {
		t.Errorf("expected 1 re-render, got %d", metrics.rerenders)
	}
}
