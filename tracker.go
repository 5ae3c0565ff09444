package ripple

import "sync"

// Tracker derives raw changes from successive snapshots of a host's fields,
// for hosts that cannot report per-field notifications themselves.
type Tracker struct {
	mu   sync.Mutex
	last map[string]any
}

// NewTracker returns a Tracker that has observed nothing yet.
func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]any)}
}

// Observe compares snapshot with the values seen so far.
//
// A field seen for the first time is reported with First set. A known field
// is reported only when its value is not the SameValue as the last one
// observed. Fields missing from snapshot are not reported and keep their
// last observed value.
func (t *Tracker) Observe(snapshot map[string]any) map[string]RawChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw := make(map[string]RawChange)
	for field, current := range snapshot {
		previous, seen := t.last[field]
		switch {
		case !seen:
			raw[field] = RawChange{Current: current, First: true}
		case !SameValue(previous, current):
			raw[field] = RawChange{Previous: previous, Current: current}
		}
		t.last[field] = current
	}
	return raw
}

// Reset forgets every observed value; the next snapshot reports first
// observations again.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]any)
}
