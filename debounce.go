package ripple

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// debouncer coalesces calls into a single trailing-edge execution.
//
// It is either idle or holds exactly one pending call. Every call replaces
// the pending one, restarting the delay with the latest arguments. Only the
// pending call of the current generation may fire.
type debouncer[A any] struct {
	clock clockz.Clock
	delay time.Duration
	fire  func(A)

	mu      sync.Mutex
	gen     uint64
	pending *pendingCall[A]
}

type pendingCall[A any] struct {
	gen    uint64
	args   A
	timer  clockz.Timer
	cancel chan struct{}
}

func newDebouncer[A any](clock clockz.Clock, delay time.Duration, fire func(A)) *debouncer[A] {
	return &debouncer[A]{
		clock: clock,
		delay: delay,
		fire:  fire,
	}
}

// call schedules fire(args) after the delay, superseding any pending call.
// It reports whether a pending call was superseded.
func (d *debouncer[A]) call(args A) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	superseded := d.cancelLocked()

	d.gen++
	p := &pendingCall[A]{
		gen:    d.gen,
		args:   args,
		timer:  d.clock.NewTimer(d.delay),
		cancel: make(chan struct{}),
	}
	d.pending = p
	go d.wait(p)

	return superseded
}

func (d *debouncer[A]) wait(p *pendingCall[A]) {
	select {
	case <-p.cancel:
		return
	case <-p.timer.C():
	}

	d.mu.Lock()
	if d.pending == nil || d.pending.gen != p.gen {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()

	d.fire(p.args)
}

// stop discards the pending call, if any.
func (d *debouncer[A]) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// isPending reports whether a call is waiting to fire.
func (d *debouncer[A]) isPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *debouncer[A]) cancelLocked() bool {
	if d.pending == nil {
		return false
	}
	d.pending.timer.Stop()
	close(d.pending.cancel)
	d.pending = nil
	return true
}
