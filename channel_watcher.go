package ripple

import "context"

// ChannelWatcher adapts a byte channel into a Watcher. It is the simplest
// bindings source: whatever is sent on the channel is treated as a new
// document.
type ChannelWatcher struct {
	src    <-chan []byte
	direct bool
}

// NewChannelWatcher returns a Watcher that relays src through its own
// goroutine, stopping when either src closes or the context ends.
func NewChannelWatcher(src <-chan []byte) *ChannelWatcher {
	return &ChannelWatcher{src: src}
}

// NewSyncChannelWatcher returns a Watcher that hands src out unchanged.
// Use with Reloader.SyncMode() for deterministic tests.
func NewSyncChannelWatcher(src <-chan []byte) *ChannelWatcher {
	return &ChannelWatcher{src: src, direct: true}
}

// Watch implements Watcher.
func (w *ChannelWatcher) Watch(ctx context.Context) (<-chan []byte, error) {
	if w.direct {
		return w.src, nil
	}
	out := make(chan []byte)
	go w.relay(ctx, out)
	return out, nil
}

func (w *ChannelWatcher) relay(ctx context.Context, out chan<- []byte) {
	defer close(out)
	for {
		var doc []byte
		select {
		case <-ctx.Done():
			return
		case v, ok := <-w.src:
			if !ok {
				return
			}
			doc = v
		}

		select {
		case out <- doc:
		case <-ctx.Done():
			return
		}
	}
}
