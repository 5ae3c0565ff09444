package ripple

import "context"

// Watcher is a source of bindings documents. The returned channel carries
// the current document first, then every later version, and is closed once
// ctx ends or the source gives up.
type Watcher interface {
	Watch(ctx context.Context) (<-chan []byte, error)
}

// WatcherFunc adapts a function to the Watcher interface.
type WatcherFunc func(ctx context.Context) (<-chan []byte, error)

// Watch calls f(ctx).
func (f WatcherFunc) Watch(ctx context.Context) (<-chan []byte, error) {
	return f(ctx)
}
