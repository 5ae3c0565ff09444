// Package kubernetes provides a ripple.Watcher that reads a bindings document
// from a ConfigMap or Secret and follows it through the Watch API.
package kubernetes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
)

const (
	// DefaultKey is the data key holding the bindings document.
	DefaultKey = "bindings.yaml"

	// DefaultRetryDelay is the pause before reconnecting after a failed
	// read or a broken watch.
	DefaultRetryDelay = time.Second
)

// ResourceType specifies the type of Kubernetes resource to watch.
type ResourceType int

const (
	// ConfigMap watches a ConfigMap resource.
	ConfigMap ResourceType = iota
	// Secret watches a Secret resource.
	Secret
)

func (rt ResourceType) String() string {
	switch rt {
	case ConfigMap:
		return "configmap"
	case Secret:
		return "secret"
	default:
		return "unknown"
	}
}

// Watcher follows one data key of a ConfigMap or Secret.
type Watcher struct {
	client       kubernetes.Interface
	namespace    string
	name         string
	key          string
	resourceType ResourceType
	retryDelay   time.Duration
	clock        clockz.Clock
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithResourceType sets the resource type to watch. Defaults to ConfigMap.
func WithResourceType(rt ResourceType) Option {
	return func(w *Watcher) {
		w.resourceType = rt
	}
}

// WithKey sets the data key holding the document. Defaults to DefaultKey.
func WithKey(key string) Option {
	return func(w *Watcher) {
		w.key = key
	}
}

// WithRetryDelay sets the pause between reconnect attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.retryDelay = d
	}
}

// WithClock sets the clock used for reconnect delays.
func WithClock(clock clockz.Clock) Option {
	return func(w *Watcher) {
		w.clock = clock
	}
}

// New creates a Watcher for the named resource in namespace.
//
//	src := kubernetes.New(client, "forms", "signup-bindings")
//	r := ripple.NewReloader(d, src, catalog).Codec(ripple.YAMLCodec{})
func New(client kubernetes.Interface, namespace, name string, opts ...Option) *Watcher {
	w := &Watcher{
		client:       client,
		namespace:    namespace,
		name:         name,
		key:          DefaultKey,
		resourceType: ConfigMap,
		retryDelay:   DefaultRetryDelay,
		clock:        clockz.RealClock,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch emits the current document, then every later version of it.
// Empty values and values identical to the last emitted one are dropped.
// Read and watch failures are retried after the retry delay until ctx ends,
// at which point the channel is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	out := make(chan []byte)
	go w.run(ctx, out)
	return out, nil
}

func (w *Watcher) run(ctx context.Context, out chan<- []byte) {
	defer close(out)

	var last []byte
	for {
		_ = w.follow(ctx, out, &last) //nolint:errcheck // Reconnects after the retry delay
		if ctx.Err() != nil {
			return
		}

		timer := w.clock.NewTimer(w.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}
	}
}

// follow reads the resource and relays its watch events until the watch
// breaks or ctx ends.
func (w *Watcher) follow(ctx context.Context, out chan<- []byte, last *[]byte) error {
	value, resourceVersion, err := w.getValue(ctx)
	if err != nil {
		return err
	}
	if !w.emit(ctx, out, value, last) {
		return ctx.Err()
	}

	opts := metav1.ListOptions{
		FieldSelector:   fmt.Sprintf("metadata.name=%s", w.name),
		ResourceVersion: resourceVersion,
	}

	var events watch.Interface
	if w.resourceType == Secret {
		events, err = w.client.CoreV1().Secrets(w.namespace).Watch(ctx, opts)
	} else {
		events, err = w.client.CoreV1().ConfigMaps(w.namespace).Watch(ctx, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to start %s watch: %w", w.resourceType, err)
	}
	defer events.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events.ResultChan():
			if !ok {
				return errors.New("watch channel closed")
			}
			switch event.Type {
			case watch.Error:
				return errors.New("watch error")
			case watch.Deleted, watch.Bookmark:
				continue
			}

			value, ok := w.extractValue(event.Object)
			if !ok {
				continue
			}
			if !w.emit(ctx, out, value, last) {
				return ctx.Err()
			}
		}
	}
}

// emit sends value unless it is empty or unchanged. It reports false when
// ctx ended first.
func (w *Watcher) emit(ctx context.Context, out chan<- []byte, value []byte, last *[]byte) bool {
	if len(value) == 0 || bytes.Equal(value, *last) {
		return true
	}
	select {
	case out <- value:
		*last = value
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Watcher) getValue(ctx context.Context) ([]byte, string, error) {
	if w.resourceType == Secret {
		secret, err := w.client.CoreV1().Secrets(w.namespace).Get(ctx, w.name, metav1.GetOptions{})
		if err != nil {
			return nil, "", err
		}
		return secret.Data[w.key], secret.ResourceVersion, nil
	}

	cm, err := w.client.CoreV1().ConfigMaps(w.namespace).Get(ctx, w.name, metav1.GetOptions{})
	if err != nil {
		return nil, "", err
	}
	return []byte(cm.Data[w.key]), cm.ResourceVersion, nil
}

// extractValue returns the document carried by a watch event object. Objects
// of the wrong kind or name are rejected.
func (w *Watcher) extractValue(obj runtime.Object) ([]byte, bool) {
	switch o := obj.(type) {
	case *corev1.ConfigMap:
		if w.resourceType != ConfigMap || o.Name != w.name {
			return nil, false
		}
		return []byte(o.Data[w.key]), true
	case *corev1.Secret:
		if w.resourceType != Secret || o.Name != w.name {
			return nil, false
		}
		return o.Data[w.key], true
	default:
		return nil, false
	}
}
