package ripple

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Pipeline identities.
var (
	applyID      = pipz.NewIdentity("ripple:apply", "Decodes, resolves and applies a bindings document")
	retryID      = pipz.NewIdentity("ripple:retry", "Retries the bindings pipeline")
	backoffID    = pipz.NewIdentity("ripple:backoff", "Retries the bindings pipeline with exponential backoff")
	timeoutID    = pipz.NewIdentity("ripple:timeout", "Bounds the bindings pipeline duration")
	middlewareID = pipz.NewIdentity("ripple:middleware", "Runs processors before applying bindings")
)

// ReloadRequest carries one bindings document through the Reloader pipeline.
// Middleware may rewrite Raw before it is decoded. Bindings is filled in by
// the apply step.
type ReloadRequest[H any] struct {
	Raw      []byte
	Bindings Bindings
}

// ReloaderOption wraps the apply step of a Reloader with pipeline middleware.
//
// Instance configuration (debounce, sync mode, codec, etc.) is handled via
// chainable methods on the Reloader before calling Start().
type ReloaderOption[H any] func(pipz.Chainable[*ReloadRequest[H]]) pipz.Chainable[*ReloadRequest[H]]

// buildPipeline wraps a terminal with options, in order.
func buildPipeline[H any](terminal pipz.Chainable[*ReloadRequest[H]], opts []ReloaderOption[H]) pipz.Chainable[*ReloadRequest[H]] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// WithRetry retries a failed document immediately, up to maxAttempts times
// in total.
func WithRetry[H any](maxAttempts int) ReloaderOption[H] {
	return func(p pipz.Chainable[*ReloadRequest[H]]) pipz.Chainable[*ReloadRequest[H]] {
		return pipz.NewRetry(retryID, p, maxAttempts)
	}
}

// WithBackoff retries a failed document with delays of baseDelay,
// 2*baseDelay, 4*baseDelay and so on.
func WithBackoff[H any](maxAttempts int, baseDelay time.Duration) ReloaderOption[H] {
	return func(p pipz.Chainable[*ReloadRequest[H]]) pipz.Chainable[*ReloadRequest[H]] {
		return pipz.NewBackoff(backoffID, p, maxAttempts, baseDelay)
	}
}

// WithTimeout fails a document whose processing takes longer than d. The
// registry is left untouched when the deadline passes before Configure.
func WithTimeout[H any](d time.Duration) ReloaderOption[H] {
	return func(p pipz.Chainable[*ReloadRequest[H]]) pipz.Chainable[*ReloadRequest[H]] {
		return pipz.NewTimeout(timeoutID, p, d)
	}
}

// WithMiddleware runs processors in order before the wrapped pipeline.
//
// Example:
//
//	ripple.NewReloader(d, watcher, catalog,
//	    ripple.WithMiddleware(
//	        pipz.Transform(expandID, expandIncludes),
//	    ),
//	    ripple.WithRetry[*Form](3),
//	)
func WithMiddleware[H any](processors ...pipz.Chainable[*ReloadRequest[H]]) ReloaderOption[H] {
	return func(p pipz.Chainable[*ReloadRequest[H]]) pipz.Chainable[*ReloadRequest[H]] {
		all := make([]pipz.Chainable[*ReloadRequest[H]], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence(middlewareID, all...)
	}
}

// stageError marks the apply step that rejected a document.
type stageError struct {
	stage  string
	signal capitan.Signal
	err    error
}

func (e *stageError) Error() string { return e.stage + " failed: " + e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

// applyTerminal is the last processor of every Reloader pipeline.
func (r *Reloader[H]) applyTerminal() pipz.Chainable[*ReloadRequest[H]] {
	return pipz.Effect(applyID, func(ctx context.Context, req *ReloadRequest[H]) error {
		var doc Bindings
		if err := r.codec.Unmarshal(req.Raw, &doc); err != nil {
			return &stageError{stage: "decode", signal: BindingsDecodeFailed, err: err}
		}
		if err := doc.Validate(); err != nil {
			return &stageError{stage: "validate", signal: BindingsValidationFailed, err: err}
		}

		groups, err := r.catalog.Resolve(doc)
		if err == nil {
			err = ctx.Err()
		}
		if err == nil {
			err = r.dispatcher.Configure(ctx, groups)
		}
		if err != nil {
			return &stageError{stage: "apply", signal: BindingsApplyFailed, err: err}
		}

		req.Bindings = doc
		return nil
	})
}
