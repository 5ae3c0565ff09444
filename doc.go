// Package ripple dispatches field change notifications to grouped callbacks.
//
// A host reports, once per update cycle, which of its fields changed. ripple
// decides which registered handlers must run, runs each of them at most once
// even when several of its watched fields changed, gates them behind
// validators, and finally requests a single re-render.
//
// # Declarations
//
// Handlers are declared in one of two shapes. Watches maps each field to its
// own handler:
//
//	d.Configure(ctx, ripple.Watches[*Form]{
//	    "email": validateEmail,
//	    "age":   ripple.Callback[*Form]{Handle: updateAge, Validate: isAdult},
//	})
//
// Groups binds a set of fields to one handler:
//
//	d.Configure(ctx, ripple.Groups[*Form]{
//	    {Fields: []string{"name", "surname"}, Callback: updateFullName},
//	})
//
// Both shapes normalize to the same Registry. Field sets are identified by a
// GroupKey that ignores order and duplicates; a later declaration of the same
// field set replaces the earlier one.
//
// # Cycles
//
//	batch, err := d.ProcessCycle(ctx, map[string]ripple.RawChange{
//	    "surname": {Previous: "", Current: "quesada"},
//	})
//
// A field counts as changed unless it is a first observation or its previous
// and current values are the same by identity (see SameValue). A group
// triggers when any of its fields changed. A handler reachable from several
// triggered groups runs once, and only if the validators of all of those
// groups approve. Handlers receive the host and the full batch.
//
// After the handlers ran the post-cycle hook and the re-render action run
// once. In strict mode (the default) a cycle in which nothing changed is
// skipped entirely.
//
// # Coalescing
//
// Debounce defers cycle dispatch so that bursts of ProcessCycle calls collapse
// into one dispatch of the latest batch. TriggerRerenderDebounced does the
// same for the re-render action. TriggerRerenderNow and RunAllHandlersNow
// act immediately.
//
// # Bindings
//
// Declarations can also come from a JSON or YAML document naming handlers
// from a Catalog. A Reloader watches such a document (see pkg/file) and
// reconfigures the dispatcher whenever it changes, keeping the previous
// registry when a new document is invalid.
//
// # Observability
//
// Every step emits a capitan signal (see signals.go) with typed fields (see
// fields.go). A MetricsProvider receives the same events as callbacks.
package ripple
