package ripple

import "github.com/zoobzio/capitan"

// Field keys for dispatcher and reloader events.
var (
	// KeyState is the current state of a Reloader.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeyDuration is the time taken to process a cycle.
	KeyDuration = capitan.NewDurationKey("duration")

	// KeyGroup is the human readable key of a group, e.g. "name,surname".
	KeyGroup = capitan.NewStringKey("group")

	// KeyGroups is the number of groups in a registry.
	KeyGroups = capitan.NewIntKey("groups")

	// KeyHandlers is the number of handlers involved.
	KeyHandlers = capitan.NewIntKey("handlers")

	// KeyValidators is the number of validators gating a handler.
	KeyValidators = capitan.NewIntKey("validators")

	// KeyFields is the number of fields reported in a cycle.
	KeyFields = capitan.NewIntKey("fields")

	// KeyChanged is the number of fields that changed in a cycle.
	KeyChanged = capitan.NewIntKey("changed")

	// KeyReason explains why a cycle was skipped.
	KeyReason = capitan.NewStringKey("reason")

	// KeyMode distinguishes immediate from debounced re-renders.
	KeyMode = capitan.NewStringKey("mode")
)
