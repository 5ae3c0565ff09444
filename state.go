package ripple

// State is the health of a Reloader.
type State int32

const (
	// StateLoading: no bindings document processed yet.
	StateLoading State = iota

	// StateHealthy: the last document was applied.
	StateHealthy

	// StateDegraded: the last document was rejected; the registry of the
	// previous valid one is still in effect.
	StateDegraded

	// StateEmpty: no document was ever applied, the dispatcher runs with an
	// empty registry while the Reloader waits for a valid one.
	StateEmpty
)

var stateNames = [...]string{
	StateLoading:  "loading",
	StateHealthy:  "healthy",
	StateDegraded: "degraded",
	StateEmpty:    "empty",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
