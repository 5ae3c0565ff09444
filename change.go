package ripple

import (
	"math"
	"reflect"
	"sort"
)

// RawChange is a single field notification as reported by the host for one
// update cycle.
type RawChange struct {
	// Previous is the value the field held before this cycle.
	Previous any

	// Current is the value the field holds now.
	Current any

	// First reports whether this is the first time the field was observed.
	First bool
}

// FieldChange is the normalized form of a RawChange.
type FieldChange struct {
	Previous any
	Current  any
	First    bool

	// Changed is false for first observations and for values that are the
	// same under SameValue; true otherwise.
	Changed bool
}

// DidChange reports whether the field counts as changed for dispatch.
func (c FieldChange) DidChange() bool {
	return c.Changed
}

// ChangeBatch maps field names to their normalized change for one cycle.
// Fields not reported by the host are absent, never defaulted.
type ChangeBatch map[string]FieldChange

// Normalize converts the raw notifications of one cycle into a ChangeBatch.
func Normalize(raw map[string]RawChange) ChangeBatch {
	batch := make(ChangeBatch, len(raw))
	for field, rc := range raw {
		batch[field] = FieldChange{
			Previous: rc.Previous,
			Current:  rc.Current,
			First:    rc.First,
			Changed:  !rc.First && !SameValue(rc.Previous, rc.Current),
		}
	}
	return batch
}

// Get returns the change recorded for field and whether it was reported.
func (b ChangeBatch) Get(field string) (FieldChange, bool) {
	c, ok := b[field]
	return c, ok
}

// Has reports whether field was reported in this cycle.
func (b ChangeBatch) Has(field string) bool {
	_, ok := b[field]
	return ok
}

// AnyChanged reports whether at least one field changed.
func (b ChangeBatch) AnyChanged() bool {
	for _, c := range b {
		if c.Changed {
			return true
		}
	}
	return false
}

// Changed returns the names of changed fields, sorted.
func (b ChangeBatch) Changed() []string {
	fields := make([]string, 0, len(b))
	for field, c := range b {
		if c.Changed {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	return fields
}

// Fields returns the names of every reported field, sorted.
func (b ChangeBatch) Fields() []string {
	fields := make([]string, 0, len(b))
	for field := range b {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// SameValue reports whether a and b are the same value by identity.
//
// Reference kinds (pointers, maps, channels, functions) are the same only
// when they share an address; slices additionally need the same length.
// Floats follow same-value rules: NaN is the same as NaN, +0 and -0 differ.
// Other comparable values use ==. Values that cannot be compared without a
// deep walk are never the same: structurally equal but distinct values count
// as a change.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()

	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()

	case reflect.Float32, reflect.Float64:
		fa, fb := va.Float(), vb.Float()
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb && math.Signbit(fa) == math.Signbit(fb)
	}

	if !va.Type().Comparable() || !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}
