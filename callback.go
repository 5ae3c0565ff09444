package ripple

import (
	"context"
	"fmt"
	"sort"
)

// HandlerFunc is invoked when one of its groups triggers and every validator
// attached to it approves. It receives the host explicitly along with the
// full batch of the cycle, not only the fields of its group.
type HandlerFunc[H any] func(ctx context.Context, host H, batch ChangeBatch) error

// ValidatorFunc gates a handler. Returning false skips the handler for the
// current cycle without affecting any other handler.
type ValidatorFunc[H any] func(ctx context.Context, host H, batch ChangeBatch) bool

// Callback pairs a handler with an optional validator.
//
// Declaring a *Callback gives the handler an explicit identity: every group
// pointing at the same *Callback reaches the same handler. Any other
// declaration is its own handler, even when two of them wrap the same
// function.
type Callback[H any] struct {
	Handle   HandlerFunc[H]
	Validate ValidatorFunc[H]
}

// Declarations is a set of callback registrations in one of the accepted
// shapes: Watches or Groups.
type Declarations[H any] interface {
	entries() ([]entry[H], error)
}

// Watches declares one singleton group per field. Values are HandlerFunc,
// an equivalent func literal, Callback or *Callback.
//
// Map iteration is unordered, so entries register in lexicographic field
// order.
type Watches[H any] map[string]any

// Group declares a handler for a set of fields. The group triggers when any
// of its fields changed. Validate, when set, gates the handler whenever this
// group triggers, in addition to any validator carried by Callback.
type Group[H any] struct {
	Fields   []string
	Callback any
	Validate ValidatorFunc[H]
}

// Groups declares field groups in registration order. A later group with the
// same field set replaces an earlier one.
type Groups[H any] []Group[H]

// entry is the canonical form of every declaration.
type entry[H any] struct {
	key        GroupKey
	fields     []string
	id         any
	handle     HandlerFunc[H]
	validators []ValidatorFunc[H]
}

// declToken identifies a handler declared without a shared identity. It is
// not zero-sized so every allocation is distinct.
type declToken struct{ _ byte }

// catalogName identifies a handler resolved by name from a Catalog.
type catalogName string

// namedCallback is produced by Catalog resolution.
type namedCallback[H any] struct {
	name string
	cb   Callback[H]
}

func (w Watches[H]) entries() ([]entry[H], error) {
	fields := make([]string, 0, len(w))
	for f := range w {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]entry[H], 0, len(fields))
	for _, f := range fields {
		e, err := newEntry[H]([]string{f}, w[f], nil)
		if err != nil {
			return nil, fmt.Errorf("watch %q: %w", f, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (g Groups[H]) entries() ([]entry[H], error) {
	out := make([]entry[H], 0, len(g))
	for i, grp := range g {
		e, err := newEntry[H](grp.Fields, grp.Callback, grp.Validate)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func newEntry[H any](fields []string, decl any, check ValidatorFunc[H]) (entry[H], error) {
	fs, err := newFieldSet(fields)
	if err != nil {
		return entry[H]{}, err
	}
	id, cb, err := normalizeCallback[H](decl)
	if err != nil {
		return entry[H]{}, err
	}
	e := entry[H]{
		key:    keyOf(fs),
		fields: fs.SortedValues(),
		id:     id,
		handle: cb.Handle,
	}
	for _, v := range []ValidatorFunc[H]{cb.Validate, check} {
		if v != nil {
			e.validators = append(e.validators, v)
		}
	}
	return e, nil
}

// normalizeCallback accepts every supported declaration shape and returns
// the handler identity with the handler/validator pair.
func normalizeCallback[H any](decl any) (any, Callback[H], error) {
	switch v := decl.(type) {
	case HandlerFunc[H]:
		if v == nil {
			return nil, Callback[H]{}, fmt.Errorf("%w: nil handler", ErrMalformedCallback)
		}
		return new(declToken), Callback[H]{Handle: v}, nil

	case func(context.Context, H, ChangeBatch) error:
		if v == nil {
			return nil, Callback[H]{}, fmt.Errorf("%w: nil handler", ErrMalformedCallback)
		}
		return new(declToken), Callback[H]{Handle: v}, nil

	case Callback[H]:
		if v.Handle == nil {
			return nil, Callback[H]{}, fmt.Errorf("%w: callback without handler", ErrMalformedCallback)
		}
		return new(declToken), v, nil

	case *Callback[H]:
		if v == nil || v.Handle == nil {
			return nil, Callback[H]{}, fmt.Errorf("%w: callback without handler", ErrMalformedCallback)
		}
		return v, *v, nil

	case namedCallback[H]:
		if v.cb.Handle == nil {
			return nil, Callback[H]{}, fmt.Errorf("%w: handler %q is nil", ErrMalformedCallback, v.name)
		}
		return catalogName(v.name), v.cb, nil

	default:
		return nil, Callback[H]{}, fmt.Errorf("%w: unsupported type %T", ErrMalformedCallback, decl)
	}
}
