package ripple

import (
	"sort"

	"github.com/juju/collections/set"
)

// Registry is the canonical, immutable form of a set of declarations.
// It is built once per Configure call and swapped as a unit, so a cycle
// always sees one complete registry.
type Registry[H any] struct {
	groupFields  map[GroupKey]set.Strings
	groupHandler map[GroupKey]entry[H]
	order        []GroupKey
	position     map[GroupKey]int
	index        map[string][]GroupKey
}

// NewRegistry normalizes declarations into a Registry. A nil decls yields an
// empty registry. Malformed declarations fail here, never during dispatch.
func NewRegistry[H any](decls Declarations[H]) (*Registry[H], error) {
	r := emptyRegistry[H]()
	if decls == nil {
		return r, nil
	}

	entries, err := decls.entries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		r.insert(e)
	}
	r.reindex()
	return r, nil
}

func emptyRegistry[H any]() *Registry[H] {
	return &Registry[H]{
		groupFields:  make(map[GroupKey]set.Strings),
		groupHandler: make(map[GroupKey]entry[H]),
		position:     make(map[GroupKey]int),
		index:        make(map[string][]GroupKey),
	}
}

// insert adds or replaces the entry for its key. A replaced key keeps the
// position of its first registration.
func (r *Registry[H]) insert(e entry[H]) {
	if _, exists := r.position[e.key]; !exists {
		r.position[e.key] = len(r.order)
		r.order = append(r.order, e.key)
	}
	r.groupFields[e.key] = set.NewStrings(e.fields...)
	r.groupHandler[e.key] = e
}

func (r *Registry[H]) reindex() {
	r.index = make(map[string][]GroupKey)
	for _, key := range r.order {
		for _, f := range r.groupFields[key].SortedValues() {
			r.index[f] = append(r.index[f], key)
		}
	}
}

// Len returns the number of distinct groups.
func (r *Registry[H]) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Keys returns every group key in registration order.
func (r *Registry[H]) Keys() []GroupKey {
	if r == nil {
		return nil
	}
	keys := make([]GroupKey, len(r.order))
	copy(keys, r.order)
	return keys
}

// Fields returns the sorted fields of a group, or nil for an unknown key.
func (r *Registry[H]) Fields(key GroupKey) []string {
	if r == nil {
		return nil
	}
	fs, ok := r.groupFields[key]
	if !ok {
		return nil
	}
	return fs.SortedValues()
}

// Lookup returns the keys of every group watching field, in registration
// order.
func (r *Registry[H]) Lookup(field string) []GroupKey {
	if r == nil {
		return nil
	}
	keys := r.index[field]
	out := make([]GroupKey, len(keys))
	copy(out, keys)
	return out
}

// WatchedFields returns every field watched by at least one group, sorted.
func (r *Registry[H]) WatchedFields() []string {
	if r == nil {
		return nil
	}
	fields := make([]string, 0, len(r.index))
	for f := range r.index {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// HandlerCount returns the number of distinct handlers across all groups.
func (r *Registry[H]) HandlerCount() int {
	if r == nil {
		return 0
	}
	seen := make(map[any]struct{}, len(r.groupHandler))
	for _, e := range r.groupHandler {
		seen[e.id] = struct{}{}
	}
	return len(seen)
}
