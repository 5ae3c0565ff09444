package ripple

import (
	"fmt"
	"strings"

	"github.com/juju/collections/set"
)

// keySeparator joins field names inside a GroupKey. Field names containing
// it are rejected so two different field sets never share a key.
const keySeparator = "\x1f"

// GroupKey is the canonical identifier of a field set: the distinct field
// names sorted and joined. Declaration order and duplicates do not matter.
type GroupKey string

// Fields returns the field names encoded in the key, sorted.
func (k GroupKey) Fields() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), keySeparator)
}

// String renders the key for humans, e.g. "name,surname".
func (k GroupKey) String() string {
	return strings.Join(k.Fields(), ",")
}

// NewGroupKey builds the GroupKey for a list of field names.
func NewGroupKey(fields ...string) (GroupKey, error) {
	fs, err := newFieldSet(fields)
	if err != nil {
		return "", err
	}
	return keyOf(fs), nil
}

// newFieldSet validates field names and collapses duplicates.
func newFieldSet(fields []string) (set.Strings, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyGroup
	}
	fs := set.NewStrings()
	for _, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidField)
		}
		if strings.Contains(f, keySeparator) {
			return nil, fmt.Errorf("%w: %q contains a reserved character", ErrInvalidField, f)
		}
		fs.Add(f)
	}
	return fs, nil
}

func keyOf(fs set.Strings) GroupKey {
	return GroupKey(strings.Join(fs.SortedValues(), keySeparator))
}
