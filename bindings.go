package ripple

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance.
var validate = validator.New()

// Bindings is a declarative description of field groups, resolved against
// a Catalog of named handlers and validators.
//
//	groups:
//	  - fields: [name, surname]
//	    handler: fullName
//	    validator: nonEmpty
type Bindings struct {
	Groups []BindingGroup `json:"groups" yaml:"groups" validate:"dive"`
}

// BindingGroup binds a field set to a named handler and optional validator.
type BindingGroup struct {
	Fields    []string `json:"fields" yaml:"fields" validate:"required,min=1,dive,required"`
	Handler   string   `json:"handler" yaml:"handler" validate:"required"`
	Validator string   `json:"validator,omitempty" yaml:"validator,omitempty"`
}

// Validate checks the document structure. Names are checked later against
// a Catalog.
func (b Bindings) Validate() error {
	return validate.Struct(b)
}

// DecodeBindings decodes and validates a bindings document.
func DecodeBindings(codec Codec, data []byte) (Bindings, error) {
	var b Bindings
	if err := codec.Unmarshal(data, &b); err != nil {
		return Bindings{}, fmt.Errorf("decode bindings: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Bindings{}, fmt.Errorf("invalid bindings: %w", err)
	}
	return b, nil
}

// Catalog names the handlers and validators a bindings document may use.
type Catalog[H any] struct {
	Handlers   map[string]HandlerFunc[H]
	Validators map[string]ValidatorFunc[H]
}

// Resolve turns bindings into Groups. Handlers resolved by name keep one
// identity per name, so groups naming the same handler aggregate their
// validators onto a single invocation.
func (c Catalog[H]) Resolve(b Bindings) (Groups[H], error) {
	groups := make(Groups[H], 0, len(b.Groups))
	for i, bg := range b.Groups {
		handle, ok := c.Handlers[bg.Handler]
		if !ok || handle == nil {
			return nil, fmt.Errorf("group %d: %w: %q", i, ErrUnknownHandler, bg.Handler)
		}

		var check ValidatorFunc[H]
		if bg.Validator != "" {
			check, ok = c.Validators[bg.Validator]
			if !ok || check == nil {
				return nil, fmt.Errorf("group %d: %w: %q", i, ErrUnknownValidator, bg.Validator)
			}
		}

		groups = append(groups, Group[H]{
			Fields:   bg.Fields,
			Callback: namedCallback[H]{name: bg.Handler, cb: Callback[H]{Handle: handle}},
			Validate: check,
		})
	}
	return groups, nil
}
