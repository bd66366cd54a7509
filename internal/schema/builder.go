package schema

import (
	"errors"
	"fmt"
)

// Builder errors
var (
	ErrEmptyName        = errors.New("schema name cannot be empty")
	ErrUnknownType      = errors.New("schema uses an unknown type")
	ErrOverloadSetTwice = errors.New("overload specified both in the name and via Overload")
)

// Builder provides a fluent API for constructing schemas. Validation is
// deferred to Build.
type Builder struct {
	name     string
	overload string
	args     []Argument
	returns  []Argument
	vararg   bool
	varret   bool
	alias    AliasAnalysis
}

// NewBuilder starts a schema for the given operator name. The name may
// be qualified (`ns::name.overload`); it is parsed at Build time.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Overload sets the overload name.
func (b *Builder) Overload(o string) *Builder {
	b.overload = o
	return b
}

// Arg appends a named argument slot.
func (b *Builder) Arg(name string, t Type) *Builder {
	b.args = append(b.args, Argument{Name: name, Type: t})
	return b
}

// Ret appends an unnamed return slot.
func (b *Builder) Ret(t Type) *Builder {
	b.returns = append(b.returns, Argument{Type: t})
	return b
}

// Vararg marks the schema as accepting trailing arguments.
func (b *Builder) Vararg() *Builder {
	b.vararg = true
	return b
}

// Varret marks the schema as producing trailing returns.
func (b *Builder) Varret() *Builder {
	b.varret = true
	return b
}

// AliasAnalysis sets the alias analysis mode.
func (b *Builder) AliasAnalysis(a AliasAnalysis) *Builder {
	b.alias = a
	return b
}

// Build parses the name, validates every slot type, and constructs the
// schema.
func (b *Builder) Build() (*Schema, error) {
	if b.name == "" {
		return nil, ErrEmptyName
	}
	name, err := ParseName(b.name)
	if err != nil {
		return nil, err
	}
	if b.overload != "" {
		if name.Overload != "" {
			return nil, fmt.Errorf("%w: %q and %q", ErrOverloadSetTwice, name.Overload, b.overload)
		}
		name.Overload = b.overload
	}

	for _, slot := range append(append([]Argument{}, b.args...), b.returns...) {
		if _, ok := validTypes[slot.Type]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, slot.Type)
		}
	}

	return &Schema{
		name:    name,
		args:    b.args,
		returns: b.returns,
		vararg:  b.vararg,
		varret:  b.varret,
		alias:   b.alias,
	}, nil
}
