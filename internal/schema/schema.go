package schema

import (
	"strings"
)

// Schema describes one operator: its name, argument and return shapes,
// variadic flags, and alias analysis mode. A Schema is treated as
// immutable once it has been committed to a registry; the mutators exist
// for the resolution steps that happen before commit (namespace
// injection, alias overrides).
type Schema struct {
	name    OperatorName
	args    []Argument
	returns []Argument
	vararg  bool
	varret  bool
	alias   AliasAnalysis
}

// NewFragment builds a nameless schema fragment carrying only shape
// information. Fragments are what signature inference produces; grafting
// a name onto one via CloneWithName yields a registrable schema.
func NewFragment(args, returns []Argument, vararg, varret bool) *Schema {
	return &Schema{
		args:    args,
		returns: returns,
		vararg:  vararg,
		varret:  varret,
	}
}

// Name returns the operator name.
func (s *Schema) Name() OperatorName {
	return s.name
}

// Namespace returns the embedded namespace, empty when absent.
func (s *Schema) Namespace() string {
	return s.name.Namespace
}

// SetNamespaceIfNotSet fills in the namespace when absent and reports
// whether this call set it.
func (s *Schema) SetNamespaceIfNotSet(ns string) bool {
	return s.name.SetNamespaceIfNotSet(ns)
}

// Args returns the argument slots.
func (s *Schema) Args() []Argument {
	return s.args
}

// Returns returns the return slots.
func (s *Schema) Returns() []Argument {
	return s.returns
}

// IsVararg reports whether the schema accepts trailing arguments beyond
// the declared slots.
func (s *Schema) IsVararg() bool {
	return s.vararg
}

// IsVarret reports whether the schema produces trailing returns beyond
// the declared slots.
func (s *Schema) IsVarret() bool {
	return s.varret
}

// AliasAnalysis returns the alias analysis mode.
func (s *Schema) AliasAnalysis() AliasAnalysis {
	return s.alias
}

// SetAliasAnalysis overrides the alias analysis mode.
func (s *Schema) SetAliasAnalysis(a AliasAnalysis) {
	s.alias = a
}

// CloneWithName copies the schema's shape under a substituted operator
// name. The alias analysis mode is carried over; callers that need a
// different mode set it on the clone.
func (s *Schema) CloneWithName(n OperatorName) *Schema {
	clone := &Schema{
		name:    n,
		args:    make([]Argument, len(s.args)),
		returns: make([]Argument, len(s.returns)),
		vararg:  s.vararg,
		varret:  s.varret,
		alias:   s.alias,
	}
	copy(clone.args, s.args)
	copy(clone.returns, s.returns)
	return clone
}

// EqualSignature reports whether two schemas describe the same shape:
// identical argument and return types, arity, and variadic flags.
// Argument names, operator names, and alias modes are ignored.
func (s *Schema) EqualSignature(other *Schema) bool {
	if other == nil {
		return false
	}
	if s.vararg != other.vararg || s.varret != other.varret {
		return false
	}
	if len(s.args) != len(other.args) || len(s.returns) != len(other.returns) {
		return false
	}
	for i := range s.args {
		if s.args[i].Type != other.args[i].Type {
			return false
		}
	}
	for i := range s.returns {
		if s.returns[i].Type != other.returns[i].Type {
			return false
		}
	}
	return true
}

// String renders the schema as `ns::name.overload(float x, float y) -> (float)`.
func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString(s.name.String())
	b.WriteString("(")
	writeSlots(&b, s.args, s.vararg)
	b.WriteString(") -> (")
	writeSlots(&b, s.returns, s.varret)
	b.WriteString(")")
	return b.String()
}

func writeSlots(b *strings.Builder, slots []Argument, variadic bool) {
	for i, slot := range slots {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(slot.String())
	}
	if variadic {
		if len(slots) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
}
