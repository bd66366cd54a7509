package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Type is the vocabulary of argument and return types a schema can
// describe. Values are the textual form used in manifests and rendered
// schemas.
type Type string

const (
	TypeFloat     Type = "float"
	TypeInt       Type = "int"
	TypeBool      Type = "bool"
	TypeString    Type = "string"
	TypeBytes     Type = "bytes"
	TypeFloatList Type = "float[]"
	TypeIntList   Type = "int[]"
	TypeAny       Type = "any"
)

var validTypes = map[Type]struct{}{
	TypeFloat:     {},
	TypeInt:       {},
	TypeBool:      {},
	TypeString:    {},
	TypeBytes:     {},
	TypeFloatList: {},
	TypeIntList:   {},
	TypeAny:       {},
}

// ParseType parses the textual form of a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validTypes[t]; !ok {
		return "", fmt.Errorf("unknown type %q", s)
	}
	return t, nil
}

// Argument is one argument or return slot: an optional name plus a type.
type Argument struct {
	Name string
	Type Type
}

func (a Argument) String() string {
	if a.Name == "" {
		return string(a.Type)
	}
	return fmt.Sprintf("%s %s", a.Type, a.Name)
}

// AliasAnalysis errors
var (
	ErrUnknownAliasAnalysis = errors.New("unknown alias analysis mode")
)

// AliasAnalysis describes how an operator's aliasing behavior is
// determined. The zero value is the conservative default.
type AliasAnalysis int

const (
	// AliasConservative assumes every input may alias every output.
	AliasConservative AliasAnalysis = iota
	// AliasFromSchema derives aliasing from annotations carried by the
	// schema itself. Incompatible with inferred schemas, which cannot
	// carry annotations.
	AliasFromSchema
	// AliasPure marks the operator as a pure function with no aliasing.
	AliasPure
)

func (a AliasAnalysis) String() string {
	switch a {
	case AliasConservative:
		return "conservative"
	case AliasFromSchema:
		return "from_schema"
	case AliasPure:
		return "pure"
	default:
		return fmt.Sprintf("alias(%d)", int(a))
	}
}

// ParseAliasAnalysis parses the textual form of an AliasAnalysis mode.
// The empty string parses to the conservative default.
func ParseAliasAnalysis(s string) (AliasAnalysis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "conservative":
		return AliasConservative, nil
	case "from_schema":
		return AliasFromSchema, nil
	case "pure":
		return AliasPure, nil
	}
	return AliasConservative, fmt.Errorf("%w: %q", ErrUnknownAliasAnalysis, s)
}
