// Package schema defines operator names and schema descriptors: the
// identity and type/arity/alias metadata an operator is registered under.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Wildcard is the namespace sentinel meaning "unspecified". It is
// normalized to an absent namespace wherever names are parsed.
const Wildcard = "_"

// Name errors
var (
	ErrInvalidName = errors.New("invalid operator name")
)

// OperatorName identifies an operator by (namespace, name, overload).
// Equality and registry uniqueness are over the full triple. An empty
// namespace means "not yet resolved"; it must be filled in before a
// registration commits.
type OperatorName struct {
	Namespace string
	Name      string
	Overload  string
}

// ParseName parses `namespace::name.overload` into an OperatorName.
// The namespace and overload parts are optional; the wildcard namespace
// `_` normalizes to absent. Empty segments and repeated separators are
// syntax errors.
func ParseName(text string) (OperatorName, error) {
	var n OperatorName

	rest := text
	if idx := strings.Index(rest, "::"); idx >= 0 {
		ns := rest[:idx]
		rest = rest[idx+2:]
		if ns == "" {
			return n, fmt.Errorf("%w %q: empty namespace segment", ErrInvalidName, text)
		}
		if strings.Contains(rest, "::") {
			return n, fmt.Errorf("%w %q: more than one namespace separator", ErrInvalidName, text)
		}
		if ns != Wildcard {
			n.Namespace = ns
		}
	}

	if idx := strings.Index(rest, "."); idx >= 0 {
		overload := rest[idx+1:]
		rest = rest[:idx]
		if overload == "" {
			return n, fmt.Errorf("%w %q: empty overload segment", ErrInvalidName, text)
		}
		if strings.Contains(overload, ".") {
			return n, fmt.Errorf("%w %q: more than one overload separator", ErrInvalidName, text)
		}
		n.Overload = overload
	}

	if rest == "" {
		return n, fmt.Errorf("%w %q: empty operator name", ErrInvalidName, text)
	}
	n.Name = rest

	return n, nil
}

// SetNamespaceIfNotSet fills in the namespace when absent. It reports
// whether this call set it; a name that already carries a namespace is
// left unchanged.
func (n *OperatorName) SetNamespaceIfNotSet(ns string) bool {
	if n.Namespace != "" {
		return false
	}
	n.Namespace = ns
	return true
}

func (n OperatorName) String() string {
	var b strings.Builder
	if n.Namespace != "" {
		b.WriteString(n.Namespace)
		b.WriteString("::")
	}
	b.WriteString(n.Name)
	if n.Overload != "" {
		b.WriteString(".")
		b.WriteString(n.Overload)
	}
	return b.String()
}
