// Package kernel wraps backend implementations for registration: a boxed
// callable plus the metadata registrations need (an inferred schema
// fragment, an optional dispatch key, debug text).
package kernel

import (
	"context"
	"fmt"

	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/schema"
)

// Func is the boxed calling convention every kernel is invoked through.
type Func func(ctx context.Context, args []any) ([]any, error)

// Kernel pairs a callable with an optional schema fragment inferred from
// the callable's own signature, an optional dispatch key override, and
// free-form debug text. A Kernel is exclusively owned by the registration
// that consumes it.
type Kernel struct {
	fn       Func
	inferred *schema.Schema
	key      dispatch.Key
	debug    string
}

// New wraps an already-boxed callable. Nothing is inferable from the
// boxed form, so registrations using it must supply an explicit schema.
func New(fn Func) *Kernel {
	return &Kernel{fn: fn}
}

// FromFunc wraps a strongly-typed Go function, boxing it and inferring a
// schema fragment from its signature. See the inference rules on
// inferFragment.
func FromFunc(fn any) (*Kernel, error) {
	boxed, fragment, err := box(fn)
	if err != nil {
		return nil, err
	}
	return &Kernel{fn: boxed, inferred: fragment}, nil
}

// MustFromFunc is FromFunc that panics on error, for init-time catalog
// registration.
func MustFromFunc(fn any) *Kernel {
	k, err := FromFunc(fn)
	if err != nil {
		panic(fmt.Sprintf("kernel: %v", err))
	}
	return k
}

// WithKey restricts the kernel to the given dispatch key.
func (k *Kernel) WithKey(key dispatch.Key) *Kernel {
	k.key = key
	return k
}

// WithDebug attaches provenance text surfaced in diagnostics and the
// registration journal.
func (k *Kernel) WithDebug(debug string) *Kernel {
	k.debug = debug
	return k
}

// Key returns the dispatch key override, CatchAll when unset.
func (k *Kernel) Key() dispatch.Key {
	return k.key
}

// Debug returns the provenance text.
func (k *Kernel) Debug() string {
	return k.debug
}

// Inferred returns the schema fragment derived from the callable's
// signature, nil when nothing was inferable.
func (k *Kernel) Inferred() *schema.Schema {
	return k.inferred
}

// Callable returns the boxed callable.
func (k *Kernel) Callable() Func {
	return k.fn
}

// Call invokes the kernel.
func (k *Kernel) Call(ctx context.Context, args []any) ([]any, error) {
	return k.fn(ctx, args)
}
