// Package catalog holds the process-wide table of named kernel
// factories. Kernel packages register themselves in init, and manifests
// refer to kernels by catalog name, "arith.add" or "text.concat".
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/renholm/switchboard/internal/kernel"
)

// Factory produces a fresh kernel on every call. A kernel is consumed
// by the registration that binds it, so the catalog never hands out the
// same value twice.
type Factory func() *kernel.Kernel

// ErrUnknownKernel is returned when a catalog name is not registered.
var ErrUnknownKernel = errors.New("unknown kernel")

// kernelCatalog holds registered kernel factories. Registration happens
// in init functions of kernel packages, before any lookups run.
var kernelCatalog = make(map[string]Factory)

// Register adds a kernel factory under the given catalog name.
// It should be called in init() functions of kernel packages and panics
// on a duplicate name, which is always a programming error.
func Register(name string, factory Factory) {
	if name == "" {
		panic("catalog: kernel name cannot be empty")
	}
	if factory == nil {
		panic(fmt.Sprintf("catalog: nil factory for kernel %q", name))
	}
	if _, ok := kernelCatalog[name]; ok {
		panic(fmt.Sprintf("catalog: kernel %q registered twice", name))
	}
	kernelCatalog[name] = factory
}

// Lookup produces a fresh kernel for the given catalog name.
// Returns ErrUnknownKernel if the name is not registered.
func Lookup(name string) (*kernel.Kernel, error) {
	factory, ok := kernelCatalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKernel, name)
	}
	return factory(), nil
}

// Names returns all registered catalog names in lexical order.
func Names() []string {
	names := make([]string, 0, len(kernelCatalog))
	for name := range kernelCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered returns true if the given catalog name has been registered.
func IsRegistered(name string) bool {
	_, ok := kernelCatalog[name]
	return ok
}
