// Package dispatch defines the dispatch key vocabulary used to select
// which kernel implementation services an operator for a given execution
// context (device/backend).
package dispatch

import (
	"fmt"
	"strings"
)

// Key identifies a backend or execution context. The zero value CatchAll
// is the sentinel "no specific key": a kernel registered under CatchAll
// applies regardless of backend, and a catch-all key on a session or
// kernel is normalized to "absent".
type Key int

const (
	CatchAll Key = iota
	CPU
	CUDA
	Metal
	Vulkan
	WebGPU
	Autograd
)

// Keys returns every specific dispatch key in declaration order.
// CatchAll is not a specific key and is excluded.
func Keys() []Key {
	return []Key{CPU, CUDA, Metal, Vulkan, WebGPU, Autograd}
}

// IsCatchAll reports whether k is the catch-all sentinel.
func (k Key) IsCatchAll() bool {
	return k == CatchAll
}

func (k Key) String() string {
	switch k {
	case CatchAll:
		return "catchall"
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	case Metal:
		return "metal"
	case Vulkan:
		return "vulkan"
	case WebGPU:
		return "webgpu"
	case Autograd:
		return "autograd"
	default:
		return fmt.Sprintf("key(%d)", int(k))
	}
}

// ParseKey parses a textual dispatch key, case-insensitively.
// The empty string parses to CatchAll, matching manifests that omit
// the key field.
func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "catchall":
		return CatchAll, nil
	case "cpu":
		return CPU, nil
	case "cuda":
		return CUDA, nil
	case "metal":
		return Metal, nil
	case "vulkan":
		return Vulkan, nil
	case "webgpu":
		return WebGPU, nil
	case "autograd":
		return Autograd, nil
	}
	return CatchAll, fmt.Errorf("unknown dispatch key %q", s)
}
