// Package text provides the builtin string kernels. Importing the
// package registers them in the catalog under "text.*" names.
package text

import (
	"fmt"
	"strings"

	"github.com/renholm/switchboard/internal/catalog"
	"github.com/renholm/switchboard/internal/kernel"
)

func init() {
	register("text.concat", func() *kernel.Kernel {
		return kernel.MustFromFunc(Concat)
	})
	register("text.upper", func() *kernel.Kernel {
		return kernel.MustFromFunc(Upper)
	})
	register("text.lower", func() *kernel.Kernel {
		return kernel.MustFromFunc(Lower)
	})
	register("text.trim", func() *kernel.Kernel {
		return kernel.MustFromFunc(Trim)
	})
	register("text.repeat", func() *kernel.Kernel {
		return kernel.MustFromFunc(Repeat)
	})
	register("text.contains", func() *kernel.Kernel {
		return kernel.MustFromFunc(Contains)
	})
	register("text.length", func() *kernel.Kernel {
		return kernel.MustFromFunc(Length)
	})
	register("text.reverse", func() *kernel.Kernel {
		return kernel.MustFromFunc(Reverse)
	})
}

func register(name string, factory catalog.Factory) {
	catalog.Register(name, func() *kernel.Kernel {
		return factory().WithDebug("builtin " + name)
	})
}

// Concat joins its arguments into one string.
func Concat(xs ...string) string {
	return strings.Join(xs, "")
}

// Upper returns s with all letters upper-cased.
func Upper(s string) string { return strings.ToUpper(s) }

// Lower returns s with all letters lower-cased.
func Lower(s string) string { return strings.ToLower(s) }

// Trim returns s with leading and trailing whitespace removed.
func Trim(s string) string { return strings.TrimSpace(s) }

// Repeat returns s repeated n times.
func Repeat(s string, n int64) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("repeat count cannot be negative, got %d", n)
	}
	return strings.Repeat(s, int(n)), nil
}

// Contains reports whether sub is within s.
func Contains(s, sub string) bool { return strings.Contains(s, sub) }

// Length returns the number of runes in s.
func Length(s string) int64 { return int64(len([]rune(s))) }

// Reverse returns s with its runes in reverse order.
func Reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
