// Package arith provides the builtin arithmetic kernels. Importing the
// package registers them in the catalog under "arith.*" names.
package arith

import (
	"errors"
	"math"

	"github.com/renholm/switchboard/internal/catalog"
	"github.com/renholm/switchboard/internal/kernel"
)

// ErrDivisionByZero is returned by arith.div and arith.mod.
var ErrDivisionByZero = errors.New("division by zero")

func init() {
	register("arith.add", func() *kernel.Kernel {
		return kernel.MustFromFunc(Add)
	})
	register("arith.sub", func() *kernel.Kernel {
		return kernel.MustFromFunc(Sub)
	})
	register("arith.mul", func() *kernel.Kernel {
		return kernel.MustFromFunc(Mul)
	})
	register("arith.div", func() *kernel.Kernel {
		return kernel.MustFromFunc(Div)
	})
	register("arith.mod", func() *kernel.Kernel {
		return kernel.MustFromFunc(Mod)
	})
	register("arith.neg", func() *kernel.Kernel {
		return kernel.MustFromFunc(Neg)
	})
	register("arith.abs", func() *kernel.Kernel {
		return kernel.MustFromFunc(Abs)
	})
	register("arith.pow", func() *kernel.Kernel {
		return kernel.MustFromFunc(Pow)
	})
	register("arith.sum", func() *kernel.Kernel {
		return kernel.MustFromFunc(Sum)
	})
	register("arith.mean", func() *kernel.Kernel {
		return kernel.MustFromFunc(Mean)
	})
}

func register(name string, factory catalog.Factory) {
	catalog.Register(name, func() *kernel.Kernel {
		return factory().WithDebug("builtin " + name)
	})
}

// Add returns x + y.
func Add(x, y float64) float64 { return x + y }

// Sub returns x - y.
func Sub(x, y float64) float64 { return x - y }

// Mul returns x * y.
func Mul(x, y float64) float64 { return x * y }

// Div returns x / y, or ErrDivisionByZero when y is zero.
func Div(x, y float64) (float64, error) {
	if y == 0 {
		return 0, ErrDivisionByZero
	}
	return x / y, nil
}

// Mod returns the floating-point remainder of x / y.
func Mod(x, y float64) (float64, error) {
	if y == 0 {
		return 0, ErrDivisionByZero
	}
	return math.Mod(x, y), nil
}

// Neg returns -x.
func Neg(x float64) float64 { return -x }

// Abs returns the absolute value of x.
func Abs(x float64) float64 { return math.Abs(x) }

// Pow returns x raised to the power of y.
func Pow(x, y float64) float64 { return math.Pow(x, y) }

// Sum returns the sum of its arguments. Zero arguments sum to zero.
func Sum(xs ...float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

// Mean returns the arithmetic mean of xs.
func Mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, errors.New("mean of empty input")
	}
	return Sum(xs...) / float64(len(xs)), nil
}
