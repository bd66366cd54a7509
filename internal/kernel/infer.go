package kernel

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/renholm/switchboard/internal/schema"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
	anyType = reflect.TypeOf((*any)(nil)).Elem()
)

// slotType maps a Go type onto the schema type vocabulary.
func slotType(t reflect.Type) (schema.Type, bool) {
	switch t.Kind() {
	case reflect.Float64:
		return schema.TypeFloat, true
	case reflect.Int, reflect.Int64:
		return schema.TypeInt, true
	case reflect.Bool:
		return schema.TypeBool, true
	case reflect.String:
		return schema.TypeString, true
	case reflect.Slice:
		switch t.Elem().Kind() {
		case reflect.Uint8:
			return schema.TypeBytes, true
		case reflect.Float64:
			return schema.TypeFloatList, true
		case reflect.Int, reflect.Int64:
			return schema.TypeIntList, true
		}
	case reflect.Interface:
		if t == anyType {
			return schema.TypeAny, true
		}
	}
	return "", false
}

// inferFragment derives a nameless schema fragment from a function type.
// Rules: an optional leading context.Context parameter and an optional
// trailing error result are calling-convention details, not slots; a
// variadic final parameter sets the vararg flag; every remaining
// parameter and result must map onto the schema type vocabulary.
func inferFragment(t reflect.Type, start int, hasErr bool) (*schema.Schema, error) {
	var args []schema.Argument
	vararg := false

	for i := start; i < t.NumIn(); i++ {
		if t.IsVariadic() && i == t.NumIn()-1 {
			if _, ok := slotType(t.In(i).Elem()); !ok {
				return nil, fmt.Errorf("cannot infer schema: unsupported variadic type %s", t.In(i))
			}
			vararg = true
			break
		}
		st, ok := slotType(t.In(i))
		if !ok {
			return nil, fmt.Errorf("cannot infer schema: unsupported argument type %s", t.In(i))
		}
		args = append(args, schema.Argument{Type: st})
	}

	numOut := t.NumOut()
	if hasErr {
		numOut--
	}
	var returns []schema.Argument
	for i := 0; i < numOut; i++ {
		st, ok := slotType(t.Out(i))
		if !ok {
			return nil, fmt.Errorf("cannot infer schema: unsupported return type %s", t.Out(i))
		}
		returns = append(returns, schema.Argument{Type: st})
	}

	return schema.NewFragment(args, returns, vararg, false), nil
}

// box adapts a strongly-typed function onto the boxed Func convention,
// returning the adapter together with the inferred fragment.
func box(fn any) (Func, *schema.Schema, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("kernel must be a function, got %T", fn)
	}
	t := v.Type()

	start := 0
	if t.NumIn() > 0 && t.In(0) == ctxType {
		start = 1
	}
	hasErr := t.NumOut() > 0 && t.Out(t.NumOut()-1) == errType

	fragment, err := inferFragment(t, start, hasErr)
	if err != nil {
		return nil, nil, err
	}

	fixed := t.NumIn() - start
	if t.IsVariadic() {
		fixed--
	}

	boxed := func(ctx context.Context, args []any) ([]any, error) {
		if ctx == nil {
			ctx = context.Background()
		}
		if t.IsVariadic() {
			if len(args) < fixed {
				return nil, fmt.Errorf("kernel expects at least %d arguments, got %d", fixed, len(args))
			}
		} else if len(args) != fixed {
			return nil, fmt.Errorf("kernel expects %d arguments, got %d", fixed, len(args))
		}

		in := make([]reflect.Value, 0, start+len(args))
		if start == 1 {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, arg := range args {
			var want reflect.Type
			if idx := start + i; !t.IsVariadic() || idx < t.NumIn()-1 {
				want = t.In(idx)
			} else {
				want = t.In(t.NumIn() - 1).Elem()
			}
			av, err := conform(arg, want)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			in = append(in, av)
		}

		out := v.Call(in)

		if hasErr {
			last := out[len(out)-1]
			if !last.IsNil() {
				return nil, last.Interface().(error)
			}
			out = out[:len(out)-1]
		}
		results := make([]any, len(out))
		for i, o := range out {
			results[i] = o.Interface()
		}
		return results, nil
	}

	return boxed, fragment, nil
}

// conform coerces one boxed argument onto the parameter type the
// underlying function expects. Numeric conversions are permitted so JSON
// inputs (which decode numbers as float64) can call int-typed kernels,
// but only when the value is integral.
func conform(arg any, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch want.Kind() {
		case reflect.Interface, reflect.Slice:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("nil value for %s parameter", want)
	}

	av := reflect.ValueOf(arg)
	if av.Type() == want {
		return av, nil
	}
	if want.Kind() == reflect.Interface && av.Type().Implements(want) {
		return av, nil
	}
	if av.Kind() == reflect.Float64 && isIntKind(want.Kind()) {
		f := av.Float()
		if f != math.Trunc(f) {
			return reflect.Value{}, fmt.Errorf("non-integral value %v for %s parameter", f, want)
		}
		return av.Convert(want), nil
	}
	if want.Kind() == reflect.Slice && av.Kind() == reflect.Slice {
		out := reflect.MakeSlice(want, av.Len(), av.Len())
		for i := 0; i < av.Len(); i++ {
			ev, err := conform(av.Index(i).Interface(), want.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	}
	if av.Type().ConvertibleTo(want) {
		// An integer converts to string as a rune cast, never what a
		// caller means.
		if want.Kind() == reflect.String && (av.CanInt() || av.CanUint()) {
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, want)
		}
		return av.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, want)
}

func isIntKind(k reflect.Kind) bool {
	return k == reflect.Int || k == reflect.Int64
}
