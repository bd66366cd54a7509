package dispatcher

import (
	"context"
	"fmt"

	"github.com/renholm/switchboard/internal/cachemanager"
	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/log"
	"github.com/renholm/switchboard/internal/schema"
)

var (
	// ErrOperatorNotFound indicates the operator has neither a schema nor
	// any kernels.
	ErrOperatorNotFound = fmt.Errorf("operator not found")

	// ErrKernelNotFound indicates no kernel, catch-all, or fallback serves
	// the requested dispatch key.
	ErrKernelNotFound = fmt.Errorf("no kernel available for dispatch key")

	// ErrNoDefinition indicates the operator has kernels but no committed
	// schema, so it cannot be called.
	ErrNoDefinition = fmt.Errorf("operator has no committed definition")
)

// Resolution is the outcome of a kernel lookup. Key reports the slot that
// actually served the request, which is the catch-all key when the
// operator had no kernel for the requested one. Resolutions contain no
// schema state, so definition changes never invalidate them.
type Resolution struct {
	Operator schema.OperatorName
	Key      dispatch.Key
	Fallback bool
	Debug    string

	fn func(ctx context.Context, args []any) ([]any, error)
}

// Call invokes the resolved kernel.
func (r Resolution) Call(ctx context.Context, args []any) ([]any, error) {
	if r.fn == nil {
		return nil, fmt.Errorf("resolution carries no callable")
	}
	return r.fn(ctx, args)
}

// Lookup resolves the kernel serving (name, key). Precedence is the
// operator's own kernel for key, then its catch-all kernel, then the
// key-wide fallback.
func (d *Dispatcher) Lookup(name schema.OperatorName, key dispatch.Key) (Resolution, error) {
	ck := cacheKey(name, key)
	if d.cache != nil {
		if r, ok := d.cache.Get(context.Background(), ck); ok {
			return r, nil
		}
	}

	d.mu.RLock()
	r, err := d.resolveLocked(name, key)
	if err != nil {
		d.mu.RUnlock()
		return Resolution{}, err
	}
	// The fill happens while the table lock is still held. A mutation
	// cannot interleave between resolve and fill, so invalidation under
	// the write lock is always observed.
	if d.cache != nil {
		d.cache.Set(context.Background(), ck, r, cachemanager.DefaultExpiration)
	}
	d.mu.RUnlock()
	return r, nil
}

func (d *Dispatcher) resolveLocked(name schema.OperatorName, key dispatch.Key) (Resolution, error) {
	e, ok := d.operators[name]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	if ke, ok := e.kernels[key]; ok {
		return Resolution{Operator: name, Key: key, Debug: ke.debug, fn: ke.fn}, nil
	}
	if ke, ok := e.kernels[dispatch.CatchAll]; ok {
		return Resolution{Operator: name, Key: dispatch.CatchAll, Debug: ke.debug, fn: ke.fn}, nil
	}
	if fb, ok := d.fallbacks[key]; ok {
		return Resolution{Operator: name, Key: key, Fallback: true, Debug: fb.debug, fn: fb.fn}, nil
	}
	return Resolution{}, fmt.Errorf("%w: operator %s, key %s", ErrKernelNotFound, name, key)
}

// Call validates args against the operator's schema, resolves a kernel
// for key, and invokes it. Operators without a committed definition are
// not callable even when kernels exist.
func (d *Dispatcher) Call(ctx context.Context, name schema.OperatorName, key dispatch.Key, args []any) ([]any, error) {
	d.mu.RLock()
	e, ok := d.operators[name]
	var s *schema.Schema
	if ok {
		s = e.schema
	}
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDefinition, name)
	}
	if s.IsVararg() {
		if len(args) < len(s.Args()) {
			return nil, fmt.Errorf("operator %s expects at least %d arguments, got %d", name, len(s.Args()), len(args))
		}
	} else if len(args) != len(s.Args()) {
		return nil, fmt.Errorf("operator %s expects %d arguments, got %d", name, len(s.Args()), len(args))
	}

	r, err := d.Lookup(name, key)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatDispatch, "dispatching call",
		"operator", name.String(), "requested", key.String(), "resolved", r.Key.String(), "fallback", r.Fallback)
	return r.fn(ctx, args)
}

func cacheKey(name schema.OperatorName, key dispatch.Key) string {
	return name.String() + "|" + key.String()
}

// invalidateOperator drops every cached resolution for name. Kernel
// mutations on one operator cannot change another operator's resolution,
// so targeted deletion is enough.
func (d *Dispatcher) invalidateOperator(name schema.OperatorName) {
	if d.cache == nil {
		return
	}
	keys := make([]string, 0, len(dispatch.Keys())+1)
	keys = append(keys, cacheKey(name, dispatch.CatchAll))
	for _, k := range dispatch.Keys() {
		keys = append(keys, cacheKey(name, k))
	}
	if err := d.cache.Delete(context.Background(), keys...); err != nil {
		log.Warn(log.CatDispatch, "cache invalidation failed", "operator", name.String(), "error", err)
	}
}

// flushCache clears all cached resolutions. Fallback mutations can change
// the resolution of any operator, so nothing narrower is safe.
func (d *Dispatcher) flushCache() {
	if d.cache == nil {
		return
	}
	if err := d.cache.Flush(context.Background()); err != nil {
		log.Warn(log.CatDispatch, "cache flush failed", "error", err)
	}
}
