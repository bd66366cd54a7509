// Package dispatcher owns the operator table. It maps operator names to
// schemas and per-key kernels, holds key-wide fallbacks, and reserves
// namespaces for definition blocks. Every successful registration returns
// a Handle that undoes exactly that registration when released.
//
// Sessions and registrars talk to the table through the Registry
// interface; the rest of the program reads it through Lookup, Call, and
// Snapshot.
package dispatcher

import (
	"errors"
	"fmt"
	"sync"

	"github.com/renholm/switchboard/internal/cachemanager"
	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/kernel"
	"github.com/renholm/switchboard/internal/log"
	"github.com/renholm/switchboard/internal/schema"
)

var (
	// ErrNamespaceReserved indicates a second definition block tried to
	// claim a namespace that is already held.
	ErrNamespaceReserved = errors.New("namespace already reserved by another definition block")

	// ErrDuplicateDef indicates an operator already has a committed schema.
	ErrDuplicateDef = errors.New("operator already defined")

	// ErrDuplicateKernel indicates the (operator, dispatch key) slot is taken.
	ErrDuplicateKernel = errors.New("kernel already registered for dispatch key")

	// ErrDuplicateFallback indicates the dispatch key already has a fallback.
	ErrDuplicateFallback = errors.New("fallback already registered for dispatch key")

	// ErrSchemaMismatch indicates a declared schema and an inferred kernel
	// signature disagree on the same operator.
	ErrSchemaMismatch = errors.New("kernel signature does not match operator schema")

	// ErrEmptyNamespace indicates a reservation without a concrete namespace.
	ErrEmptyNamespace = errors.New("namespace cannot be empty")

	// ErrNilSchema indicates a definition without a schema.
	ErrNilSchema = errors.New("schema cannot be nil")

	// ErrNilKernel indicates an implementation without a callable.
	ErrNilKernel = errors.New("kernel callable cannot be nil")

	// ErrInvalidFallbackKey indicates a fallback aimed at the catch-all slot.
	ErrInvalidFallbackKey = errors.New("fallback requires a specific dispatch key")
)

// Registry is the narrow write surface sessions and registrars depend on.
// The concrete Dispatcher implements it; tests may substitute fakes built
// from NewHandle.
type Registry interface {
	// ReserveNamespace claims ns for a single definition block.
	ReserveNamespace(ns, debug string) (*Handle, error)

	// RegisterDef commits an operator schema.
	RegisterDef(s *schema.Schema, debug string) (*Handle, error)

	// RegisterImpl commits a kernel for one (operator, key) slot. inferred
	// may be nil when the kernel carries no inferable signature.
	RegisterImpl(name schema.OperatorName, key dispatch.Key, fn kernel.Func, inferred *schema.Schema, debug string) (*Handle, error)

	// RegisterFallback commits a key-wide fallback kernel.
	RegisterFallback(key dispatch.Key, fn kernel.Func, debug string) (*Handle, error)
}

type namespaceEntry struct {
	id    RegistrationID
	debug string
}

type kernelEntry struct {
	id       RegistrationID
	fn       kernel.Func
	inferred *schema.Schema
	debug    string
}

type fallbackEntry struct {
	id    RegistrationID
	fn    kernel.Func
	debug string
}

// operatorEntry is the per-operator slice of the table. An entry may
// exist without a schema when implementations arrive before the
// definition; it is dropped again once schema and kernels are all gone.
type operatorEntry struct {
	schema      *schema.Schema
	schemaID    RegistrationID
	schemaDebug string
	kernels     map[dispatch.Key]kernelEntry
}

// Dispatcher is the concrete operator table.
type Dispatcher struct {
	mu         sync.RWMutex
	operators  map[schema.OperatorName]*operatorEntry
	namespaces map[string]namespaceEntry
	fallbacks  map[dispatch.Key]fallbackEntry

	listeners    map[int]Listener
	nextListener int

	cache cachemanager.CacheManager[string, Resolution]
}

var _ Registry = (*Dispatcher)(nil)

// New creates a dispatcher with the default in-memory resolution cache.
func New() *Dispatcher {
	return NewWithCache(cachemanager.NewInMemoryCacheManager[string, Resolution](
		"dispatch", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval))
}

// NewWithCache creates a dispatcher using the given resolution cache.
// A nil cache disables resolution caching entirely.
func NewWithCache(cache cachemanager.CacheManager[string, Resolution]) *Dispatcher {
	return &Dispatcher{
		operators:  make(map[schema.OperatorName]*operatorEntry),
		namespaces: make(map[string]namespaceEntry),
		fallbacks:  make(map[dispatch.Key]fallbackEntry),
		listeners:  make(map[int]Listener),
		cache:      cache,
	}
}

// ReserveNamespace claims ns for one definition block. The reservation is
// undone when the returned handle is released.
func (d *Dispatcher) ReserveNamespace(ns, debug string) (*Handle, error) {
	if ns == "" || ns == schema.Wildcard {
		return nil, ErrEmptyNamespace
	}

	d.mu.Lock()
	if existing, ok := d.namespaces[ns]; ok {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %q is held by the block %s", ErrNamespaceReserved, ns, existing.debug)
	}
	id := newRegistrationID()
	d.namespaces[ns] = namespaceEntry{id: id, debug: debug}
	d.mu.Unlock()

	rec := Registration{ID: id, Kind: KindNamespace, Namespace: ns, Debug: debug}
	log.Debug(log.CatDispatch, "namespace reserved", "namespace", ns, "id", id)
	d.notifyAdded(rec)

	return NewHandle(id, func() { d.releaseNamespace(ns, rec) }), nil
}

func (d *Dispatcher) releaseNamespace(ns string, rec Registration) {
	d.mu.Lock()
	delete(d.namespaces, ns)
	d.mu.Unlock()

	log.Debug(log.CatDispatch, "namespace released", "namespace", ns, "id", rec.ID)
	d.notifyRemoved(rec)
}

// RegisterDef commits the schema for an operator. Kernels registered
// ahead of the definition are checked against it before anything mutates.
func (d *Dispatcher) RegisterDef(s *schema.Schema, debug string) (*Handle, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	name := s.Name()
	if name.Name == "" {
		return nil, fmt.Errorf("cannot define a nameless schema fragment")
	}

	d.mu.Lock()
	e := d.entryLocked(name)
	if e.schema != nil {
		err := duplicateDefError(name, e.schema, e.schemaDebug, s, debug)
		d.mu.Unlock()
		return nil, err
	}
	for key, ke := range e.kernels {
		if ke.inferred != nil && !s.EqualSignature(ke.inferred) {
			err := fmt.Errorf("%w: operator %s: schema %s disagrees with signature %s inferred from the %s kernel (%s)",
				ErrSchemaMismatch, name, s, ke.inferred, key, ke.debug)
			d.mu.Unlock()
			return nil, err
		}
	}
	id := newRegistrationID()
	e.schema = s
	e.schemaID = id
	e.schemaDebug = debug
	d.mu.Unlock()

	rec := Registration{ID: id, Kind: KindDef, Operator: name, Debug: debug}
	log.Debug(log.CatDispatch, "operator defined", "operator", name.String(), "schema", s.String(), "id", id)
	d.notifyAdded(rec)

	return NewHandle(id, func() { d.releaseDef(name, rec) }), nil
}

func (d *Dispatcher) releaseDef(name schema.OperatorName, rec Registration) {
	d.mu.Lock()
	if e, ok := d.operators[name]; ok {
		e.schema = nil
		e.schemaID = ""
		e.schemaDebug = ""
		d.dropIfEmptyLocked(name, e)
	}
	d.mu.Unlock()

	log.Debug(log.CatDispatch, "operator definition released", "operator", name.String(), "id", rec.ID)
	d.notifyRemoved(rec)
}

// RegisterImpl commits a kernel for the (name, key) slot. The operator
// need not be defined yet; a schema arriving later is checked against the
// inferred signature recorded here.
func (d *Dispatcher) RegisterImpl(name schema.OperatorName, key dispatch.Key, fn kernel.Func, inferred *schema.Schema, debug string) (*Handle, error) {
	if fn == nil {
		return nil, ErrNilKernel
	}
	if name.Name == "" {
		return nil, fmt.Errorf("operator name cannot be empty")
	}

	d.mu.Lock()
	e := d.entryLocked(name)
	if existing, ok := e.kernels[key]; ok {
		err := fmt.Errorf("%w: operator %s, key %s (existing kernel: %s, new kernel: %s)",
			ErrDuplicateKernel, name, key, existing.debug, debug)
		d.mu.Unlock()
		return nil, err
	}
	if e.schema != nil && inferred != nil && !e.schema.EqualSignature(inferred) {
		err := fmt.Errorf("%w: operator %s: signature %s inferred from the new %s kernel (%s) disagrees with schema %s (%s)",
			ErrSchemaMismatch, name, inferred, key, debug, e.schema, e.schemaDebug)
		d.mu.Unlock()
		return nil, err
	}
	id := newRegistrationID()
	e.kernels[key] = kernelEntry{id: id, fn: fn, inferred: inferred, debug: debug}
	d.invalidateOperator(name)
	d.mu.Unlock()

	rec := Registration{ID: id, Kind: KindImpl, Operator: name, Key: key, Debug: debug}
	log.Debug(log.CatDispatch, "kernel registered", "operator", name.String(), "key", key.String(), "id", id)
	d.notifyAdded(rec)

	return NewHandle(id, func() { d.releaseImpl(name, key, rec) }), nil
}

func (d *Dispatcher) releaseImpl(name schema.OperatorName, key dispatch.Key, rec Registration) {
	d.mu.Lock()
	if e, ok := d.operators[name]; ok {
		delete(e.kernels, key)
		d.dropIfEmptyLocked(name, e)
	}
	d.invalidateOperator(name)
	d.mu.Unlock()

	log.Debug(log.CatDispatch, "kernel released", "operator", name.String(), "key", key.String(), "id", rec.ID)
	d.notifyRemoved(rec)
}

// RegisterFallback commits a kernel that serves every operator lacking
// its own kernel for key. The catch-all key cannot take a fallback.
func (d *Dispatcher) RegisterFallback(key dispatch.Key, fn kernel.Func, debug string) (*Handle, error) {
	if key.IsCatchAll() {
		return nil, ErrInvalidFallbackKey
	}
	if fn == nil {
		return nil, ErrNilKernel
	}

	d.mu.Lock()
	if existing, ok := d.fallbacks[key]; ok {
		err := fmt.Errorf("%w: key %s (existing fallback: %s, new fallback: %s)",
			ErrDuplicateFallback, key, existing.debug, debug)
		d.mu.Unlock()
		return nil, err
	}
	id := newRegistrationID()
	d.fallbacks[key] = fallbackEntry{id: id, fn: fn, debug: debug}
	d.flushCache()
	d.mu.Unlock()

	rec := Registration{ID: id, Kind: KindFallback, Key: key, Debug: debug}
	log.Debug(log.CatDispatch, "fallback registered", "key", key.String(), "id", id)
	d.notifyAdded(rec)

	return NewHandle(id, func() { d.releaseFallback(key, rec) }), nil
}

func (d *Dispatcher) releaseFallback(key dispatch.Key, rec Registration) {
	d.mu.Lock()
	delete(d.fallbacks, key)
	d.flushCache()
	d.mu.Unlock()

	log.Debug(log.CatDispatch, "fallback released", "key", key.String(), "id", rec.ID)
	d.notifyRemoved(rec)
}

// entryLocked returns the operator entry for name, creating it when the
// first registration for that operator arrives. Callers hold d.mu.
func (d *Dispatcher) entryLocked(name schema.OperatorName) *operatorEntry {
	e, ok := d.operators[name]
	if !ok {
		e = &operatorEntry{kernels: make(map[dispatch.Key]kernelEntry)}
		d.operators[name] = e
	}
	return e
}

// dropIfEmptyLocked removes the operator entry once neither schema nor
// kernels remain, so released operators vanish from snapshots.
func (d *Dispatcher) dropIfEmptyLocked(name schema.OperatorName, e *operatorEntry) {
	if e.schema == nil && len(e.kernels) == 0 {
		delete(d.operators, name)
	}
}
