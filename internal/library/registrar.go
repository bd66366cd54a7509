package library

import (
	"fmt"

	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/dispatcher"
	"github.com/renholm/switchboard/internal/kernel"
	"github.com/renholm/switchboard/internal/log"
	"github.com/renholm/switchboard/internal/schema"
)

// registrarDebug marks registrations committed through a Registrar.
const registrarDebug = "registered by Registrar"

// Registrar batches one operator definition with its kernels and commits
// them as a unit. Configuration is fluent; the first configuration error
// sticks and surfaces from Commit.
type Registrar struct {
	reg      dispatcher.Registry
	at       string
	name     schema.OperatorName
	hasName  bool
	schema   *schema.Schema
	kernels  []*kernel.Kernel
	alias    schema.AliasAnalysis
	hasAlias bool
	err      error
}

// NewRegistrar creates a batch registrar against reg, recording the
// caller's source location for diagnostics.
func NewRegistrar(reg dispatcher.Registry) *Registrar {
	return &Registrar{reg: reg, at: callerLocation(1)}
}

// Op names the operator to register. Its schema is taken from the first
// kernel with an inferable signature.
func (r *Registrar) Op(name string) *Registrar {
	if r.err != nil {
		return r
	}
	if r.hasName || r.schema != nil {
		r.err = fmt.Errorf("operator registration at %s: a schema or operator name was already specified", r.at)
		return r
	}
	n, err := schema.ParseName(name)
	if err != nil {
		r.err = fmt.Errorf("operator registration at %s: %w", r.at, err)
		return r
	}
	r.name = n
	r.hasName = true
	return r
}

// Schema supplies the operator schema explicitly.
func (r *Registrar) Schema(s *schema.Schema) *Registrar {
	if r.err != nil {
		return r
	}
	if r.hasName || r.schema != nil {
		r.err = fmt.Errorf("operator registration at %s: a schema or operator name was already specified", r.at)
		return r
	}
	if s == nil {
		r.err = fmt.Errorf("operator registration at %s: schema cannot be nil", r.at)
		return r
	}
	r.schema = s
	return r
}

// Kernel appends one kernel binding. The kernel's key selects its slot;
// CatchAll kernels fill the operator's catch-all slot.
func (r *Registrar) Kernel(k *kernel.Kernel) *Registrar {
	if r.err != nil {
		return r
	}
	if k == nil {
		r.err = fmt.Errorf("operator registration at %s: kernel cannot be nil", r.at)
		return r
	}
	r.kernels = append(r.kernels, k)
	return r
}

// AliasAnalysis overrides the alias analysis mode of the committed
// schema.
func (r *Registrar) AliasAnalysis(mode schema.AliasAnalysis) *Registrar {
	if r.err != nil {
		return r
	}
	r.alias = mode
	r.hasAlias = true
	return r
}

// Commit validates the batch, registers the definition, then registers
// one implementation per kernel. When a registry error interrupts the
// sequence, the handles this commit already acquired are released in
// reverse before the error returns; the table is left as it was found.
func (r *Registrar) Commit() (*Registration, error) {
	if r.err != nil {
		return nil, r.err
	}
	if !r.hasName && r.schema == nil {
		return nil, fmt.Errorf("operator registration at %s: tried to register an operator without specifying a schema or operator name", r.at)
	}

	display := r.name
	if r.schema != nil {
		display = r.schema.Name()
	}
	if len(r.kernels) == 0 {
		return nil, fmt.Errorf("operator registration of %s at %s: no kernel specified", display, r.at)
	}

	s := r.schema
	inferred := false
	if s == nil {
		// First kernel with an inferable signature wins; later fragments
		// are deliberately not cross-checked here. The dispatcher still
		// verifies every fragment against the committed schema.
		for _, k := range r.kernels {
			if k.Inferred() != nil {
				s = k.Inferred().CloneWithName(r.name)
				break
			}
		}
		if s == nil {
			return nil, fmt.Errorf("operator registration of %s at %s: cannot infer an operator schema from these kernels. Explicitly specify the schema or provide at least one kernel with an inferable signature", display, r.at)
		}
		inferred = true
	}

	seen := make(map[dispatch.Key]bool)
	catchall := false
	for _, k := range r.kernels {
		if k.Key().IsCatchAll() {
			if catchall {
				return nil, fmt.Errorf("operator registration at %s: tried to register multiple catch-all kernels for operator schema %s", r.at, s)
			}
			catchall = true
			continue
		}
		if seen[k.Key()] {
			return nil, fmt.Errorf("operator registration at %s: tried to register multiple kernels with same dispatch key %s for operator schema %s", r.at, k.Key(), s)
		}
		seen[k.Key()] = true
	}

	if inferred && r.hasAlias && r.alias == schema.AliasFromSchema {
		return nil, fmt.Errorf("operator registration at %s: tried to register operator %s with alias analysis %s, but the schema is inferred", r.at, s.Name(), schema.AliasFromSchema)
	}
	if r.hasAlias {
		s.SetAliasAnalysis(r.alias)
	}

	result := &Registration{}
	hDef, err := r.reg.RegisterDef(s, registrarDebug)
	if err != nil {
		return nil, fmt.Errorf("operator registration at %s: %w", r.at, err)
	}
	result.handles = append(result.handles, hDef)

	name := s.Name()
	for _, k := range r.kernels {
		h, err := r.reg.RegisterImpl(name, k.Key(), k.Callable(), k.Inferred(), registrarDebug)
		if err != nil {
			result.Close()
			return nil, fmt.Errorf("operator registration at %s: %w", r.at, err)
		}
		result.handles = append(result.handles, h)
	}

	log.Debug(log.CatLibrary, "registrar committed",
		"operator", name.String(), "kernels", len(r.kernels), "at", r.at)
	return result, nil
}

// Registration owns the handles produced by one Commit.
type Registration struct {
	handles []*dispatcher.Handle
}

// HandleCount reports how many registrations the commit produced.
func (r *Registration) HandleCount() int {
	return len(r.handles)
}

// Close releases all handles, newest first. Safe to call repeatedly.
func (r *Registration) Close() {
	for i := len(r.handles) - 1; i >= 0; i-- {
		r.handles[i].Release()
	}
	r.handles = nil
}

// TakeHandles moves the handles out; after the move Close releases
// nothing.
func (r *Registration) TakeHandles() []*dispatcher.Handle {
	hs := r.handles
	r.handles = nil
	return hs
}
