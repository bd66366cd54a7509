// Package library provides the registration surfaces modules use to
// populate the dispatcher: scoped sessions bound to one namespace, kind,
// and dispatch key, plus a batch registrar for single-operator commits.
//
// A session owns the revocation handles for everything it registered.
// Closing the session undoes its registrations in reverse order;
// TakeHandles moves that ownership elsewhere.
package library

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/dispatcher"
	"github.com/renholm/switchboard/internal/kernel"
	"github.com/renholm/switchboard/internal/log"
	"github.com/renholm/switchboard/internal/schema"
)

// Library is a registration session. All operations resolve namespaces
// and dispatch keys against the session's configuration, and every
// registration's handle lands in the session until taken or closed.
// A Library is used by a single initializing goroutine.
type Library struct {
	reg     dispatcher.Registry
	kind    Kind
	ns      string       // empty when the session is namespace-wildcard
	key     dispatch.Key // CatchAll when the session carries no key
	at      string       // source location, "file.go:line"
	handles []*dispatcher.Handle
}

// New creates a session against reg. loc is the source location recorded
// in debug strings; NewDef, NewFragment, and NewImpl capture it from the
// caller. The wildcard namespace "_" and the CatchAll key normalize to
// absent. Def and fragment sessions require a concrete namespace and
// refuse a dispatch key; a def session also reserves its namespace, so
// construction fails outright when another def session holds it.
func New(reg dispatcher.Registry, kind Kind, ns string, key dispatch.Key, loc string) (*Library, error) {
	if ns == schema.Wildcard {
		ns = ""
	}
	l := &Library{reg: reg, kind: kind, ns: ns, key: key, at: loc}

	switch kind {
	case KindDef, KindFragment:
		if ns == "" {
			return nil, fmt.Errorf("cannot create a %s session with the wildcard namespace: every %s session defines operators for a distinct namespace. Did you mean to create an impl session? %s",
				kind, kind, l.context())
		}
		if !key.IsCatchAll() {
			return nil, fmt.Errorf("cannot create a %s session with dispatch key %s: dispatch keys belong on impl sessions %s",
				kind, key, l.context())
		}
		if kind == KindDef {
			h, err := reg.ReserveNamespace(ns, debugString("", loc))
			if err != nil {
				return nil, fmt.Errorf("%w %s", err, l.context())
			}
			l.handles = append(l.handles, h)
		}
	case KindImpl:
		// Nothing to check; wildcard namespace and absent key are both
		// meaningful here.
	default:
		return nil, fmt.Errorf("unknown session kind %s %s", kind, l.context())
	}

	log.Debug(log.CatLibrary, "session opened",
		"kind", kind.String(), "namespace", ns, "key", key.String(), "at", loc)
	return l, nil
}

// NewDef opens the definition session for ns, reserving the namespace.
func NewDef(reg dispatcher.Registry, ns string) (*Library, error) {
	return New(reg, KindDef, ns, dispatch.CatchAll, callerLocation(1))
}

// NewFragment opens a session that adds definitions to ns without
// claiming namespace ownership.
func NewFragment(reg dispatcher.Registry, ns string) (*Library, error) {
	return New(reg, KindFragment, ns, dispatch.CatchAll, callerLocation(1))
}

// NewImpl opens an implementation session. ns may be the wildcard "_"
// and key may be CatchAll.
func NewImpl(reg dispatcher.Registry, ns string, key dispatch.Key) (*Library, error) {
	return New(reg, KindImpl, ns, key, callerLocation(1))
}

// Kind returns the session kind.
func (l *Library) Kind() Kind {
	return l.kind
}

// Namespace returns the session namespace, empty for wildcard sessions.
func (l *Library) Namespace() string {
	return l.ns
}

// HandleCount reports how many registrations the session currently owns.
func (l *Library) HandleCount() int {
	return len(l.handles)
}

// Define commits an operator schema in the session's namespace and
// returns the fully qualified name. The schema is namespaced in place
// and belongs to the registry afterwards.
func (l *Library) Define(s *schema.Schema) (schema.OperatorName, error) {
	if s == nil {
		return schema.OperatorName{}, fmt.Errorf("def: schema cannot be nil %s", l.context())
	}
	prelude := fmt.Sprintf("def(%q): ", s.Name().String())

	if l.kind != KindDef && l.kind != KindFragment {
		return schema.OperatorName{}, fmt.Errorf("%scannot define an operator inside of an %s session. All definitions should be placed in the unique def session for their namespace %s",
			prelude, l.kind, l.context())
	}
	if l.ns == "" {
		panic(fmt.Sprintf("library: %s session without a namespace %s", l.kind, l.context()))
	}

	if ns := s.Namespace(); ns != "" {
		if ns == l.ns {
			return schema.OperatorName{}, fmt.Errorf("%sredundant definition of namespace (%s) in both the schema and the enclosing %s session. Delete the namespace from your schema %s",
				prelude, l.ns, l.kind, l.context())
		}
		return schema.OperatorName{}, fmt.Errorf("%sinvalid explicit namespace (%s) in schema. Move this definition to the def session for that namespace and delete the namespace from your schema %s",
			prelude, ns, l.context())
	}
	if !s.SetNamespaceIfNotSet(l.ns) {
		panic(fmt.Sprintf("library: namespace injection failed %s", l.context()))
	}

	h, err := l.reg.RegisterDef(s, debugString("", l.at))
	if err != nil {
		return schema.OperatorName{}, fmt.Errorf("%s%w %s", prelude, err, l.context())
	}
	l.handles = append(l.handles, h)
	return s.Name(), nil
}

// DefineKernel defines an operator and binds its first kernel in one
// step. When def carries only a name, the schema is synthesized from the
// kernel's inferred signature with conservative alias analysis.
func (l *Library) DefineKernel(def SchemaOrName, k *kernel.Kernel) (schema.OperatorName, error) {
	if k == nil {
		return schema.OperatorName{}, fmt.Errorf("def: kernel cannot be nil %s", l.context())
	}

	var s *schema.Schema
	switch {
	case def.byName:
		if k.Inferred() == nil {
			return schema.OperatorName{}, fmt.Errorf("def(%q): full schema was not specified, and no schema could be inferred from the kernel either. Please provide an explicit schema %s",
				def.name.String(), l.context())
		}
		s = k.Inferred().CloneWithName(def.name)
		s.SetAliasAnalysis(schema.AliasConservative)
	case def.schema != nil:
		s = def.schema
	default:
		return schema.OperatorName{}, fmt.Errorf("def: neither a schema nor an operator name was specified %s", l.context())
	}

	name, err := l.Define(s)
	if err != nil {
		return schema.OperatorName{}, err
	}

	key := l.key
	if !k.Key().IsCatchAll() {
		key = k.Key()
	}
	h, err := l.reg.RegisterImpl(name, key, k.Callable(), k.Inferred(), debugString(k.Debug(), l.at))
	if err != nil {
		return schema.OperatorName{}, fmt.Errorf("def(%q): %w %s", name.String(), err, l.context())
	}
	l.handles = append(l.handles, h)
	return name, nil
}

// Bind attaches a kernel to the named operator. The session supplies the
// namespace and the dispatch key unless the kernel carries its own key.
func (l *Library) Bind(name string, k *kernel.Kernel) error {
	prelude := fmt.Sprintf("bind(%q): ", name)
	if k == nil {
		return fmt.Errorf("%skernel cannot be nil %s", prelude, l.context())
	}

	n, err := schema.ParseName(name)
	if err != nil {
		return fmt.Errorf("%s%w %s", prelude, err, l.context())
	}

	if ns := n.Namespace; ns != "" {
		if ns == l.ns {
			return fmt.Errorf("%sredundant definition of namespace (%s) in both the operator name and the enclosing %s session. Delete the namespace from your operator name %s",
				prelude, l.ns, l.kind, l.context())
		}
		return fmt.Errorf("%sinvalid explicit namespace (%s) in operator name. Move this binding to the %s session for that namespace and delete the namespace from your operator name %s",
			prelude, ns, l.kind, l.context())
	}
	if l.ns != "" {
		if !n.SetNamespaceIfNotSet(l.ns) {
			panic(fmt.Sprintf("library: namespace injection failed %s", l.context()))
		}
	}

	if !k.Key().IsCatchAll() && !l.key.IsCatchAll() {
		return fmt.Errorf("%sexplicitly provided dispatch key (%s) is inconsistent with the dispatch key of the enclosing %s session (%s). Declare a separate session for this dispatch key and move your binding there %s",
			prelude, k.Key(), l.kind, l.key, l.context())
	}
	key := l.key
	if !k.Key().IsCatchAll() {
		key = k.Key()
	}

	h, err := l.reg.RegisterImpl(n, key, k.Callable(), k.Inferred(), debugString(k.Debug(), l.at))
	if err != nil {
		return fmt.Errorf("%s%w %s", prelude, err, l.context())
	}
	l.handles = append(l.handles, h)
	return nil
}

// BindFallback installs a kernel that serves every operator on this
// session's dispatch key. Only wildcard-namespace impl sessions may
// install fallbacks.
func (l *Library) BindFallback(k *kernel.Kernel) error {
	if k == nil {
		return fmt.Errorf("fallback: kernel cannot be nil %s", l.context())
	}
	if l.kind != KindImpl {
		return fmt.Errorf("fallback: cannot install a fallback inside of a %s session. Did you mean to call this inside an impl session? %s",
			l.kind, l.context())
	}

	key := l.key
	if !k.Key().IsCatchAll() {
		key = k.Key()
	}
	if key.IsCatchAll() {
		panic(fmt.Sprintf("library: fallback without a resolvable dispatch key %s", l.context()))
	}

	if l.ns != "" {
		return fmt.Errorf("fallback: fallback functions which apply to only a single namespace (you specified %s) are not supported. To apply this fallback globally, create the impl session with the wildcard namespace %s",
			l.ns, l.context())
	}

	h, err := l.reg.RegisterFallback(key, k.Callable(), debugString(k.Debug(), l.at))
	if err != nil {
		return fmt.Errorf("fallback: %w %s", err, l.context())
	}
	l.handles = append(l.handles, h)
	return nil
}

// Close releases every handle the session still owns, newest first.
// A second Close, or Close after TakeHandles, releases nothing.
func (l *Library) Close() {
	for i := len(l.handles) - 1; i >= 0; i-- {
		l.handles[i].Release()
	}
	released := len(l.handles)
	l.handles = nil
	if released > 0 {
		log.Debug(log.CatLibrary, "session closed",
			"kind", l.kind.String(), "namespace", l.ns, "released", released)
	}
}

// TakeHandles moves ownership of the session's handles to the caller.
func (l *Library) TakeHandles() []*dispatcher.Handle {
	hs := l.handles
	l.handles = nil
	return hs
}

// context renders the standard error suffix naming the session.
func (l *Library) context() string {
	return fmt.Sprintf("(error occurred while processing the %s session at %s)", l.kind, l.at)
}

// debugString is the default provenance text for registrations that
// carry no explicit debug info.
func debugString(debug, loc string) string {
	if debug == "" {
		return "registered at " + loc
	}
	return debug
}

// callerLocation captures "file.go:line" skip frames above the caller.
func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
