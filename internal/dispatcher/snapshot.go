package dispatcher

import (
	"sort"

	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/schema"
)

// KernelInfo describes one registered kernel slot.
type KernelInfo struct {
	Key         dispatch.Key
	Debug       string
	HasInferred bool
}

// OperatorInfo is a point-in-time copy of one operator entry. Schema is
// nil for operators that only have kernels so far.
type OperatorInfo struct {
	Name        schema.OperatorName
	Schema      *schema.Schema
	SchemaDebug string
	Kernels     []KernelInfo
}

// FallbackInfo describes one key-wide fallback.
type FallbackInfo struct {
	Key   dispatch.Key
	Debug string
}

// Snapshot copies the operator table, sorted by qualified name with
// kernels in key order. The copy does not track later mutations.
func (d *Dispatcher) Snapshot() []OperatorInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]OperatorInfo, 0, len(d.operators))
	for name, e := range d.operators {
		info := OperatorInfo{
			Name:        name,
			Schema:      e.schema,
			SchemaDebug: e.schemaDebug,
			Kernels:     make([]KernelInfo, 0, len(e.kernels)),
		}
		for key, ke := range e.kernels {
			info.Kernels = append(info.Kernels, KernelInfo{
				Key:         key,
				Debug:       ke.debug,
				HasInferred: ke.inferred != nil,
			})
		}
		sort.Slice(info.Kernels, func(i, j int) bool {
			return info.Kernels[i].Key < info.Kernels[j].Key
		})
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name.String() < out[j].Name.String()
	})
	return out
}

// Fallbacks lists registered fallbacks in key order.
func (d *Dispatcher) Fallbacks() []FallbackInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]FallbackInfo, 0, len(d.fallbacks))
	for key, fb := range d.fallbacks {
		out = append(out, FallbackInfo{Key: key, Debug: fb.debug})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Namespaces lists reserved namespaces in lexical order.
func (d *Dispatcher) Namespaces() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.namespaces))
	for ns := range d.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
