package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/pubsub"
	"github.com/renholm/switchboard/internal/schema"
)

// === Helper Functions ===

func echoKernel(_ context.Context, args []any) ([]any, error) {
	return args, nil
}

// mustName parses a qualified operator name for tests.
func mustName(t *testing.T, s string) schema.OperatorName {
	t.Helper()
	n, err := schema.ParseName(s)
	require.NoError(t, err)
	return n
}

// addSchema builds the canonical two-float test schema.
func addSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder("math::add").
		Arg("x", schema.TypeFloat).
		Arg("y", schema.TypeFloat).
		Ret(schema.TypeFloat).
		Build()
	require.NoError(t, err)
	return s
}

// floatSchema builds "<name>(float x) -> (float)".
func floatSchema(t *testing.T, name string) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder(name).
		Arg("x", schema.TypeFloat).
		Ret(schema.TypeFloat).
		Build()
	require.NoError(t, err)
	return s
}

// tableFingerprint reduces the table to comparable strings: name, schema
// text, and kernel keys in order.
func tableFingerprint(d *Dispatcher) []string {
	snapshot := d.Snapshot()
	out := make([]string, 0, len(snapshot))
	for _, op := range snapshot {
		entry := op.Name.String() + "|"
		if op.Schema != nil {
			entry += op.Schema.String()
		}
		for _, k := range op.Kernels {
			entry += "|" + k.Key.String()
		}
		out = append(out, entry)
	}
	return out
}

type recordingListener struct {
	mu      sync.Mutex
	added   []Registration
	removed []Registration
}

func (r *recordingListener) RegistrationAdded(rec Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, rec)
}

func (r *recordingListener) RegistrationRemoved(rec Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, rec)
}

func (r *recordingListener) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.added), len(r.removed)
}

// === Unit Tests: ReserveNamespace ===

func TestDispatcher_ReserveNamespace_ClaimsNamespace(t *testing.T) {
	d := NewWithCache(nil)

	h, err := d.ReserveNamespace("math", "block at main.go:1")
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Equal(t, []string{"math"}, d.Namespaces())
}

func TestDispatcher_ReserveNamespace_RejectsDuplicate(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.ReserveNamespace("math", "block at main.go:1")
	require.NoError(t, err)

	_, err = d.ReserveNamespace("math", "block at main.go:2")
	require.ErrorIs(t, err, ErrNamespaceReserved)
	require.Contains(t, err.Error(), "block at main.go:1")
}

func TestDispatcher_ReserveNamespace_RejectsEmpty(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.ReserveNamespace("", "nowhere")
	require.ErrorIs(t, err, ErrEmptyNamespace)

	_, err = d.ReserveNamespace(schema.Wildcard, "nowhere")
	require.ErrorIs(t, err, ErrEmptyNamespace)
}

func TestDispatcher_ReserveNamespace_ReleaseFreesNamespace(t *testing.T) {
	d := NewWithCache(nil)

	h, err := d.ReserveNamespace("math", "first")
	require.NoError(t, err)

	h.Release()
	require.Empty(t, d.Namespaces())

	_, err = d.ReserveNamespace("math", "second")
	require.NoError(t, err)
}

// === Unit Tests: RegisterDef ===

func TestDispatcher_RegisterDef_CommitsSchema(t *testing.T) {
	d := NewWithCache(nil)

	h, err := d.RegisterDef(addSchema(t), "registered at main.go:10")
	require.NoError(t, err)
	require.NotEmpty(t, h.ID())

	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.Equal(t, "math::add", snapshot[0].Name.String())
	require.NotNil(t, snapshot[0].Schema)
	require.Equal(t, "registered at main.go:10", snapshot[0].SchemaDebug)
}

func TestDispatcher_RegisterDef_RejectsNilSchema(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.RegisterDef(nil, "nowhere")
	require.ErrorIs(t, err, ErrNilSchema)
}

func TestDispatcher_RegisterDef_RejectsNamelessFragment(t *testing.T) {
	d := NewWithCache(nil)

	fragment := schema.NewFragment(
		[]schema.Argument{{Type: schema.TypeFloat}},
		[]schema.Argument{{Type: schema.TypeFloat}},
		false, false)

	_, err := d.RegisterDef(fragment, "nowhere")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nameless")
}

func TestDispatcher_RegisterDef_RejectsDuplicate(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.RegisterDef(addSchema(t), "first")
	require.NoError(t, err)

	_, err = d.RegisterDef(addSchema(t), "second")
	require.ErrorIs(t, err, ErrDuplicateDef)
	require.Contains(t, err.Error(), "first")
	require.Contains(t, err.Error(), "second")
	require.NotContains(t, err.Error(), "schemas differ")
}

func TestDispatcher_RegisterDef_DuplicateWithDifferentSchemaShowsDiff(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.RegisterDef(addSchema(t), "first")
	require.NoError(t, err)

	other, err := schema.NewBuilder("math::add").
		Arg("x", schema.TypeInt).
		Ret(schema.TypeInt).
		Build()
	require.NoError(t, err)

	_, err = d.RegisterDef(other, "second")
	require.ErrorIs(t, err, ErrDuplicateDef)
	require.Contains(t, err.Error(), "schemas differ")
	require.Contains(t, err.Error(), "{+")
	require.Contains(t, err.Error(), "[-")
}

func TestDispatcher_RegisterDef_ChecksKernelsRegisteredFirst(t *testing.T) {
	d := NewWithCache(nil)
	name := mustName(t, "math::add")

	// A one-int signature recorded before any definition exists.
	inferred := schema.NewFragment(
		[]schema.Argument{{Type: schema.TypeInt}},
		nil, false, false)
	_, err := d.RegisterImpl(name, dispatch.CPU, echoKernel, inferred, "impl first")
	require.NoError(t, err)

	_, err = d.RegisterDef(addSchema(t), "def second")
	require.ErrorIs(t, err, ErrSchemaMismatch)
	require.Contains(t, err.Error(), "impl first")

	// The failed definition must not have landed.
	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.Nil(t, snapshot[0].Schema)
}

func TestDispatcher_RegisterDef_AcceptsMatchingEarlyKernel(t *testing.T) {
	d := NewWithCache(nil)
	name := mustName(t, "math::add")

	inferred := schema.NewFragment(
		[]schema.Argument{{Type: schema.TypeFloat}, {Type: schema.TypeFloat}},
		[]schema.Argument{{Type: schema.TypeFloat}},
		false, false)
	_, err := d.RegisterImpl(name, dispatch.CPU, echoKernel, inferred, "impl first")
	require.NoError(t, err)

	_, err = d.RegisterDef(addSchema(t), "def second")
	require.NoError(t, err)

	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.NotNil(t, snapshot[0].Schema)
	require.Len(t, snapshot[0].Kernels, 1)
}

// === Unit Tests: RegisterImpl ===

func TestDispatcher_RegisterImpl_BeforeDefinition(t *testing.T) {
	d := NewWithCache(nil)
	name := mustName(t, "math::mul")

	_, err := d.RegisterImpl(name, dispatch.CPU, echoKernel, nil, "impl only")
	require.NoError(t, err)

	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.Nil(t, snapshot[0].Schema)
	require.Len(t, snapshot[0].Kernels, 1)
	require.Equal(t, dispatch.CPU, snapshot[0].Kernels[0].Key)
}

func TestDispatcher_RegisterImpl_RejectsDuplicateKey(t *testing.T) {
	d := NewWithCache(nil)
	name := mustName(t, "math::mul")

	_, err := d.RegisterImpl(name, dispatch.CPU, echoKernel, nil, "first")
	require.NoError(t, err)

	_, err = d.RegisterImpl(name, dispatch.CPU, echoKernel, nil, "second")
	require.ErrorIs(t, err, ErrDuplicateKernel)
	require.Contains(t, err.Error(), "first")
	require.Contains(t, err.Error(), "second")
}

func TestDispatcher_RegisterImpl_DistinctKeysCoexist(t *testing.T) {
	d := NewWithCache(nil)
	name := mustName(t, "math::mul")

	for _, key := range []dispatch.Key{dispatch.CatchAll, dispatch.CPU, dispatch.CUDA} {
		_, err := d.RegisterImpl(name, key, echoKernel, nil, "kernel "+key.String())
		require.NoError(t, err)
	}

	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.Len(t, snapshot[0].Kernels, 3)
}

func TestDispatcher_RegisterImpl_RejectsMismatchedInferred(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.RegisterDef(addSchema(t), "def")
	require.NoError(t, err)

	inferred := schema.NewFragment(
		[]schema.Argument{{Type: schema.TypeString}},
		nil, false, false)
	_, err = d.RegisterImpl(mustName(t, "math::add"), dispatch.CPU, echoKernel, inferred, "impl")
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestDispatcher_RegisterImpl_NilInferredSkipsCheck(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.RegisterDef(addSchema(t), "def")
	require.NoError(t, err)

	_, err = d.RegisterImpl(mustName(t, "math::add"), dispatch.CPU, echoKernel, nil, "impl")
	require.NoError(t, err)
}

func TestDispatcher_RegisterImpl_RejectsNilKernel(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.RegisterImpl(mustName(t, "math::add"), dispatch.CPU, nil, nil, "impl")
	require.ErrorIs(t, err, ErrNilKernel)
}

func TestDispatcher_RegisterImpl_RejectsEmptyName(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.RegisterImpl(schema.OperatorName{}, dispatch.CPU, echoKernel, nil, "impl")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot be empty")
}

// === Unit Tests: RegisterFallback ===

func TestDispatcher_RegisterFallback_RejectsCatchAllKey(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.RegisterFallback(dispatch.CatchAll, echoKernel, "fallback")
	require.ErrorIs(t, err, ErrInvalidFallbackKey)
}

func TestDispatcher_RegisterFallback_RejectsDuplicate(t *testing.T) {
	d := NewWithCache(nil)

	_, err := d.RegisterFallback(dispatch.Autograd, echoKernel, "first")
	require.NoError(t, err)

	_, err = d.RegisterFallback(dispatch.Autograd, echoKernel, "second")
	require.ErrorIs(t, err, ErrDuplicateFallback)
}

func TestDispatcher_RegisterFallback_ReleaseFreesKey(t *testing.T) {
	d := NewWithCache(nil)

	h, err := d.RegisterFallback(dispatch.Autograd, echoKernel, "first")
	require.NoError(t, err)
	require.Len(t, d.Fallbacks(), 1)

	h.Release()
	require.Empty(t, d.Fallbacks())

	_, err = d.RegisterFallback(dispatch.Autograd, echoKernel, "second")
	require.NoError(t, err)
}

// === Unit Tests: Handle ===

func TestHandle_Release_RemovesExactlyOneRegistration(t *testing.T) {
	d := NewWithCache(nil)
	name := mustName(t, "math::add")

	_, err := d.RegisterDef(addSchema(t), "def")
	require.NoError(t, err)
	hCPU, err := d.RegisterImpl(name, dispatch.CPU, echoKernel, nil, "cpu")
	require.NoError(t, err)
	_, err = d.RegisterImpl(name, dispatch.CUDA, echoKernel, nil, "cuda")
	require.NoError(t, err)

	hCPU.Release()

	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.NotNil(t, snapshot[0].Schema)
	require.Len(t, snapshot[0].Kernels, 1)
	require.Equal(t, dispatch.CUDA, snapshot[0].Kernels[0].Key)
}

func TestHandle_Release_SecondCallIsNoOp(t *testing.T) {
	d := NewWithCache(nil)
	name := mustName(t, "math::add")

	h1, err := d.RegisterImpl(name, dispatch.CPU, echoKernel, nil, "first")
	require.NoError(t, err)

	h1.Release()
	require.Empty(t, d.Snapshot())

	// The slot is refilled, then the spent handle fires again. The new
	// registration must survive.
	_, err = d.RegisterImpl(name, dispatch.CPU, echoKernel, nil, "second")
	require.NoError(t, err)

	h1.Release()

	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.Len(t, snapshot[0].Kernels, 1)
	require.Equal(t, "second", snapshot[0].Kernels[0].Debug)
}

func TestHandle_Release_EmptiedOperatorLeavesSnapshot(t *testing.T) {
	d := NewWithCache(nil)
	name := mustName(t, "math::add")

	hDef, err := d.RegisterDef(addSchema(t), "def")
	require.NoError(t, err)
	hImpl, err := d.RegisterImpl(name, dispatch.CPU, echoKernel, nil, "impl")
	require.NoError(t, err)

	hDef.Release()
	require.Len(t, d.Snapshot(), 1, "kernels keep the entry alive")

	hImpl.Release()
	require.Empty(t, d.Snapshot())
}

func TestNewHandle_ReleaseRunsOnce(t *testing.T) {
	count := 0
	h := NewHandle("some-id", func() { count++ })

	h.Release()
	h.Release()
	h.Release()

	require.Equal(t, 1, count)
	require.Equal(t, RegistrationID("some-id"), h.ID())
}

func TestDispatcher_HandleIDs_AreUnique(t *testing.T) {
	d := NewWithCache(nil)

	h1, err := d.RegisterDef(addSchema(t), "def")
	require.NoError(t, err)
	h2, err := d.RegisterImpl(mustName(t, "math::add"), dispatch.CPU, echoKernel, nil, "impl")
	require.NoError(t, err)

	require.NotEqual(t, h1.ID(), h2.ID())
}

// === Unit Tests: Listeners ===

func TestDispatcher_AddListener_ObservesAddAndRemove(t *testing.T) {
	d := NewWithCache(nil)
	rl := &recordingListener{}
	remove := d.AddListener(rl)
	defer remove()

	hNS, err := d.ReserveNamespace("math", "block")
	require.NoError(t, err)
	hDef, err := d.RegisterDef(addSchema(t), "def")
	require.NoError(t, err)
	hImpl, err := d.RegisterImpl(mustName(t, "math::add"), dispatch.CPU, echoKernel, nil, "impl")
	require.NoError(t, err)

	added, removed := rl.counts()
	require.Equal(t, 3, added)
	require.Equal(t, 0, removed)

	require.Equal(t, KindNamespace, rl.added[0].Kind)
	require.Equal(t, "math", rl.added[0].Namespace)
	require.Equal(t, KindDef, rl.added[1].Kind)
	require.Equal(t, "math::add", rl.added[1].Operator.String())
	require.Equal(t, KindImpl, rl.added[2].Kind)
	require.Equal(t, dispatch.CPU, rl.added[2].Key)

	hImpl.Release()
	hDef.Release()
	hNS.Release()

	added, removed = rl.counts()
	require.Equal(t, 3, added)
	require.Equal(t, 3, removed)
	require.Equal(t, rl.added[2].ID, rl.removed[0].ID, "removal carries the original registration ID")
}

func TestDispatcher_AddListener_RemoveStopsDelivery(t *testing.T) {
	d := NewWithCache(nil)
	rl := &recordingListener{}
	remove := d.AddListener(rl)

	_, err := d.RegisterDef(addSchema(t), "def")
	require.NoError(t, err)

	remove()

	_, err = d.RegisterDef(floatSchema(t, "math::sqrt"), "def2")
	require.NoError(t, err)

	added, _ := rl.counts()
	require.Equal(t, 1, added)
}

func TestDispatcher_NewBrokerListener_PublishesEvents(t *testing.T) {
	d := NewWithCache(nil)
	broker := pubsub.NewBroker[Registration]()
	defer broker.Close()

	remove := d.AddListener(NewBrokerListener(broker))
	defer remove()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := broker.Subscribe(ctx)

	h, err := d.RegisterDef(addSchema(t), "broker def")
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.Equal(t, pubsub.AddedEvent, ev.Type)
		require.Equal(t, KindDef, ev.Payload.Kind)
		require.Equal(t, h.ID(), ev.Payload.ID)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for added event")
	}

	h.Release()

	select {
	case ev := <-ch:
		require.Equal(t, pubsub.RemovedEvent, ev.Type)
		require.Equal(t, h.ID(), ev.Payload.ID)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for removed event")
	}
}

// === Concurrency Tests ===

func TestDispatcher_ConcurrentRegistrationAndLookup(t *testing.T) {
	d := New()
	var wg sync.WaitGroup

	const goroutines = 8
	const opsPerGoroutine = 25

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				name := schema.OperatorName{Namespace: "load", Name: fmt.Sprintf("op_%d_%d", n, j)}

				s, err := schema.NewBuilder(name.String()).
					Arg("x", schema.TypeFloat).
					Ret(schema.TypeFloat).
					Build()
				require.NoError(t, err)

				_, err = d.RegisterDef(s, "concurrent def")
				require.NoError(t, err)
				_, err = d.RegisterImpl(name, dispatch.CPU, echoKernel, nil, "concurrent impl")
				require.NoError(t, err)

				_, err = d.Lookup(name, dispatch.CPU)
				require.NoError(t, err)
			}
		}(i)
	}

	wg.Wait()
	require.Len(t, d.Snapshot(), goroutines*opsPerGoroutine)
}

// === Property-Based Tests ===

func TestDispatcher_PropertyBased_OrderIndependence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(1, 8).Draw(t, "numOps")
		keys := append([]dispatch.Key{dispatch.CatchAll}, dispatch.Keys()...)

		type item struct {
			def  bool
			s    *schema.Schema
			name schema.OperatorName
			key  dispatch.Key
		}
		var items []item

		for i := 0; i < numOps; i++ {
			base := rapid.StringMatching(`[a-z]{2,6}`).Draw(t, "name")
			qualified := fmt.Sprintf("test::%s%d", base, i)
			s, err := schema.NewBuilder(qualified).
				Arg("x", schema.TypeFloat).
				Ret(schema.TypeFloat).
				Build()
			if err != nil {
				t.Fatal(err)
			}
			items = append(items, item{def: true, s: s, name: s.Name()})

			numKeys := rapid.IntRange(0, 3).Draw(t, "numKeys")
			for k := 0; k < numKeys; k++ {
				key := keys[rapid.IntRange(0, len(keys)-1).Draw(t, "key")]
				// Kernels that also carry the matching inferred signature
				// exercise the cross-check in both registration orders.
				var inferred *schema.Schema
				if rapid.IntRange(0, 1).Draw(t, "inferred") == 1 {
					inferred = s
				}
				items = append(items, item{s: inferred, name: s.Name(), key: key})
			}
		}

		apply := func(d *Dispatcher, it item) {
			if it.def {
				_, err := d.RegisterDef(it.s, "order test")
				require.NoError(t, err)
				return
			}
			// Duplicate (operator, key) draws are expected; only the first
			// wins in both runs because the shuffled order keeps pairs.
			_, _ = d.RegisterImpl(it.name, it.key, echoKernel, it.s, "order test")
		}

		forward := NewWithCache(nil)
		for _, it := range items {
			apply(forward, it)
		}

		// Fisher-Yates with drawn indices, so the second run sees the same
		// registrations in a different order.
		shuffled := make([]item, len(items))
		copy(shuffled, items)
		for i := len(shuffled) - 1; i > 0; i-- {
			j := rapid.IntRange(0, i).Draw(t, "swap")
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		}

		reordered := NewWithCache(nil)
		for _, it := range shuffled {
			apply(reordered, it)
		}

		require.Equal(t, tableFingerprint(forward), tableFingerprint(reordered))
	})
}

func TestDispatcher_PropertyBased_ReleaseAllRestoresEmptyTable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := NewWithCache(nil)
		keys := append([]dispatch.Key{dispatch.CatchAll}, dispatch.Keys()...)
		specific := dispatch.Keys()

		var handles []*Handle
		usedNS := make(map[string]bool)
		usedDef := make(map[string]bool)
		usedImpl := make(map[string]bool)
		usedFallback := make(map[dispatch.Key]bool)

		numOps := rapid.IntRange(1, 40).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				ns := fmt.Sprintf("ns%d", rapid.IntRange(0, 9).Draw(t, "ns"))
				if usedNS[ns] {
					continue
				}
				h, err := d.ReserveNamespace(ns, "prop test")
				require.NoError(t, err)
				handles = append(handles, h)
				usedNS[ns] = true

			case 1:
				name := fmt.Sprintf("test::op%d", rapid.IntRange(0, 9).Draw(t, "def"))
				if usedDef[name] {
					continue
				}
				s, err := schema.NewBuilder(name).Arg("x", schema.TypeFloat).Build()
				require.NoError(t, err)
				h, err := d.RegisterDef(s, "prop test")
				require.NoError(t, err)
				handles = append(handles, h)
				usedDef[name] = true

			case 2:
				name := fmt.Sprintf("test::op%d", rapid.IntRange(0, 9).Draw(t, "impl"))
				key := keys[rapid.IntRange(0, len(keys)-1).Draw(t, "key")]
				slot := name + "|" + key.String()
				if usedImpl[slot] {
					continue
				}
				n, err := schema.ParseName(name)
				require.NoError(t, err)
				h, err := d.RegisterImpl(n, key, echoKernel, nil, "prop test")
				require.NoError(t, err)
				handles = append(handles, h)
				usedImpl[slot] = true

			case 3:
				key := specific[rapid.IntRange(0, len(specific)-1).Draw(t, "fallback")]
				if usedFallback[key] {
					continue
				}
				h, err := d.RegisterFallback(key, echoKernel, "prop test")
				require.NoError(t, err)
				handles = append(handles, h)
				usedFallback[key] = true
			}
		}

		// Release everything in a drawn order.
		for len(handles) > 0 {
			i := rapid.IntRange(0, len(handles)-1).Draw(t, "release")
			handles[i].Release()
			handles = append(handles[:i], handles[i+1:]...)
		}

		require.Empty(t, d.Snapshot())
		require.Empty(t, d.Namespaces())
		require.Empty(t, d.Fallbacks())
	})
}
