package library

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/dispatcher"
	"github.com/renholm/switchboard/internal/kernel"
	"github.com/renholm/switchboard/internal/schema"
)

// === Helper Functions ===

func qualifiedSchema(t rapid.TB, name string) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder(name).
		Arg("x", schema.TypeFloat).
		Arg("y", schema.TypeFloat).
		Ret(schema.TypeFloat).
		Build()
	require.NoError(t, err)
	return s
}

func negateKernel() *kernel.Kernel {
	return kernel.MustFromFunc(func(x int64) int64 { return -x })
}

// === Unit Tests: Registrar Configuration ===

func TestRegistrar_Op_ThenSchemaRejected(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).
		Op("test::negate").
		Schema(qualifiedSchema(t, "test::negate")).
		Kernel(negateKernel()).
		Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "a schema or operator name was already specified")
}

func TestRegistrar_Op_InvalidNameSticks(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).
		Op("a::b::c").
		Kernel(negateKernel()).
		Commit()
	require.ErrorIs(t, err, schema.ErrInvalidName)
	require.Empty(t, d.Snapshot())
}

func TestRegistrar_Schema_NilRejected(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).Schema(nil).Kernel(negateKernel()).Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "schema cannot be nil")
}

func TestRegistrar_Kernel_NilRejected(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).Op("test::negate").Kernel(nil).Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "kernel cannot be nil")
}

// === Unit Tests: Commit Validation ===

func TestRegistrar_Commit_NothingSpecified(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "without specifying a schema or operator name")
}

func TestRegistrar_Commit_NoKernelWithSchema(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).Schema(qualifiedSchema(t, "test::add")).Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no kernel specified")
	require.Empty(t, d.Snapshot())
}

func TestRegistrar_Commit_NoKernelWithName(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).Op("test::add").Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no kernel specified")
}

func TestRegistrar_Commit_DuplicateKeyRejectedBeforeTouchingTable(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).
		Schema(qualifiedSchema(t, "test::add")).
		Kernel(kernel.New(echo).WithKey(dispatch.CPU)).
		Kernel(kernel.New(echo).WithKey(dispatch.CPU)).
		Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "same dispatch key cpu")
	require.Empty(t, d.Snapshot())
}

func TestRegistrar_Commit_MultipleCatchAllRejected(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).
		Schema(qualifiedSchema(t, "test::add")).
		Kernel(kernel.New(echo)).
		Kernel(kernel.New(echo)).
		Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple catch-all kernels")
	require.Empty(t, d.Snapshot())
}

func TestRegistrar_Commit_NoInferableKernel(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).
		Op("test::negate").
		Kernel(kernel.New(echo)).
		Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot infer an operator schema")
	require.Empty(t, d.Snapshot())
}

func TestRegistrar_Commit_FromSchemaAliasRejectedForInferred(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).
		Op("test::negate").
		Kernel(negateKernel()).
		AliasAnalysis(schema.AliasFromSchema).
		Commit()
	require.Error(t, err)
	require.Contains(t, err.Error(), "but the schema is inferred")
	require.Empty(t, d.Snapshot())
}

// === Unit Tests: Commit Registration ===

func TestRegistrar_Commit_SchemaAndTwoKeys(t *testing.T) {
	d := newDispatcher()

	reg, err := NewRegistrar(d).
		Schema(qualifiedSchema(t, "test::add")).
		Kernel(addKernel().WithKey(dispatch.CPU)).
		Kernel(addKernel().WithKey(dispatch.CUDA)).
		Commit()
	require.NoError(t, err)
	require.Equal(t, 3, reg.HandleCount(), "one definition plus one handle per kernel")

	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.Len(t, snapshot[0].Kernels, 2)
	require.Empty(t, d.Namespaces(), "a batch registration does not reserve its namespace")

	reg.Close()
	require.Empty(t, d.Snapshot())
}

func TestRegistrar_Commit_KeyedAndCatchAllCoexist(t *testing.T) {
	d := newDispatcher()

	reg, err := NewRegistrar(d).
		Schema(qualifiedSchema(t, "test::add")).
		Kernel(addKernel().WithKey(dispatch.CPU)).
		Kernel(addKernel()).
		Commit()
	require.NoError(t, err)
	require.Equal(t, 3, reg.HandleCount())

	name := mustParse(t, "test::add")
	r, err := d.Lookup(name, dispatch.CPU)
	require.NoError(t, err)
	require.Equal(t, dispatch.CPU, r.Key)

	r, err = d.Lookup(name, dispatch.CUDA)
	require.NoError(t, err)
	require.Equal(t, dispatch.CatchAll, r.Key, "unkeyed requests fall through to the catch-all kernel")
}

func TestRegistrar_Commit_InfersSchemaFromFirstInferableKernel(t *testing.T) {
	d := newDispatcher()

	reg, err := NewRegistrar(d).
		Op("test::negate").
		Kernel(kernel.New(echo).WithKey(dispatch.CPU)).
		Kernel(negateKernel().WithKey(dispatch.CUDA)).
		Commit()
	require.NoError(t, err)
	require.Equal(t, 3, reg.HandleCount())

	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.Equal(t, "test::negate(int) -> (int)", snapshot[0].Schema.String())
	require.Equal(t, schema.AliasConservative, snapshot[0].Schema.AliasAnalysis())
}

func TestRegistrar_Commit_AliasOverrideApplied(t *testing.T) {
	d := newDispatcher()

	_, err := NewRegistrar(d).
		Schema(qualifiedSchema(t, "test::add")).
		Kernel(addKernel()).
		AliasAnalysis(schema.AliasPure).
		Commit()
	require.NoError(t, err)

	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.Equal(t, schema.AliasPure, snapshot[0].Schema.AliasAnalysis())
}

// === Unit Tests: Commit Atomicity ===

func TestRegistrar_Commit_ConflictingFragmentsFailAtRegistry(t *testing.T) {
	d := newDispatcher()

	// The inferred schema comes from the first inferable kernel. The second
	// kernel's fragment disagrees structurally, which the registry rejects
	// when that implementation lands.
	_, err := NewRegistrar(d).
		Op("test::negate").
		Kernel(negateKernel().WithKey(dispatch.CPU)).
		Kernel(addKernel().WithKey(dispatch.CUDA)).
		Commit()
	require.ErrorIs(t, err, dispatcher.ErrSchemaMismatch)
	require.Empty(t, d.Snapshot(), "a failed commit unwinds everything it registered")
}

func TestRegistrar_Commit_MidCommitConflictRollsBack(t *testing.T) {
	d := newDispatcher()
	name := mustParse(t, "test::add")

	_, err := d.RegisterImpl(name, dispatch.CPU, echo, nil, "seed")
	require.NoError(t, err)

	_, err = NewRegistrar(d).
		Schema(qualifiedSchema(t, "test::add")).
		Kernel(addKernel().WithKey(dispatch.CPU)).
		Commit()
	require.ErrorIs(t, err, dispatcher.ErrDuplicateKernel)

	// The definition the commit had already acquired is released again;
	// only the pre-existing implementation survives.
	snapshot := d.Snapshot()
	require.Len(t, snapshot, 1)
	require.Nil(t, snapshot[0].Schema)
	require.Len(t, snapshot[0].Kernels, 1)
	require.Equal(t, "seed", snapshot[0].Kernels[0].Debug)
}

// === Unit Tests: Registration Handle Ownership ===

func TestRegistration_Close_Idempotent(t *testing.T) {
	d := newDispatcher()

	reg, err := NewRegistrar(d).
		Schema(qualifiedSchema(t, "test::add")).
		Kernel(addKernel()).
		Commit()
	require.NoError(t, err)

	reg.Close()
	reg.Close()
	require.Empty(t, d.Snapshot())
	require.Equal(t, 0, reg.HandleCount())
}

func TestRegistration_TakeHandles_MovesOwnershipOnce(t *testing.T) {
	d := newDispatcher()

	reg, err := NewRegistrar(d).
		Schema(qualifiedSchema(t, "test::add")).
		Kernel(addKernel()).
		Commit()
	require.NoError(t, err)

	taken := reg.TakeHandles()
	require.Len(t, taken, 2)
	require.Empty(t, reg.TakeHandles())

	reg.Close()
	require.Len(t, d.Snapshot(), 1, "a drained registration releases nothing")

	for i := len(taken) - 1; i >= 0; i-- {
		taken[i].Release()
	}
	require.Empty(t, d.Snapshot())
}

// === Property-Based Tests ===

// Committing kernels on any set of distinct keys yields one handle per
// kernel plus one for the definition, and closing the registration
// restores the empty table no matter which keys were chosen.
func TestRegistrar_PropertyBased_CommitCloseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := newDispatcher()
		all := dispatch.Keys()

		count := rapid.IntRange(1, len(all)).Draw(t, "count")
		used := make(map[int]bool)
		var keys []dispatch.Key
		for len(keys) < count {
			i := rapid.IntRange(0, len(all)-1).Draw(t, "keyIndex")
			if used[i] {
				continue
			}
			used[i] = true
			keys = append(keys, all[i])
		}
		withCatchAll := rapid.Bool().Draw(t, "withCatchAll")

		r := NewRegistrar(d).Schema(qualifiedSchema(t, "test::add"))
		for _, k := range keys {
			r.Kernel(addKernel().WithKey(k))
		}
		if withCatchAll {
			r.Kernel(addKernel())
		}

		reg, err := r.Commit()
		if err != nil {
			t.Fatalf("commit failed: %v", err)
		}

		want := len(keys) + 1
		if withCatchAll {
			want++
		}
		if got := reg.HandleCount(); got != want {
			t.Fatalf("handle count: got %d, want %d", got, want)
		}

		snapshot := d.Snapshot()
		if len(snapshot) != 1 {
			t.Fatalf("snapshot length: got %d, want 1", len(snapshot))
		}
		if got := len(snapshot[0].Kernels); got != want-1 {
			t.Fatalf("kernel count: got %d, want %d", got, want-1)
		}

		reg.Close()
		if remaining := d.Snapshot(); len(remaining) != 0 {
			t.Fatalf("table not empty after close: %d operators remain", len(remaining))
		}
	})
}
