package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renholm/switchboard/internal/kernel"
)

// === Helper Functions ===

func echoFactory() Factory {
	return func() *kernel.Kernel {
		return kernel.New(func(_ context.Context, args []any) ([]any, error) {
			return args, nil
		})
	}
}

// === Unit Tests: Register ===

func TestRegister_ThenLookup(t *testing.T) {
	Register("test.echo", echoFactory())

	k, err := Lookup("test.echo")
	require.NoError(t, err)
	require.NotNil(t, k)
}

func TestRegister_DuplicatePanics(t *testing.T) {
	Register("test.dup", echoFactory())

	require.Panics(t, func() {
		Register("test.dup", echoFactory())
	})
}

func TestRegister_EmptyNamePanics(t *testing.T) {
	require.Panics(t, func() {
		Register("", echoFactory())
	})
}

func TestRegister_NilFactoryPanics(t *testing.T) {
	require.Panics(t, func() {
		Register("test.nilfactory", nil)
	})
}

// === Unit Tests: Lookup ===

func TestLookup_ProducesFreshKernelPerCall(t *testing.T) {
	Register("test.fresh", echoFactory())

	first, err := Lookup("test.fresh")
	require.NoError(t, err)
	second, err := Lookup("test.fresh")
	require.NoError(t, err)
	require.NotSame(t, first, second, "each lookup must vend a kernel of its own")
}

func TestLookup_UnknownName(t *testing.T) {
	_, err := Lookup("test.absent")
	require.ErrorIs(t, err, ErrUnknownKernel)
	require.Contains(t, err.Error(), "test.absent")
}

// === Unit Tests: Enumeration ===

func TestNames_SortedAndComplete(t *testing.T) {
	Register("test.zz", echoFactory())
	Register("test.aa", echoFactory())

	names := Names()
	require.Contains(t, names, "test.aa")
	require.Contains(t, names, "test.zz")
	require.IsIncreasing(t, names)
}

func TestIsRegistered(t *testing.T) {
	Register("test.present", echoFactory())

	require.True(t, IsRegistered("test.present"))
	require.False(t, IsRegistered("test.missing"))
}
