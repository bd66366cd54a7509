package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey_String_NamedKeys(t *testing.T) {
	require.Equal(t, "catchall", CatchAll.String())
	require.Equal(t, "cpu", CPU.String())
	require.Equal(t, "cuda", CUDA.String())
	require.Equal(t, "autograd", Autograd.String())
}

func TestKey_String_UnknownKey(t *testing.T) {
	require.Equal(t, "key(99)", Key(99).String())
}

func TestKey_IsCatchAll(t *testing.T) {
	require.True(t, CatchAll.IsCatchAll())

	var zero Key
	require.True(t, zero.IsCatchAll())

	for _, k := range Keys() {
		require.False(t, k.IsCatchAll(), "key %s", k)
	}
}

func TestParseKey_RoundTrip(t *testing.T) {
	for _, k := range Keys() {
		parsed, err := ParseKey(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}
}

func TestParseKey_CaseInsensitive(t *testing.T) {
	parsed, err := ParseKey("CUDA")
	require.NoError(t, err)
	require.Equal(t, CUDA, parsed)

	parsed, err = ParseKey("  Cpu ")
	require.NoError(t, err)
	require.Equal(t, CPU, parsed)
}

func TestParseKey_EmptyMeansCatchAll(t *testing.T) {
	parsed, err := ParseKey("")
	require.NoError(t, err)
	require.Equal(t, CatchAll, parsed)
}

func TestParseKey_Unknown(t *testing.T) {
	_, err := ParseKey("tpu")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown dispatch key")
}
