package text

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renholm/switchboard/internal/catalog"
)

// === Unit Tests: Catalog Registration ===

func TestInit_RegistersAllBuiltins(t *testing.T) {
	for _, name := range []string{
		"text.concat", "text.upper", "text.lower", "text.trim",
		"text.repeat", "text.contains", "text.length", "text.reverse",
	} {
		require.True(t, catalog.IsRegistered(name), "missing builtin %s", name)
	}
}

func TestCatalog_ConcatKernelShape(t *testing.T) {
	k, err := catalog.Lookup("text.concat")
	require.NoError(t, err)
	require.NotNil(t, k.Inferred())
	require.Equal(t, "(...) -> (string)", k.Inferred().String())
	require.Equal(t, "builtin text.concat", k.Debug())
}

func TestCatalog_BoxedCall(t *testing.T) {
	k, err := catalog.Lookup("text.concat")
	require.NoError(t, err)

	out, err := k.Callable()(context.Background(), []any{"foo", "bar"})
	require.NoError(t, err)
	require.Equal(t, []any{"foobar"}, out)
}

// === Unit Tests: String Kernels ===

func TestConcat(t *testing.T) {
	require.Equal(t, "", Concat())
	require.Equal(t, "ab", Concat("a", "b"))
}

func TestUpper(t *testing.T) {
	require.Equal(t, "HELLO", Upper("hello"))
}

func TestLower(t *testing.T) {
	require.Equal(t, "hello", Lower("HELLO"))
}

func TestTrim(t *testing.T) {
	require.Equal(t, "x", Trim("  x\n"))
}

func TestRepeat(t *testing.T) {
	got, err := Repeat("ab", 3)
	require.NoError(t, err)
	require.Equal(t, "ababab", got)
}

func TestRepeat_NegativeCount(t *testing.T) {
	_, err := Repeat("ab", -1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "negative")
}

func TestContains(t *testing.T) {
	require.True(t, Contains("seafood", "foo"))
	require.False(t, Contains("seafood", "bar"))
}

func TestLength_CountsRunes(t *testing.T) {
	require.Equal(t, int64(0), Length(""))
	require.Equal(t, int64(4), Length("héllo"[0:5]))
	require.Equal(t, int64(5), Length("héllo"))
}

func TestReverse(t *testing.T) {
	require.Equal(t, "cba", Reverse("abc"))
	require.Equal(t, "olléh", Reverse("héllo"))
}
