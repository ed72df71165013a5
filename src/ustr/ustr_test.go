package ustr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsdotAndIsdotdot(t *testing.T) {
	require.True(t, Ustr(".").Isdot())
	require.False(t, Ustr("..").Isdot())
	require.True(t, Ustr("..").Isdotdot())
	require.False(t, Ustr(".").Isdotdot())
}

func TestEq(t *testing.T) {
	require.True(t, Ustr("abc").Eq(Ustr("abc")))
	require.False(t, Ustr("abc").Eq(Ustr("abd")))
	require.False(t, Ustr("abc").Eq(Ustr("ab")))
}

func TestMkUstrSliceTruncatesAtNUL(t *testing.T) {
	buf := []uint8{'h', 'i', 0, 'x', 'x'}
	require.Equal(t, "hi", MkUstrSlice(buf).String())
}

func TestMkUstrSliceNoNULReturnsWholeSlice(t *testing.T) {
	buf := []uint8{'h', 'i'}
	require.Equal(t, "hi", MkUstrSlice(buf).String())
}

func TestExtendInsertsSeparator(t *testing.T) {
	base := Ustr("/a")
	got := base.Extend(Ustr("b"))
	require.Equal(t, "/a/b", got.String())
	require.Equal(t, "/a", base.String(), "Extend must not mutate its receiver")
}

func TestExtendStr(t *testing.T) {
	require.Equal(t, "/a/b", Ustr("/a").ExtendStr("b").String())
}

func TestIsAbsolute(t *testing.T) {
	require.True(t, Ustr("/a").IsAbsolute())
	require.False(t, Ustr("a").IsAbsolute())
	require.False(t, MkUstr().IsAbsolute())
}

func TestIndexByte(t *testing.T) {
	require.Equal(t, 2, Ustr("ab/c").IndexByte('/'))
	require.Equal(t, -1, Ustr("abc").IndexByte('/'))
}
