package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeubufRoundTrip(t *testing.T) {
	ub := MkBuf(make([]byte, 8))
	n, errno := ub.Uiowrite([]byte{1, 2, 3})
	require.Equal(t, 3, n)
	require.Zero(t, errno)
	require.Equal(t, 5, ub.Remain())

	ub.Off = 0
	dst := make([]byte, 3)
	n, errno = ub.Uioread(dst)
	require.Equal(t, 3, n)
	require.Zero(t, errno)
	require.Equal(t, []byte{1, 2, 3}, dst)
}

func TestFakeubufTruncatesAtCapacity(t *testing.T) {
	ub := MkBuf(make([]byte, 2))
	n, _ := ub.Uiowrite([]byte{1, 2, 3, 4})
	require.Equal(t, 2, n)
	require.Equal(t, 0, ub.Remain())
}

func TestFakeubufTotal(t *testing.T) {
	ub := MkBuf(make([]byte, 10))
	require.Equal(t, 10, ub.Total())
}
