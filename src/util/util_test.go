package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMin(t *testing.T) {
	require.Equal(t, 3, Min(3, 7))
	require.Equal(t, 3, Min(7, 3))
	require.Equal(t, uint64(0), Min(uint64(0), uint64(5)))
}

func TestRounddownAndRoundup(t *testing.T) {
	require.Equal(t, 4096, Rounddown(4100, 4096))
	require.Equal(t, 0, Rounddown(4095, 4096))
	require.Equal(t, 8192, Roundup(4097, 4096))
	require.Equal(t, 4096, Roundup(4096, 4096))
}

func TestReadnWritenRoundTrip(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 8, 0, 0x1122334455667788)
	require.Equal(t, 0x1122334455667788, Readn(buf, 8, 0))

	Writen(buf, 4, 8, 0xdeadbeef)
	require.Equal(t, int(uint32(0xdeadbeef)), Readn(buf, 4, 8))

	Writen(buf, 2, 12, 0xbeef)
	require.Equal(t, int(uint16(0xbeef)), Readn(buf, 2, 12))

	Writen(buf, 1, 14, 0xab)
	require.Equal(t, int(uint8(0xab)), Readn(buf, 1, 14))
}

func TestReadnPanicsOutOfBounds(t *testing.T) {
	buf := make([]uint8, 4)
	require.Panics(t, func() { Readn(buf, 8, 0) })
}

func TestWritenPanicsOnUnsupportedSize(t *testing.T) {
	buf := make([]uint8, 4)
	require.Panics(t, func() { Writen(buf, 3, 0, 1) })
}
