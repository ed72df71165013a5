package accnt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"util"
)

func TestUtaddSystaddAccumulate(t *testing.T) {
	var a Accnt_t
	a.Utadd(100)
	a.Utadd(50)
	a.Systadd(30)
	require.EqualValues(t, 150, a.Userns)
	require.EqualValues(t, 30, a.Sysns)
}

func TestAddMergesTwoRecords(t *testing.T) {
	var a, b Accnt_t
	a.Utadd(10)
	a.Systadd(20)
	b.Utadd(5)
	b.Systadd(7)
	a.Add(&b)
	require.EqualValues(t, 15, a.Userns)
	require.EqualValues(t, 27, a.Sysns)
}

func TestFinishAddsElapsedSystemTime(t *testing.T) {
	var a Accnt_t
	start := a.Now()
	a.Finish(start)
	require.GreaterOrEqual(t, a.Sysns, int64(0))
}

func TestToRusageEncodesFourWords(t *testing.T) {
	var a Accnt_t
	a.Utadd(int(2_500_000_000)) // 2.5s user
	a.Systadd(int(1_000_000))   // 1ms sys
	buf := a.To_rusage()
	require.Len(t, buf, 32, "rusage encoding is four 8-byte words")

	usecs := util.Readn(buf, 8, 8)
	require.EqualValues(t, 500000, usecs, "fractional user seconds encoded as microseconds")
}
