package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterIncAndAdd(t *testing.T) {
	var c Counter_t
	c.Inc()
	c.Inc()
	c.Add(5)
	require.EqualValues(t, 7, c)
}

func TestCyclesAddMeasuresElapsed(t *testing.T) {
	var cy Cycles_t
	start := Rdtsc()
	cy.Add(start)
	require.GreaterOrEqual(t, int64(cy), int64(0))
}

func TestStats2StringListsCountersAndCycles(t *testing.T) {
	type sample struct {
		Hits   Counter_t
		Cycles Cycles_t
		Other  string
	}
	var s sample
	s.Hits.Add(3)
	out := Stats2String(s)
	require.Contains(t, out, "#Hits: 3")
	require.Contains(t, out, "#Cycles:")
	require.NotContains(t, out, "Other")
}
