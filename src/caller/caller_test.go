package caller

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func callSiteA(dc *Distinct_caller_t) (bool, string) { return dc.Distinct() }
func callSiteB(dc *Distinct_caller_t) (bool, string) { return dc.Distinct() }

func TestDistinctFirstCallFromEachSiteIsFresh(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: true}
	fresh, trace := callSiteA(dc)
	require.True(t, fresh)
	require.NotEmpty(t, trace)
}

func TestDistinctRepeatedCallFromSameSiteIsNotFresh(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: true}
	// Both calls must come from one line so their call chains match.
	var fresh [2]bool
	for i := range fresh {
		fresh[i], _ = callSiteA(dc)
	}
	require.True(t, fresh[0])
	require.False(t, fresh[1])
}

func TestDistinctDisabledNeverReports(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: false}
	fresh, trace := callSiteA(dc)
	require.False(t, fresh)
	require.Empty(t, trace)
}

func TestLenTracksUniqueCallChains(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: true}
	// Each calling line is its own chain; a line reached twice counts once.
	for i := 0; i < 2; i++ {
		callSiteA(dc)
	}
	callSiteB(dc)
	require.Equal(t, 2, dc.Len())
}
