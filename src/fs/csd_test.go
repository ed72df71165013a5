package fs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"mem"
)

// assertSortedNonOverlapping checks the directory's core structural
// invariant: sections sorted by offset, each strictly ending at or
// before the next one's start.
func assertSortedNonOverlapping(t *rapid.T, c *csd_t) {
	for i := 1; i < len(c.sections); i++ {
		prev, cur := c.sections[i-1], c.sections[i]
		if prev.end() > cur.Offset {
			t.Fatalf("sections overlap: [%d,%d) and [%d,%d)", prev.Offset, prev.end(), cur.Offset, cur.end())
		}
	}
}

func TestCoverUncoverKeepsSectionsSortedAndNonOverlapping(t *testing.T) {
	const pg = int64(mem.PGSIZE)

	rapid.Check(t, func(t *rapid.T) {
		c := newCSD()
		var live [][2]int64 // currently-covered ranges, for Uncover pairing

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			startPg := rapid.Int64Range(0, 64).Draw(t, "startPg")
			lenPg := rapid.Int64Range(1, 8).Draw(t, "lenPg")
			start := startPg * pg
			end := start + lenPg*pg

			if len(live) > 0 && rapid.Bool().Draw(t, "uncover") {
				idx := rapid.IntRange(0, len(live)-1).Draw(t, "idx")
				r := live[idx]
				c.Uncover(r[0], r[1])
				live = append(live[:idx], live[idx+1:]...)
				continue
			}

			require.NoError(t, c.Cover(start, end))
			live = append(live, [2]int64{start, end})
			assertSortedNonOverlapping(t, c)
		}
		assertSortedNonOverlapping(t, c)
	})
}

func TestCoverFillsGapsAndIncrementsOverlappingRefcounts(t *testing.T) {
	c := newCSD()
	require.NoError(t, c.Cover(0, 4096))
	require.NoError(t, c.Cover(8192, 12288))
	require.Len(t, c.sections, 2)

	// Covering a range spanning both existing sections and the gap
	// between them must fill the gap and bump refcount on every
	// touched section, including the two pre-existing ones.
	require.NoError(t, c.Cover(0, 12288))
	require.Len(t, c.sections, 3)
	require.Equal(t, 2, c.sections[0].mappedRegion, "pre-existing section touched twice")
	require.Equal(t, 1, c.sections[1].mappedRegion, "newly allocated gap section touched once")
	require.Equal(t, 2, c.sections[2].mappedRegion, "pre-existing section touched twice")
}

func TestUncoverOfUnknownStartPanics(t *testing.T) {
	c := newCSD()
	require.Panics(t, func() { c.Uncover(0, 4096) })
}

func TestReclaimBelowDropsOnlyUnreferencedSectionsEntirelyInRange(t *testing.T) {
	c := newCSD()
	require.NoError(t, c.Cover(0, 4096))
	require.NoError(t, c.Cover(8192, 12288))
	c.Uncover(0, 4096) // first section now unreferenced

	var freed []mem.Pa_t
	c.reclaimBelow(8192, func(p mem.Pa_t) { freed = append(freed, p) })

	require.Len(t, c.sections, 1, "only the still-referenced section past the boundary survives")
	require.Equal(t, int64(8192), c.sections[0].Offset)
}
