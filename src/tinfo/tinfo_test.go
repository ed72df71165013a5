package tinfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
)

func TestWithPageGeneratorMarksDerivedContext(t *testing.T) {
	require.False(t, IsPageGenerator(context.Background()))

	ctx := WithPageGenerator(context.Background())
	require.True(t, IsPageGenerator(ctx))

	child, cancel := context.WithCancel(ctx)
	defer cancel()
	require.True(t, IsPageGenerator(child), "the marker survives derivation from a marked context")
}

func TestThreadinfoInitStartsEmpty(t *testing.T) {
	var ti Threadinfo_t
	ti.Init()
	require.Empty(t, ti.Notes)

	ti.Notes[defs.Tid_t(1)] = &Tnote_t{Alive: true}
	require.True(t, ti.Notes[defs.Tid_t(1)].Alive)
}

func TestDoomedReflectsIsdoomed(t *testing.T) {
	n := &Tnote_t{Isdoomed: true}
	require.True(t, n.Doomed())
}
