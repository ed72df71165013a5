package mem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocFrameStartsActiveUnreferenced(t *testing.T) {
	db := NewDatabase(4)
	p, ok := db.AllocFrame()
	require.True(t, ok)
	require.Equal(t, ACTIVE, db.State(p))
}

func TestAllocFrameExhaustion(t *testing.T) {
	db := NewDatabase(2)
	_, ok1 := db.AllocFrame()
	_, ok2 := db.AllocFrame()
	_, ok3 := db.AllocFrame()
	require.True(t, ok1)
	require.True(t, ok2)
	require.False(t, ok3)
}

func TestRefupRefdownAndFree(t *testing.T) {
	db := NewDatabase(1)
	p, _ := db.AllocFrame()
	db.Refup(p)
	db.Refup(p)
	require.Equal(t, 1, db.Refdown(p))
	require.Equal(t, 0, db.Refdown(p))
	db.FreeFrame(p)
	require.Equal(t, FREE, db.State(p))
}

func TestFreeFrameWithLiveReferencePanics(t *testing.T) {
	db := NewDatabase(1)
	p, _ := db.AllocFrame()
	db.Refup(p)
	require.Panics(t, func() { db.FreeFrame(p) })
}

// TestAllocFrameReclaimsStandbyBackpointer verifies that allocating a
// STANDBY frame off the free list clears its referring CSD slot
// (simulated here by a CacheRef_t closure) before the frame is handed
// back out.
func TestAllocFrameReclaimsStandbyBackpointer(t *testing.T) {
	db := NewDatabase(1)
	p, _ := db.AllocFrame()

	cleared := false
	db.ToStandby(p, &CacheRef_t{Clear: func() { cleared = true }})
	require.Equal(t, STANDBY, db.State(p))
	require.False(t, cleared)

	p2, ok := db.AllocFrame()
	require.True(t, ok)
	require.Equal(t, p, p2)
	require.True(t, cleared, "reclaiming the STANDBY frame must clear its CSD back-pointer")
	require.Equal(t, ACTIVE, db.State(p2))
}

func TestActivatePagesFromStandby(t *testing.T) {
	db := NewDatabase(1)
	p, _ := db.AllocFrame()
	db.ToStandby(p, &CacheRef_t{Clear: func() {}})
	db.ActivatePages(p, 1)
	require.Equal(t, ACTIVE, db.State(p))
}

func TestActivatePagesRejectsNonReclaimable(t *testing.T) {
	db := NewDatabase(1)
	p, _ := db.AllocFrame()
	db.Refup(p) // now ACTIVE with a live reference -- not reclaimable
	require.Panics(t, func() { db.ActivatePages(p, 1) })
}

func TestDataRoundTrip(t *testing.T) {
	db := NewDatabase(1)
	p, _ := db.AllocFrame()
	page := db.Data(p)
	page[0] = 0xAB
	require.Equal(t, uint8(0xAB), db.Data(p)[0])
}
