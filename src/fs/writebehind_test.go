package fs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestModifiedListSaturationBlocksUntilWriteBehindDrains exercises the
// write-behind worker's back-pressure: once the modified list reaches
// its configured bound, the next release that would grow it further
// blocks until a background write frees a slot.
func TestModifiedListSaturationBlocksUntilWriteBehindDrains(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Slots = 8
	cfg.Frames = 8 * PAGES_PER_SECTION * 4
	cfg.CommitLimit = int64(8) * SECTION_SIZE * 4
	cfg.MaxModified = 2
	cfg.WriteBehindDelay = time.Millisecond
	pool := NewPool(cfg)
	c, b := newTestCache(pool, 8*SECTION_SIZE)

	for i := int64(0); i < 2; i++ {
		off := i * SECTION_SIZE
		require.NoError(t, AccessCache(bg, c, []byte{1}, off, 1, WRITE, nil))
	}

	done := make(chan error, 1)
	go func() {
		done <- AccessCache(bg, c, []byte{1}, 2*SECTION_SIZE, 1, WRITE, nil)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("write against a full modified list never unblocked: write-behind worker did not drain it")
	}

	require.GreaterOrEqual(t, b.writeCount(), 1, "write-behind worker must have flushed at least one section to make room")
}
