package fs

import (
	"context"
	"sync"

	"backing"
)

// countingBacking wraps an in-memory disk and records every
// read_backing/write_backing call, letting tests assert the exact
// coalescing behavior the access engine and write-behind worker promise.
type countingBacking struct {
	mu     sync.Mutex
	disk   *backing.MemDisk_t
	reads  []ioCall
	writes []ioCall
}

type ioCall struct {
	offset int64
	count  int
}

func newCountingBacking(size int64) *countingBacking {
	return &countingBacking{disk: backing.NewMemDisk(size)}
}

func (c *countingBacking) ReadBacking(buf []byte, offset int64) error {
	c.mu.Lock()
	c.reads = append(c.reads, ioCall{offset: offset, count: len(buf)})
	c.mu.Unlock()
	return c.disk.ReadBacking(buf, offset)
}

func (c *countingBacking) WriteBacking(buf []byte, offset int64) error {
	c.mu.Lock()
	c.writes = append(c.writes, ioCall{offset: offset, count: len(buf)})
	c.mu.Unlock()
	return c.disk.WriteBacking(buf, offset)
}

func (c *countingBacking) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reads)
}

func (c *countingBacking) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// newTestPool builds a small Pool suitable for exercising eviction and
// modified-list saturation without needing thousands of sections.
func newTestPool(slots int) *Pool {
	cfg := DefaultPoolConfig()
	cfg.Slots = slots
	cfg.Frames = slots * PAGES_PER_SECTION * 4
	cfg.CommitLimit = int64(slots) * SECTION_SIZE * 4
	return NewPool(cfg)
}

func newTestCache(pool *Pool, size int64) (*CacheSpace, *countingBacking) {
	b := newCountingBacking(size)
	c := InitCacheSpace(pool, b, size)
	return c, b
}

var bg = context.Background()
