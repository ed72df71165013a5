package fs

import (
	"sort"
	"sync"

	"accnt"
)

/// Backing is the per-CacheSpace pair of callbacks the file-system
/// driver layer supplies: read_backing and
/// write_backing, addressed by byte offset and byte count.
type Backing interface {
	ReadBacking(buf []byte, offset int64) error
	WriteBacking(buf []byte, offset int64) error
}

// activeRef_t is a CacheSpace's claim on one ASP slot: a sorted entry
// {file-offset, index-into-ASP}. Valid
// only while the pointed-to ActiveSection still has matching
// (cache, offset).
type activeRef_t struct {
	offset int64
	index int
}

/// CacheSpace holds all cache state for one file. Created with
/// the file via InitCacheSpace, destroyed by DestroyCache.
type CacheSpace struct {
	pool *Pool
	backing Backing
	csd *csd_t

	refsMu sync.Mutex
	refs []activeRef_t
	// guessedActiveSectionIndex fast path: the last
	// successfully resolved reference index, tried before the binary
	// search on the next access to the same offset.
	lastRefHint int

	size int64 // current file extent, for truncate/flush bookkeeping

	accnt.Accnt_t // I/O latency accounting, embedded per

	errs *errRing_t

	// flushSignal is closed and replaced every time a write completes,
	// letting FlushCache's retry loop wait for progress instead of
	// polling every active reference each pass.
	flushMu sync.Mutex
	flushSignal chan struct{}

	Stats CacheSpaceStats
}

/// CacheSpaceStats are the hit/miss/eviction/write-behind counters
/// surfaced through the general per-file statistics call.
type CacheSpaceStats struct {
	Hits Counter
	Misses Counter
	Evictions Counter
	WriteBehinds Counter
}

/// InitCacheSpace creates cache state for a file of the given initial
/// size backed by b, registered with pool.
func InitCacheSpace(pool *Pool, b Backing, size int64) *CacheSpace {
	return &CacheSpace{
		pool: pool,
		backing: b,
		csd: newCSD(),
		size: size,
		errs: newErrRing(8, pool.log),
		flushSignal: make(chan struct{}),
	}
}

func (c *CacheSpace) signalWriteComplete() {
	c.flushMu.Lock()
	close(c.flushSignal)
	c.flushSignal = make(chan struct{})
	c.flushMu.Unlock()
}

func (c *CacheSpace) waitWriteComplete() {
	c.flushMu.Lock()
	ch := c.flushSignal
	c.flushMu.Unlock()
	<-ch
}

/// LastBackingError returns the most recent write_backing failure
/// recorded for c, or nil if none has been recorded.
func (c *CacheSpace) LastBackingError() error {
	return c.errs.Last()
}

// findRef returns the index (within c.refs) and index-into-ASP for
// offset, consulting lastRefHint before falling back to binary
// search.
func (c *CacheSpace) findRef(offset int64) (refIdx int, aspIdx int, ok bool) {
	c.refsMu.Lock()
	defer c.refsMu.Unlock()
	if h := c.lastRefHint; h >= 0 && h < len(c.refs) && c.refs[h].offset == offset {
		return h, c.refs[h].index, true
	}
	i := sort.Search(len(c.refs), func(i int) bool { return c.refs[i].offset >= offset })
	if i < len(c.refs) && c.refs[i].offset == offset {
		c.lastRefHint = i
		return i, c.refs[i].index, true
	}
	return i, 0, false
}

// putRef inserts or replaces the reference at offset with aspIdx,
// keeping the reference slice sorted by offset.
func (c *CacheSpace) putRef(offset int64, aspIdx int) {
	c.refsMu.Lock()
	defer c.refsMu.Unlock()
	i := sort.Search(len(c.refs), func(i int) bool { return c.refs[i].offset >= offset })
	if i < len(c.refs) && c.refs[i].offset == offset {
		c.refs[i].index = aspIdx
		c.lastRefHint = i
		return
	}
	c.refs = append(c.refs, activeRef_t{})
	copy(c.refs[i+1:], c.refs[i:])
	c.refs[i] = activeRef_t{offset: offset, index: aspIdx}
	c.lastRefHint = i
}

// dropRef removes the reference at offset, if present.
func (c *CacheSpace) dropRef(offset int64) {
	c.refsMu.Lock()
	defer c.refsMu.Unlock()
	i := sort.Search(len(c.refs), func(i int) bool { return c.refs[i].offset >= offset })
	if i < len(c.refs) && c.refs[i].offset == offset {
		c.refs = append(c.refs[:i], c.refs[i+1:]...)
		c.lastRefHint = -1
	}
}

// allRefsHighToLow returns a snapshot of the current reference list, high to
// low file-offset, as Truncate/Flush/Destroy require.
func (c *CacheSpace) allRefsHighToLow() []activeRef_t {
	c.refsMu.Lock()
	defer c.refsMu.Unlock()
	out := make([]activeRef_t, len(c.refs))
	copy(out, c.refs)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Counter is a small alias so CacheSpaceStats reads cleanly; backed by
// stats.Counter_t's compile-time-gated increment semantics via
// stats_wire.go.
type Counter = statsCounter
