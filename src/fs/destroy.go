package fs

import "mem"

// DestroyCache tears down c. The caller must have already
// flushed c and holds no outstanding mappings into it (contract, not
// enforced here). Every active reference is dereferenced and its pool
// slot returned to the front of the LRU; every CachedSection's
// present frames are freed and the section arrays dropped.
func DestroyCache(c *CacheSpace) {
	pool := c.pool

	for _, ref := range c.allRefsHighToLow() {
		pool.mu.Lock()
		s := pool.sections[ref.index]
		if s.cache != c || s.offset != ref.offset {
			pool.mu.Unlock()
			continue
		}
		pool.removeFromList(s)
		pool.dereferenceLocked(s, 0)
		s.modified = false
		s.cache = nil
		s.accessors = 0
		pool.lru.PushFront(s)
		pool.mu.Unlock()

		c.csd.Uncover(ref.offset, ref.offset+SECTION_SIZE)
		c.dropRef(ref.offset)
	}

	const everything = int64(1) << 62
	c.csd.reclaimBelow(everything, func(p mem.Pa_t) {
			pool.db.FreeFrame(p)
	})
}
