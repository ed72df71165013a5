package fs

// FlushCache synchronously drains every dirty section belonging to c.
// Sections currently writing or still held by another
// accessor are retried on the next pass; a section with no other
// accessor is written inline via WriteSectionPrepare/WriteSection.
// The loop ends on a pass that finds nothing left to do, waiting on
// the cache-wide write-complete event between passes so it isn't a
// busy-poll.
func FlushCache(c *CacheSpace) {
	pool := c.pool
	for {
		// Snapshot the event before this pass, so a write that completes
		// during the pass (including one made inline below) ends the wait.
		c.flushMu.Lock()
		progress := c.flushSignal
		c.flushMu.Unlock()
		incomplete := false
		for _, ref := range c.allRefsHighToLow() {
			pool.mu.Lock()
			s := pool.sections[ref.index]
			if s.cache != c || s.offset != ref.offset {
				pool.mu.Unlock()
				continue
			}
			switch {
			case s.writing:
				incomplete = true
				pool.mu.Unlock()
			case s.modified && s.accessors > 0:
				s.flush = true
				incomplete = true
				pool.mu.Unlock()
			case s.modified:
				pool.writeSectionPrepareLocked(s)
				pool.mu.Unlock()
				pool.signalModifiedNonFull()
				pool.writeSection(s)
				incomplete = true
			default:
				pool.mu.Unlock()
			}
		}
		if !incomplete {
			return
		}
		<-progress
	}
}
