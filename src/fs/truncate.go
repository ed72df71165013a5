package fs

import "mem"

// TruncateCache shrinks or re-extends the logical size backing c to
// newSize. The caller guarantees no concurrent AccessCache
// against this CacheSpace. Active references are walked
// high-to-low; fully-past-the-new-end sections are evicted without
// write-back, a straddling section is dereferenced from its new tail
// page onward, and the CSD is trimmed of pages past newSize.
func TruncateCache(c *CacheSpace, newSize int64) {
	for _, ref := range c.allRefsHighToLow() {
		if ref.offset+SECTION_SIZE <= newSize {
			break
		}
		truncateRef(c, ref, newSize)
	}

	boundary := roundUp(newSize, int64(mem.PGSIZE))
	c.csd.freeStraddlingPages(boundary, func(p mem.Pa_t) {
			c.pool.db.FreeFrame(p)
	})
	// drop every uncovered section lying entirely past boundary
	c.csd.mu.Lock()
	kept := c.csd.sections[:0]
	for _, cs := range c.csd.sections {
		if cs.Offset >= boundary && cs.mappedRegion == 0 {
			for _, e := range cs.data {
				if e.present {
					c.pool.db.FreeFrame(e.frame)
				}
			}
			continue
		}
		kept = append(kept, cs)
	}
	c.csd.sections = kept
	c.csd.mu.Unlock()
	zeroStraddlingTail(c, newSize)

	c.size = newSize
}

// truncateRef handles one active reference past the new size: wait
// out any in-flight write, then either fully evict the section (it
// lies entirely past newSize) or dereference just its new tail.
func truncateRef(c *CacheSpace, ref activeRef_t, newSize int64) {
	pool := c.pool

	pool.mu.Lock()
	s := pool.sections[ref.index]
	for {
		if s.cache != c || s.offset != ref.offset {
			pool.mu.Unlock()
			return
		}
		if !s.writing {
			break
		}
		ch := s.writeComplete
		pool.mu.Unlock()
		<-ch
		pool.mu.Lock()
	}
	if s.loading {
		panic("TruncateCache: section loading during truncate")
	}

	pool.removeFromList(s)
	s.accessors++ // synthetic accessor while this function holds the section

	if ref.offset >= newSize {
		pool.dereferenceLocked(s, 0)
		s.modified = false
		s.cache = nil
		s.accessors = 0
		pool.lru.PushFront(s)
		pool.mu.Unlock()

		c.csd.Uncover(ref.offset, ref.offset+SECTION_SIZE)
		c.dropRef(ref.offset)
		return
	}

	tailPage := int((newSize - ref.offset + int64(mem.PGSIZE) - 1) / int64(mem.PGSIZE))
	pool.dereferenceLocked(s, tailPage)
	s.accessors--
	if s.accessors == 0 {
		if s.modified {
			pool.modified.PushBack(s)
		} else {
			pool.lru.PushBack(s)
		}
	}
	pool.mu.Unlock()
}

// zeroStraddlingTail zeroes the inaccessible tail
// [newSize mod PGSIZE, PGSIZE) of the page straddling newSize, if that
// page is still present in the CSD.
func zeroStraddlingTail(c *CacheSpace, newSize int64) {
	off := newSize % int64(mem.PGSIZE)
	if off == 0 {
		return
	}
	pageStart := newSize - off
	cs := c.csd.Find(pageStart)
	if cs == nil {
		return
	}
	idx := cs.PageIndex(pageStart)
	frame, present := cs.Present(idx)
	if !present {
		return
	}
	data := c.pool.db.Data(frame)
	for i := off; i < int64(mem.PGSIZE); i++ {
		data[i] = 0
	}
}
