package fs

import (
	"fmt"
	"sort"
	"sync"

	"mem"
)

// csdEntry_t is one CachedSection.data[] slot: either empty or a
// frame number with the PRESENT bit implied by present == true.
type csdEntry_t struct {
	present bool
	frame mem.Pa_t
}

/// CachedSection is a contiguous, page-aligned region of a file,
/// recording which physical frames (if any) back each of its pages.
type CachedSection struct {
	Offset int64 // page-aligned file offset
	PageCount int
	mappedRegion int // mapped-region-count; refcount of CoverRange callers
	data []csdEntry_t
}

func (cs *CachedSection) end() int64 {
	return cs.Offset + int64(cs.PageCount)*int64(mem.PGSIZE)
}

/// PageIndex converts a page-aligned file offset within this section
/// into a data[] index. Callers must hold the owning csd_t's mutex.
func (cs *CachedSection) PageIndex(offset int64) int {
	return int((offset - cs.Offset) / int64(mem.PGSIZE))
}

/// Present returns the frame backing page i and whether the PRESENT
/// bit is set.
func (cs *CachedSection) Present(i int) (mem.Pa_t, bool) {
	e := cs.data[i]
	return e.frame, e.present
}

/// Publish sets data[i] to frame with the PRESENT bit, the step that
/// makes a freshly loaded page visible to future accessors.
func (cs *CachedSection) Publish(i int, frame mem.Pa_t) {
	cs.data[i] = csdEntry_t{present: true, frame: frame}
}

/// ClearEntry removes the PRESENT bit and frame at i (used when
/// freeing a page past a new truncated size).
func (cs *CachedSection) ClearEntry(i int) {
	cs.data[i] = csdEntry_t{}
}

// entryRef returns a CacheRef_t whose Clear zeroes the PRESENT bit at
// page index i -- the weak back-pointer frames carry while STANDBY,
// consulted only under the page-frame spinlock.
func (cs *CachedSection) entryRef(i int, mu *sync.Mutex) *mem.CacheRef_t {
	return &mem.CacheRef_t{Clear: func() {
			mu.Lock()
			cs.data[i] = csdEntry_t{}
			mu.Unlock()
	}}
}

/// csd_t is the per-CacheSpace cached-section directory: a sorted,
/// non-overlapping array of CachedSection, guarded by csd-mutex.
type csd_t struct {
	mu sync.Mutex
	sections []*CachedSection
}

func newCSD() *csd_t {
	return &csd_t{}
}

// indexAt returns the index of the section whose range contains
// offset, or the index where such a section would be inserted, and
// whether it was found.
func (c *csd_t) indexAt(offset int64) (int, bool) {
	i := sort.Search(len(c.sections), func(i int) bool {
			return c.sections[i].end() > offset
	})
	if i < len(c.sections) && c.sections[i].Offset <= offset {
		return i, true
	}
	return i, false
}

/// Find performs a binary search over the sorted section array: returns
/// the CachedSection containing offset, or nil.
func (c *csd_t) Find(offset int64) *CachedSection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(offset)
}

// findLocked is Find without acquiring c.mu, for callers (within this
// package) that already hold it across a multi-step walk.
func (c *csd_t) findLocked(offset int64) *CachedSection {
	i, ok := c.indexAt(offset)
	if !ok {
		return nil
	}
	return c.sections[i]
}

/// Cover rounds [start,end) outward to page boundaries and ensures
/// the range is fully covered by CachedSections, allocating new
/// zero-initialized ones for gaps, then increments mapped-region-count
/// on every section intersecting the range. Idempotent for
/// equal ranges -- each call increments the refcount.
func (c *csd_t) Cover(start, end int64) error {
	start = roundDown(start, int64(mem.PGSIZE))
	end = roundUp(end, int64(mem.PGSIZE))
	if end <= start {
		panic("csd.Cover: empty or inverted range")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i, _ := c.indexAt(start)
	cursor := start
	var touched []*CachedSection
	for cursor < end {
		if i < len(c.sections) && c.sections[i].Offset <= cursor && cursor < c.sections[i].end() {
			s := c.sections[i]
			touched = append(touched, s)
			cursor = s.end()
			i++
			continue
		}
		// gap: allocate a new section up to the next existing
		// section's start (or end, whichever is nearer).
		next := end
		if i < len(c.sections) && c.sections[i].Offset < next {
			next = c.sections[i].Offset
		}
		if next <= cursor {
			panic("csd.Cover: overlap or non-monotonic gap")
		}
		npages := int((next - cursor) / int64(mem.PGSIZE))
		s := &CachedSection{
			Offset: cursor,
			PageCount: npages,
			data: make([]csdEntry_t, npages),
		}
		c.sections = append(c.sections, nil)
		copy(c.sections[i+1:], c.sections[i:])
		c.sections[i] = s
		touched = append(touched, s)
		cursor = s.end()
		i++
	}
	for _, s := range touched {
		s.mappedRegion++
	}
	return nil
}

/// Uncover decrements mapped-region-count on every section
/// intersecting [start,end). Sections are not freed here (deferred to
/// truncate/destroy/eviction per open question). Panics if the
/// first intersecting section is absent -- a contract violation by
/// the caller.
func (c *csd_t) Uncover(start, end int64) {
	start = roundDown(start, int64(mem.PGSIZE))
	end = roundUp(end, int64(mem.PGSIZE))

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.indexAt(start)
	if !ok {
		panic("csd.Uncover: no covering section at start")
	}
	for i < len(c.sections) && c.sections[i].Offset < end {
		s := c.sections[i]
		s.mappedRegion--
		if s.mappedRegion < 0 {
			panic("csd.Uncover: mapped-region-count underflow")
		}
		i++
	}
}

// freeStraddlingPages frees and clears every present page at or past
// boundary within the one CachedSection whose range straddles it
// (Offset <= boundary < end()). A section entirely past boundary is
// dropped as a whole by TruncateCache instead; this handles the
// section that cannot be dropped because part of it still lies below
// boundary and must be kept.
func (c *csd_t) freeStraddlingPages(boundary int64, free func(mem.Pa_t)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.indexAt(boundary)
	if !ok {
		return
	}
	cs := c.sections[i]
	for idx := cs.PageIndex(boundary); idx < cs.PageCount; idx++ {
		if e := cs.data[idx]; e.present {
			free(e.frame)
			cs.ClearEntry(idx)
		}
	}
}

// reclaimBelow drops every section with mappedRegion == 0 whose range
// lies entirely below boundary, freeing any present frames via free.
// Used by DestroyCache; Truncate and Destroy are the only paths that
// drop CachedSections.
func (c *csd_t) reclaimBelow(boundary int64, free func(mem.Pa_t)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.sections[:0]
	for _, s := range c.sections {
		if s.end() <= boundary && s.mappedRegion == 0 {
			for _, e := range s.data {
				if e.present {
					free(e.frame)
				}
			}
			continue
		}
		kept = append(kept, s)
	}
	c.sections = kept
}

// forEachInRange walks sections intersecting [start,end), holding
// csd-mutex for the duration of f. f must not block or re-enter the
// csd, per the outer-to-inner lock order the rest of the package
// follows.
func (c *csd_t) forEachInRange(start, end int64, f func(*CachedSection)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, _ := c.indexAt(start)
	for i < len(c.sections) && c.sections[i].Offset < end {
		f(c.sections[i])
		i++
	}
}

func (c *csd_t) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := ""
	for _, sec := range c.sections {
		s += fmt.Sprintf("[%d,%d) refs=%d\n", sec.Offset, sec.end(), sec.mappedRegion)
	}
	return s
}

func roundDown(v, b int64) int64 {
	return v - (v % b)
}

func roundUp(v, b int64) int64 {
	return roundDown(v+b-1, b)
}
