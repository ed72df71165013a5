package fs

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"mem"
	"vm"
)

/// AccessFlag selects the operation(s) AccessCache performs on each
/// section it touches.
type AccessFlag int

const (
	/// MAP maps covered file pages into MapRequest.Space at
	/// MapRequest.BaseVA. file_offset/count must be page-aligned.
	MAP AccessFlag = 1 << iota
	/// READ copies from cache to buffer.
	READ
	/// WRITE copies from buffer into the cache and marks pages dirty.
	WRITE
	/// WRITE_BACK requests an immediate write-behind kick once the
	/// section's accessor count reaches zero.
	WRITE_BACK
	/// PRECISE, with WRITE_BACK, bypasses modified-page tracking and
	/// calls write_backing inline for exactly the requested bytes.
	PRECISE
	/// USER_BUFFER_MAPPED marks buffer as itself a mapping of (possibly
	/// this same) cache, so the engine must not fault into it while
	/// holding state that could deadlock.
	USER_BUFFER_MAPPED
)

/// MapRequest carries the MAP flag's target address space and flags;
/// nil when MAP is not set.
type MapRequest struct {
	Space *vm.Space_t
	BaseVA uintptr
	Flags vm.MapFlag
}

// loadPage tracks one page discovered absent from the CSD while
// walking a section under csd-mutex, and the frame
// allocated for it once loadPages runs.
type loadPage struct {
	index int // page index within the active section
	fileOffset int64
	needsRead bool // false when a WRITE fully overwrites this page
	frame mem.Pa_t
}

/// AccessCache is the cache's sole entry point for READ, WRITE, MAP,
/// and their write-back variants. buffer is consumed
/// sequentially across the sections spanning [fileOffset,
/// fileOffset+count); for a pure MAP access buffer may be nil.
func AccessCache(ctx context.Context, cache *CacheSpace, buffer []byte, fileOffset int64, count int, flags AccessFlag, mapReq *MapRequest) error {
	if count <= 0 {
		return nil
	}
	pool := cache.pool
	step := int64(SECTION_SIZE)
	end := fileOffset + int64(count)

	if err := pool.reserveCommit(ctx); err != nil {
		return errors.Wrap(err, "AccessCache: reserve commit")
	}
	defer pool.releaseCommit()
	pool.waitNotCritical(ctx)

	bufOff := 0
	for spanStart := roundDown(fileOffset, step); spanStart < end; spanStart += step {
		lo, hi := fileOffset, end
		if spanStart > lo {
			lo = spanStart
		}
		if spanEnd := spanStart + step; spanEnd < hi {
			hi = spanEnd
		}

		s, err := pool.bind(cache, spanStart)
		if err != nil {
			cache.Stats.Misses.Inc()
			return errors.Wrap(err, "AccessCache: bind")
		}
		cache.Stats.Hits.Inc()

		var sub []byte
		if buffer != nil {
			sub = buffer[bufOff: bufOff+int(hi-lo)]
		}
		// copyOrMap places pages relative to this span's lo, so the
		// target VA is advanced by how far lo lies past fileOffset.
		spanMap := mapReq
		if mapReq != nil {
			m := *mapReq
			m.BaseVA += uintptr(lo - fileOffset)
			spanMap = &m
		}
		if err := accessSpan(ctx, pool, cache, s, spanStart, lo, hi, sub, flags, spanMap); err != nil {
			pool.release(ctx, s, false)
			return err
		}
		bufOff += int(hi - lo)
	}
	return nil
}

// accessSpan performs steps 2-7 of against one already-bound
// ActiveSection s covering [spanStart, spanStart+SECTION_SIZE).
func accessSpan(ctx context.Context, pool *Pool, cache *CacheSpace, s *ActiveSection, spanStart, lo, hi int64, buf []byte, flags AccessFlag, mapReq *MapRequest) error {
	if flags&WRITE != 0 {
		pool.waitNotWriting(s)
	}

	step := int64(pgsize())
	ps := int((lo - spanStart) / step)
	pe := int((hi - spanStart + step - 1) / step)

	if err := ensureReferenced(pool, cache, s, spanStart, ps, pe, lo, hi, buf, flags); err != nil {
		return err
	}

	if err := copyOrMap(pool, cache, s, spanStart, lo, hi, buf, flags, mapReq); err != nil {
		return err
	}

	wantWriteBack := flags&WRITE != 0 && flags&WRITE_BACK != 0 && flags&PRECISE == 0
	pool.release(ctx, s, wantWriteBack)
	return nil
}

// waitNotWriting blocks until s.writing is false, re-checking under
// pool.mu after every wakeup.
func (p *Pool) waitNotWriting(s *ActiveSection) {
	for {
		p.mu.Lock()
		if !s.writing {
			p.mu.Unlock()
			return
		}
		ch := s.writeComplete
		p.mu.Unlock()
		<-ch
	}
}

// ensureReferenced implements steps 3-5: the fast path when every
// touched page is already mapped into s; otherwise the csd-mutex walk
// that maps already-present pages and loads absent ones, retrying on
// load collision with another accessor.
func ensureReferenced(pool *Pool, cache *CacheSpace, s *ActiveSection, spanStart int64, ps, pe int, lo, hi int64, buf []byte, flags AccessFlag) error {
	if s.referenced.AllSetInRange(ps, pe) {
		return nil
	}

	for {
		toLoad, collided := walkAndMapPresent(pool, cache, s, spanStart, ps, pe, lo, hi, flags)
		if collided {
			continue
		}
		if len(toLoad) == 0 {
			return nil
		}
		writeBuf := buf
		if flags&WRITE == 0 {
			writeBuf = nil // only a WRITE's data is pre-copied into loaded pages
		}
		if err := loadPages(pool, cache, s, toLoad, writeBuf, lo); err != nil {
			pool.mu.Lock()
			s.loading = false
			s.signalLoadComplete()
			pool.mu.Unlock()
			return err
		}
		return nil
	}
}

// walkAndMapPresent walks [ps,pe) under csd-mutex: pages already
// PRESENT in the CSD but not yet referenced in s are activated/refup'd
// and mapped in place; absent pages are collected as toLoad. If
// another accessor is already loading this section, it drops both
// locks, waits on load-complete, and reports a collision for the
// caller to retry from scratch.
func walkAndMapPresent(pool *Pool, cache *CacheSpace, s *ActiveSection, spanStart int64, ps, pe int, lo, hi int64, flags AccessFlag) (toLoad []loadPage, collided bool) {
	step := int64(pgsize())

	cache.csd.mu.Lock()
	for i := ps; i < pe; i++ {
		if s.referenced.Get(i) {
			continue
		}
		fileOffset := spanStart + int64(i)*step
		cs := cache.csd.findLocked(fileOffset)
		if cs == nil {
			panic("walkAndMapPresent: page not covered by CSD")
		}
		idx := cs.PageIndex(fileOffset)
		frame, present := cs.Present(idx)
		if !present {
			pageEnd := fileOffset + step
			needsRead := !(flags&WRITE != 0 && fileOffset >= lo && pageEnd <= hi)
			toLoad = append(toLoad, loadPage{index: i, fileOffset: fileOffset, needsRead: needsRead})
			continue
		}
		switch pool.db.State(frame) {
		case mem.STANDBY:
			pool.db.ActivatePages(frame, 1)
		case mem.ACTIVE:
			// already pinned by another mapping; MapPage below
			// contributes this window's own reference.
		default:
			panic("walkAndMapPresent: present frame in unexpected state")
		}
		s.space.MapPage(pool.db, frame, s.virt(i), vm.MAP_IGNORE_IF_MAPPED)
		s.referenced.SetAtomic(i)
	}

	if len(toLoad) == 0 {
		cache.csd.mu.Unlock()
		return nil, false
	}

	pool.mu.Lock()
	if s.loading {
		ch := s.loadComplete
		pool.mu.Unlock()
		cache.csd.mu.Unlock()
		<-ch
		return nil, true
	}
	s.loading = true
	pool.mu.Unlock()
	cache.csd.mu.Unlock()
	return toLoad, false
}

// loadPages allocates a frame for each absent page, maps it into s,
// coalesces contiguous needsRead runs into concurrent read_backing
// calls, then -- for WRITE -- copies buf into every to-load page (read
// or not) before any frame is published to the CSD, avoiding a fault
// into a user buffer that itself maps this cache while state is held.
// On success it publishes every frame to the CSD, sets the
// corresponding referenced bits, and clears loading. On error every
// allocated frame is unmapped and freed and the error is returned
// verbatim; loading/load-complete are left for the caller to clear.
func loadPages(pool *Pool, cache *CacheSpace, s *ActiveSection, toLoad []loadPage, buf []byte, writeLo int64) error {
	for i := range toLoad {
		frame, ok := pool.db.AllocFrame()
		if !ok {
			unwindLoad(pool, s, toLoad[:i])
			return &ErrInsufficientResources{Reason: "no free frames for load"}
		}
		toLoad[i].frame = frame
		s.space.MapPage(pool.db, frame, s.virt(toLoad[i].index), vm.MAP_NONE)
	}

	var eg errgroup.Group
	for lo := 0; lo < len(toLoad); {
		if !toLoad[lo].needsRead {
			lo++
			continue
		}
		hi := lo + 1
		for hi < len(toLoad) && toLoad[hi].needsRead && toLoad[hi].fileOffset == toLoad[hi-1].fileOffset+int64(pgsize()) {
			hi++
		}
		runLo, runHi := lo, hi // per-run copies for the closure below
		eg.Go(func() error {
			n := runHi - runLo
			runBuf := make([]byte, n*pgsize())
			if err := cache.backing.ReadBacking(runBuf, toLoad[runLo].fileOffset); err != nil {
				return errors.Wrap(err, "loadPages: read_backing")
			}
			for i := 0; i < n; i++ {
				copy(pool.db.Data(toLoad[runLo+i].frame)[:], runBuf[i*pgsize():(i+1)*pgsize()])
			}
			return nil
		})
		lo = hi
	}
	if err := eg.Wait(); err != nil {
		unwindLoad(pool, s, toLoad)
		return err
	}

	if len(buf) > 0 && writeLo >= 0 {
		for _, tl := range toLoad {
			copyWriteIntoPage(pool.db, tl.frame, tl.fileOffset, writeLo, buf)
		}
	}

	cache.csd.mu.Lock()
	for _, tl := range toLoad {
		cs := cache.csd.findLocked(tl.fileOffset)
		idx := cs.PageIndex(tl.fileOffset)
		cs.Publish(idx, tl.frame)
		s.referenced.SetAtomic(tl.index)
	}
	cache.csd.mu.Unlock()

	pool.mu.Lock()
	s.loading = false
	s.signalLoadComplete()
	pool.mu.Unlock()
	return nil
}

func unwindLoad(pool *Pool, s *ActiveSection, done []loadPage) {
	for _, tl := range done {
		s.space.UnmapPages(pool.db, s.virt(tl.index), 1, vm.UNMAP_FREE, nil)
	}
}

// copyWriteIntoPage copies the portion of buf (whose first byte is
// writeLo in file-offset terms) that overlaps the page
// [pageOffset, pageOffset+pgsize) into that page's frame.
func copyWriteIntoPage(db *mem.Database_t, frame mem.Pa_t, pageOffset, writeLo int64, buf []byte) {
	pageEnd := pageOffset + int64(pgsize())
	writeHi := writeLo + int64(len(buf))
	lo := maxI64(pageOffset, writeLo)
	hi := minI64(pageEnd, writeHi)
	if lo >= hi {
		return
	}
	dst := db.Data(frame)[lo-pageOffset: hi-pageOffset]
	src := buf[lo-writeLo: hi-writeLo]
	copy(dst, src)
}

// copyOrMap implements step 6 for an already fully-referenced
// section: MAP/READ/WRITE(precise or not).
func copyOrMap(pool *Pool, cache *CacheSpace, s *ActiveSection, spanStart, lo, hi int64, buf []byte, flags AccessFlag, mapReq *MapRequest) error {
	step := int64(pgsize())
	ps := int((lo - spanStart) / step)
	pe := int((hi - spanStart + step - 1) / step)

	if flags&MAP != 0 {
		for i := ps; i < pe; i++ {
			frame, ok := s.space.Translate(s.virt(i))
			if !ok {
				panic("copyOrMap: MAP over unreferenced page")
			}
			dstVA := mapReq.BaseVA + uintptr(spanStart+int64(i)*step-lo)
			mapReq.Space.MapPage(pool.db, frame, dstVA, mapReq.Flags|vm.MAP_IGNORE_IF_MAPPED)
		}
	}

	if flags&READ != 0 {
		for off := lo; off < hi; {
			i := int((off - spanStart) / step)
			pageOffset := spanStart + int64(i)*step
			frame, ok := s.space.Translate(s.virt(i))
			if !ok {
				panic("copyOrMap: READ over unreferenced page")
			}
			chunkEnd := minI64(pageOffset+step, hi)
			n := chunkEnd - off
			copy(buf[off-lo:off-lo+n], frameBytes(pool, frame)[off-pageOffset:off-pageOffset+n])
			off = chunkEnd
		}
	}

	if flags&WRITE != 0 {
		precise := flags&PRECISE != 0
		var dirtied []int
		for off := lo; off < hi; {
			i := int((off - spanStart) / step)
			pageOffset := spanStart + int64(i)*step
			frame, ok := s.space.Translate(s.virt(i))
			if !ok {
				panic("copyOrMap: WRITE over unreferenced page")
			}
			chunkEnd := minI64(pageOffset+step, hi)
			n := chunkEnd - off
			copy(frameBytes(pool, frame)[off-pageOffset:off-pageOffset+n], buf[off-lo:off-lo+n])
			if !precise {
				dirtied = append(dirtied, i)
			}
			off = chunkEnd
		}
		if precise {
			if err := cache.backing.WriteBacking(buf, lo); err != nil {
				return errors.Wrap(err, "copyOrMap: write_backing (precise)")
			}
		} else {
			for _, i := range dirtied {
				s.dirty.SetAtomic(i)
			}
			pool.mu.Lock()
			s.modified = true
			pool.mu.Unlock()
		}
	}
	return nil
}

func frameBytes(pool *Pool, frame mem.Pa_t) []byte {
	return pool.db.Data(frame)[:]
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
