package fs

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// writeSectionPrepareLocked implements WriteSectionPrepare:
// remove s from whichever list it is on, clear modified, set writing,
// and take a synthetic accessor. Caller must hold p.mu.
func (p *Pool) writeSectionPrepareLocked(s *ActiveSection) {
	p.removeFromList(s)
	s.modified = false
	s.writing = true
	s.accessors++
}

// writeSection implements WriteSection: invokes write_backing
// in coalesced runs of dirty pages, dispatched concurrently via
// errgroup since each run touches disjoint frame memory, clears
// modified-pages whether or not the writes succeed (failures are
// recorded in the cache's error ring), signals write-complete (section-local and
// cache-wide), and places the section back on LRU if no real accessor
// remains. The ASP mutex is dropped across the I/O calls per the
// lock-order contract.
func (p *Pool) writeSection(s *ActiveSection) error {
	p.mu.Lock()
	runs := s.dirty.Runs(0, PAGES_PER_SECTION)
	c := s.cache
	base := s.offset
	p.mu.Unlock()

	step := pgsize()
	var errMu sync.Mutex
	var lastErr error
	var eg errgroup.Group
	for _, run := range runs {
		run := run
		eg.Go(func() error {
			lo, hi := run[0], run[1]
			buf := make([]byte, (hi-lo)*step)
			for i := lo; i < hi; i++ {
				fileOffset := base + int64(i)*int64(step)
				cs := c.csd.Find(fileOffset)
				if cs == nil {
					panic("writeSection: dirty page has no covering CachedSection")
				}
				frame, present := cs.Present(cs.PageIndex(fileOffset))
				if !present {
					panic("writeSection: dirty page not present")
				}
				copy(buf[(i-lo)*step:(i-lo+1)*step], p.db.Data(frame)[:])
			}
			off := base + int64(lo)*int64(step)
			if err := c.backing.WriteBacking(buf, off); err != nil {
				errMu.Lock()
				lastErr = err
				errMu.Unlock()
				c.errs.record(off, err)
			}
			return nil
		})
	}
	eg.Wait()

	p.mu.Lock()
	s.dirty.ClearAll()
	s.writing = false
	s.signalWriteComplete()
	s.accessors--
	if s.accessors < 0 {
		panic("writeSection: accessors underflow")
	}
	placeOnLRU := s.accessors == 0
	if placeOnLRU {
		p.lru.PushBack(s)
	}
	s.flush = false
	p.mu.Unlock()

	c.signalWriteComplete()
	c.Stats.WriteBehinds.Inc()
	return lastErr
}

// kickWriteBehind performs an immediate write-behind pass on s rather
// than waiting for the background worker, implementing the
// WRITE_BACK flag's "return the section with an immediate
// write-behind kick". s must currently be sitting on
// the modified list with accessors == 0.
func (p *Pool) kickWriteBehind(s *ActiveSection) {
	p.mu.Lock()
	if !s.modified {
		p.mu.Unlock()
		return
	}
	p.writeSectionPrepareLocked(s)
	p.mu.Unlock()
	p.signalModifiedNonFull()
	p.writeSection(s)
}

// writeBehindThread is a dedicated goroutine classified as a
// page-generator (via ctx, tagged at spawn in NewPool) that drains the
// modified list under memory-pressure policy.
func (p *Pool) writeBehindThread(ctx context.Context) {
	defer close(p.wbDone)
	for {
		p.mu.Lock()
		for p.modified.Len() == 0 {
			if p.shutdown {
				p.mu.Unlock()
				return
			}
			ch := p.modifiedNonEmpty
			p.mu.Unlock()
			select {
			case <-ch:
			case <-p.wbStop:
				return
			}
			p.mu.Lock()
		}
		p.mu.Unlock()

		// step 2: defer under healthy memory, bounded by WriteBehindDelay.
		select {
		case <-p.pressure.Low:
		case <-time.After(p.cfg.WriteBehindDelay):
		case <-p.wbStop:
			return
		}

		for {
			p.mu.Lock()
			s := p.modified.Front()
			if s == nil {
				p.mu.Unlock()
				break
			}
			p.writeSectionPrepareLocked(s)
			p.mu.Unlock()
			p.signalModifiedNonFull()
			p.writeSection(s)
		}
	}
}
