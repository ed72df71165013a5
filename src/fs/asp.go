package fs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"limits"
	"mem"
	"oommsg"
	"tinfo"
	"vm"
)

/// PoolConfig tunes the active-section pool at construction, overridable
/// by the cmd/cached demo binary's pflag-parsed flags.
type PoolConfig struct {
	Slots int // M, the fixed ASP array size
	MaxModified int // modified-list length bound
	WriteBehindDelay time.Duration // step 2
	Frames int // size of the backing frame database
	CommitLimit int64 // fixed-commit budget for reserve/release
	Logger zerolog.Logger
}

/// DefaultPoolConfig returns the package's default tuning constants.
// MaxModified is sourced from limits.Syslimit rather than a private
// constant so the same system-wide bound governs both the modified
// list here and any other subsystem that consults Syslimit.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Slots: DefaultPoolSlots,
		MaxModified: limits.Syslimit.MaxModified,
		WriteBehindDelay: DefaultWriteBehindDelayMillis * time.Millisecond,
		Frames: DefaultPoolSlots * PAGES_PER_SECTION * 4,
		CommitLimit: int64(DefaultPoolSlots) * SECTION_SIZE * 4,
		Logger: zerolog.Nop(),
	}
}

/// ErrInsufficientResources is returned when the LRU is empty with no
/// victim to evict, or a CSD allocation fails.
type ErrInsufficientResources struct{ Reason string }

func (e *ErrInsufficientResources) Error() string {
	return fmt.Sprintf("insufficient resources: %s", e.Reason)
}

/// Pool is the global active-section manager (ASP): a fixed
/// array of ActiveSection, an LRU list, a modified list, and the
/// write-behind worker's control state. Passed explicitly to every
/// cache operation rather than reached for as an ambient global.
type Pool struct {
	mu sync.Mutex // asp-mutex
	sections []*ActiveSection
	lru *sectionList_t
	modified *sectionList_t

	cfg PoolConfig
	db *mem.Database_t

	pressure *oommsg.Pressure_t
	commit *semaphore.Weighted // reserve/release pageable commit

	log zerolog.Logger

	modifiedNonEmpty chan struct{}
	modifiedNonFull chan struct{}

	wbStop chan struct{}
	wbDone chan struct{}
	shutdown bool
}

/// NewPool constructs and starts a Pool: allocates the frame database,
/// reserves ASP virtual space (one vm.Space_t per slot), populates the
/// LRU list with every slot, and spawns the write-behind worker as a
/// page-generator thread.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Slots <= 0 {
		cfg.Slots = DefaultPoolSlots
	}
	if cfg.MaxModified <= 0 {
		cfg.MaxModified = DefaultMaxModified
	}
	if cfg.WriteBehindDelay <= 0 {
		cfg.WriteBehindDelay = DefaultWriteBehindDelayMillis * time.Millisecond
	}
	if cfg.Frames <= 0 {
		cfg.Frames = cfg.Slots * PAGES_PER_SECTION * 4
	}
	p := &Pool{
		sections: make([]*ActiveSection, cfg.Slots),
		lru: newSectionList(),
		modified: newSectionList(),
		cfg: cfg,
		db: mem.NewDatabase(cfg.Frames),
		pressure: oommsg.NewPressure(),
		log: cfg.Logger,
		modifiedNonEmpty: make(chan struct{}),
		modifiedNonFull: make(chan struct{}),
		wbStop: make(chan struct{}),
		wbDone: make(chan struct{}),
	}
	if cfg.CommitLimit > 0 {
		p.commit = semaphore.NewWeighted(cfg.CommitLimit)
	}
	for i := range p.sections {
		s := newActiveSection(i, vm.NewSpace(uintptr(mem.PGSIZE)))
		p.sections[i] = s
		p.lru.PushBack(s)
	}
	go p.writeBehindThread(tinfo.WithPageGenerator(context.Background()))
	return p
}

/// Shutdown stops the write-behind worker and waits for it to drain.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	close(p.wbStop)
	<-p.wbDone
}

// signalModifiedNonEmpty wakes every waiter blocked on an empty
// modified list. Takes p.mu itself -- callers must not hold it, since
// the write-behind worker and an access-path WRITE_BACK kick both call
// this right after releasing p.mu and would otherwise race on the
// close-and-replace.
func (p *Pool) signalModifiedNonEmpty() {
	p.mu.Lock()
	close(p.modifiedNonEmpty)
	p.modifiedNonEmpty = make(chan struct{})
	p.mu.Unlock()
}

// signalModifiedNonFull wakes every waiter blocked on a full modified
// list. Same locking contract as signalModifiedNonEmpty.
func (p *Pool) signalModifiedNonFull() {
	p.mu.Lock()
	close(p.modifiedNonFull)
	p.modifiedNonFull = make(chan struct{})
	p.mu.Unlock()
}

// reserveCommit blocks until SECTION_SIZE bytes of commit are
// available, per entry precondition; released on exit via
// releaseCommit. Backed by golang.org/x/sync/semaphore as a weighted
// admission gate.
func (p *Pool) reserveCommit(ctx context.Context) error {
	if p.commit == nil {
		return nil
	}
	return p.commit.Acquire(ctx, SECTION_SIZE)
}

func (p *Pool) releaseCommit() {
	if p.commit == nil {
		return
	}
	p.commit.Release(SECTION_SIZE)
}

// waitNotCritical blocks the caller on available-not-critical unless
// ctx is tagged as a page-generator thread.
func (p *Pool) waitNotCritical(ctx context.Context) {
	if tinfo.IsPageGenerator(ctx) {
		return
	}
	<-p.pressure.NotCritical
}

// bind implements the choose-and-bind protocol. On success,
// the returned section has accessors incremented by one; the caller
// is responsible for eventually releasing it via release().
func (p *Pool) bind(c *CacheSpace, offset int64) (*ActiveSection, error) {
	if refIdx, aspIdx, ok := c.findRef(offset); ok {
		p.mu.Lock()
		s := p.sections[aspIdx]
		if s.cache == c && s.offset == offset {
			if s.accessors == 0 {
				p.removeFromList(s)
			}
			s.accessors++
			p.mu.Unlock()
			return s, nil
		}
		p.mu.Unlock()
		_ = refIdx // slot was stolen by another file; fall through and replace
	}

	p.mu.Lock()
	victim := p.lru.PopFront()
	if victim == nil {
		p.mu.Unlock()
		return nil, &ErrInsufficientResources{Reason: "ASP LRU exhausted"}
	}
	var evictedCache *CacheSpace
	var evictedOffset int64
	if victim.cache != nil {
		evictedCache, evictedOffset = victim.cache, victim.offset
		p.dereferenceLocked(victim, 0)
		victim.cache = nil
	}
	p.mu.Unlock()

	if evictedCache != nil {
		evictedCache.csd.Uncover(evictedOffset, evictedOffset+SECTION_SIZE)
		evictedCache.dropRef(evictedOffset)
		evictedCache.Stats.Evictions.Inc()
	}

	if err := c.csd.Cover(offset, offset+SECTION_SIZE); err != nil {
		p.mu.Lock()
		p.lru.PushFront(victim)
		p.mu.Unlock()
		return nil, err
	}

	p.mu.Lock()
	victim.cache = c
	victim.offset = offset
	victim.accessors = 1
	p.mu.Unlock()
	c.putRef(offset, victim.index)
	return victim, nil
}

// release decrements accessors and, on reaching zero, places the
// section on LRU or modified, blocking on modified-non-full when the
// modified-list bound would be exceeded. wantWriteBack
// requests an immediate write-behind kick (WRITE_BACK flag).
func (p *Pool) release(ctx context.Context, s *ActiveSection, wantWriteBack bool) {
	p.mu.Lock()
	s.accessors--
	if s.accessors < 0 {
		panic("release: accessors underflow")
	}
	if s.accessors > 0 {
		p.mu.Unlock()
		return
	}
	if s.writing {
		// a synthetic accessor from WriteSectionPrepare is still
		// outstanding; WriteSection itself will place the section.
		p.mu.Unlock()
		return
	}
	if !s.modified {
		p.lru.PushBack(s)
		p.mu.Unlock()
		return
	}
	for p.modified.Len() >= p.cfg.MaxModified {
		ch := p.modifiedNonFull
		p.mu.Unlock()
		<-ch
		p.mu.Lock()
		if s.accessors > 0 {
			// re-accessed while we waited; caller will release again.
			p.mu.Unlock()
			return
		}
	}
	p.modified.PushBack(s)
	first := p.modified.Len() == 1
	if s.flush {
		// FlushCache asked for write-back once the last accessor left.
		wantWriteBack = true
	}
	p.mu.Unlock()
	if first {
		p.signalModifiedNonEmpty()
	}
	if wantWriteBack {
		p.kickWriteBehind(s)
	}
}

func (p *Pool) removeFromList(s *ActiveSection) {
	if s.elem == nil {
		return
	}
	// both lists share the same container/list element type; only one
	// of them actually holds s, so trying both is safe.
	p.lru.Remove(s)
	p.modified.Remove(s)
}

// dereferenceLocked implements Dereference(S, start): unmaps
// the kernel VA range [start, PAGES_PER_SECTION) and clears the
// corresponding referenced-pages/modified-pages bits. Requires
// accessors == 0 when start == 0; the truncate path uses start > 0
// while holding a synthetic accessor. Caller must hold p.mu.
func (p *Pool) dereferenceLocked(s *ActiveSection, start int) {
	if start == 0 && s.accessors != 0 {
		panic("dereference: accessors must be zero for a full dereference")
	}
	if s.loading {
		panic("dereference: section is loading")
	}
	c := s.cache
	for i := start; i < PAGES_PER_SECTION; i++ {
		if !s.referenced.Get(i) {
			continue
		}
		fileOffset := s.offset + int64(i)*int64(pgsize())
		cs := c.csd.Find(fileOffset)
		if cs != nil {
			idx := cs.PageIndex(fileOffset)
			ref := cs.entryRef(idx, &c.csd.mu)
			s.space.UnmapPages(p.db, s.virt(i), 1, vm.UNMAP_BALANCE_FILE, ref)
		}
	}
	if start == 0 {
		s.referenced = newBitmap(PAGES_PER_SECTION)
		s.dirty = newBitmap(PAGES_PER_SECTION)
	} else {
		for i := start; i < PAGES_PER_SECTION; i++ {
			clearBit(s.referenced, i)
			clearBit(s.dirty, i)
		}
	}
}

func clearBit(b bitmap_t, i int) {
	// SetAtomic only sets; clearing is only ever done while the
	// asp-mutex is held (dereference, truncate), so a plain
	// read-modify-write is safe here.
	word := i / 32
	mask := uint32(1) << uint(i%32)
	b[word] &^= mask
}
