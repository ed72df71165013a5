package fs

import (
	"container/list"

	"vm"
)

/// ActiveSection is a fixed-size window into some file's data, with a
/// reserved slice of kernel virtual address space. Bound
/// once at init, rebound indefinitely to different (CacheSpace,
/// file-offset) pairs thereafter.
type ActiveSection struct {
	index int // this section's slot number in the pool's fixed array
	space *vm.Space_t

	// list membership: at most one of lru/modified, enforced by the
	// Pool. elem is owned by whichever sectionList_t currently
	// holds this section.
	elem *list.Element

	cache *CacheSpace
	offset int64

	accessors int
	loading bool
	writing bool
	modified bool
	flush bool // truncate/flush requested write-back once released

	// load-complete/write-complete: auto-reset events. Closing
	// and replacing the channel wakes every waiter, giving broadcast
	// semantics rather than single-waiter auto-reset.
	loadComplete chan struct{}
	writeComplete chan struct{}

	referenced bitmap_t // referenced-pages[N]
	dirty bitmap_t // modified-pages[N]
	refCount int // referenced-page-count
}

func newActiveSection(index int, space *vm.Space_t) *ActiveSection {
	return &ActiveSection{
		index: index,
		space: space,
		loadComplete: make(chan struct{}),
		writeComplete: make(chan struct{}),
		referenced: newBitmap(PAGES_PER_SECTION),
		dirty: newBitmap(PAGES_PER_SECTION),
	}
}

func (s *ActiveSection) signalLoadComplete() {
	close(s.loadComplete)
	s.loadComplete = make(chan struct{})
}

func (s *ActiveSection) signalWriteComplete() {
	close(s.writeComplete)
	s.writeComplete = make(chan struct{})
}

// virt returns the kernel VA (within s.space) for page i of this
// section.
func (s *ActiveSection) virt(i int) uintptr {
	return uintptr(i * pgsize())
}

var _pgsizeCache int

func pgsize() int {
	if _pgsizeCache == 0 {
		_pgsizeCache = SECTION_SIZE / PAGES_PER_SECTION
	}
	return _pgsizeCache
}

// checkInvariants is called, in builds that want the extra safety net,
// to assert s's list membership and writing/accessor bookkeeping are
// mutually consistent. Kept cheap enough to call from tests after
// every lock release.
func (s *ActiveSection) checkInvariants(onLRU, onModified bool) {
	if s.accessors > 0 && (onLRU || onModified) {
		panic("ActiveSection: accessors>0 but on a list")
	}
	if onModified && (s.accessors != 0 || !s.modified || s.writing) {
		panic("ActiveSection: bad modified-list membership")
	}
	if onLRU && (s.accessors != 0 || s.modified || s.writing) {
		panic("ActiveSection: bad LRU membership")
	}
	if s.writing && (s.accessors < 1 || s.modified) {
		panic("ActiveSection: writing invariant violated")
	}
}
