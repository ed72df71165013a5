// Package vm models the virtual address-space mapping primitives the
// cache depends on: map/unmap/translate over a kernel or simulated
// user address space. Real x86 page tables driven through a patched
// runtime (Sys_pgfault, Tlbshoot, Userdmap8_inner) don't exist here,
// so Space_t keeps the same map/unmap/translate shape but backs it
// with a plain Go map from virtual page number to physical frame.
package vm

import (
	"sync"

	"mem"
)

/// MapFlag controls how Map behaves when a slot is already occupied.
type MapFlag int

const (
	/// MAP_NONE requires the slot be unmapped.
	MAP_NONE MapFlag = 0
	/// MAP_IGNORE_IF_MAPPED succeeds as a no-op if already mapped,
	/// mirroring the access engine's MAP step into a user space that
	/// is not locked against concurrent faults.
	MAP_IGNORE_IF_MAPPED MapFlag = 1 << iota
)

/// UnmapFlag controls the effect unmapping has on frame state.
type UnmapFlag int

const (
	/// UNMAP_FREE means the frame should be freed when its last
	/// mapping is dropped.
	UNMAP_FREE UnmapFlag = iota
	/// UNMAP_BALANCE_FILE means the frame should transition
	/// ACTIVE -> STANDBY rather than being freed, since a CSD slot
	/// still names it (the cache's own kernel-VA unmap path).
	UNMAP_BALANCE_FILE
)

type slot_t struct {
	frame mem.Pa_t
	flags MapFlag
}

/// Space_t is a virtual address space: a page-granular map from
/// virtual page number to physical frame. The ASP gives each active
/// section its own instance as that section's kernel VA window; others
/// model individual user address spaces a MAP request targets.
type Space_t struct {
	mu       sync.Mutex
	pagesize uintptr
	table    map[uintptr]slot_t
}

/// NewSpace creates an empty address space using the given page size
/// (bytes) for virtual-address bookkeeping.
func NewSpace(pagesize uintptr) *Space_t {
	if pagesize == 0 {
		pagesize = uintptr(mem.PGSIZE)
	}
	return &Space_t{pagesize: pagesize, table: make(map[uintptr]slot_t)}
}

func (s *Space_t) pageOf(va uintptr) uintptr {
	return va / s.pagesize
}

// Database_i documents the PFR boundary this package consumes;
// *mem.Database_t satisfies it.
type Database_i interface {
	Refup(mem.Pa_t)
	Refdown(mem.Pa_t) int
	ToStandby(mem.Pa_t, *mem.CacheRef_t)
	FreeFrame(mem.Pa_t)
}

/// MapPage installs virt -> phys in the space, bumping the frame's
/// reference count through db. If the slot is occupied it returns true
/// without effect when flags requests MAP_IGNORE_IF_MAPPED, and panics
/// otherwise.
func (s *Space_t) MapPage(db Database_i, phys mem.Pa_t, virt uintptr, flags MapFlag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pg := s.pageOf(virt)
	if _, ok := s.table[pg]; ok {
		if flags&MAP_IGNORE_IF_MAPPED != 0 {
			return true
		}
		panic("map_page: slot already mapped")
	}
	s.table[pg] = slot_t{frame: phys, flags: flags}
	db.Refup(phys)
	return true
}

/// UnmapPages removes count consecutive pages starting at virt. With
/// UNMAP_BALANCE_FILE, a frame whose reference count reaches zero is
/// demoted to STANDBY via ref rather than freed; ref is nil when the
/// caller doesn't need a CSD back-pointer recorded (e.g. unmapping a
/// user MAP rather than the ASP's own kernel window).
func (s *Space_t) UnmapPages(db Database_i, virt uintptr, count int, flag UnmapFlag, ref *mem.CacheRef_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.pageOf(virt)
	for i := 0; i < count; i++ {
		pg := base + uintptr(i)
		sl, ok := s.table[pg]
		if !ok {
			continue
		}
		delete(s.table, pg)
		rem := db.Refdown(sl.frame)
		if rem == 0 {
			switch flag {
			case UNMAP_BALANCE_FILE:
				db.ToStandby(sl.frame, ref)
			default:
				db.FreeFrame(sl.frame)
			}
		}
	}
}

/// Translate returns the physical frame mapped at virt, if any.
func (s *Space_t) Translate(virt uintptr) (mem.Pa_t, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.table[s.pageOf(virt)]
	return sl.frame, ok
}
