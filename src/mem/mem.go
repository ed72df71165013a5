// Package mem implements the page-frame reference adapter (PFR): a
// small layer over a simulated page-frame database that the cache
// uses to pin, activate, and reclaim frames. It plays the role that
// Physmem_t plays in a real kernel, minus the hardware direct-map and
// page-table bookkeeping that only make sense with a patched runtime
// and physical memory -- here a frame's bytes are a plain Go slice.
package mem

import (
	"sync"
	"sync/atomic"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// Pa_t is an opaque frame identifier -- an index into the frame
/// database rather than a physical address, since there is no real
/// physical memory backing this simulation.
type Pa_t uint32

/// Bytepg_t is a byte-addressed page.
type Bytepg_t [PGSIZE]uint8

/// State_t enumerates the states a page frame can be in, shared
/// between the cache and the (simulated) virtual memory manager.
type State_t int

const (
	UNUSABLE State_t = iota
	BAD
	ZEROED
	FREE
	STANDBY
	ACTIVE
)

func (s State_t) String() string {
	switch s {
	case UNUSABLE:
		return "unusable"
	case BAD:
		return "bad"
	case ZEROED:
		return "zeroed"
	case FREE:
		return "free"
	case STANDBY:
		return "standby"
	case ACTIVE:
		return "active"
	default:
		return "?"
	}
}

/// CacheRef_t is the weak back-pointer a frame carries while STANDBY:
/// the exact CSD slot the frame is reachable from. It is
/// consulted only under the page-frame spinlock during standby
/// reclamation -- never a shared-ownership handle, just
/// coordinates to clear.
type CacheRef_t struct {
	Clear func() // clears the owning CSD slot; called with the spinlock held
}

/// Frame_t is a single simulated physical page frame.
type Frame_t struct {
	data Bytepg_t
	state State_t
	// references counts live mappings into address spaces (cache
	// active-section windows and/or user mappings) that pin the frame.
	references int32
	cacheRef *CacheRef_t
	nexti uint32
}

/// Database_t is the simulated page-frame database: a fixed arena of
/// frames plus a free list, guarded by a single spinlock (the "global
/// page-frame spinlock" of the lock-order contract). A real allocator
/// would shard this per-CPU; a single mutex-protected list is
/// sufficient here since there is no real multi-core contention to
/// model.
type Database_t struct {
	mu sync.Mutex
	frames []Frame_t
	freei uint32
	freelen int
}

const noFrame = ^uint32(0)

/// NewDatabase allocates a frame database of n frames, all initially
/// ZEROED and on the free list.
func NewDatabase(n int) *Database_t {
	d := &Database_t{frames: make([]Frame_t, n)}
	d.freei = noFrame
	for i := n - 1; i >= 0; i-- {
		d.frames[i].state = ZEROED
		d.frames[i].nexti = d.freei
		d.freei = uint32(i)
		d.freelen++
	}
	return d
}

/// AllocFrame returns a new ACTIVE frame with references == 0 and no
/// back-pointer. Returns ok == false on exhaustion (InsufficientResources
/// at the caller). The free list holds both FREE/ZEROED frames and
/// demoted STANDBY frames, so a victim taken off it may still be
/// named PRESENT by some CachedSection's data[i]; standbyReclaimLocked
/// clears that back-pointer before the frame is handed out.
func (d *Database_t) AllocFrame() (Pa_t, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocLocked()
}

func (d *Database_t) allocLocked() (Pa_t, bool) {
	if d.freei == noFrame {
		return 0, false
	}
	idx := d.freei
	f := &d.frames[idx]
	d.standbyReclaimLocked(f)
	d.freei = f.nexti
	d.freelen--
	if d.freelen < 0 {
		panic("negative free count")
	}
	f.state = ACTIVE
	atomic.StoreInt32(&f.references, 0)
	f.cacheRef = nil
	for i := range f.data {
		f.data[i] = 0
	}
	return Pa_t(idx), true
}

/// ActivatePages transitions count frames starting at first from
/// FREE/ZEROED/STANDBY to ACTIVE with references == 0, unlinking them
/// from whichever list they were on. Used by the cache to take
/// ownership of a specific frame (e.g. a STANDBY frame rediscovered
/// through a CSD slot) rather than allocate a fresh one.
func (d *Database_t) ActivatePages(first Pa_t, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < count; i++ {
		f := d.frameLocked(first + Pa_t(i))
		switch f.state {
		case FREE, ZEROED, STANDBY:
			d.unlinkFreeLocked(uint32(first) + uint32(i))
			f.state = ACTIVE
			atomic.StoreInt32(&f.references, 0)
			f.cacheRef = nil
		default:
			panic("activate_pages: frame not reclaimable")
		}
	}
}

func (d *Database_t) unlinkFreeLocked(idx uint32) {
	if d.freei == idx {
		d.freei = d.frames[idx].nexti
		d.freelen--
		return
	}
	for i := d.freei; i != noFrame; i = d.frames[i].nexti {
		if d.frames[i].nexti == idx {
			d.frames[i].nexti = d.frames[idx].nexti
			d.freelen--
			return
		}
	}
	panic("unlinkFree: frame not on free list")
}

func (d *Database_t) frameLocked(p Pa_t) *Frame_t {
	return &d.frames[p]
}

/// FreeFrame returns a frame to the FREE list. The frame must have no
/// live references. A STANDBY frame is already on the free list, so
/// freeing it only marks it FREE and drops its cache back-pointer.
func (d *Database_t) FreeFrame(p Pa_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.frameLocked(p)
	if atomic.LoadInt32(&f.references) != 0 {
		panic("free_frame: still referenced")
	}
	if f.state == STANDBY {
		f.state = FREE
		f.cacheRef = nil
		return
	}
	f.state = FREE
	f.cacheRef = nil
	f.nexti = d.freei
	d.freei = uint32(p)
	d.freelen++
}

/// Refup increments a frame's reference count (a new mapping was
/// created against it).
func (d *Database_t) Refup(p Pa_t) {
	f := d.frameLocked(p)
	if atomic.AddInt32(&f.references, 1) <= 0 {
		panic("refup: bad refcount")
	}
}

/// Refdown decrements a frame's reference count; when it reaches
/// zero, the cache is responsible for deciding whether to free the
/// frame outright or demote it to STANDBY (it remains reachable from
/// its CSD slot).
func (d *Database_t) Refdown(p Pa_t) int {
	f := d.frameLocked(p)
	c := atomic.AddInt32(&f.references, -1)
	if c < 0 {
		panic("refdown: bad refcount")
	}
	return int(c)
}

/// ToStandby demotes an ACTIVE frame with zero references to STANDBY,
/// recording the back-pointer the PMM will clear on reclaim.
func (d *Database_t) ToStandby(p Pa_t, ref *CacheRef_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.frameLocked(p)
	if atomic.LoadInt32(&f.references) != 0 {
		panic("to_standby: still referenced")
	}
	if f.state != ACTIVE {
		panic("to_standby: frame not active")
	}
	f.state = STANDBY
	f.cacheRef = ref
	f.nexti = d.freei
	d.freei = uint32(p)
	d.freelen++
}

/// standbyReclaimLocked is invoked implicitly when the allocator is about to
/// hand out a STANDBY frame to a new owner: it clears the CSD slot
/// that still names this frame before the caller observes the frame
/// as FREE/ACTIVE.
func (d *Database_t) standbyReclaimLocked(f *Frame_t) {
	if f.state == STANDBY && f.cacheRef != nil {
		f.cacheRef.Clear()
		f.cacheRef = nil
	}
}

/// State returns a frame's current state.
func (d *Database_t) State(p Pa_t) State_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames[p].state
}

/// Data returns the byte page backing a frame. The cache is expected
/// to only call this on frames it knows are ACTIVE (pinned by a
/// mapping it owns).
func (d *Database_t) Data(p Pa_t) *Bytepg_t {
	return &d.frames[p].data
}

/// Dmap8 returns a slice into the frame's page starting at byte
/// offset off, over the simulated arena rather than a hardware direct
/// map.
func (d *Database_t) Dmap8(p Pa_t, off int) []uint8 {
	bpg := d.Data(p)
	return bpg[off%PGSIZE:]
}

/// Free reports the number of frames currently on the free list, for
/// the commit accountant / pressure signal.
func (d *Database_t) Free() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freelen
}

/// Global is the process-wide frame database. Real kernels size this
/// from detected physical memory; this module sizes it at Init time
/// from fs.PoolConfig.
var Global *Database_t

/// Init installs the global frame database with n frames.
func Init(n int) *Database_t {
	Global = NewDatabase(n)
	return Global
}
