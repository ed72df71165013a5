package vm

import (
	"defs"
)

/// Userbuf_i abstracts the source/destination of a READ or WRITE
/// through the cache: copying bytes in (Uiowrite) or out (Uioread),
/// tracking how many bytes remain. The real kernel's Userbuf_t drove
/// this through page-fault-safe copies into a live user address
/// space; Fakeubuf_t (below) is the only implementation that survives
/// here, since this module has no real user memory to fault against.
type Userbuf_i interface {
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
	Remain() int
	Total() int
}

/// Fakeubuf_t is a Userbuf_i backed by a plain byte slice, used by
/// tests and tools to drive the filesystem without a real user
/// address space.
type Fakeubuf_t struct {
	Data []uint8
	Off  int
}

/// Fake_init resets the buffer to read/write through data from the
/// start.
func (fb *Fakeubuf_t) Fake_init(data []uint8) {
	fb.Data = data
	fb.Off = 0
}

func (fb *Fakeubuf_t) _tx(buf []uint8, tofbuf bool) (int, defs.Err_t) {
	n := len(buf)
	if n > len(fb.Data)-fb.Off {
		n = len(fb.Data) - fb.Off
	}
	if tofbuf {
		copy(fb.Data[fb.Off:], buf[:n])
	} else {
		copy(buf[:n], fb.Data[fb.Off:])
	}
	fb.Off += n
	return n, 0
}

/// Uioread copies from the fake buffer into dst.
func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	return fb._tx(dst, false)
}

/// Uiowrite copies from src into the fake buffer.
func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	return fb._tx(src, true)
}

/// Remain reports how many bytes are left before the buffer is
/// exhausted.
func (fb *Fakeubuf_t) Remain() int {
	return len(fb.Data) - fb.Off
}

/// Total reports the buffer's full length.
func (fb *Fakeubuf_t) Total() int {
	return len(fb.Data)
}

/// MkBuf wraps an existing byte slice as a Fakeubuf_t for use in
/// tests.
func MkBuf(b []byte) *Fakeubuf_t {
	ub := &Fakeubuf_t{}
	ub.Fake_init(b)
	return ub
}
