// Package backing adapts a disk simulated by an os.File into the
// read_backing/write_backing callbacks every CacheSpace must be
// supplied with. It uses golang.org/x/sys/unix's Pread/Pwrite rather
// than plain os.File.ReadAt/WriteAt, preferring the x/sys/unix syscall
// wrappers over stdlib os for anything position-addressed and
// fsync-adjacent.
package backing

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/pkg/errors"
)

/// FileDisk_t is a backing store implemented over a single host file,
/// addressed by byte offset. It stands in for a real filesystem
/// driver's block device, simplified to byte-range pread/pwrite. The
/// cache's page loads and write-behind use page-aligned ranges; a
/// PRECISE write passes its exact, possibly unaligned, byte range.
type FileDisk_t struct {
	mu   sync.Mutex
	f    *os.File
	fd   int
	size int64
}

/// OpenFileDisk opens (creating if necessary) a file at path to serve
/// as a backing store, truncated/extended to size bytes.
func OpenFileDisk(path string, size int64) (*FileDisk_t, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "backing: open")
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "backing: truncate")
	}
	return &FileDisk_t{f: f, fd: int(f.Fd()), size: size}, nil
}

/// ReadBacking implements read_backing: fills buf from the backing
/// file starting at offset.
func (d *FileDisk_t) ReadBacking(buf []byte, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := unix.Pread(d.fd, buf, offset)
	if err != nil {
		return errors.Wrap(err, "backing: pread")
	}
	if n != len(buf) {
		return fmt.Errorf("backing: short read at %d: got %d want %d", offset, n, len(buf))
	}
	return nil
}

/// WriteBacking implements write_backing: writes buf to the backing
/// file starting at offset.
func (d *FileDisk_t) WriteBacking(buf []byte, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := unix.Pwrite(d.fd, buf, offset)
	if err != nil {
		return errors.Wrap(err, "backing: pwrite")
	}
	if n != len(buf) {
		return fmt.Errorf("backing: short write at %d: wrote %d want %d", offset, n, len(buf))
	}
	return nil
}

/// Sync flushes pending writes to the host file.
func (d *FileDisk_t) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Wrap(d.f.Sync(), "backing: fsync")
}

/// Size reports the backing store's current extent.
func (d *FileDisk_t) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

/// Close releases the backing file.
func (d *FileDisk_t) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}

/// MemDisk_t is an in-memory backing store used by tests that don't
/// want filesystem side effects.
type MemDisk_t struct {
	mu   sync.Mutex
	data []byte
}

/// NewMemDisk returns a zero-filled in-memory backing store of size
/// bytes.
func NewMemDisk(size int64) *MemDisk_t {
	return &MemDisk_t{data: make([]byte, size)}
}

/// ReadBacking implements read_backing over the in-memory buffer.
func (m *MemDisk_t) ReadBacking(buf []byte, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset < 0 || offset+int64(len(buf)) > int64(len(m.data)) {
		return fmt.Errorf("backing: read out of range at %d len %d", offset, len(buf))
	}
	copy(buf, m.data[offset:offset+int64(len(buf))])
	return nil
}

/// WriteBacking implements write_backing over the in-memory buffer,
/// growing it if necessary.
func (m *MemDisk_t) WriteBacking(buf []byte, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := offset + int64(len(buf))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[offset:end], buf)
	return nil
}

/// Sync is a no-op for the in-memory backing store.
func (m *MemDisk_t) Sync() error { return nil }

/// Size reports the backing store's current extent.
func (m *MemDisk_t) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data))
}
