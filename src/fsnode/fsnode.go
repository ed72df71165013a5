// Package fsnode is the minimal file-system node layer the cache
// treats as an external collaborator: it owns exactly one
// CacheSpace per open file, keyed by inode number in a process-wide
// registry, and supplies the Backing callbacks the cache calls into.
//
// A CacheSpace's CachedSections are dropped only by truncate and by
// Close (which destroys the cache); while a node stays open, sections
// whose mappings have all been released keep their memory.
package fsnode

import (
	"sync"

	"github.com/rs/zerolog"

	"backing"
	"fs"
	"hashtable"
	"stat"
	"ustr"
)

/// Node is one open regular file: its backing store, its cache, and
/// the stat fields the cache's size tracking feeds.
type Node struct {
	Ino uint
	Name ustr.Ustr
	backing *backing.FileDisk_t
	Cache *fs.CacheSpace

	mu sync.Mutex
	size int64
}

/// ReadBacking satisfies fs.Backing by delegating to the node's
/// backing file.
func (n *Node) ReadBacking(buf []byte, offset int64) error {
	return n.backing.ReadBacking(buf, offset)
}

/// WriteBacking satisfies fs.Backing by delegating to the node's
/// backing file.
func (n *Node) WriteBacking(buf []byte, offset int64) error {
	return n.backing.WriteBacking(buf, offset)
}

/// Stat fills st with this node's current metadata.
func (n *Node) Stat(st *stat.Stat_t) {
	n.mu.Lock()
	defer n.mu.Unlock()
	st.Wino(n.Ino)
	st.Wsize(uint(n.size))
}

/// Registry is the process-wide inode -> *Node map backing open-file
/// lookup, backed by a Hashtable_t (lock-free Get, per-bucket locks for
/// Set/Del) rather than a plain mutex-guarded map since node lookup is
/// the hottest path into the cache.
type Registry struct {
	pool *fs.Pool
	ht *hashtable.Hashtable_t
	log zerolog.Logger
}

/// NewRegistry creates an empty node registry backed by pool.
func NewRegistry(pool *fs.Pool, log zerolog.Logger) *Registry {
	return &Registry{pool: pool, ht: hashtable.MkHash(256), log: log}
}

/// Open returns the existing Node for ino, or creates one backed by
/// path/size and registers it.
func (r *Registry) Open(ino uint, name ustr.Ustr, diskPath string, size int64) (*Node, error) {
	if v, ok := r.ht.Get(int(ino)); ok {
		return v.(*Node), nil
	}

	fd, err := backing.OpenFileDisk(diskPath, size)
	if err != nil {
		return nil, err
	}
	n := &Node{Ino: ino, Name: name, backing: fd, size: size}
	n.Cache = fs.InitCacheSpace(r.pool, n, size)

	if prev, inserted := r.ht.Set(int(ino), n); !inserted {
		return prev.(*Node), nil
	}
	r.log.Debug().Uint("ino", ino).Int64("size", size).Msg("fsnode: opened")
	return n, nil
}

/// Close flushes, destroys, and unregisters ino's node.
func (r *Registry) Close(ino uint) {
	v, ok := r.ht.Get(int(ino))
	if !ok {
		return
	}
	n := v.(*Node)
	fs.FlushCache(n.Cache)
	fs.DestroyCache(n.Cache)
	r.ht.Del(int(ino))
	n.backing.Close()
}

/// Truncate resizes ino's node, propagating to both the cache and the
/// node's recorded size; the backing file itself is not resized.
func (r *Registry) Truncate(ino uint, newSize int64) {
	v, ok := r.ht.Get(int(ino))
	if !ok {
		return
	}
	n := v.(*Node)
	fs.TruncateCache(n.Cache, newSize)
	n.mu.Lock()
	n.size = newSize
	n.mu.Unlock()
}
