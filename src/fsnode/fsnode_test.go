package fsnode

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fs"
	"stat"
	"ustr"
)

func newTestRegistry(t *testing.T) *Registry {
	cfg := fs.DefaultPoolConfig()
	cfg.Slots = 4
	pool := fs.InitCache(cfg)
	return NewRegistry(pool, zerolog.Nop())
}

func TestOpenIsIdempotentByInode(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "f.img")

	n1, err := r.Open(7, ustr.MkUstrSlice([]byte("f.img")), path, 4096)
	require.NoError(t, err)
	n2, err := r.Open(7, ustr.MkUstrSlice([]byte("f.img")), path, 4096)
	require.NoError(t, err)
	require.Same(t, n1, n2, "a second Open of the same inode returns the existing node")
}

func TestCloseFlushesDirtyDataBeforeTearingDown(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "f.img")

	n, err := r.Open(1, ustr.MkUstrSlice([]byte("f.img")), path, 4096)
	require.NoError(t, err)
	require.NoError(t, fs.AccessCache(context.Background(), n.Cache, []byte{1, 2, 3}, 0, 3, fs.WRITE, nil))

	r.Close(1)

	reopened, err := r.Open(1, ustr.MkUstrSlice([]byte("f.img")), path, 4096)
	require.NoError(t, err)
	got := make([]byte, 3)
	require.NoError(t, fs.AccessCache(context.Background(), reopened.Cache, got, 0, 3, fs.READ, nil))
	require.Equal(t, []byte{1, 2, 3}, got, "data written before Close must have been flushed to the backing file")
}

func TestTruncatePropagatesToNodeSize(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "f.img")

	n, err := r.Open(3, ustr.MkUstrSlice([]byte("f.img")), path, 4096)
	require.NoError(t, err)

	r.Truncate(3, 1024)
	var st stat.Stat_t
	n.Stat(&st)
	require.EqualValues(t, 1024, st.Size())
}
