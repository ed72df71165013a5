package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mem"
)

type fakeDB struct {
	refs     map[mem.Pa_t]int
	standby  map[mem.Pa_t]*mem.CacheRef_t
	freed    map[mem.Pa_t]bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{refs: map[mem.Pa_t]int{}, standby: map[mem.Pa_t]*mem.CacheRef_t{}, freed: map[mem.Pa_t]bool{}}
}

func (f *fakeDB) Refup(p mem.Pa_t)   { f.refs[p]++ }
func (f *fakeDB) Refdown(p mem.Pa_t) int {
	f.refs[p]--
	return f.refs[p]
}
func (f *fakeDB) ToStandby(p mem.Pa_t, ref *mem.CacheRef_t) { f.standby[p] = ref }
func (f *fakeDB) FreeFrame(p mem.Pa_t)                      { f.freed[p] = true }

func TestMapPageRejectsDoubleMap(t *testing.T) {
	s := NewSpace(uintptr(mem.PGSIZE))
	db := newFakeDB()
	require.True(t, s.MapPage(db, 1, 0, MAP_NONE))
	require.Panics(t, func() { s.MapPage(db, 2, 0, MAP_NONE) })
}

func TestMapPageIgnoreIfMapped(t *testing.T) {
	s := NewSpace(uintptr(mem.PGSIZE))
	db := newFakeDB()
	require.True(t, s.MapPage(db, 1, 0, MAP_NONE))
	require.True(t, s.MapPage(db, 1, 0, MAP_IGNORE_IF_MAPPED))
}

func TestUnmapPagesFreesAtZeroRefs(t *testing.T) {
	s := NewSpace(uintptr(mem.PGSIZE))
	db := newFakeDB()
	s.MapPage(db, 5, 0, MAP_NONE)
	s.UnmapPages(db, 0, 1, UNMAP_FREE, nil)
	require.True(t, db.freed[5])
	_, ok := s.Translate(0)
	require.False(t, ok)
}

func TestUnmapPagesBalanceFileDemotesToStandby(t *testing.T) {
	s := NewSpace(uintptr(mem.PGSIZE))
	db := newFakeDB()
	s.MapPage(db, 5, 0, MAP_NONE)
	ref := &mem.CacheRef_t{Clear: func() {}}
	s.UnmapPages(db, 0, 1, UNMAP_BALANCE_FILE, ref)
	require.False(t, db.freed[5])
	require.Same(t, ref, db.standby[5])
}

func TestTranslate(t *testing.T) {
	s := NewSpace(uintptr(mem.PGSIZE))
	db := newFakeDB()
	s.MapPage(db, 7, uintptr(mem.PGSIZE), MAP_NONE)
	frame, ok := s.Translate(uintptr(mem.PGSIZE))
	require.True(t, ok)
	require.Equal(t, mem.Pa_t(7), frame)
}
