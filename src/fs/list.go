package fs

import "container/list"

// sectionList_t wraps container/list as a typed list of *ActiveSection
// used for both the LRU list and the modified list. An ActiveSection
// belongs to at most one of these lists at a time, recorded on the
// section itself via elem so removal is O(1) rather than a linear
// search.
type sectionList_t struct {
	l *list.List
}

func newSectionList() *sectionList_t {
	return &sectionList_t{l: list.New()}
}

func (sl *sectionList_t) Len() int {
	return sl.l.Len()
}

// PushFront inserts s at the front (most-recently-evicted end for
// LRU; arrival order for modified).
func (sl *sectionList_t) PushFront(s *ActiveSection) {
	s.elem = sl.l.PushFront(s)
}

// PushBack inserts s at the back (freshest end for LRU).
func (sl *sectionList_t) PushBack(s *ActiveSection) {
	s.elem = sl.l.PushBack(s)
}

// PopFront removes and returns the front element, or nil if empty.
func (sl *sectionList_t) PopFront() *ActiveSection {
	e := sl.l.Front()
	if e == nil {
		return nil
	}
	sl.l.Remove(e)
	s := e.Value.(*ActiveSection)
	s.elem = nil
	return s
}

// Front returns the front element without removing it.
func (sl *sectionList_t) Front() *ActiveSection {
	e := sl.l.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*ActiveSection)
}

// Remove removes s from the list it is currently on (a no-op if s
// carries no element, i.e. is on neither list).
func (sl *sectionList_t) Remove(s *ActiveSection) {
	if s.elem == nil {
		return
	}
	sl.l.Remove(s.elem)
	s.elem = nil
}
