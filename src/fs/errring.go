package fs

import (
	"sync"

	"caller"

	"github.com/rs/zerolog"
)

// errEntry_t records one failed write_backing call for diagnostic
// recall by FlushCache's caller.
type errEntry_t struct {
	offset int64
	err error
}

// errRing_t is a small fixed-capacity ring of the most recent backing
// errors: head/tail modulo indexing over a slice of errEntry_t rather
// than bytes, since what needs recalling here is structured
// diagnostic data, not a byte stream copied to/from a user buffer.
// dc dedupes the stack-trace dump emitted alongside each error so a
// backing device stuck failing from the same write-behind call site
// logs its trace once rather than once per dirty run.
type errRing_t struct {
	mu sync.Mutex
	entries []errEntry_t
	head int
	count int
	dc caller.Distinct_caller_t
	log zerolog.Logger
}

func newErrRing(capacity int, log zerolog.Logger) *errRing_t {
	r := &errRing_t{entries: make([]errEntry_t, capacity), log: log}
	r.dc.Enabled = true
	return r
}

func (r *errRing_t) record(offset int64, err error) {
	r.mu.Lock()
	r.entries[r.head] = errEntry_t{offset: offset, err: err}
	r.head = (r.head + 1) % len(r.entries)
	if r.count < len(r.entries) {
		r.count++
	}
	r.mu.Unlock()

	if fresh, trace := r.dc.Distinct(); fresh {
		r.log.Warn().Err(err).Int64("offset", offset).Str("stack", trace).
			Msg("backing write failed from a new call site")
	}
}

// Last returns the most recently recorded backing error, or nil if
// none has been recorded since construction or the last Clear.
func (r *errRing_t) Last() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}
	idx := (r.head - 1 + len(r.entries)) % len(r.entries)
	return r.entries[idx].err
}

// Clear empties the ring.
func (r *errRing_t) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = 0
	r.head = 0
}
