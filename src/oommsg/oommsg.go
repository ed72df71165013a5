// Package oommsg carries memory-pressure notifications between the
// frame database and the access engine / write-behind worker: a
// single global OomCh for out-of-memory requests from any allocator,
// plus two narrower named pressure signals the cache consumes.
package oommsg

/// Oommsg_t is sent on OomCh when memory is critically low and the
/// sender needs the recipient (normally the OOM-killer analog) to
/// make progress; Resume is closed once the situation clears.
type Oommsg_t struct {
	Need int
	Resume chan bool
}

/// OomCh is notified when the system is critically out of memory.
/// The cache itself only consumes the two channels below.
var OomCh chan Oommsg_t = make(chan Oommsg_t)

/// Pressure_t is the shared memory-pressure signal the access engine
/// and write-behind worker both watch: NotCritical is signalled while
/// available memory is above the critical threshold (entry-gate for
/// ordinary accessors), Low is signalled when available memory falls
/// below the low threshold (ending write-behind's defer-while-healthy
/// wait early). A signalled channel is a closed one.
type Pressure_t struct {
	NotCritical chan struct{}
	Low chan struct{}
}

/// NewPressure returns a Pressure_t matching an initially-healthy
/// system: NotCritical is closed (a receive never blocks) and Low is
/// left open (a receive blocks), so write-behind waits out its delay.
func NewPressure() *Pressure_t {
	p := &Pressure_t{
		NotCritical: make(chan struct{}),
		Low: make(chan struct{}),
	}
	close(p.NotCritical)
	return p
}
