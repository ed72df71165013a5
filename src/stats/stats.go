// Package stats provides lightweight, compile-time-gated counters
// wired through every subsystem. Rdtsc originally called a
// runtime-patched cycle-counter intrinsic (runtime.Rdtsc); without a
// patched runtime this module falls back to time.Now().UnixNano(),
// which is coarser but keeps every call site and the Cycles_t/Add
// contract unchanged.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"
)

// Stats/Timing are flipped on here (unlike the disabled upstream
// default) because this module's own cache-hit/miss/write-behind
// instrumentation is exercised directly by this module's call paths.
const Stats = true
const Timing = true

/// Rdtsc returns a monotonically increasing cycle-like counter when
/// Timing is enabled.
func Rdtsc() uint64 {
	if Timing {
		return uint64(time.Now().UnixNano())
	}
	return 0
}

/// Counter_t is a statistical counter.
type Counter_t int64

/// Cycles_t holds an elapsed-time accumulator, in nanoseconds.
type Cycles_t int64

/// Inc increments the counter.
func (c *Counter_t) Inc() {
	if Stats {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, 1)
	}
}

/// Add adds a count to the counter.
func (c *Counter_t) Add(n int64) {
	if Stats {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), n)
	}
}

/// Add adds elapsed cycles (nanoseconds, per Rdtsc above) to the
/// counter; m is the Rdtsc() reading taken at the start of the
/// measured span.
func (c *Cycles_t) Add(m uint64) {
	if Timing {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, int64(Rdtsc()-m))
	}
}

/// Stats2String converts a struct of counters to a printable string.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
		if strings.HasSuffix(t, "Cycles_t") {
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
