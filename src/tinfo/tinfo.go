// Package tinfo tracks per-thread state the cache consults for
// back-pressure decisions. A runtime-patched per-goroutine slot
// (runtime.Gptr/Setgptr) doesn't exist in a stock Go runtime, so
// thread-local state is instead carried explicitly on a
// context.Context, the idiomatic Go substitute, and every call that
// needs it takes a ctx parameter rather than reading an ambient
// global.
package tinfo

import (
	"context"
	"sync"

	"defs"
)

/// Tnote_t stores per-thread state the cache's back-pressure checks
/// consult; State/Killnaps are kept for texture even though this
/// module only exercises PageGenerator.
type Tnote_t struct {
	State interface{}
	Alive bool
	Killed bool
	Isdoomed bool
	sync.Mutex
	Killnaps struct {
		Killch chan bool
		Cond *sync.Cond
		Kerr defs.Err_t
	}
}

/// Doomed reports whether the thread is marked as doomed.
func (t *Tnote_t) Doomed() bool {
	return t.Isdoomed
}

/// Threadinfo_t tracks all thread notes, keyed by Tid_t.
type Threadinfo_t struct {
	Notes map[defs.Tid_t]*Tnote_t
	sync.Mutex
}

/// Init initializes the thread info map.
func (t *Threadinfo_t) Init() {
	t.Notes = make(map[defs.Tid_t]*Tnote_t)
}

type pageGenKey struct{}

/// WithPageGenerator marks ctx (and every operation derived from it)
/// as running on a page-generator thread: the write-behind worker is
/// exempt from the critical-pages back-pressure check in since
/// its own work frees pages rather than consuming them.
func WithPageGenerator(ctx context.Context) context.Context {
	return context.WithValue(ctx, pageGenKey{}, true)
}

/// IsPageGenerator reports whether ctx was derived from
/// WithPageGenerator.
func IsPageGenerator(ctx context.Context) bool {
	v, _ := ctx.Value(pageGenKey{}).(bool)
	return v
}
