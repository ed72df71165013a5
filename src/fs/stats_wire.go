package fs

import "stats"

// statsCounter wires the compile-time-gated stats.Counter_t into the
// cache's hit/miss/eviction/write-behind instrumentation, rather than
// inventing a new metrics type.
type statsCounter = stats.Counter_t
