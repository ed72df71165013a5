package fs

import "mem"

/// SECTION_SIZE is the fixed size of an active section's kernel VA
/// window and the granularity the access engine binds against file
/// offsets. 256 KiB, page-aligned, power of two >= page size * 16.
const SECTION_SIZE = 256 * 1024

/// PAGES_PER_SECTION is the number of page-frame-database pages
/// covered by one active section.
const PAGES_PER_SECTION = SECTION_SIZE / mem.PGSIZE

/// DefaultMaxModified is |modified-list|'s default bound, chosen
/// so that MAX_MODIFIED * SECTION_SIZE ~= 64 MiB.
const DefaultMaxModified = (64 * 1024 * 1024) / SECTION_SIZE

/// DefaultWriteBehindDelayMillis is how long, in milliseconds, the
/// write-behind worker waits for available-low before giving up and
/// draining anyway.
const DefaultWriteBehindDelayMillis = 1000

/// DefaultPoolSlots is the default number of active sections the pool
/// holds, absent an explicit PoolConfig override.
const DefaultPoolSlots = 64
