package fs

// InitCache constructs the process-wide active-section pool; NewPool
// is the constructor callers should reach for directly when they also
// need the concrete *Pool type.
func InitCache(cfg PoolConfig) *Pool {
	return NewPool(cfg)
}

// CoverRange ensures [start,end) is covered by c's cached-section
// directory, incrementing each touched section's mapped-region-count.
func CoverRange(c *CacheSpace, start, end int64) error {
	return c.csd.Cover(start, end)
}

// UncoverRange decrements mapped-region-count on every CachedSection
// intersecting [start,end).
func UncoverRange(c *CacheSpace, start, end int64) {
	c.csd.Uncover(start, end)
}
