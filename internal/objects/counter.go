package objects

// counter is the monotonic id allocator of a table.
//
// Unlike a clock it can be advanced past an externally observed value
// (a restored object) without ever moving backwards.
type counter struct {
	last uint32
}

// newCounter creates a counter whose first Next returns start+1.
func newCounter(start uint32) *counter {
	return &counter{last: start}
}

// Next returns the next id and advances the counter.
// Returns false once the 32-bit space is exhausted.
func (c *counter) Next() (uint32, bool) {
	if c.last == ^uint32(0) {
		return 0, false
	}
	c.last++
	return c.last, true
}

// Observe advances the counter so that the next id is above seen.
func (c *counter) Observe(seen uint32) {
	if seen > c.last {
		c.last = seen
	}
}

// Current returns the last allocated or observed id.
func (c *counter) Current() uint32 {
	return c.last
}
