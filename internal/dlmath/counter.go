package dlmath

// Counter hands out increasing integers, used to name unnamed layers and
// models. The zero value starts at 0.
type Counter struct {
	next int
}

// Next returns the current value and advances the counter.
func (c *Counter) Next() int {
	n := c.next
	c.next++
	return n
}

// Peek returns the value Next would return without advancing.
func (c *Counter) Peek() int {
	return c.next
}

// Skip advances the counter by n.
func (c *Counter) Skip(n int) {
	c.next += n
}
