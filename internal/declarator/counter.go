package declarator

import "strconv"

// Counter hands out synthetic padding names. Each parse run owns one, so
// names are unique within the run and reproducible across runs.
type Counter struct {
	next int
}

// Next returns the next padding name: __padding0, __padding1, ...
func (c *Counter) Next() string {
	n := c.next
	c.next++
	return "__padding" + strconv.Itoa(n)
}

// Reset restarts numbering at zero.
func (c *Counter) Reset() { c.next = 0 }

// Issued returns how many names have been handed out since the last reset.
func (c *Counter) Issued() int { return c.next }
