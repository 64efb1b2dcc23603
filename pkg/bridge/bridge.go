// Package bridge carries parameter changes from the audio thread to the editor.
//
// A Channel is a fixed table of per-parameter slots allocated up front.
// Publish is safe to call from the real-time thread: it never blocks, never
// allocates and runs in bounded time. Drain is called from the GUI thread and
// visits every slot that was written since the previous drain.
//
// Slots hold only the most recent value. Intermediate values written between
// two drains are overwritten, so a fast automation sweep shows up as its last
// value only.
package bridge

import (
	"math"
	"sort"
	"sync/atomic"
)

// slot is the mailbox for one parameter. At most one writer per slot at a time.
type slot struct {
	id    uint32
	bits  atomic.Uint64
	dirty atomic.Bool
}

// Channel is a lock-free, coalescing mailbox keyed by parameter ID.
type Channel struct {
	slots []slot
}

// New allocates one slot per parameter ID. Duplicate IDs share a slot.
func New(ids []uint32) *Channel {
	sorted := make([]uint32, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	unique := sorted[:0]
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		unique = append(unique, id)
	}

	c := &Channel{slots: make([]slot, len(unique))}
	for i, id := range unique {
		c.slots[i].id = id
	}
	return c
}

// Len returns the number of slots.
func (c *Channel) Len() int {
	if c == nil {
		return 0
	}
	return len(c.slots)
}

// Contains reports whether the channel has a slot for id.
func (c *Channel) Contains(id uint32) bool {
	return c.find(id) >= 0
}

// Publish stores the latest value for id. Unknown IDs and nil channels are
// ignored. Safe for the real-time thread.
func (c *Channel) Publish(id uint32, value float64) {
	i := c.find(id)
	if i < 0 {
		return
	}
	s := &c.slots[i]
	s.bits.Store(math.Float64bits(value))
	s.dirty.Store(true)
}

// Drain calls visit once for every slot published since the last drain, in
// ascending ID order, and returns the number of visits. Only one goroutine may
// drain a channel.
func (c *Channel) Drain(visit func(id uint32, value float64)) int {
	if c == nil {
		return 0
	}
	n := 0
	for i := range c.slots {
		s := &c.slots[i]
		if !s.dirty.Swap(false) {
			continue
		}
		// The flag is cleared before the load: a publish racing with us is
		// either seen now or flagged again for the next drain.
		visit(s.id, math.Float64frombits(s.bits.Load()))
		n++
	}
	return n
}

// find is a binary search over the sorted slot table. No allocation.
func (c *Channel) find(id uint32) int {
	if c == nil {
		return -1
	}
	lo, hi := 0, len(c.slots)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if c.slots[mid].id < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(c.slots) && c.slots[lo].id == id {
		return lo
	}
	return -1
}
