// Package history tracks entity ids by recency of access.
//
// Nodes live in a slice and link to each other by slot index, so record,
// evict and promote are O(1) without pointer cycles. Freed slots are reused.
package history

const none = -1

type node struct {
	id   int64
	prev int
	next int
}

// Tracker is a duplicate-free access log ordered least-recent first.
// It is not safe for concurrent use; the owner serialises access.
type Tracker struct {
	nodes []node
	slots map[int64]int
	free  []int
	head  int
	tail  int
	limit int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLimit bounds the tracker to the n most recent ids. n <= 0 means unbounded.
func WithLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.limit = n
		}
	}
}

// New returns an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		slots: make(map[int64]int),
		head:  none,
		tail:  none,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record marks id as the most recently accessed entry.
func (t *Tracker) Record(id int64) {
	if slot, ok := t.slots[id]; ok {
		if slot == t.tail {
			return
		}
		t.detach(slot)
		t.append(slot)
		return
	}

	slot := t.alloc(id)
	t.slots[id] = slot
	t.append(slot)

	if t.limit > 0 && len(t.slots) > t.limit {
		t.Evict(t.nodes[t.head].id)
	}
}

// Evict drops id from the history. Unknown ids are ignored.
func (t *Tracker) Evict(id int64) {
	slot, ok := t.slots[id]
	if !ok {
		return
	}
	t.detach(slot)
	delete(t.slots, id)
	t.free = append(t.free, slot)
}

// List returns ids from least to most recently accessed.
func (t *Tracker) List() []int64 {
	out := make([]int64, 0, len(t.slots))
	for slot := t.head; slot != none; slot = t.nodes[slot].next {
		out = append(out, t.nodes[slot].id)
	}
	return out
}

// Len returns the number of tracked ids.
func (t *Tracker) Len() int {
	return len(t.slots)
}

// Contains reports whether id is tracked.
func (t *Tracker) Contains(id int64) bool {
	_, ok := t.slots[id]
	return ok
}

// Reset forgets every entry.
func (t *Tracker) Reset() {
	t.nodes = t.nodes[:0]
	t.free = t.free[:0]
	clear(t.slots)
	t.head, t.tail = none, none
}

func (t *Tracker) alloc(id int64) int {
	if n := len(t.free); n > 0 {
		slot := t.free[n-1]
		t.free = t.free[:n-1]
		t.nodes[slot] = node{id: id, prev: none, next: none}
		return slot
	}
	t.nodes = append(t.nodes, node{id: id, prev: none, next: none})
	return len(t.nodes) - 1
}

func (t *Tracker) append(slot int) {
	n := &t.nodes[slot]
	n.prev, n.next = t.tail, none
	if t.tail != none {
		t.nodes[t.tail].next = slot
	} else {
		t.head = slot
	}
	t.tail = slot
}

func (t *Tracker) detach(slot int) {
	n := t.nodes[slot]
	if n.prev != none {
		t.nodes[n.prev].next = n.next
	} else {
		t.head = n.next
	}
	if n.next != none {
		t.nodes[n.next].prev = n.prev
	} else {
		t.tail = n.prev
	}
	t.nodes[slot].prev, t.nodes[slot].next = none, none
}
