package manager

// allocator issues ids shared by every entity kind. Ids are never reused.
type allocator struct {
	last int64
}

// peek returns the id the next take will hand out.
func (a *allocator) peek() int64 {
	return a.last + 1
}

func (a *allocator) take() int64 {
	a.last++
	return a.last
}

// observe moves the counter past an id that was assigned elsewhere.
func (a *allocator) observe(id int64) {
	if id > a.last {
		a.last = id
	}
}
