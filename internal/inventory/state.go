package inventory

// collection is an insertion-ordered set of records keyed by id.
type collection[T any] struct {
	ids  []string
	byID map[string]T
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{byID: make(map[string]T)}
}

func (c *collection[T]) reset(items []T, id func(T) string) {
	c.ids = c.ids[:0]
	c.byID = make(map[string]T, len(items))
	for _, it := range items {
		c.upsert(id(it), it)
	}
}

func (c *collection[T]) upsert(id string, v T) {
	if _, ok := c.byID[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.byID[id] = v
}

func (c *collection[T]) remove(id string) {
	if _, ok := c.byID[id]; !ok {
		return
	}
	delete(c.byID, id)
	for i, v := range c.ids {
		if v == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
}

func (c *collection[T]) get(id string) (T, bool) {
	v, ok := c.byID[id]
	return v, ok
}

func (c *collection[T]) list() []T {
	out := make([]T, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}
