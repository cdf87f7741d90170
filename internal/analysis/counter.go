package analysis

import "sort"

type entry[K comparable] struct {
	Key   K
	Count int
}

// counter is a frequency table that remembers the order keys were first seen in.
type counter[K comparable] struct {
	counts map[K]int
	order  []K
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{counts: make(map[K]int)}
}

func (c *counter[K]) inc(key K) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter[K]) total() int {
	n := 0
	for _, v := range c.counts {
		n += v
	}
	return n
}

// entries returns all keys in first-seen order.
func (c *counter[K]) entries() []entry[K] {
	out := make([]entry[K], 0, len(c.order))
	for _, k := range c.order {
		out = append(out, entry[K]{Key: k, Count: c.counts[k]})
	}
	return out
}

// mostCommon returns up to limit entries by descending count.
// Ties keep first-seen order. A negative limit returns every entry.
func (c *counter[K]) mostCommon(limit int) []entry[K] {
	out := c.entries()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
