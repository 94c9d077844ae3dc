package queue

import (
	"fmt"
	"sort"
)

// Items is the ordered set of tracked items keyed by name.
type Items struct {
	order []*Item
	index map[string]*Item
}

// NewItems builds a collection, rejecting duplicate names.
func NewItems(items ...*Item) (*Items, error) {
	c := &Items{index: make(map[string]*Item, len(items))}
	for _, item := range items {
		if err := c.Add(item); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a new item.
func (c *Items) Add(item *Item) error {
	if c.index == nil {
		c.index = make(map[string]*Item)
	}
	if item == nil || item.Name == "" {
		return fmt.Errorf("%w: item without a name", ErrInvalidTransition)
	}
	if _, ok := c.index[item.Name]; ok {
		return fmt.Errorf("%w: duplicate item %q", ErrInvalidTransition, item.Name)
	}
	c.index[item.Name] = item
	c.order = append(c.order, item)
	return nil
}

// Get returns the named item.
func (c *Items) Get(name string) (*Item, bool) {
	item, ok := c.index[name]
	return item, ok
}

// All returns the items in registration order. The slice is a copy; the
// items are shared.
func (c *Items) All() []*Item {
	return append([]*Item(nil), c.order...)
}

// Len returns the number of tracked items.
func (c *Items) Len() int {
	return len(c.order)
}

// Names returns the set of tracked names.
func (c *Items) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(c.order))
	for _, item := range c.order {
		names[item.Name] = struct{}{}
	}
	return names
}

// Done reports whether every item is cleaned up or failed permanently.
func (c *Items) Done() bool {
	for _, item := range c.order {
		if !item.Settled() {
			return false
		}
	}
	return true
}

// JobsDone reports whether no item is waiting on a scheduler job.
func (c *Items) JobsDone() bool {
	for _, item := range c.order {
		if !item.JobsDone() {
			return false
		}
	}
	return true
}

// PhaseCounts tallies items per phase.
func (c *Items) PhaseCounts() map[Phase]int {
	counts := make(map[Phase]int, len(allPhases))
	for _, phase := range allPhases {
		counts[phase] = 0
	}
	for _, item := range c.order {
		counts[item.Phase()]++
	}
	return counts
}

// Snapshot returns deep copies sorted by name, for persistence and display.
func (c *Items) Snapshot() []*Item {
	out := make([]*Item, 0, len(c.order))
	for _, item := range c.order {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
