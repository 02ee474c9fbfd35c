package types

import (
	"slices"
	"sort"
)

// OccurrenceMap maps a referenced id to the tasks referencing it. Each
// task appears at most once per id, and the tasks are kept in task order.
// Ids need not correspond to existing entities.
type OccurrenceMap struct {
	m map[string][]*Task
}

// NewOccurrenceMap returns an empty map.
func NewOccurrenceMap() *OccurrenceMap {
	return &OccurrenceMap{m: make(map[string][]*Task)}
}

// Add records that t references id. Empty ids and nil tasks are ignored.
func (o *OccurrenceMap) Add(id string, t *Task) {
	if id == "" || t == nil {
		return
	}
	tasks := o.m[id]
	i, found := slices.BinarySearchFunc(tasks, t, (*Task).Compare)
	if found {
		return
	}
	o.m[id] = slices.Insert(tasks, i, t)
}

// Has reports whether id has been referenced.
func (o *OccurrenceMap) Has(id string) bool {
	_, ok := o.m[id]
	return ok
}

// Tasks returns the referencing tasks for id in task order.
func (o *OccurrenceMap) Tasks(id string) []*Task {
	return slices.Clone(o.m[id])
}

// Keys returns every referenced id, sorted.
func (o *OccurrenceMap) Keys() []string {
	keys := make([]string, 0, len(o.m))
	for k := range o.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of distinct ids.
func (o *OccurrenceMap) Len() int { return len(o.m) }

// Remove drops id and its referencing tasks.
func (o *OccurrenceMap) Remove(id string) {
	delete(o.m, id)
}

// Without returns a copy of the map minus every key for which present
// returns true.
func (o *OccurrenceMap) Without(present func(id string) bool) *OccurrenceMap {
	out := NewOccurrenceMap()
	for k, v := range o.m {
		if !present(k) {
			out.m[k] = slices.Clone(v)
		}
	}
	return out
}

// Filter returns a copy containing only the keys for which keep returns
// true.
func (o *OccurrenceMap) Filter(keep func(id string) bool) *OccurrenceMap {
	return o.Without(func(id string) bool { return !keep(id) })
}
