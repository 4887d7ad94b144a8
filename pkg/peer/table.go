package peer

import (
	"sort"

	"github.com/giongto35/proctor/pkg/com"
)

// Table is the authoritative set of tracked descriptors keyed by peer id.
// All mutations go through its methods; readers get copies.
type Table struct {
	m *com.Map[Id, *Descriptor]
}

func NewTable() *Table { return &Table{m: com.NewMap[Id, *Descriptor]()} }

// CreateIfAbsent inserts the descriptor unless something is already tracked under its id.
func (t *Table) CreateIfAbsent(d *Descriptor) bool { return t.m.PutIfAbsent(d.Id, d) }

// Replace swaps the descriptor in place, so the id never goes missing.
// The old descriptor is returned for disposal. Nothing happens if the id is not tracked.
func (t *Table) Replace(id Id, d *Descriptor) (old *Descriptor, ok bool) {
	if d.Id != id {
		return nil, false
	}
	return t.m.Swap(id, d)
}

// Remove deletes the entry and returns it, so the caller can dispose its transport.
func (t *Table) Remove(id Id) (*Descriptor, bool) { return t.m.Pop(id) }

// Get returns the live descriptor. It must be mutated only with Update.
func (t *Table) Get(id Id) (*Descriptor, bool) {
	d, err := t.m.Find(id)
	return d, err == nil
}

// Update mutates a tracked descriptor under the table lock.
func (t *Table) Update(id Id, fn func(d *Descriptor)) bool { return t.m.Update(id, fn) }

func (t *Table) Has(id Id) bool { return t.m.Has(id) }

func (t *Table) Len() int { return t.m.Len() }

// Drain empties the table and returns everything that was in it.
func (t *Table) Drain() []*Descriptor { return t.m.Drain() }

// Snapshot is a point-in-time copy of the table ordered by id.
func (t *Table) Snapshot() []Descriptor {
	out := make([]Descriptor, 0, t.m.Len())
	t.m.ForEach(func(d *Descriptor) { out = append(out, d.view()) })
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}
