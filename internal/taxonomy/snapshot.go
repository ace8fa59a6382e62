// Package taxonomy implements the receipt-type taxonomy editing session:
// an in-memory snapshot of groups and receipt types, a pure ordering engine
// for drag-and-drop mutations, a drag gesture state machine, and a batch
// reconciler that persists accumulated reordering.
package taxonomy

import (
	"sort"

	"ricevute/internal/core"
)

// Snapshot is the full (groups, items) state at a point in time. It is used
// both as the current editable state and as the last-saved baseline for
// diffing. Snapshots are treated as immutable values: every mutation works on
// a clone and the original is never written through.
type Snapshot struct {
	Groups []core.Group
	Items  []core.Item
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Groups: make([]core.Group, len(s.Groups)),
		Items:  make([]core.Item, len(s.Items)),
	}
	copy(out.Groups, s.Groups)
	copy(out.Items, s.Items)
	return out
}

// Equal reports whether two snapshots describe the same taxonomy state,
// independent of slice order.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.Groups) != len(other.Groups) || len(s.Items) != len(other.Items) {
		return false
	}
	groups := make(map[int64]core.Group, len(other.Groups))
	for _, g := range other.Groups {
		groups[g.ID] = g
	}
	for _, g := range s.Groups {
		if groups[g.ID] != g {
			return false
		}
	}
	items := make(map[int64]core.Item, len(other.Items))
	for _, it := range other.Items {
		items[it.ID] = it
	}
	for _, it := range s.Items {
		if items[it.ID] != it {
			return false
		}
	}
	return true
}

// View is the presentation-ordered read model of a snapshot: groups sorted by
// (display_order, name) and every container's items sorted the same way.
type View struct {
	Groups      []core.Group
	ByContainer map[core.ContainerKey][]core.Item
}

// View computes the container view. It is recomputed from scratch on every
// call; no caching, so it can never go stale.
func (s Snapshot) View() View {
	v := View{
		Groups:      sortedGroups(s.Groups),
		ByContainer: make(map[core.ContainerKey][]core.Item, len(s.Groups)+1),
	}
	for _, g := range v.Groups {
		v.ByContainer[core.GroupKey(g.ID)] = nil
	}
	v.ByContainer[core.Ungrouped] = nil
	for _, it := range s.Items {
		v.ByContainer[it.Container] = append(v.ByContainer[it.Container], it)
	}
	for key, items := range v.ByContainer {
		v.ByContainer[key] = sortedItems(items)
	}
	return v
}

// ContainerItems returns the snapshot's items for one container in display
// order.
func (s Snapshot) ContainerItems(key core.ContainerKey) []core.Item {
	var items []core.Item
	for _, it := range s.Items {
		if it.Container == key {
			items = append(items, it)
		}
	}
	return sortedItems(items)
}

func (s Snapshot) group(id int64) (core.Group, bool) {
	for _, g := range s.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return core.Group{}, false
}

func (s Snapshot) item(id int64) (core.Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return core.Item{}, false
}

// sortedGroups orders groups by (display_order, name); ties break by
// case-sensitive name compare.
func sortedGroups(groups []core.Group) []core.Group {
	out := make([]core.Group, len(groups))
	copy(out, groups)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sortedItems(items []core.Item) []core.Item {
	out := make([]core.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}
