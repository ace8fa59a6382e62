package taxonomy

import (
	"errors"

	"ricevute/internal/core"
)

var (
	// ErrNotFound is returned when a group or item id is not in the snapshot.
	ErrNotFound = errors.New("not found in taxonomy")
	// ErrDragActive is returned when a gesture is started while another is in
	// progress.
	ErrDragActive = errors.New("drag gesture already in progress")
	// ErrNoDrag is returned when drop or hover is called outside a gesture.
	ErrNoDrag = errors.New("no drag gesture in progress")
)

// Store holds the current editable snapshot for one editing session. It is
// the single source of truth for the UI between loads; the persistence
// collaborator owns the durable copy. Mutations replace the snapshot with a
// new value, so previously returned snapshots and views stay untouched and
// remain safe to diff against.
//
// Store is not safe for concurrent use; the owning session serializes access.
type Store struct {
	snap Snapshot
}

// NewStore builds a store from authoritative groups and items.
func NewStore(groups []core.Group, items []core.Item) *Store {
	return &Store{snap: Snapshot{Groups: groups, Items: items}.Clone()}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	return s.snap.Clone()
}

// Replace swaps in a new snapshot, typically after a reload from the
// persistence collaborator.
func (s *Store) Replace(snap Snapshot) {
	s.snap = snap.Clone()
}

// View returns the presentation-ordered read model of the current snapshot.
func (s *Store) View() View {
	return s.snap.View()
}

// AddGroup inserts a created group at the end of the group list.
func (s *Store) AddGroup(g core.Group) {
	next := s.snap.Clone()
	g.DisplayOrder = len(next.Groups)
	next.Groups = append(next.Groups, g)
	s.snap = next
}

// RenameGroup changes a group's name.
func (s *Store) RenameGroup(id int64, name string) error {
	next := s.snap.Clone()
	for i, g := range next.Groups {
		if g.ID == id {
			next.Groups[i].Name = name
			s.snap = next
			return nil
		}
	}
	return ErrNotFound
}

// RemoveGroup deletes a group. Its items are not deleted: they move to the
// end of the ungrouped bucket, keeping their relative order, and the
// ungrouped bucket is renumbered. Remaining groups are renumbered densely.
func (s *Store) RemoveGroup(id int64) error {
	if _, ok := s.snap.group(id); !ok {
		return ErrNotFound
	}
	next := s.snap.Clone()

	key := core.GroupKey(id)
	orphans := next.ContainerItems(key)
	ungrouped := next.ContainerItems(core.Ungrouped)
	merged := append(ungrouped, orphans...)
	for i := range merged {
		merged[i].Container = core.Ungrouped
		merged[i].DisplayOrder = i
	}
	applyItemOrders(&next, merged)

	groups := sortedGroups(next.Groups)
	idx := indexOfGroup(groups, id)
	groups = append(groups[:idx], groups[idx+1:]...)
	for i := range groups {
		groups[i].DisplayOrder = i
	}
	next.Groups = groups

	s.snap = next
	return nil
}

// AddItem inserts a created item at the end of its container.
func (s *Store) AddItem(it core.Item) {
	next := s.snap.Clone()
	it.DisplayOrder = len(next.ContainerItems(it.Container))
	next.Items = append(next.Items, it)
	s.snap = next
}

// RenameItem changes an item's name.
func (s *Store) RenameItem(id int64, name string) error {
	next := s.snap.Clone()
	for i, it := range next.Items {
		if it.ID == id {
			next.Items[i].Name = name
			s.snap = next
			return nil
		}
	}
	return ErrNotFound
}

// RemoveItem deletes an item and renumbers its container.
func (s *Store) RemoveItem(id int64) error {
	it, ok := s.snap.item(id)
	if !ok {
		return ErrNotFound
	}
	next := s.snap.Clone()
	for i := range next.Items {
		if next.Items[i].ID == id {
			next.Items = append(next.Items[:i], next.Items[i+1:]...)
			break
		}
	}
	remaining := next.ContainerItems(it.Container)
	for i := range remaining {
		remaining[i].DisplayOrder = i
	}
	applyItemOrders(&next, remaining)
	s.snap = next
	return nil
}

// Apply replaces the snapshot with the result of an ordering engine
// computation.
func (s *Store) Apply(snap Snapshot) {
	s.snap = snap
}
