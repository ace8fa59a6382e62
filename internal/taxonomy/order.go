package taxonomy

import (
	"ricevute/internal/core"
)

// NodeKind tags the element a drag gesture refers to.
type NodeKind int

const (
	// NodeGroup is a group header or handle.
	NodeGroup NodeKind = iota
	// NodeItem is a receipt type row.
	NodeItem
	// NodeGroupZone is the empty drop zone inside a group's body.
	NodeGroupZone
	// NodeUngroupedZone is the ungrouped region (ID is ignored).
	NodeUngroupedZone
)

// NodeRef identifies a draggable or hoverable element.
type NodeRef struct {
	Kind NodeKind
	ID   int64
}

// GroupRef returns a reference to a group header.
func GroupRef(id int64) NodeRef { return NodeRef{Kind: NodeGroup, ID: id} }

// ItemRef returns a reference to an item row.
func ItemRef(id int64) NodeRef { return NodeRef{Kind: NodeItem, ID: id} }

// GroupZoneRef returns a reference to a group's empty drop zone.
func GroupZoneRef(id int64) NodeRef { return NodeRef{Kind: NodeGroupZone, ID: id} }

// UngroupedRef returns a reference to the ungrouped region.
func UngroupedRef() NodeRef { return NodeRef{Kind: NodeUngroupedZone} }

// DropTarget is the resolved meaning of a hovered element. It carries both
// interpretations of a hover: where an item drag would land (Container,
// Index) and, when the hovered element is a group header, which group slot a
// group drag would take (GroupSlot, else -1). Resolution never mutates the
// snapshot; the drag controller uses it for live highlight.
type DropTarget struct {
	Container core.ContainerKey
	Index     int // insertion index within Container; len(container) means append
	GroupSlot int // position among sorted groups, -1 unless hovering a group header
}

// ResolveTarget resolves a hovered element against the snapshot. The second
// return is false when the element does not exist, which makes the hover an
// invalid drop target.
//
// Hovering an item targets that item's own position in its container;
// hovering a group header or body targets the end of that group; hovering the
// ungrouped region targets the end of the ungrouped bucket.
func ResolveTarget(snap Snapshot, hovered NodeRef) (DropTarget, bool) {
	switch hovered.Kind {
	case NodeItem:
		it, ok := snap.item(hovered.ID)
		if !ok {
			return DropTarget{}, false
		}
		idx := indexOfItem(snap.ContainerItems(it.Container), it.ID)
		return DropTarget{Container: it.Container, Index: idx, GroupSlot: -1}, true
	case NodeGroup:
		g, ok := snap.group(hovered.ID)
		if !ok {
			return DropTarget{}, false
		}
		key := core.GroupKey(g.ID)
		slot := indexOfGroup(sortedGroups(snap.Groups), g.ID)
		return DropTarget{Container: key, Index: len(snap.ContainerItems(key)), GroupSlot: slot}, true
	case NodeGroupZone:
		if _, ok := snap.group(hovered.ID); !ok {
			return DropTarget{}, false
		}
		key := core.GroupKey(hovered.ID)
		return DropTarget{Container: key, Index: len(snap.ContainerItems(key)), GroupSlot: -1}, true
	case NodeUngroupedZone:
		return DropTarget{Container: core.Ungrouped, Index: len(snap.ContainerItems(core.Ungrouped)), GroupSlot: -1}, true
	default:
		return DropTarget{}, false
	}
}

// ApplyDrag computes the snapshot resulting from dropping dragged onto
// hovered. It returns the input snapshot unchanged (changed=false) when the
// drop is a no-op: dragged equals the target, the target does not resolve, or
// the computed state is identical to the current one.
//
// Three cases, in priority order: group onto group reorders the group list;
// item onto an item of the same container reorders within that container;
// otherwise an item drop moves the item across containers.
func ApplyDrag(snap Snapshot, dragged, hovered NodeRef) (Snapshot, bool) {
	if dragged == hovered {
		return snap, false
	}

	switch dragged.Kind {
	case NodeGroup:
		if hovered.Kind != NodeGroup {
			return snap, false
		}
		return applyGroupReorder(snap, dragged.ID, hovered.ID)
	case NodeItem:
		it, ok := snap.item(dragged.ID)
		if !ok {
			return snap, false
		}
		target, ok := ResolveTarget(snap, hovered)
		if !ok {
			return snap, false
		}
		if target.Container == it.Container {
			return applyItemReorder(snap, it, target.Index)
		}
		return applyItemMove(snap, it, target.Container, target.Index)
	default:
		return snap, false
	}
}

// applyGroupReorder removes the dragged group from the ordered group list,
// reinserts it at the target group's index, then reassigns every group's
// display order to its positional index. Total reassignment keeps the
// ordering dense and free of drift.
func applyGroupReorder(snap Snapshot, draggedID, targetID int64) (Snapshot, bool) {
	groups := sortedGroups(snap.Groups)
	from := indexOfGroup(groups, draggedID)
	to := indexOfGroup(groups, targetID)
	if from < 0 || to < 0 || from == to {
		return snap, false
	}
	moved := arrayMoveGroups(groups, from, to)
	for i := range moved {
		moved[i].DisplayOrder = i
	}
	out := snap.Clone()
	applyGroupOrders(&out, moved)
	if out.Equal(snap) {
		return snap, false
	}
	return out, true
}

// applyItemReorder array-moves the item to index within its own container and
// renumbers that container only.
func applyItemReorder(snap Snapshot, it core.Item, index int) (Snapshot, bool) {
	items := snap.ContainerItems(it.Container)
	from := indexOfItem(items, it.ID)
	if from < 0 {
		return snap, false
	}
	if index > len(items)-1 {
		index = len(items) - 1
	}
	if index < 0 || from == index {
		return snap, false
	}
	moved := arrayMoveItems(items, from, index)
	for i := range moved {
		moved[i].DisplayOrder = i
	}
	out := snap.Clone()
	applyItemOrders(&out, moved)
	if out.Equal(snap) {
		return snap, false
	}
	return out, true
}

// applyItemMove reassigns the item to the destination container, inserting at
// index (or appending), and renumbers the destination. The source container
// is not renumbered: the removed slot simply closes the list and the relative
// order of the remaining items is preserved. Renumber closes the gap before
// any save.
func applyItemMove(snap Snapshot, it core.Item, dest core.ContainerKey, index int) (Snapshot, bool) {
	if id, ok := dest.GroupID(); ok {
		if _, exists := snap.group(id); !exists {
			return snap, false
		}
	}
	destItems := snap.ContainerItems(dest)
	if index < 0 || index > len(destItems) {
		index = len(destItems)
	}

	moved := it
	moved.Container = dest
	updated := make([]core.Item, 0, len(destItems)+1)
	updated = append(updated, destItems[:index]...)
	updated = append(updated, moved)
	updated = append(updated, destItems[index:]...)
	for i := range updated {
		updated[i].DisplayOrder = i
	}

	out := snap.Clone()
	applyItemOrders(&out, updated)
	if out.Equal(snap) {
		return snap, false
	}
	return out, true
}

// Renumber returns a snapshot with every container and the group list
// densely renumbered 0..n-1 in current display order. Idempotent; runs before
// every save.
func Renumber(snap Snapshot) Snapshot {
	out := snap.Clone()
	groups := sortedGroups(out.Groups)
	for i := range groups {
		groups[i].DisplayOrder = i
	}
	applyGroupOrders(&out, groups)

	view := out.View()
	for _, items := range view.ByContainer {
		renumbered := make([]core.Item, len(items))
		copy(renumbered, items)
		for i := range renumbered {
			renumbered[i].DisplayOrder = i
		}
		applyItemOrders(&out, renumbered)
	}
	return out
}

func indexOfGroup(groups []core.Group, id int64) int {
	for i, g := range groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func indexOfItem(items []core.Item, id int64) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// arrayMoveGroups moves the element at from to position to, shifting the
// elements in between by one.
func arrayMoveGroups(groups []core.Group, from, to int) []core.Group {
	out := make([]core.Group, len(groups))
	copy(out, groups)
	g := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]core.Group{g}, out[to:]...)...)
	return out
}

func arrayMoveItems(items []core.Item, from, to int) []core.Item {
	out := make([]core.Item, len(items))
	copy(out, items)
	it := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]core.Item{it}, out[to:]...)...)
	return out
}

// applyGroupOrders writes the given groups' fields back into the snapshot by id.
func applyGroupOrders(snap *Snapshot, groups []core.Group) {
	byID := make(map[int64]core.Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	for i, g := range snap.Groups {
		if updated, ok := byID[g.ID]; ok {
			snap.Groups[i] = updated
		}
	}
}

func applyItemOrders(snap *Snapshot, items []core.Item) {
	byID := make(map[int64]core.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for i, it := range snap.Items {
		if updated, ok := byID[it.ID]; ok {
			snap.Items[i] = updated
		}
	}
}
