package taxonomy

import (
	"testing"

	"ricevute/internal/core"
)

func newTestSession() (*Store, *Reconciler, *Controller) {
	snap := testSnapshot()
	store := NewStore(snap.Groups, snap.Items)
	rec := NewReconciler(nil, snap)
	return store, rec, NewController(store, rec)
}

func TestDragLifecycle(t *testing.T) {
	store, rec, ctl := newTestSession()

	if ctl.State() != StateIdle {
		t.Fatalf("controller must start idle")
	}
	if err := ctl.Begin(ItemRef(1)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if ctl.State() != StateDragging {
		t.Fatalf("expected dragging state")
	}

	target, ok, err := ctl.Hover(GroupRef(2))
	if err != nil || !ok {
		t.Fatalf("hover: ok=%v err=%v", ok, err)
	}
	if target.Container != core.GroupKey(2) {
		t.Fatalf("highlight container %s", target.Container)
	}

	changed, err := ctl.Drop()
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if !changed {
		t.Fatalf("expected drop to change the snapshot")
	}
	if ctl.State() != StateIdle {
		t.Fatalf("controller must return to idle after drop")
	}
	if !rec.Dirty() {
		t.Fatalf("drop must mark the session dirty")
	}
	a, _ := store.Snapshot().item(1)
	if a.Container != core.GroupKey(2) {
		t.Fatalf("item not moved: %s", a.Container)
	}
}

func TestCancelPurity(t *testing.T) {
	store, rec, ctl := newTestSession()
	before := store.Snapshot()

	if err := ctl.Begin(GroupRef(1)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, _, err := ctl.Hover(GroupRef(2)); err != nil {
		t.Fatalf("hover: %v", err)
	}
	ctl.Cancel()

	if ctl.State() != StateIdle {
		t.Fatalf("expected idle after cancel")
	}
	if !store.Snapshot().Equal(before) {
		t.Fatalf("cancelled drag mutated the snapshot")
	}
	if rec.Dirty() {
		t.Fatalf("cancelled drag marked the session dirty")
	}
}

func TestHoverDoesNotMutate(t *testing.T) {
	store, _, ctl := newTestSession()
	before := store.Snapshot()

	if err := ctl.Begin(ItemRef(1)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, ref := range []NodeRef{ItemRef(2), GroupRef(2), UngroupedRef(), ItemRef(3)} {
		if _, _, err := ctl.Hover(ref); err != nil {
			t.Fatalf("hover %v: %v", ref, err)
		}
		if !store.Snapshot().Equal(before) {
			t.Fatalf("hover over %v mutated the snapshot", ref)
		}
	}
	ctl.Cancel()
}

func TestDropWithoutHoverIsCancel(t *testing.T) {
	store, rec, ctl := newTestSession()
	before := store.Snapshot()

	if err := ctl.Begin(ItemRef(1)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	changed, err := ctl.Drop()
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if changed || !store.Snapshot().Equal(before) || rec.Dirty() {
		t.Fatalf("drop without a hovered target must be a no-op")
	}
}

func TestDropOntoSelfKeepsClean(t *testing.T) {
	store, rec, ctl := newTestSession()
	before := store.Snapshot()

	if err := ctl.Begin(ItemRef(2)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, _, err := ctl.Hover(ItemRef(2)); err != nil {
		t.Fatalf("hover: %v", err)
	}
	changed, err := ctl.Drop()
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if changed || rec.Dirty() || !store.Snapshot().Equal(before) {
		t.Fatalf("self-drop must leave the session clean")
	}
}

func TestGestureGuards(t *testing.T) {
	_, _, ctl := newTestSession()

	if _, _, err := ctl.Hover(ItemRef(1)); err != ErrNoDrag {
		t.Fatalf("hover while idle: %v", err)
	}
	if _, err := ctl.Drop(); err != ErrNoDrag {
		t.Fatalf("drop while idle: %v", err)
	}
	if err := ctl.Begin(ItemRef(99)); err != ErrNotFound {
		t.Fatalf("begin on unknown item: %v", err)
	}
	if err := ctl.Begin(UngroupedRef()); err != ErrNotFound {
		t.Fatalf("begin on a zone must be rejected: %v", err)
	}
	if err := ctl.Begin(ItemRef(1)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := ctl.Begin(ItemRef(2)); err != ErrDragActive {
		t.Fatalf("second begin: %v", err)
	}
	ctl.Cancel()
}

func TestHoverUnknownTargetInvalidatesDrop(t *testing.T) {
	store, _, ctl := newTestSession()
	before := store.Snapshot()

	if err := ctl.Begin(ItemRef(1)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	// A valid hover followed by an invalid one: releasing there is a cancel.
	if _, ok, _ := ctl.Hover(GroupRef(2)); !ok {
		t.Fatalf("expected valid hover")
	}
	if _, ok, _ := ctl.Hover(ItemRef(99)); ok {
		t.Fatalf("expected invalid hover")
	}
	changed, err := ctl.Drop()
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if changed || !store.Snapshot().Equal(before) {
		t.Fatalf("drop over an invalid target must be a no-op")
	}
}
