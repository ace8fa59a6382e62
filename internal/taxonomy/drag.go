package taxonomy

// DragState is the controller's position in the gesture lifecycle. Dropped
// and Cancelled are transitions, not resting states: both return to Idle
// within the same call.
type DragState int

const (
	// StateIdle means no gesture is active.
	StateIdle DragState = iota
	// StateDragging means a gesture is tracking a dragged node.
	StateDragging
)

func (s DragState) String() string {
	if s == StateDragging {
		return "dragging"
	}
	return "idle"
}

// Controller mediates a single drag gesture: it tracks the dragged node and
// the current hover target, computes highlight state via the ordering
// engine's resolution function, and applies the engine exactly once on drop.
// Entering a gesture never mutates the store; only a drop does. A cancelled
// gesture therefore has zero observable effect.
type Controller struct {
	store *Store
	rec   *Reconciler

	state    DragState
	dragged  NodeRef
	hover    NodeRef
	hasHover bool
}

// NewController wires the drag controller to the session's store and
// reconciler.
func NewController(store *Store, rec *Reconciler) *Controller {
	return &Controller{store: store, rec: rec}
}

// State returns the current gesture state.
func (c *Controller) State() DragState { return c.state }

// Dragged returns the node being dragged and whether a gesture is active.
func (c *Controller) Dragged() (NodeRef, bool) {
	return c.dragged, c.state == StateDragging
}

// Begin starts a gesture on a group or item handle. A new gesture is only
// accepted from Idle.
func (c *Controller) Begin(ref NodeRef) error {
	if c.state != StateIdle {
		return ErrDragActive
	}
	switch ref.Kind {
	case NodeGroup:
		if _, ok := c.store.snap.group(ref.ID); !ok {
			return ErrNotFound
		}
	case NodeItem:
		if _, ok := c.store.snap.item(ref.ID); !ok {
			return ErrNotFound
		}
	default:
		return ErrNotFound
	}
	c.state = StateDragging
	c.dragged = ref
	c.hasHover = false
	return nil
}

// Hover records the element currently under the pointer and returns the
// resolved drop target for highlighting. The snapshot is never mutated here.
// ok is false when the hovered element is not a valid target.
func (c *Controller) Hover(ref NodeRef) (DropTarget, bool, error) {
	if c.state != StateDragging {
		return DropTarget{}, false, ErrNoDrag
	}
	target, ok := ResolveTarget(c.store.snap, ref)
	if !ok {
		c.hasHover = false
		return DropTarget{}, false, nil
	}
	c.hover = ref
	c.hasHover = true
	return target, true, nil
}

// Drop ends the gesture over the last hovered target, invoking the ordering
// engine once. It reports whether the snapshot changed; a changed drop marks
// the session dirty. The controller returns to Idle either way.
func (c *Controller) Drop() (bool, error) {
	if c.state != StateDragging {
		return false, ErrNoDrag
	}
	dragged, hover, hasHover := c.dragged, c.hover, c.hasHover
	c.reset()
	if !hasHover {
		// Released outside any target: same as cancel.
		return false, nil
	}
	next, changed := ApplyDrag(c.store.snap, dragged, hover)
	if !changed {
		return false, nil
	}
	c.store.Apply(next)
	if c.rec != nil {
		c.rec.MarkDirty()
	}
	return true, nil
}

// Cancel aborts the gesture with no observable effect.
func (c *Controller) Cancel() {
	c.reset()
}

func (c *Controller) reset() {
	c.state = StateIdle
	c.dragged = NodeRef{}
	c.hover = NodeRef{}
	c.hasHover = false
}
