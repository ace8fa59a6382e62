package taxonomy

import (
	"context"
	"fmt"
	"log/slog"

	"ricevute/internal/backend"
	"ricevute/internal/core"
)

// EntityError surfaces a non-fatal per-entity persistence failure from a
// save. The editing session stays usable; the save can be retried.
type EntityError struct {
	Kind    string `json:"kind"` // "group" or "item"
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// SaveResult reports what a save attempted and which entities failed.
type SaveResult struct {
	GroupsUpdated int           `json:"groups_updated"`
	ItemsUpdated  int           `json:"items_updated"`
	Errors        []EntityError `json:"errors,omitempty"`
}

// Reconciler diffs the editable snapshot against the last-saved baseline,
// persists accumulated reordering in minimal batches, and tracks the dirty
// flag. Local optimistic state is authoritative during editing; after a save
// or discard the collaborator's copy wins and replaces the local snapshot.
type Reconciler struct {
	svc      backend.TaxonomyService
	baseline Snapshot
	dirty    bool
}

// NewReconciler builds a reconciler with the given baseline, normally the
// state just loaded from the collaborator.
func NewReconciler(svc backend.TaxonomyService, baseline Snapshot) *Reconciler {
	return &Reconciler{svc: svc, baseline: baseline.Clone()}
}

// Dirty reports whether the local snapshot diverges from the last-saved
// baseline.
func (r *Reconciler) Dirty() bool { return r.dirty }

// MarkDirty flags the session as diverged; called on every ordering mutation.
func (r *Reconciler) MarkDirty() { r.dirty = true }

// Baseline returns a copy of the last-saved snapshot.
func (r *Reconciler) Baseline() Snapshot { return r.baseline.Clone() }

// Rebase replays a write-through mutation onto the baseline so the next save
// does not re-issue it. The mutation runs against a throwaway store seeded
// with the baseline; on error the baseline is left untouched.
func (r *Reconciler) Rebase(mutate func(*Store) error) error {
	s := NewStore(r.baseline.Groups, r.baseline.Items)
	if err := mutate(s); err != nil {
		return err
	}
	r.baseline = s.Snapshot()
	return nil
}

// Save persists the current snapshot. It renumbers every container densely
// first, then issues one bulk item update for items whose container or order
// changed, and one group update per group whose order changed. Per-entity
// failures are collected and do not block the other batch. On full or partial
// success the authoritative state is reloaded and returned; the server copy
// wins after a save, even when it differs from what was displayed. When every
// write fails, the local snapshot stays authoritative and the session stays
// dirty so the save can be retried.
func (r *Reconciler) Save(ctx context.Context, current Snapshot) (Snapshot, SaveResult, error) {
	normalized := Renumber(current)
	var res SaveResult

	baseGroups := make(map[int64]core.Group, len(r.baseline.Groups))
	for _, g := range r.baseline.Groups {
		baseGroups[g.ID] = g
	}
	baseItems := make(map[int64]core.Item, len(r.baseline.Items))
	for _, it := range r.baseline.Items {
		baseItems[it.ID] = it
	}

	var itemUpdates []backend.BulkItemUpdate
	for _, it := range normalized.Items {
		prev, known := baseItems[it.ID]
		if known && prev.Container == it.Container && prev.DisplayOrder == it.DisplayOrder {
			continue
		}
		itemUpdates = append(itemUpdates, backend.BulkItemUpdate{
			ID:           it.ID,
			Container:    it.Container,
			DisplayOrder: it.DisplayOrder,
		})
	}

	if len(itemUpdates) > 0 {
		applied, failed, err := r.svc.BulkUpdateItems(ctx, itemUpdates)
		if err != nil {
			// Transport-level failure: every item in the batch is reported,
			// the group batch still proceeds.
			for _, upd := range itemUpdates {
				res.Errors = append(res.Errors, EntityError{Kind: "item", ID: upd.ID, Message: err.Error()})
			}
		} else {
			res.ItemsUpdated = len(applied)
			for _, f := range failed {
				res.Errors = append(res.Errors, EntityError{Kind: "item", ID: f.ID, Message: f.Err.Error()})
			}
		}
	}

	for _, g := range sortedGroups(normalized.Groups) {
		prev, known := baseGroups[g.ID]
		if known && prev.DisplayOrder == g.DisplayOrder {
			continue
		}
		order := g.DisplayOrder
		if _, err := r.svc.UpdateGroup(ctx, g.ID, backend.GroupUpdate{DisplayOrder: &order}); err != nil {
			res.Errors = append(res.Errors, EntityError{Kind: "group", ID: g.ID, Message: err.Error()})
			continue
		}
		res.GroupsUpdated++
	}

	slog.InfoContext(ctx, "Taxonomy save completed",
		"items_updated", res.ItemsUpdated,
		"groups_updated", res.GroupsUpdated,
		"errors", len(res.Errors))

	// When nothing reached the collaborator, keep the local snapshot, the
	// baseline and the dirty flag untouched: a retry re-diffs the same
	// updates instead of finding an empty set.
	if res.GroupsUpdated+res.ItemsUpdated == 0 && len(res.Errors) > 0 {
		slog.WarnContext(ctx, "Taxonomy save wrote nothing, keeping local state",
			"errors", len(res.Errors))
		return current, res, nil
	}

	// Reload the authoritative copy even on partial failure; local state is
	// replaced by whatever the collaborator holds now.
	reloaded, err := r.reload(ctx)
	if err != nil {
		return Snapshot{}, res, fmt.Errorf("reload after save: %w", err)
	}
	r.baseline = reloaded.Clone()
	r.dirty = false
	return reloaded, res, nil
}

// Discard drops all unsaved local mutations and reloads the last-saved state
// from the collaborator.
func (r *Reconciler) Discard(ctx context.Context) (Snapshot, error) {
	reloaded, err := r.reload(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reload on discard: %w", err)
	}
	r.baseline = reloaded.Clone()
	r.dirty = false
	return reloaded, nil
}

func (r *Reconciler) reload(ctx context.Context) (Snapshot, error) {
	groups, err := r.svc.ListGroups(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list groups: %w", err)
	}
	items, err := r.svc.ListItems(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list items: %w", err)
	}
	return Snapshot{Groups: groups, Items: items}, nil
}
