// Package services orchestrates domain operations across the persistence
// backend and AMQP. The taxonomy session is the single writer of the local
// editable snapshot; handlers call it, never the taxonomy package directly.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"ricevute/internal/backend"
	"ricevute/internal/core"
	"ricevute/internal/taxonomy"
)

// SyncPublisher publishes a taxonomy sync message after a save.
type SyncPublisher interface {
	PublishTaxonomySync(ctx context.Context, groupsUpdated, itemsUpdated int) error
}

// TaxonomySession owns the editable taxonomy: the optimistic local snapshot,
// the drag state machine and the save reconciler, behind one mutex. Structural
// edits (create, rename, delete) are written through to the backend
// immediately; reordering stays local until Save.
type TaxonomySession struct {
	mu        sync.Mutex
	svc       backend.TaxonomyService
	publisher SyncPublisher
	store     *taxonomy.Store
	drag      *taxonomy.Controller
	rec       *taxonomy.Reconciler
}

// NewTaxonomySession loads the persisted taxonomy and starts a session on it.
func NewTaxonomySession(ctx context.Context, svc backend.TaxonomyService, publisher SyncPublisher) (*TaxonomySession, error) {
	groups, err := svc.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	items, err := svc.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	store := taxonomy.NewStore(groups, items)
	rec := taxonomy.NewReconciler(svc, store.Snapshot())
	return &TaxonomySession{
		svc:       svc,
		publisher: publisher,
		store:     store,
		drag:      taxonomy.NewController(store, rec),
		rec:       rec,
	}, nil
}

// View returns the current display projection of the local snapshot.
func (s *TaxonomySession) View() taxonomy.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.View()
}

// Dirty reports whether unsaved reordering is pending.
func (s *TaxonomySession) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Dirty()
}

// DragState returns the drag state machine's current state.
func (s *TaxonomySession) DragState() taxonomy.DragState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.State()
}

// CreateGroup persists a new group at the end of the group list and adds it
// to the local snapshot.
func (s *TaxonomySession) CreateGroup(ctx context.Context, name string) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := len(s.store.View().Groups)
	g, err := s.svc.CreateGroup(ctx, name, order)
	if err != nil {
		return core.Group{}, fmt.Errorf("create group: %w", err)
	}
	s.store.AddGroup(g)
	if err := s.rec.Rebase(func(st *taxonomy.Store) error {
		st.AddGroup(g)
		return nil
	}); err != nil {
		return core.Group{}, fmt.Errorf("rebase after create group: %w", err)
	}
	return g, nil
}

// RenameGroup writes the new name through to the backend and the snapshot.
func (s *TaxonomySession) RenameGroup(ctx context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.svc.UpdateGroup(ctx, id, backend.GroupUpdate{Name: &name}); err != nil {
		return fmt.Errorf("rename group: %w", err)
	}
	if err := s.store.RenameGroup(id, name); err != nil {
		return err
	}
	return s.rec.Rebase(func(st *taxonomy.Store) error {
		return st.RenameGroup(id, name)
	})
}

// DeleteGroup removes the group everywhere. Its items are appended to the
// ungrouped bucket, locally and in the backend.
func (s *TaxonomySession) DeleteGroup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.svc.DeleteGroup(ctx, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if err := s.store.RemoveGroup(id); err != nil {
		return err
	}
	return s.rec.Rebase(func(st *taxonomy.Store) error {
		return st.RemoveGroup(id)
	})
}

// CreateItem persists a new item at the end of its container and adds it to
// the local snapshot.
func (s *TaxonomySession) CreateItem(ctx context.Context, name string, container core.ContainerKey) (core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.svc.CreateItem(ctx, name, container)
	if err != nil {
		return core.Item{}, fmt.Errorf("create item: %w", err)
	}
	s.store.AddItem(it)
	if err := s.rec.Rebase(func(st *taxonomy.Store) error {
		st.AddItem(it)
		return nil
	}); err != nil {
		return core.Item{}, fmt.Errorf("rebase after create item: %w", err)
	}
	return it, nil
}

// RenameItem writes the new name through to the backend and the snapshot.
func (s *TaxonomySession) RenameItem(ctx context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.svc.UpdateItem(ctx, id, backend.ItemUpdate{Name: &name}); err != nil {
		return fmt.Errorf("rename item: %w", err)
	}
	if err := s.store.RenameItem(id, name); err != nil {
		return err
	}
	return s.rec.Rebase(func(st *taxonomy.Store) error {
		return st.RenameItem(id, name)
	})
}

// DeleteItem removes the item everywhere.
func (s *TaxonomySession) DeleteItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.svc.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if err := s.store.RemoveItem(id); err != nil {
		return err
	}
	return s.rec.Rebase(func(st *taxonomy.Store) error {
		return st.RemoveItem(id)
	})
}

// BeginDrag starts a drag gesture on a group or item.
func (s *TaxonomySession) BeginDrag(ref taxonomy.NodeRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Begin(ref)
}

// HoverDrag updates the hover target and returns the resolved drop target,
// when the hovered node is a valid one.
func (s *TaxonomySession) HoverDrag(ref taxonomy.NodeRef) (taxonomy.DropTarget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Hover(ref)
}

// Drop commits the gesture at the last hovered target. It reports whether
// the snapshot changed.
func (s *TaxonomySession) Drop() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Drop()
}

// CancelDrag abandons the gesture without touching the snapshot.
func (s *TaxonomySession) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Cancel()
}

// Save persists pending reordering and replaces the local snapshot with the
// reloaded authoritative copy. A sync message is published when anything was
// written; publish failures are logged, not returned, since the save itself
// succeeded.
func (s *TaxonomySession) Save(ctx context.Context) (taxonomy.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drag.Cancel()
	reloaded, res, err := s.rec.Save(ctx, s.store.Snapshot())
	if err != nil {
		return res, fmt.Errorf("save taxonomy: %w", err)
	}
	s.store.Replace(reloaded)

	if s.publisher != nil && res.GroupsUpdated+res.ItemsUpdated > 0 {
		if err := s.publisher.PublishTaxonomySync(ctx, res.GroupsUpdated, res.ItemsUpdated); err != nil {
			slog.ErrorContext(ctx, "Failed to publish taxonomy sync message", "error", err)
		}
	}
	return res, nil
}

// Discard drops pending reordering and reloads the last-saved state.
func (s *TaxonomySession) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drag.Cancel()
	reloaded, err := s.rec.Discard(ctx)
	if err != nil {
		return fmt.Errorf("discard taxonomy changes: %w", err)
	}
	s.store.Replace(reloaded)
	return nil
}
