package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ricevute/internal/backend"
	"ricevute/internal/backend/memory"
	"ricevute/internal/core"
)

func loadSession(t *testing.T, svc backend.TaxonomyService) (*Store, *Reconciler, *Controller) {
	t.Helper()
	ctx := context.Background()
	groups, err := svc.ListGroups(ctx)
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	items, err := svc.ListItems(ctx)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	store := NewStore(groups, items)
	rec := NewReconciler(svc, store.Snapshot())
	return store, rec, NewController(store, rec)
}

func seededBackend() *memory.Store {
	return memory.NewSeeded(map[string][]string{
		"Casa":      {"Bollette", "Mutuo"},
		"Trasporti": {"Benzina"},
	}, []string{"Varie"})
}

func drag(t *testing.T, ctl *Controller, dragged, hovered NodeRef) {
	t.Helper()
	if err := ctl.Begin(dragged); err != nil {
		t.Fatalf("begin %v: %v", dragged, err)
	}
	if _, ok, err := ctl.Hover(hovered); err != nil || !ok {
		t.Fatalf("hover %v: ok=%v err=%v", hovered, ok, err)
	}
	if _, err := ctl.Drop(); err != nil {
		t.Fatalf("drop: %v", err)
	}
}

func TestReorderThenSaveRoundTrip(t *testing.T) {
	svc := seededBackend()
	store, rec, ctl := loadSession(t, svc)
	view := store.View()

	casa := view.Groups[0]
	trasporti := view.Groups[1]
	bollette := view.ByContainer[core.GroupKey(casa.ID)][0]
	mutuo := view.ByContainer[core.GroupKey(casa.ID)][1]
	varie := view.ByContainer[core.Ungrouped][0]

	// A sequence of gestures: swap the groups, move an item across, reorder
	// within a container, pull an item out of the ungrouped bucket.
	drag(t, ctl, GroupRef(trasporti.ID), GroupRef(casa.ID))
	drag(t, ctl, ItemRef(bollette.ID), GroupRef(trasporti.ID))
	drag(t, ctl, ItemRef(mutuo.ID), UngroupedRef())
	drag(t, ctl, ItemRef(varie.ID), ItemRef(bollette.ID))

	if !rec.Dirty() {
		t.Fatalf("session must be dirty before save")
	}
	local := store.Snapshot()

	reloaded, res, err := rec.Save(context.Background(), local)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected save errors: %v", res.Errors)
	}
	if rec.Dirty() {
		t.Fatalf("dirty flag must clear after a successful save")
	}

	// Per-container orderings of the reload match the pre-save local state.
	localView := Renumber(local).View()
	reloadedView := reloaded.View()
	if len(localView.Groups) != len(reloadedView.Groups) {
		t.Fatalf("group count mismatch")
	}
	for i := range localView.Groups {
		if localView.Groups[i].ID != reloadedView.Groups[i].ID {
			t.Fatalf("group order diverged at %d", i)
		}
	}
	for key, want := range localView.ByContainer {
		got := reloadedView.ByContainer[key]
		if len(got) != len(want) {
			t.Fatalf("container %s: %d items reloaded, want %d", key, len(got), len(want))
		}
		for i := range want {
			if got[i].ID != want[i].ID {
				t.Fatalf("container %s order diverged at %d", key, i)
			}
		}
	}
	checkDense(t, reloaded)
	checkPartition(t, reloaded)
}

func TestSaveIsIdempotent(t *testing.T) {
	svc := seededBackend()
	store, rec, ctl := loadSession(t, svc)
	view := store.View()
	item := view.ByContainer[core.Ungrouped][0]
	drag(t, ctl, ItemRef(item.ID), GroupRef(view.Groups[0].ID))

	first, _, err := rec.Save(context.Background(), store.Snapshot())
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	store.Replace(first)

	second, res, err := rec.Save(context.Background(), store.Snapshot())
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if res.ItemsUpdated != 0 || res.GroupsUpdated != 0 {
		t.Fatalf("clean save issued updates: %+v", res)
	}
	if !second.Equal(first) {
		t.Fatalf("repeated save changed state")
	}
}

func TestDiscardRestoresBaseline(t *testing.T) {
	svc := seededBackend()
	store, rec, ctl := loadSession(t, svc)
	baseline := rec.Baseline()

	view := store.View()
	item := view.ByContainer[core.Ungrouped][0]
	drag(t, ctl, ItemRef(item.ID), GroupRef(view.Groups[0].ID))
	if !rec.Dirty() {
		t.Fatalf("expected dirty after drag")
	}

	reloaded, err := rec.Discard(context.Background())
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	store.Replace(reloaded)
	if rec.Dirty() {
		t.Fatalf("discard must clear the dirty flag")
	}
	if !store.Snapshot().Equal(baseline) {
		t.Fatalf("discard did not restore the last-saved state")
	}
}

// failingService wraps the memory backend and fails selected operations.
type failingService struct {
	*memory.Store
	failGroupID int64
	failItemID  int64
}

func (f *failingService) UpdateGroup(ctx context.Context, id int64, upd backend.GroupUpdate) (core.Group, error) {
	if id == f.failGroupID {
		return core.Group{}, errors.New("simulated group failure")
	}
	return f.Store.UpdateGroup(ctx, id, upd)
}

func (f *failingService) BulkUpdateItems(ctx context.Context, updates []backend.BulkItemUpdate) ([]core.Item, []backend.UpdateError, error) {
	var pass []backend.BulkItemUpdate
	var failed []backend.UpdateError
	for _, upd := range updates {
		if upd.ID == f.failItemID {
			failed = append(failed, backend.UpdateError{ID: upd.ID, Err: fmt.Errorf("simulated item failure")})
			continue
		}
		pass = append(pass, upd)
	}
	applied, more, err := f.Store.BulkUpdateItems(ctx, pass)
	return applied, append(failed, more...), err
}

// downService wraps the memory backend so that reads succeed but, while down,
// every write fails, as when the collaborator's write endpoints are
// unreachable.
type downService struct {
	*memory.Store
	down bool
}

func (d *downService) UpdateGroup(ctx context.Context, id int64, upd backend.GroupUpdate) (core.Group, error) {
	if d.down {
		return core.Group{}, errors.New("write endpoint unreachable")
	}
	return d.Store.UpdateGroup(ctx, id, upd)
}

func (d *downService) BulkUpdateItems(ctx context.Context, updates []backend.BulkItemUpdate) ([]core.Item, []backend.UpdateError, error) {
	if d.down {
		return nil, nil, errors.New("write endpoint unreachable")
	}
	return d.Store.BulkUpdateItems(ctx, updates)
}

func TestSaveTotalFailureKeepsLocalState(t *testing.T) {
	svc := &downService{Store: seededBackend(), down: true}
	store, rec, ctl := loadSession(t, svc)
	view := store.View()

	item := view.ByContainer[core.Ungrouped][0]
	drag(t, ctl, ItemRef(item.ID), GroupRef(view.Groups[0].ID))
	local := store.Snapshot()

	kept, res, err := rec.Save(context.Background(), local)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.ItemsUpdated != 0 || res.GroupsUpdated != 0 {
		t.Fatalf("nothing should have been applied: %+v", res)
	}
	if len(res.Errors) == 0 {
		t.Fatalf("expected per-entity errors")
	}
	if !rec.Dirty() {
		t.Fatalf("dirty must survive a save that persisted nothing")
	}
	if !kept.Equal(local) {
		t.Fatalf("local snapshot must stay authoritative when no write landed")
	}
	store.Replace(kept)

	// A retry against a recovered collaborator re-issues the same updates.
	svc.down = false
	reloaded, res, err := rec.Save(context.Background(), store.Snapshot())
	if err != nil {
		t.Fatalf("retry save: %v", err)
	}
	if res.ItemsUpdated == 0 {
		t.Fatalf("retry must re-issue the pending item update: %+v", res)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("retry errors: %v", res.Errors)
	}
	if rec.Dirty() {
		t.Fatalf("dirty must clear after the retry succeeds")
	}
	got := reloaded.View().ByContainer[core.GroupKey(view.Groups[0].ID)]
	if len(got) == 0 || got[len(got)-1].ID != item.ID {
		t.Fatalf("retried move did not land: %+v", got)
	}
}

func TestSaveCollectsPartialFailures(t *testing.T) {
	base := seededBackend()
	store, _, _ := loadSession(t, base)
	view := store.View()

	svc := &failingService{
		Store:       base,
		failGroupID: view.Groups[0].ID,
		failItemID:  view.ByContainer[core.Ungrouped][0].ID,
	}
	store, rec, ctl := loadSession(t, svc)
	view = store.View()

	// Move the doomed item into a group and swap the groups so both batches
	// carry a failing entity.
	drag(t, ctl, ItemRef(svc.failItemID), GroupRef(view.Groups[1].ID))
	drag(t, ctl, GroupRef(view.Groups[1].ID), GroupRef(view.Groups[0].ID))

	reloaded, res, err := rec.Save(context.Background(), store.Snapshot())
	if err != nil {
		t.Fatalf("save must not fail outright on per-entity errors: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatalf("expected per-entity errors")
	}
	var gotGroup, gotItem bool
	for _, e := range res.Errors {
		switch e.Kind {
		case "group":
			gotGroup = true
		case "item":
			gotItem = true
		}
	}
	if !gotGroup || !gotItem {
		t.Fatalf("expected both kinds of failure, got %+v", res.Errors)
	}
	// The server copy wins after save, even when it differs from what was
	// displayed.
	store.Replace(reloaded)
	if rec.Dirty() {
		t.Fatalf("session tracks the reloaded server state after save")
	}
}
