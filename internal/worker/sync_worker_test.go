package worker

import (
	"context"
	"errors"
	"testing"

	"ricevute/internal/amqp"
	"ricevute/internal/backend/memory"
	"ricevute/internal/core"
)

type fakeMirror struct {
	writes int
	groups []core.Group
	items  []core.Item
	err    error
}

func (f *fakeMirror) WriteTaxonomy(_ context.Context, groups []core.Group, items []core.Item) error {
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.groups = groups
	f.items = items
	return nil
}

func TestHandleSyncMessageRewritesMirror(t *testing.T) {
	store := memory.NewSeeded(map[string][]string{
		"Casa": {"Bollette", "Mutuo"},
	}, []string{"Varie"})
	mirror := &fakeMirror{}
	w := NewSyncWorker(store, mirror)

	msg := amqp.NewTaxonomySyncMessage(1, 3)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle sync message: %v", err)
	}

	if mirror.writes != 1 {
		t.Fatalf("expected 1 mirror write, got %d", mirror.writes)
	}
	if len(mirror.groups) != 1 || len(mirror.items) != 3 {
		t.Fatalf("mirror got %d groups and %d items", len(mirror.groups), len(mirror.items))
	}
	if mirror.groups[0].Name != "Casa" {
		t.Fatalf("unexpected group in mirror: %+v", mirror.groups[0])
	}
}

func TestResyncPropagatesMirrorError(t *testing.T) {
	store := memory.New()
	mirror := &fakeMirror{err: errors.New("quota exceeded")}
	w := NewSyncWorker(store, mirror)

	if err := w.Resync(context.Background()); err == nil {
		t.Fatal("expected the mirror error to propagate")
	}
	if mirror.writes != 0 {
		t.Fatalf("expected no recorded writes, got %d", mirror.writes)
	}
}
