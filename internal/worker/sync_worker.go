// Package worker mirrors the persisted taxonomy to an external spreadsheet.
// It reacts to sync messages published after each taxonomy save and rewrites
// the whole mirror, so message loss only delays the mirror, never corrupts it.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ricevute/internal/amqp"
	"ricevute/internal/backend"
	"ricevute/internal/export"
)

// SyncWorker rewrites the taxonomy mirror from the database.
type SyncWorker struct {
	taxonomy backend.TaxonomyService
	mirror   export.TaxonomyMirror
}

func NewSyncWorker(taxonomy backend.TaxonomyService, mirror export.TaxonomyMirror) *SyncWorker {
	return &SyncWorker{taxonomy: taxonomy, mirror: mirror}
}

// HandleSyncMessage processes a single taxonomy sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TaxonomySyncMessage) error {
	slog.InfoContext(ctx, "Processing taxonomy sync message",
		"groups_updated", msg.GroupsUpdated,
		"items_updated", msg.ItemsUpdated,
		"saved_at", msg.Timestamp)

	return w.Resync(ctx)
}

// Resync reads the current taxonomy and rewrites the mirror. Also used at
// startup and on the periodic timer to recover from missed messages.
func (w *SyncWorker) Resync(ctx context.Context) error {
	groups, err := w.taxonomy.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	items, err := w.taxonomy.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	if err := w.mirror.WriteTaxonomy(ctx, groups, items); err != nil {
		return fmt.Errorf("write taxonomy mirror: %w", err)
	}
	return nil
}
