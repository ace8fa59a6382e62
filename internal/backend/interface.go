// Package backend defines the persistence collaborator contract consumed by
// the taxonomy editing session and receipt handlers, and a factory that
// builds the configured implementation.
package backend

import (
	"context"

	"ricevute/internal/core"
)

// GroupUpdate is a partial update of a group. Nil fields are left unchanged.
type GroupUpdate struct {
	Name         *string
	DisplayOrder *int
}

// ItemUpdate is a partial update of an item. Nil fields are left unchanged.
type ItemUpdate struct {
	Name         *string
	Container    *core.ContainerKey
	DisplayOrder *int
}

// BulkItemUpdate assigns an item's container and display order in one pass.
type BulkItemUpdate struct {
	ID           int64
	Container    core.ContainerKey
	DisplayOrder int
}

// UpdateError records a per-entity failure inside a batch operation.
type UpdateError struct {
	ID  int64
	Err error
}

// TaxonomyService is the persistence collaborator owning the durable copy of
// groups and items. It is the conflict-resolution authority on reload.
type TaxonomyService interface {
	ListGroups(ctx context.Context) ([]core.Group, error)
	ListItems(ctx context.Context) ([]core.Item, error)

	CreateGroup(ctx context.Context, name string, displayOrder int) (core.Group, error)
	UpdateGroup(ctx context.Context, id int64, upd GroupUpdate) (core.Group, error)
	DeleteGroup(ctx context.Context, id int64) error

	CreateItem(ctx context.Context, name string, container core.ContainerKey) (core.Item, error)
	UpdateItem(ctx context.Context, id int64, upd ItemUpdate) (core.Item, error)
	DeleteItem(ctx context.Context, id int64) error

	// BulkUpdateItems applies {container, display_order} for every listed
	// item. Atomic by convention: the implementation applies what it can and
	// reports per-item failures; err is reserved for transport-level errors
	// that fail the whole batch.
	BulkUpdateItems(ctx context.Context, updates []BulkItemUpdate) (applied []core.Item, failed []UpdateError, err error)
}

// ReceiptService is the persistence contract for receipt records.
type ReceiptService interface {
	CreateReceipt(ctx context.Context, r core.Receipt) (core.Receipt, error)
	ListReceipts(ctx context.Context, year, month int) ([]core.Receipt, error)
	DeleteReceipt(ctx context.Context, id int64) error

	// MonthOverview aggregates a month's receipts per receipt type.
	MonthOverview(ctx context.Context, year, month int) (core.MonthOverview, error)
}

// Backend bundles everything a configured backend provides.
type Backend interface {
	TaxonomyService
	ReceiptService
}

// CleanupFunc releases a backend's resources.
type CleanupFunc func() error

// Result contains a constructed backend and its optional cleanup.
type Result struct {
	Backend Backend
	Cleanup CleanupFunc
}
