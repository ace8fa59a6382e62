// Package export mirrors the taxonomy to an external spreadsheet so it can
// be browsed outside the app. The mirror is rewritten wholesale on every
// sync; it is never read back, the database stays the source of truth.
package export

import (
	"context"

	"ricevute/internal/core"
)

// TaxonomyMirror rewrites the external mirror of groups and items.
type TaxonomyMirror interface {
	WriteTaxonomy(ctx context.Context, groups []core.Group, items []core.Item) error
}
