// Package storage provides the SQLite persistence backend. Groups, items and
// receipts live in their own tables; an item's container is its nullable
// group_id column, NULL meaning the ungrouped bucket.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ricevute/internal/backend"
	"ricevute/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ backend.Backend = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// containerArg converts a container key to its group_id column value.
func containerArg(key core.ContainerKey) sql.NullInt64 {
	if id, ok := key.GroupID(); ok {
		return sql.NullInt64{Int64: id, Valid: true}
	}
	return sql.NullInt64{}
}

func containerKey(groupID sql.NullInt64) core.ContainerKey {
	if groupID.Valid {
		return core.GroupKey(groupID.Int64)
	}
	return core.Ungrouped
}

func (r *SQLiteRepository) ListGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, display_order FROM groups ORDER BY display_order, name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []core.Group
	for rows.Next() {
		var g core.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

func (r *SQLiteRepository) ListItems(ctx context.Context) ([]core.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, group_id, display_order FROM items ORDER BY display_order, name`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		var it core.Item
		var groupID sql.NullInt64
		if err := rows.Scan(&it.ID, &it.Name, &groupID, &it.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Container = containerKey(groupID)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, name string, displayOrder int) (core.Group, error) {
	g := core.Group{Name: name, DisplayOrder: displayOrder}
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO groups (name, display_order) VALUES (?, ?)`, name, displayOrder)
	if err != nil {
		return core.Group{}, fmt.Errorf("create group: %w", err)
	}
	g.ID, err = res.LastInsertId()
	if err != nil {
		return core.Group{}, fmt.Errorf("group insert id: %w", err)
	}

	slog.InfoContext(ctx, "Group created", "id", g.ID, "name", g.Name)
	return g, nil
}

func (r *SQLiteRepository) UpdateGroup(ctx context.Context, id int64, upd backend.GroupUpdate) (core.Group, error) {
	var g core.Group
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, display_order FROM groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.DisplayOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Group{}, fmt.Errorf("group %d not found", id)
	}
	if err != nil {
		return core.Group{}, fmt.Errorf("load group: %w", err)
	}

	if upd.Name != nil {
		g.Name = *upd.Name
	}
	if upd.DisplayOrder != nil {
		g.DisplayOrder = *upd.DisplayOrder
	}
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE groups SET name = ?, display_order = ? WHERE id = ?`,
		g.Name, g.DisplayOrder, g.ID); err != nil {
		return core.Group{}, fmt.Errorf("update group: %w", err)
	}
	return g, nil
}

// DeleteGroup removes the group and appends its items to the end of the
// ungrouped bucket, keeping orders dense in both places.
func (r *SQLiteRepository) DeleteGroup(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete group: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete group rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("group %d not found", id)
	}

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE group_id IS NULL`).Scan(&next)
	if err != nil {
		return fmt.Errorf("count ungrouped items: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM items WHERE group_id = ? ORDER BY display_order, name`, id)
	if err != nil {
		return fmt.Errorf("list orphaned items: %w", err)
	}
	var orphans []int64
	for rows.Next() {
		var itemID int64
		if err := rows.Scan(&itemID); err != nil {
			rows.Close()
			return fmt.Errorf("scan orphaned item: %w", err)
		}
		orphans = append(orphans, itemID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate orphaned items: %w", err)
	}

	for _, itemID := range orphans {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET group_id = NULL, display_order = ? WHERE id = ?`,
			next, itemID); err != nil {
			return fmt.Errorf("move item %d to ungrouped: %w", itemID, err)
		}
		next++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete group: %w", err)
	}

	slog.InfoContext(ctx, "Group deleted", "id", id, "orphaned_items", len(orphans))
	return nil
}

func (r *SQLiteRepository) CreateItem(ctx context.Context, name string, container core.ContainerKey) (core.Item, error) {
	it := core.Item{Name: name, Container: container}
	if err := it.Validate(); err != nil {
		return core.Item{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Item{}, fmt.Errorf("begin create item: %w", err)
	}
	defer tx.Rollback()

	groupID := containerArg(container)
	if groupID.Valid {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM groups WHERE id = ?`, groupID.Int64).Scan(&exists)
		if err != nil {
			return core.Item{}, fmt.Errorf("check group: %w", err)
		}
		if exists == 0 {
			return core.Item{}, fmt.Errorf("group %d not found", groupID.Int64)
		}
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE group_id IS ?`, groupID).Scan(&it.DisplayOrder)
	if err != nil {
		return core.Item{}, fmt.Errorf("count container items: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO items (name, group_id, display_order) VALUES (?, ?, ?)`,
		name, groupID, it.DisplayOrder)
	if err != nil {
		return core.Item{}, fmt.Errorf("create item: %w", err)
	}
	it.ID, err = res.LastInsertId()
	if err != nil {
		return core.Item{}, fmt.Errorf("item insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Item{}, fmt.Errorf("commit create item: %w", err)
	}

	slog.InfoContext(ctx, "Item created", "id", it.ID, "name", it.Name, "container", container.String())
	return it, nil
}

func (r *SQLiteRepository) UpdateItem(ctx context.Context, id int64, upd backend.ItemUpdate) (core.Item, error) {
	var it core.Item
	var groupID sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, group_id, display_order FROM items WHERE id = ?`, id).
		Scan(&it.ID, &it.Name, &groupID, &it.DisplayOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Item{}, fmt.Errorf("item %d not found", id)
	}
	if err != nil {
		return core.Item{}, fmt.Errorf("load item: %w", err)
	}
	it.Container = containerKey(groupID)

	if upd.Name != nil {
		it.Name = *upd.Name
	}
	if upd.Container != nil {
		it.Container = *upd.Container
	}
	if upd.DisplayOrder != nil {
		it.DisplayOrder = *upd.DisplayOrder
	}
	if err := it.Validate(); err != nil {
		return core.Item{}, err
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE items SET name = ?, group_id = ?, display_order = ? WHERE id = ?`,
		it.Name, containerArg(it.Container), it.DisplayOrder, it.ID); err != nil {
		return core.Item{}, fmt.Errorf("update item: %w", err)
	}
	return it, nil
}

func (r *SQLiteRepository) DeleteItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d not found", id)
	}
	return nil
}

// BulkUpdateItems applies container and order assignments in one transaction.
// Per-item failures are collected and skipped; the rest of the batch still
// commits.
func (r *SQLiteRepository) BulkUpdateItems(ctx context.Context, updates []backend.BulkItemUpdate) ([]core.Item, []backend.UpdateError, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin bulk update: %w", err)
	}
	defer tx.Rollback()

	var applied []core.Item
	var failed []backend.UpdateError
	for _, upd := range updates {
		groupID := containerArg(upd.Container)
		if groupID.Valid {
			var exists int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM groups WHERE id = ?`, groupID.Int64).Scan(&exists)
			if err != nil {
				return nil, nil, fmt.Errorf("check group: %w", err)
			}
			if exists == 0 {
				failed = append(failed, backend.UpdateError{ID: upd.ID, Err: fmt.Errorf("group %d not found", groupID.Int64)})
				continue
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE items SET group_id = ?, display_order = ? WHERE id = ?`,
			groupID, upd.DisplayOrder, upd.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("bulk update item %d: %w", upd.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, nil, fmt.Errorf("bulk update rows: %w", err)
		}
		if affected == 0 {
			failed = append(failed, backend.UpdateError{ID: upd.ID, Err: fmt.Errorf("item %d not found", upd.ID)})
			continue
		}

		var it core.Item
		err = tx.QueryRowContext(ctx,
			`SELECT id, name, display_order FROM items WHERE id = ?`, upd.ID).
			Scan(&it.ID, &it.Name, &it.DisplayOrder)
		if err != nil {
			return nil, nil, fmt.Errorf("reload item %d: %w", upd.ID, err)
		}
		it.Container = upd.Container
		applied = append(applied, it)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit bulk update: %w", err)
	}

	slog.InfoContext(ctx, "Bulk item update applied",
		"requested", len(updates), "applied", len(applied), "failed", len(failed))
	return applied, failed, nil
}

func (r *SQLiteRepository) CreateReceipt(ctx context.Context, rec core.Receipt) (core.Receipt, error) {
	if err := rec.Validate(); err != nil {
		return core.Receipt{}, err
	}

	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE id = ?`, rec.TypeID).Scan(&exists)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("check receipt type: %w", err)
	}
	if exists == 0 {
		return core.Receipt{}, core.ErrUnknownType
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO receipts (year, month, day, description, amount_cents, type_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Date.Year(), int(rec.Date.Month()), rec.Date.Day(),
		rec.Description, rec.Amount.Cents, rec.TypeID)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return core.Receipt{}, fmt.Errorf("receipt insert id: %w", err)
	}

	slog.InfoContext(ctx, "Receipt saved",
		"id", rec.ID,
		"description", rec.Description,
		"amount_cents", rec.Amount.Cents,
		"year", rec.Date.Year(),
		"month", int(rec.Date.Month()),
		"day", rec.Date.Day())
	return rec, nil
}

func (r *SQLiteRepository) ListReceipts(ctx context.Context, year, month int) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, year, month, day, description, amount_cents, type_id
		 FROM receipts WHERE year = ? AND month = ? ORDER BY id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []core.Receipt
	for rows.Next() {
		var rec core.Receipt
		var y, m, d int
		if err := rows.Scan(&rec.ID, &y, &m, &d, &rec.Description, &rec.Amount.Cents, &rec.TypeID); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		rec.Date = core.NewDate(y, m, d)
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, nil
}

func (r *SQLiteRepository) DeleteReceipt(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete receipt rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("receipt %d not found", id)
	}
	return nil
}

func (r *SQLiteRepository) MonthOverview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	overview := core.MonthOverview{Year: year, Month: month}

	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(amount_cents) FROM receipts WHERE year = ? AND month = ?`,
		year, month).Scan(&total)
	if err != nil {
		return overview, fmt.Errorf("get month total: %w", err)
	}
	overview.Total = core.Money{Cents: total.Int64}

	rows, err := r.db.QueryContext(ctx,
		`SELECT COALESCE(i.name, 'type ' || r.type_id) AS type_name, SUM(r.amount_cents)
		 FROM receipts r LEFT JOIN items i ON i.id = r.type_id
		 WHERE r.year = ? AND r.month = ?
		 GROUP BY r.type_id ORDER BY r.type_id`, year, month)
	if err != nil {
		return overview, fmt.Errorf("get type sums: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ta core.TypeAmount
		if err := rows.Scan(&ta.Name, &ta.Amount.Cents); err != nil {
			return overview, fmt.Errorf("scan type sum: %w", err)
		}
		overview.ByType = append(overview.ByType, ta)
	}
	if err := rows.Err(); err != nil {
		return overview, fmt.Errorf("iterate type sums: %w", err)
	}
	return overview, nil
}
