// Package memory provides an in-memory persistence collaborator, used as the
// development backend and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ricevute/internal/backend"
	"ricevute/internal/core"
)

// Store keeps groups, items and receipts in memory behind a mutex. It
// implements the full backend contract.
type Store struct {
	mu            sync.Mutex
	groups        map[int64]core.Group
	items         map[int64]core.Item
	receipts      map[int64]core.Receipt
	nextGroupID   int64
	nextItemID    int64
	nextReceiptID int64
}

var _ backend.Backend = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		groups:        make(map[int64]core.Group),
		items:         make(map[int64]core.Item),
		receipts:      make(map[int64]core.Receipt),
		nextGroupID:   1,
		nextItemID:    1,
		nextReceiptID: 1,
	}
}

// NewSeeded returns a store pre-filled with the given group names and, per
// group, a list of item names; extra ungrouped item names may follow.
func NewSeeded(groups map[string][]string, ungrouped []string) *Store {
	s := New()
	ctx := context.Background()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		g, _ := s.CreateGroup(ctx, name, i)
		for _, itemName := range groups[name] {
			_, _ = s.CreateItem(ctx, itemName, core.GroupKey(g.ID))
		}
	}
	for _, itemName := range ungrouped {
		_, _ = s.CreateItem(ctx, itemName, core.Ungrouped)
	}
	return s
}

func (s *Store) ListGroups(_ context.Context) ([]core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) ListItems(_ context.Context) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateGroup(_ context.Context, name string, displayOrder int) (core.Group, error) {
	g := core.Group{Name: name, DisplayOrder: displayOrder}
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.nextGroupID
	s.nextGroupID++
	s.groups[g.ID] = g
	return g, nil
}

func (s *Store) UpdateGroup(_ context.Context, id int64, upd backend.GroupUpdate) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return core.Group{}, fmt.Errorf("group %d not found", id)
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
	s.groups[id] = g
	return g, nil
}

// DeleteGroup removes the group and moves its items to the end of the
// ungrouped bucket, mirroring the SQLite backend's cascade.
func (s *Store) DeleteGroup(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return fmt.Errorf("group %d not found", id)
	}
	delete(s.groups, id)

	key := core.GroupKey(id)
	var orphans, ungrouped []core.Item
	for _, it := range s.items {
		switch it.Container {
		case key:
			orphans = append(orphans, it)
		case core.Ungrouped:
			ungrouped = append(ungrouped, it)
		}
	}
	sortItems(orphans)
	sortItems(ungrouped)
	next := len(ungrouped)
	for _, it := range orphans {
		it.Container = core.Ungrouped
		it.DisplayOrder = next
		next++
		s.items[it.ID] = it
	}
	return nil
}

func (s *Store) CreateItem(_ context.Context, name string, container core.ContainerKey) (core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := container.GroupID(); ok {
		if _, exists := s.groups[id]; !exists {
			return core.Item{}, fmt.Errorf("group %d not found", id)
		}
	}
	it := core.Item{Name: name, Container: container, DisplayOrder: s.containerLen(container)}
	if err := it.Validate(); err != nil {
		return core.Item{}, err
	}
	it.ID = s.nextItemID
	s.nextItemID++
	s.items[it.ID] = it
	return it, nil
}

func (s *Store) UpdateItem(_ context.Context, id int64, upd backend.ItemUpdate) (core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return core.Item{}, fmt.Errorf("item %d not found", id)
	}
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
	s.items[id] = it
	return it, nil
}

func (s *Store) DeleteItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("item %d not found", id)
	}
	delete(s.items, id)
	return nil
}

func (s *Store) BulkUpdateItems(_ context.Context, updates []backend.BulkItemUpdate) ([]core.Item, []backend.UpdateError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var applied []core.Item
	var failed []backend.UpdateError
	for _, upd := range updates {
		it, ok := s.items[upd.ID]
		if !ok {
			failed = append(failed, backend.UpdateError{ID: upd.ID, Err: fmt.Errorf("item %d not found", upd.ID)})
			continue
		}
		if id, grouped := upd.Container.GroupID(); grouped {
			if _, exists := s.groups[id]; !exists {
				failed = append(failed, backend.UpdateError{ID: upd.ID, Err: fmt.Errorf("group %d not found", id)})
				continue
			}
		}
		it.Container = upd.Container
		it.DisplayOrder = upd.DisplayOrder
		s.items[upd.ID] = it
		applied = append(applied, it)
	}
	return applied, failed, nil
}

func (s *Store) CreateReceipt(_ context.Context, r core.Receipt) (core.Receipt, error) {
	if err := r.Validate(); err != nil {
		return core.Receipt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[r.TypeID]; !ok {
		return core.Receipt{}, core.ErrUnknownType
	}
	r.ID = s.nextReceiptID
	s.nextReceiptID++
	s.receipts[r.ID] = r
	return r, nil
}

func (s *Store) ListReceipts(_ context.Context, year, month int) ([]core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Receipt
	for _, r := range s.receipts {
		if r.Date.Year() == year && int(r.Date.Month()) == month {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteReceipt(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[id]; !ok {
		return fmt.Errorf("receipt %d not found", id)
	}
	delete(s.receipts, id)
	return nil
}

func (s *Store) MonthOverview(_ context.Context, year, month int) (core.MonthOverview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ov := core.MonthOverview{Year: year, Month: month}
	byType := make(map[int64]int64)
	for _, r := range s.receipts {
		if r.Date.Year() == year && int(r.Date.Month()) == month {
			ov.Total.Cents += r.Amount.Cents
			byType[r.TypeID] += r.Amount.Cents
		}
	}
	ids := make([]int64, 0, len(byType))
	for id := range byType {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		name := fmt.Sprintf("type %d", id)
		if it, ok := s.items[id]; ok {
			name = it.Name
		}
		ov.ByType = append(ov.ByType, core.TypeAmount{Name: name, Amount: core.Money{Cents: byType[id]}})
	}
	return ov, nil
}

func (s *Store) containerLen(key core.ContainerKey) int {
	n := 0
	for _, it := range s.items {
		if it.Container == key {
			n++
		}
	}
	return n
}

func sortItems(items []core.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].DisplayOrder != items[j].DisplayOrder {
			return items[i].DisplayOrder < items[j].DisplayOrder
		}
		return items[i].Name < items[j].Name
	})
}
