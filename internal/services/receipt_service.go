package services

import (
	"context"
	"fmt"
	"log/slog"

	"ricevute/internal/backend"
	"ricevute/internal/core"
)

// ReceiptService wraps receipt persistence with validation and logging.
type ReceiptService struct {
	storage backend.ReceiptService
}

func NewReceiptService(storage backend.ReceiptService) *ReceiptService {
	return &ReceiptService{storage: storage}
}

// CreateReceipt validates and saves a receipt.
func (s *ReceiptService) CreateReceipt(ctx context.Context, r core.Receipt) (core.Receipt, error) {
	if err := r.Validate(); err != nil {
		return core.Receipt{}, err
	}

	saved, err := s.storage.CreateReceipt(ctx, r)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("save receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt created",
		"id", saved.ID,
		"description", saved.Description,
		"amount_cents", saved.Amount.Cents)
	return saved, nil
}

// ListReceipts returns the receipts of one month.
func (s *ReceiptService) ListReceipts(ctx context.Context, year, month int) ([]core.Receipt, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	receipts, err := s.storage.ListReceipts(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt.
func (s *ReceiptService) DeleteReceipt(ctx context.Context, id int64) error {
	if err := s.storage.DeleteReceipt(ctx, id); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	slog.InfoContext(ctx, "Receipt deleted", "id", id)
	return nil
}

// MonthOverview aggregates a month's spending per receipt type.
func (s *ReceiptService) MonthOverview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	if month < 1 || month > 12 {
		return core.MonthOverview{}, fmt.Errorf("invalid month %d", month)
	}
	overview, err := s.storage.MonthOverview(ctx, year, month)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("month overview: %w", err)
	}
	return overview, nil
}
